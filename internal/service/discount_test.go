package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
	"github.com/stallwise/stallwise-orders-service/internal/models"
)

func validCoupon(shopID int64) *models.Coupon {
	return &models.Coupon{
		ID:            7,
		ShopID:        shopID,
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 10,
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
	}
}

func TestComputeDiscountedTotal(t *testing.T) {
	tests := []struct {
		name          string
		originalTotal int64
		discountType  models.DiscountType
		discountValue int64
		want          int64
		wantErr       error
	}{
		{"ten percent off", 1000, models.DiscountTypePercentage, 10, 900, nil},
		{"percentage truncates", 999, models.DiscountTypePercentage, 10, 899, nil},
		{"hundred percent floors to minimum", 1000, models.DiscountTypePercentage, 100, 1, nil},
		{"fixed amount", 1000, models.DiscountTypeFixedAmount, 250, 750, nil},
		{"fixed amount exceeding total floors to minimum", 200, models.DiscountTypeFixedAmount, 500, 1, nil},
		{"fixed amount to exactly zero floors to minimum", 500, models.DiscountTypeFixedAmount, 500, 1, nil},
		{"unknown type", 1000, models.DiscountType("BOGO"), 1, 0, apperrors.ErrUnsupportedDiscountType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coupon := &models.Coupon{
				DiscountType:  tt.discountType,
				DiscountValue: tt.discountValue,
			}
			got, err := ComputeDiscountedTotal(tt.originalTotal, coupon)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected total %d, got %d", tt.want, got)
			}
		})
	}
}

func TestValidateUserCoupon(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		mutate     func(uc *models.UserCoupon)
		wantReason apperrors.CouponReason
	}{
		{
			name:       "valid",
			mutate:     func(uc *models.UserCoupon) {},
			wantReason: "",
		},
		{
			name:       "owner mismatch",
			mutate:     func(uc *models.UserCoupon) { uc.UserID = "someone-else" },
			wantReason: apperrors.CouponOwnerMismatch,
		},
		{
			name:       "already used",
			mutate:     func(uc *models.UserCoupon) { uc.Status = models.UserCouponUsed },
			wantReason: apperrors.CouponAlreadyUsed,
		},
		{
			name:       "wrong shop",
			mutate:     func(uc *models.UserCoupon) { uc.Coupon.ShopID = 99 },
			wantReason: apperrors.CouponWrongShop,
		},
		{
			name: "before window",
			mutate: func(uc *models.UserCoupon) {
				uc.Coupon.StartDate = now.Add(24 * time.Hour)
			},
			wantReason: apperrors.CouponOutOfWindow,
		},
		{
			name: "after window",
			mutate: func(uc *models.UserCoupon) {
				uc.Coupon.EndDate = now.Add(-24 * time.Hour)
			},
			wantReason: apperrors.CouponOutOfWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &models.UserCoupon{
				ID:     3,
				UserID: "user-1",
				Status: models.UserCouponActive,
				Coupon: validCoupon(5),
			}
			tt.mutate(uc)

			err := ValidateUserCoupon(uc, "user-1", 5, now)
			if tt.wantReason == "" {
				if err != nil {
					t.Errorf("Expected valid coupon, got %v", err)
				}
				return
			}
			if got := apperrors.CouponReasonOf(err); got != tt.wantReason {
				t.Errorf("Expected reason %s, got %s (err=%v)", tt.wantReason, got, err)
			}
		})
	}
}

func TestValidateUserCouponMissing(t *testing.T) {
	if err := ValidateUserCoupon(nil, "user-1", 5, time.Now()); !apperrors.IsValidation(err) {
		t.Errorf("Expected validation error for nil coupon, got %v", err)
	}

	uc := &models.UserCoupon{ID: 3, UserID: "user-1", Status: models.UserCouponActive}
	if err := ValidateUserCoupon(uc, "user-1", 5, time.Now()); !apperrors.IsValidation(err) {
		t.Errorf("Expected validation error for missing coupon definition, got %v", err)
	}
}
