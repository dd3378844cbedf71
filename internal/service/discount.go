package service

import (
	"time"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
	"github.com/stallwise/stallwise-orders-service/internal/models"
)

// minChargeableAmount is the smallest total the payment gateway accepts.
// Discounts that would push the total to zero or below are floored here
// rather than rejected; inherited policy, kept deliberately.
const minChargeableAmount = 1

// ValidateUserCoupon checks that a claimed coupon may be applied by this
// user to a purchase from this shop at this moment.
func ValidateUserCoupon(uc *models.UserCoupon, userID string, shopID int64, now time.Time) error {
	if uc == nil || uc.Coupon == nil {
		return apperrors.NewValidationError("user_coupon_id", "coupon not found")
	}
	if uc.UserID != userID {
		return apperrors.NewCouponInvalid(apperrors.CouponOwnerMismatch)
	}
	if uc.Status != models.UserCouponActive {
		return apperrors.NewCouponInvalid(apperrors.CouponAlreadyUsed)
	}
	if uc.Coupon.ShopID != shopID {
		return apperrors.NewCouponInvalid(apperrors.CouponWrongShop)
	}
	if now.Before(uc.Coupon.StartDate) || now.After(uc.Coupon.EndDate) {
		return apperrors.NewCouponInvalid(apperrors.CouponOutOfWindow)
	}
	return nil
}

// ComputeDiscountedTotal applies the coupon's discount to the original
// total. The result never drops below minChargeableAmount.
func ComputeDiscountedTotal(originalTotal int64, coupon *models.Coupon) (int64, error) {
	var discounted int64
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		discounted = originalTotal * (100 - coupon.DiscountValue) / 100
	case models.DiscountTypeFixedAmount:
		discounted = originalTotal - coupon.DiscountValue
	default:
		return 0, apperrors.ErrUnsupportedDiscountType
	}

	if discounted < minChargeableAmount {
		discounted = minChargeableAmount
	}
	return discounted, nil
}
