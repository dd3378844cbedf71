package models

import "time"

// DiscountType selects how a coupon reduces the order total.
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "PERCENTAGE"
	DiscountTypeFixedAmount DiscountType = "FIXED_AMOUNT"
)

// Coupon is a shop-scoped discount definition.
type Coupon struct {
	ID            int64        `json:"id"`
	ShopID        int64        `json:"shop_id"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue int64        `json:"discount_value"`
	StartDate     time.Time    `json:"start_date"`
	EndDate       time.Time    `json:"end_date"`
	UsageLimit    int          `json:"usage_limit"`
}

// UserCouponStatus is the redemption state of a claimed coupon.
type UserCouponStatus string

const (
	UserCouponActive UserCouponStatus = "ACTIVE"
	UserCouponUsed   UserCouponStatus = "USED"
)

// UserCoupon is one coupon instance claimed by one user. It moves
// ACTIVE -> USED at most once, only during a successful checkout, and
// then records the consuming order.
type UserCoupon struct {
	ID       int64            `json:"id"`
	CouponID int64            `json:"coupon_id"`
	UserID   string           `json:"user_id"`
	Status   UserCouponStatus `json:"status"`
	OrderID  *int64           `json:"order_id,omitempty"`
	UsedAt   *time.Time       `json:"used_at,omitempty"`

	Coupon *Coupon `json:"coupon,omitempty"`
}
