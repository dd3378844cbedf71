package service

import (
	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
	"github.com/stallwise/stallwise-orders-service/internal/models"
)

const maxItemsPerOrder = 100

// ValidateCheckoutRequest rejects structurally invalid checkouts before
// any database work begins.
func ValidateCheckoutRequest(req *CheckoutRequest) error {
	if req == nil {
		return apperrors.NewValidationError("request", "missing body")
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("user_id", "user_id is required")
	}
	if req.ShopID <= 0 {
		return apperrors.NewValidationError("shop_id", "shop_id is required")
	}
	if len(req.Items) == 0 {
		return apperrors.NewValidationError("items", "at least one item is required")
	}
	if len(req.Items) > maxItemsPerOrder {
		return apperrors.NewValidationError("items", "too many items")
	}

	seen := make(map[int64]bool, len(req.Items))
	for _, item := range req.Items {
		if item.SKUID <= 0 {
			return apperrors.NewValidationError("items", "sku_id is required")
		}
		if item.Quantity <= 0 {
			return apperrors.NewValidationError("items", "quantity must be positive")
		}
		if seen[item.SKUID] {
			return apperrors.NewValidationError("items", "duplicate sku in order")
		}
		seen[item.SKUID] = true
	}

	if err := validateAddress("shipping_address", req.ShippingAddress); err != nil {
		return err
	}
	return validateAddress("billing_address", req.BillingAddress)
}

func validateAddress(field string, addr models.Address) error {
	if addr.Recipient == "" {
		return apperrors.NewValidationError(field, "recipient is required")
	}
	if addr.Line1 == "" {
		return apperrors.NewValidationError(field, "line1 is required")
	}
	if addr.City == "" {
		return apperrors.NewValidationError(field, "city is required")
	}
	if addr.PostalCode == "" {
		return apperrors.NewValidationError(field, "postal_code is required")
	}
	if addr.Country == "" {
		return apperrors.NewValidationError(field, "country is required")
	}
	return nil
}
