package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across the service.
var (
	// ErrOrderNotFound is returned when an order id resolves to nothing.
	ErrOrderNotFound = errors.New("order not found")

	// ErrStaleTransition marks a state-machine transition attempted from a
	// state it is not declared for. Callers treat it as a successful no-op.
	ErrStaleTransition = errors.New("stale transition")

	// ErrInsufficientStock is returned when a stock decrement would go negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrChecksumMismatch rejects an inbound gateway payload whose
	// CheckMacValue does not match the canonical recomputation.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnsupportedDiscountType is returned for discount types the
	// calculator does not know.
	ErrUnsupportedDiscountType = errors.New("unsupported discount type")

	// ErrPersistenceConflict is a transient conflict (lock contention,
	// serialization failure) that the caller may retry.
	ErrPersistenceConflict = errors.New("persistence conflict")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CouponReason identifies why a coupon was rejected.
type CouponReason string

const (
	CouponOwnerMismatch CouponReason = "owner_mismatch"
	CouponAlreadyUsed   CouponReason = "already_used"
	CouponWrongShop     CouponReason = "wrong_shop"
	CouponOutOfWindow   CouponReason = "out_of_window"
)

// CouponInvalidError rejects a coupon during checkout.
type CouponInvalidError struct {
	Reason CouponReason
}

func (e *CouponInvalidError) Error() string {
	return "coupon invalid: " + string(e.Reason)
}

// NewCouponInvalid creates a CouponInvalidError with the given reason.
func NewCouponInvalid(reason CouponReason) *CouponInvalidError {
	return &CouponInvalidError{Reason: reason}
}

// CouponReasonOf extracts the rejection reason, or "" if err is not a
// coupon error.
func CouponReasonOf(err error) CouponReason {
	var ce *CouponInvalidError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ""
}

// GatewayConfigError reports missing payment-gateway credentials. It is
// fatal at process startup only.
type GatewayConfigError struct {
	Missing []string
}

func (e *GatewayConfigError) Error() string {
	return "gateway configuration incomplete: missing " + strings.Join(e.Missing, ", ")
}
