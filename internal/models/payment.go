package models

import "time"

// PaymentStatus is the settlement state of a single payment attempt.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// Payment methods reported by the gateway. The column is an open string;
// these cover the methods the gateway is configured for.
const (
	PaymentMethodCredit  = "Credit"
	PaymentMethodATM     = "ATM"
	PaymentMethodWebATM  = "WebATM"
	PaymentMethodCVS     = "CVS"
	PaymentMethodUnknown = "Unknown"
)

// Payment is one attempt to settle an order. Orders keep every attempt;
// new rows are appended rather than overwritten, and the row with the
// latest UpdatedAt is the effective one.
type Payment struct {
	ID        string        `json:"id"`
	OrderID   int64         `json:"order_id"`
	Method    string        `json:"method"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
