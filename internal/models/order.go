package models

import "time"

// OrderStatus is the lifecycle state of an order. All mutation goes
// through the state machine in internal/service; nothing else writes it.
type OrderStatus string

const (
	OrderStatusUnpaid        OrderStatus = "UNPAID"
	OrderStatusPaid          OrderStatus = "PAID"
	OrderStatusPaymentFailed OrderStatus = "PAYMENT_FAILED"
	OrderStatusPreparing     OrderStatus = "PREPARING"
	OrderStatusShipped       OrderStatus = "SHIPPED"
	OrderStatusDelivered     OrderStatus = "DELIVERED"
	OrderStatusCompleted     OrderStatus = "COMPLETED"
	OrderStatusCancelled     OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition can leave s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusCompleted, OrderStatusPaymentFailed:
		return true
	}
	return false
}

// Address is a point-in-time snapshot copied onto the order at creation.
// It is never re-derived from the user's live address book.
type Address struct {
	Recipient  string `json:"recipient"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Order is the aggregate root. Items, payments, shipments and history are
// owned children and share the order's transactional boundary.
type Order struct {
	ID              int64                `json:"id"`
	UserID          string               `json:"user_id"`
	ShopID          int64                `json:"shop_id"`
	Status          OrderStatus          `json:"status"`
	TotalPrice      int64                `json:"total_price"`
	ShippingAddress Address              `json:"shipping_address"`
	BillingAddress  Address              `json:"billing_address"`
	Items           []OrderItem          `json:"items"`
	Payments        []Payment            `json:"payments"`
	Shipments       []Shipment           `json:"shipments,omitempty"`
	History         []OrderStatusHistory `json:"history,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// OrderItem is immutable once the order exists. UnitPrice is a snapshot of
// the SKU price at checkout time.
type OrderItem struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	SKUID       int64  `json:"sku_id"`
	ShopID      int64  `json:"shop_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

// OrderStatusHistory is append-only: one row per transition, never
// updated or deleted.
type OrderStatusHistory struct {
	ID        int64       `json:"id"`
	OrderID   int64       `json:"order_id"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Shipment tracks a physical dispatch of order items.
type Shipment struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id"`
	Carrier    string    `json:"carrier"`
	TrackingNo string    `json:"tracking_no"`
	CreatedAt  time.Time `json:"created_at"`
}

// ItemsTotal returns the sum of unit-price snapshots times quantity.
// The persisted TotalPrice is this sum after discount, fixed at creation.
func (o *Order) ItemsTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// EffectivePayment returns the most recently updated payment row, or nil
// when the order has none. Older rows are kept as attempt history.
func (o *Order) EffectivePayment() *Payment {
	if len(o.Payments) == 0 {
		return nil
	}
	effective := &o.Payments[0]
	for i := 1; i < len(o.Payments); i++ {
		if o.Payments[i].UpdatedAt.After(effective.UpdatedAt) {
			effective = &o.Payments[i]
		}
	}
	return effective
}

// CanCancel reports whether the order accepts a cancellation request.
// Cancellation is permitted from any non-terminal state, including
// post-shipment; forbidding cancellation of shipped orders is a product
// decision this service does not take.
func (o *Order) CanCancel() bool {
	return !o.Status.IsTerminal()
}

// SKU is the slice of the catalog this service reads: price and stock for
// checkout. Catalog management itself lives elsewhere.
type SKU struct {
	ID          int64  `json:"id"`
	ShopID      int64  `json:"shop_id"`
	ProductName string `json:"product_name"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
}
