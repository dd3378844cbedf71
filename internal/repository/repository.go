package repository

import (
	"context"
	"time"

	"github.com/stallwise/stallwise-orders-service/internal/models"
)

// Store is the single persistence boundary for the order aggregate and
// the records checkout touches alongside it. Reads outside a transaction
// are plain queries; every mutation happens inside WithinTx.
type Store interface {
	// WithinTx runs fn inside one database transaction. fn returning an
	// error rolls everything back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, int, error)

	// FindUnpaidOrdersByTotal is the reconciliation fallback when a trade
	// number cannot be parsed: all currently unpaid orders whose total
	// equals the notified amount.
	FindUnpaidOrdersByTotal(ctx context.Context, total int64) ([]*models.Order, error)

	GetUserCoupon(ctx context.Context, id int64) (*models.UserCoupon, error)
}

// Tx exposes the aggregate operations available inside a transaction.
// GetOrderForUpdate takes an exclusive row lock on the order, serializing
// concurrent read-check-write sequences; a bare status guard without the
// lock is not enough under concurrent notification delivery.
type Tx interface {
	GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error)

	// InsertOrder persists a new aggregate: order row, items, payments and
	// history rows, assigning generated ids onto the passed value.
	InsertOrder(ctx context.Context, order *models.Order) error

	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, at time.Time) error
	AppendStatusHistory(ctx context.Context, orderID int64, status models.OrderStatus, at time.Time) error

	InsertPayment(ctx context.Context, p *models.Payment) error
	UpdatePayment(ctx context.Context, p *models.Payment) error

	// MarkCouponUsed performs the ACTIVE -> USED transition. It fails when
	// the row is not ACTIVE, which makes a second use impossible.
	MarkCouponUsed(ctx context.Context, userCouponID, orderID int64, usedAt time.Time) error

	GetSKUForUpdate(ctx context.Context, id int64) (*models.SKU, error)

	// DecrementStock subtracts qty guarded against going negative.
	DecrementStock(ctx context.Context, skuID int64, qty int) error
}
