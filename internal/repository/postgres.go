package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
	"github.com/stallwise/stallwise-orders-service/internal/logging"
	"github.com/stallwise/stallwise-orders-service/internal/models"
)

// PostgresStore implements Store on PostgreSQL via database/sql.
type PostgresStore struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logging.New("postgres-store"),
	}
}

// WithinTx runs fn in one transaction. Deadlocks and serialization
// failures surface as ErrPersistenceConflict so callers can retry.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&postgresTx{tx: dbTx}); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			s.logger.Error("Rollback failed", logging.Fields{"error": rbErr.Error()})
		}
		return translateConflict(err)
	}

	if err := dbTx.Commit(); err != nil {
		return translateConflict(err)
	}
	return nil
}

func translateConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		if pqErr.Code == "40001" || pqErr.Code == "40P01" {
			return apperrors.ErrPersistenceConflict
		}
	}
	return err
}

const orderColumns = `
	id, user_id, shop_id, status, total_price,
	shipping_address, billing_address, created_at, updated_at`

func (s *PostgresStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return loadOrder(ctx, s.db, id, false)
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT`+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, order := range orders {
		if err := loadChildren(ctx, s.db, order); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (s *PostgresStore) FindUnpaidOrdersByTotal(ctx context.Context, total int64) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+orderColumns+`
		 FROM orders
		 WHERE status = $1 AND total_price = $2
		 ORDER BY created_at`, models.OrderStatusUnpaid, total)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) GetUserCoupon(ctx context.Context, id int64) (*models.UserCoupon, error) {
	var (
		uc      models.UserCoupon
		c       models.Coupon
		orderID sql.NullInt64
		usedAt  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT uc.id, uc.coupon_id, uc.user_id, uc.status, uc.order_id, uc.used_at,
		        c.id, c.shop_id, c.discount_type, c.discount_value,
		        c.start_date, c.end_date, c.usage_limit
		 FROM user_coupons uc
		 JOIN coupons c ON c.id = uc.coupon_id
		 WHERE uc.id = $1`, id).Scan(
		&uc.ID, &uc.CouponID, &uc.UserID, &uc.Status, &orderID, &usedAt,
		&c.ID, &c.ShopID, &c.DiscountType, &c.DiscountValue,
		&c.StartDate, &c.EndDate, &c.UsageLimit,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		uc.OrderID = &orderID.Int64
	}
	if usedAt.Valid {
		uc.UsedAt = &usedAt.Time
	}
	uc.Coupon = &c
	return &uc, nil
}

// postgresTx implements Tx on an open transaction.
type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return loadOrder(ctx, t.tx, id, true)
}

func (t *postgresTx) InsertOrder(ctx context.Context, order *models.Order) error {
	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return err
	}
	billingJSON, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return err
	}

	err = t.tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, shop_id, status, total_price,
		                     shipping_address, billing_address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		order.UserID, order.ShopID, order.Status, order.TotalPrice,
		shippingJSON, billingJSON, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err = t.tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, sku_id, shop_id, product_name, unit_price, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			item.OrderID, item.SKUID, item.ShopID, item.ProductName, item.UnitPrice, item.Quantity,
		).Scan(&item.ID)
		if err != nil {
			return err
		}
	}

	for i := range order.Payments {
		order.Payments[i].OrderID = order.ID
		if err := t.InsertPayment(ctx, &order.Payments[i]); err != nil {
			return err
		}
	}

	for i := range order.History {
		h := &order.History[i]
		h.OrderID = order.ID
		if err := t.AppendStatusHistory(ctx, h.OrderID, h.Status, h.CreatedAt); err != nil {
			return err
		}
	}

	return nil
}

func (t *postgresTx) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, at time.Time) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, at)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperrors.ErrOrderNotFound
	}
	return nil
}

func (t *postgresTx) AppendStatusHistory(ctx context.Context, orderID int64, status models.OrderStatus, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO order_status_history (order_id, status, created_at)
		 VALUES ($1, $2, $3)`,
		orderID, status, at)
	return err
}

func (t *postgresTx) InsertPayment(ctx context.Context, p *models.Payment) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO payments (id, order_id, method, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.OrderID, p.Method, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (t *postgresTx) UpdatePayment(ctx context.Context, p *models.Payment) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE payments SET method = $2, status = $3, updated_at = $4 WHERE id = $1`,
		p.ID, p.Method, p.Status, p.UpdatedAt)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperrors.ErrOrderNotFound
	}
	return nil
}

func (t *postgresTx) MarkCouponUsed(ctx context.Context, userCouponID, orderID int64, usedAt time.Time) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE user_coupons
		 SET status = $2, order_id = $3, used_at = $4
		 WHERE id = $1 AND status = $5`,
		userCouponID, models.UserCouponUsed, orderID, usedAt, models.UserCouponActive)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperrors.NewCouponInvalid(apperrors.CouponAlreadyUsed)
	}
	return nil
}

func (t *postgresTx) GetSKUForUpdate(ctx context.Context, id int64) (*models.SKU, error) {
	var sku models.SKU
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, shop_id, product_name, price, stock
		 FROM skus WHERE id = $1 FOR UPDATE`, id).Scan(
		&sku.ID, &sku.ShopID, &sku.ProductName, &sku.Price, &sku.Stock)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sku, nil
}

func (t *postgresTx) DecrementStock(ctx context.Context, skuID int64, qty int) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE skus SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		skuID, qty)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apperrors.ErrInsufficientStock
	}
	return nil
}

// queryer lets the aggregate loaders run on either *sql.DB or *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func loadOrder(ctx context.Context, q queryer, id int64, forUpdate bool) (*models.Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	row := q.QueryRowContext(ctx, query, id)
	order, err := scanOrderRow(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := loadChildren(ctx, q, order); err != nil {
		return nil, err
	}
	return order, nil
}

func loadChildren(ctx context.Context, q queryer, order *models.Order) error {
	itemRows, err := q.QueryContext(ctx,
		`SELECT id, order_id, sku_id, shop_id, product_name, unit_price, quantity
		 FROM order_items WHERE order_id = $1 ORDER BY id`, order.ID)
	if err != nil {
		return err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item models.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.SKUID, &item.ShopID,
			&item.ProductName, &item.UnitPrice, &item.Quantity); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return err
	}

	payRows, err := q.QueryContext(ctx,
		`SELECT id, order_id, method, status, created_at, updated_at
		 FROM payments WHERE order_id = $1 ORDER BY created_at`, order.ID)
	if err != nil {
		return err
	}
	defer payRows.Close()
	for payRows.Next() {
		var p models.Payment
		if err := payRows.Scan(&p.ID, &p.OrderID, &p.Method, &p.Status,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return err
		}
		order.Payments = append(order.Payments, p)
	}
	if err := payRows.Err(); err != nil {
		return err
	}

	histRows, err := q.QueryContext(ctx,
		`SELECT id, order_id, status, created_at
		 FROM order_status_history WHERE order_id = $1 ORDER BY id`, order.ID)
	if err != nil {
		return err
	}
	defer histRows.Close()
	for histRows.Next() {
		var h models.OrderStatusHistory
		if err := histRows.Scan(&h.ID, &h.OrderID, &h.Status, &h.CreatedAt); err != nil {
			return err
		}
		order.History = append(order.History, h)
	}
	return histRows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrderRow(row rowScanner) (*models.Order, error) {
	var (
		order                     models.Order
		shippingJSON, billingJSON []byte
	)
	err := row.Scan(
		&order.ID, &order.UserID, &order.ShopID, &order.Status, &order.TotalPrice,
		&shippingJSON, &billingJSON, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shippingJSON, &order.ShippingAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billingJSON, &order.BillingAddress); err != nil {
		return nil, err
	}
	return &order, nil
}

func scanOrder(rows *sql.Rows) (*models.Order, error) {
	return scanOrderRow(rows)
}
