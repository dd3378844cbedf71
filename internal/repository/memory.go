package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
	"github.com/stallwise/stallwise-orders-service/internal/models"
)

// MemoryStore is an in-memory Store used by service tests. A single mutex
// serializes transactions, which stands in for the row locks the Postgres
// store takes; rollback restores a snapshot taken at transaction start.
type MemoryStore struct {
	mu          sync.Mutex
	nextOrderID int64
	nextHistID  int64
	orders      map[int64]*models.Order
	userCoupons map[int64]*models.UserCoupon
	skus        map[int64]*models.SKU
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextOrderID: 1,
		nextHistID:  1,
		orders:      make(map[int64]*models.Order),
		userCoupons: make(map[int64]*models.UserCoupon),
		skus:        make(map[int64]*models.SKU),
	}
}

// SeedSKU registers a SKU for checkout tests.
func (s *MemoryStore) SeedSKU(sku models.SKU) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sku
	s.skus[sku.ID] = &cp
}

// SeedUserCoupon registers a claimed coupon.
func (s *MemoryStore) SeedUserCoupon(uc models.UserCoupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userCoupons[uc.ID] = cloneUserCoupon(&uc)
}

// SeedOrder registers an existing order aggregate.
func (s *MemoryStore) SeedOrder(order models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID >= s.nextOrderID {
		s.nextOrderID = order.ID + 1
	}
	s.orders[order.ID] = cloneOrder(&order)
}

// SKUStock reports the current stock of a seeded SKU.
func (s *MemoryStore) SKUStock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sku, ok := s.skus[id]; ok {
		return sku.Stock
	}
	return 0
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	if err := fn(&memoryTx{store: s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (s *MemoryStore) ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*models.Order, 0)
	for _, order := range s.orders {
		if order.UserID == userID {
			matched = append(matched, cloneOrder(order))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= len(matched) {
		return []*models.Order{}, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *MemoryStore) FindUnpaidOrdersByTotal(ctx context.Context, total int64) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*models.Order, 0)
	for _, order := range s.orders {
		if order.Status == models.OrderStatusUnpaid && order.TotalPrice == total {
			matched = append(matched, cloneOrder(order))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (s *MemoryStore) GetUserCoupon(ctx context.Context, id int64) (*models.UserCoupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uc, ok := s.userCoupons[id]
	if !ok {
		return nil, nil
	}
	return cloneUserCoupon(uc), nil
}

type memorySnapshot struct {
	nextOrderID int64
	nextHistID  int64
	orders      map[int64]*models.Order
	userCoupons map[int64]*models.UserCoupon
	skus        map[int64]*models.SKU
}

func (s *MemoryStore) snapshot() memorySnapshot {
	snap := memorySnapshot{
		nextOrderID: s.nextOrderID,
		nextHistID:  s.nextHistID,
		orders:      make(map[int64]*models.Order, len(s.orders)),
		userCoupons: make(map[int64]*models.UserCoupon, len(s.userCoupons)),
		skus:        make(map[int64]*models.SKU, len(s.skus)),
	}
	for id, order := range s.orders {
		snap.orders[id] = cloneOrder(order)
	}
	for id, uc := range s.userCoupons {
		snap.userCoupons[id] = cloneUserCoupon(uc)
	}
	for id, sku := range s.skus {
		cp := *sku
		snap.skus[id] = &cp
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.nextOrderID = snap.nextOrderID
	s.nextHistID = snap.nextHistID
	s.orders = snap.orders
	s.userCoupons = snap.userCoupons
	s.skus = snap.skus
}

type memoryTx struct {
	store *MemoryStore
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	order, ok := t.store.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (t *memoryTx) InsertOrder(ctx context.Context, order *models.Order) error {
	order.ID = t.store.nextOrderID
	t.store.nextOrderID++
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		order.Items[i].ID = int64(i + 1)
	}
	for i := range order.Payments {
		order.Payments[i].OrderID = order.ID
	}
	for i := range order.History {
		order.History[i].OrderID = order.ID
		order.History[i].ID = t.store.nextHistID
		t.store.nextHistID++
	}
	t.store.orders[order.ID] = cloneOrder(order)
	return nil
}

func (t *memoryTx) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, at time.Time) error {
	order, ok := t.store.orders[id]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = at
	return nil
}

func (t *memoryTx) AppendStatusHistory(ctx context.Context, orderID int64, status models.OrderStatus, at time.Time) error {
	order, ok := t.store.orders[orderID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	order.History = append(order.History, models.OrderStatusHistory{
		ID:        t.store.nextHistID,
		OrderID:   orderID,
		Status:    status,
		CreatedAt: at,
	})
	t.store.nextHistID++
	return nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, p *models.Payment) error {
	order, ok := t.store.orders[p.OrderID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	order.Payments = append(order.Payments, *p)
	return nil
}

func (t *memoryTx) UpdatePayment(ctx context.Context, p *models.Payment) error {
	order, ok := t.store.orders[p.OrderID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	for i := range order.Payments {
		if order.Payments[i].ID == p.ID {
			order.Payments[i] = *p
			return nil
		}
	}
	return apperrors.ErrOrderNotFound
}

func (t *memoryTx) MarkCouponUsed(ctx context.Context, userCouponID, orderID int64, usedAt time.Time) error {
	uc, ok := t.store.userCoupons[userCouponID]
	if !ok || uc.Status != models.UserCouponActive {
		return apperrors.NewCouponInvalid(apperrors.CouponAlreadyUsed)
	}
	uc.Status = models.UserCouponUsed
	uc.OrderID = &orderID
	at := usedAt
	uc.UsedAt = &at
	return nil
}

func (t *memoryTx) GetSKUForUpdate(ctx context.Context, id int64) (*models.SKU, error) {
	sku, ok := t.store.skus[id]
	if !ok {
		return nil, nil
	}
	cp := *sku
	return &cp, nil
}

func (t *memoryTx) DecrementStock(ctx context.Context, skuID int64, qty int) error {
	sku, ok := t.store.skus[skuID]
	if !ok || sku.Stock < qty {
		return apperrors.ErrInsufficientStock
	}
	sku.Stock -= qty
	return nil
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	cp.Payments = append([]models.Payment(nil), o.Payments...)
	cp.Shipments = append([]models.Shipment(nil), o.Shipments...)
	cp.History = append([]models.OrderStatusHistory(nil), o.History...)
	return &cp
}

func cloneUserCoupon(uc *models.UserCoupon) *models.UserCoupon {
	cp := *uc
	if uc.OrderID != nil {
		v := *uc.OrderID
		cp.OrderID = &v
	}
	if uc.UsedAt != nil {
		v := *uc.UsedAt
		cp.UsedAt = &v
	}
	if uc.Coupon != nil {
		c := *uc.Coupon
		cp.Coupon = &c
	}
	return &cp
}
