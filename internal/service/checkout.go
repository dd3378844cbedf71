package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
	"github.com/stallwise/stallwise-orders-service/internal/clients"
	"github.com/stallwise/stallwise-orders-service/internal/events"
	"github.com/stallwise/stallwise-orders-service/internal/gateway"
	"github.com/stallwise/stallwise-orders-service/internal/logging"
	"github.com/stallwise/stallwise-orders-service/internal/metrics"
	"github.com/stallwise/stallwise-orders-service/internal/models"
	"github.com/stallwise/stallwise-orders-service/internal/repository"
)

// CheckoutItem is one requested line of a checkout.
type CheckoutItem struct {
	SKUID    int64 `json:"sku_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"required"`
}

// CheckoutRequest assembles an order from cart lines plus an optional
// claimed coupon.
type CheckoutRequest struct {
	UserID          string         `json:"user_id"`
	ShopID          int64          `json:"shop_id"`
	Items           []CheckoutItem `json:"items"`
	UserCouponID    *int64         `json:"user_coupon_id,omitempty"`
	ShippingAddress models.Address `json:"shipping_address"`
	BillingAddress  models.Address `json:"billing_address"`
}

// CheckoutResult is the created aggregate plus the signed gateway handoff.
type CheckoutResult struct {
	Order         *models.Order     `json:"order"`
	GatewayURL    string            `json:"gateway_url"`
	GatewayFields map[string]string `json:"gateway_fields"`
}

// CheckoutService turns a checkout request into a persisted Unpaid order.
// The whole assembly is one transaction: stock decrements, coupon
// consumption and the aggregate insert commit or roll back together.
type CheckoutService struct {
	store     repository.Store
	cache     repository.OrderCache
	adapter   *gateway.Adapter
	cart      clients.CartClient
	publisher events.Publisher
	logger    *logging.Logger
	now       func() time.Time
}

func NewCheckoutService(
	store repository.Store,
	cache repository.OrderCache,
	adapter *gateway.Adapter,
	cart clients.CartClient,
	publisher events.Publisher,
) *CheckoutService {
	return &CheckoutService{
		store:     store,
		cache:     cache,
		adapter:   adapter,
		cart:      cart,
		publisher: publisher,
		logger:    logging.New("checkout-service"),
		now:       time.Now,
	}
}

// CreateOrder validates the request, prices the items from current SKU
// data (snapshotting unit prices onto the order), applies the coupon
// discount, and persists order + items + draft payment + first history
// row atomically. Stock rows are locked before decrementing.
func (s *CheckoutService) CreateOrder(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	if err := ValidateCheckoutRequest(req); err != nil {
		return nil, err
	}

	now := s.now()

	var userCoupon *models.UserCoupon
	if req.UserCouponID != nil {
		uc, err := s.store.GetUserCoupon(ctx, *req.UserCouponID)
		if err != nil {
			return nil, err
		}
		if err := ValidateUserCoupon(uc, req.UserID, req.ShopID, now); err != nil {
			metrics.CheckoutsTotal.WithLabelValues("coupon_rejected").Inc()
			return nil, err
		}
		userCoupon = uc
	}

	var order *models.Order
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		items := make([]models.OrderItem, 0, len(req.Items))
		var originalTotal int64

		for _, line := range req.Items {
			sku, err := tx.GetSKUForUpdate(ctx, line.SKUID)
			if err != nil {
				return err
			}
			if sku == nil {
				return apperrors.NewValidationError("items", "unknown sku")
			}
			if sku.ShopID != req.ShopID {
				return apperrors.NewValidationError("items", "sku does not belong to shop")
			}
			if err := tx.DecrementStock(ctx, sku.ID, line.Quantity); err != nil {
				return err
			}
			items = append(items, models.OrderItem{
				SKUID:       sku.ID,
				ShopID:      sku.ShopID,
				ProductName: sku.ProductName,
				UnitPrice:   sku.Price,
				Quantity:    line.Quantity,
			})
			originalTotal += sku.Price * int64(line.Quantity)
		}

		total := originalTotal
		if userCoupon != nil {
			discounted, err := ComputeDiscountedTotal(originalTotal, userCoupon.Coupon)
			if err != nil {
				return err
			}
			total = discounted
		}

		order = &models.Order{
			UserID:          req.UserID,
			ShopID:          req.ShopID,
			Status:          models.OrderStatusUnpaid,
			TotalPrice:      total,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			Items:           items,
			Payments: []models.Payment{{
				ID:        uuid.NewString(),
				Method:    models.PaymentMethodUnknown,
				Status:    models.PaymentStatusUnpaid,
				CreatedAt: now,
				UpdatedAt: now,
			}},
			History: []models.OrderStatusHistory{{
				Status:    models.OrderStatusUnpaid,
				CreatedAt: now,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		if userCoupon != nil {
			if err := tx.MarkCouponUsed(ctx, userCoupon.ID, order.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.CheckoutsTotal.WithLabelValues("created").Inc()
	s.logger.Info("Order created", logging.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.TotalPrice,
	})

	s.afterCheckout(ctx, order)

	return &CheckoutResult{
		Order:         order,
		GatewayURL:    s.adapter.Endpoint(),
		GatewayFields: s.adapter.BuildSignedRequest(order, now),
	}, nil
}

// afterCheckout runs best-effort side effects once the order exists.
func (s *CheckoutService) afterCheckout(ctx context.Context, order *models.Order) {
	if s.cache != nil {
		if err := s.cache.Set(ctx, order); err != nil {
			s.logger.Error("Failed to cache order", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
		s.cache.InvalidateByUserID(ctx, order.UserID)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
			s.logger.Error("Failed to publish order created event", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	if s.cart != nil {
		if err := s.cart.ClearCart(ctx, order.UserID); err != nil {
			s.logger.Error("Failed to clear cart", logging.Fields{
				"user_id": order.UserID,
				"error":   err.Error(),
			})
		}
	}
}

// GetOrder reads an order, via cache when available.
func (s *CheckoutService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	if s.cache != nil {
		if order, err := s.cache.Get(ctx, id); err == nil && order != nil {
			return order, nil
		}
	}

	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, order)
	}
	return order, nil
}

// ListOrders is a read-only projection for the buyer's order history.
func (s *CheckoutService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]*models.Order, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.store.ListOrdersByUser(ctx, userID, limit, offset)
}

// PaymentForm rebuilds the signed auto-post form for an order that is
// still awaiting payment, for retry after an abandoned gateway session.
func (s *CheckoutService) PaymentForm(ctx context.Context, orderID int64) (string, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.Status != models.OrderStatusUnpaid {
		return "", apperrors.NewValidationError("status", "order is not awaiting payment")
	}
	fields := s.adapter.BuildSignedRequest(order, s.now())
	return s.adapter.AutoPostForm(fields), nil
}
