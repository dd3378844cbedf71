package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
	"github.com/stallwise/stallwise-orders-service/internal/clients"
	"github.com/stallwise/stallwise-orders-service/internal/config"
	"github.com/stallwise/stallwise-orders-service/internal/events"
	"github.com/stallwise/stallwise-orders-service/internal/gateway"
	"github.com/stallwise/stallwise-orders-service/internal/models"
	"github.com/stallwise/stallwise-orders-service/internal/repository"
)

var checkoutTime = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		MerchantID: "2000132",
		HashKey:    "5294y06JbISpM5x9",
		HashIV:     "v77hoKGq4kWxNNIS",
		Endpoint:   "https://payment-stage.example.com/Cashier/AioCheckOut/V5",
		ReturnURL:  "http://localhost:8082/orders/complete",
		NotifyURL:  "http://localhost:8082/api/v1/payments/notify",
	}
}

func newTestCheckout(store *repository.MemoryStore) (*CheckoutService, *events.MockPublisher, *clients.MockCartClient) {
	publisher := events.NewMockPublisher()
	cart := clients.NewMockCartClient()
	svc := NewCheckoutService(store, repository.NoopOrderCache{}, gateway.NewAdapter(testGatewayConfig()), cart, publisher)
	svc.now = func() time.Time { return checkoutTime }
	return svc, publisher, cart
}

func testAddress() models.Address {
	return models.Address{
		Recipient:  "Alex Chen",
		Line1:      "12 Market Lane",
		City:       "Taipei",
		PostalCode: "100",
		Country:    "TW",
	}
}

func baseRequest() *CheckoutRequest {
	return &CheckoutRequest{
		UserID: "user-1",
		ShopID: 5,
		Items: []CheckoutItem{
			{SKUID: 11, Quantity: 2},
		},
		ShippingAddress: testAddress(),
		BillingAddress:  testAddress(),
	}
}

func seedCatalog(store *repository.MemoryStore) {
	store.SeedSKU(models.SKU{ID: 11, ShopID: 5, ProductName: "Blue Mug", Price: 500, Stock: 10})
	store.SeedSKU(models.SKU{ID: 12, ShopID: 5, ProductName: "Tea Towel", Price: 120, Stock: 3})
}

func TestCreateOrder(t *testing.T) {
	store := repository.NewMemoryStore()
	seedCatalog(store)
	svc, publisher, _ := newTestCheckout(store)

	result, err := svc.CreateOrder(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	order := result.Order
	if order.ID == 0 {
		t.Error("Expected assigned order id")
	}
	if order.Status != models.OrderStatusUnpaid {
		t.Errorf("Expected UNPAID, got %s", order.Status)
	}
	if order.TotalPrice != 1000 {
		t.Errorf("Expected total 1000, got %d", order.TotalPrice)
	}
	if order.Items[0].UnitPrice != 500 {
		t.Errorf("Expected snapshot unit price 500, got %d", order.Items[0].UnitPrice)
	}
	if len(order.Payments) != 1 || order.Payments[0].Status != models.PaymentStatusUnpaid {
		t.Error("Expected one draft payment in UNPAID")
	}
	if len(order.History) != 1 || order.History[0].Status != models.OrderStatusUnpaid {
		t.Error("Expected a single UNPAID history row")
	}

	if got := store.SKUStock(11); got != 8 {
		t.Errorf("Expected stock 8 after checkout, got %d", got)
	}

	if result.GatewayURL == "" {
		t.Error("Expected gateway URL")
	}
	if result.GatewayFields["TotalAmount"] != "1000" {
		t.Errorf("Expected signed amount 1000, got %s", result.GatewayFields["TotalAmount"])
	}
	if result.GatewayFields["CheckMacValue"] == "" {
		t.Error("Expected a CheckMacValue on the gateway fields")
	}

	if len(publisher.Events) != 1 || publisher.Events[0].Type != events.EventTypeOrderCreated {
		t.Errorf("Expected one order.created event, got %+v", publisher.Events)
	}
}

func TestCreateOrderWithCoupon(t *testing.T) {
	store := repository.NewMemoryStore()
	seedCatalog(store)
	store.SeedUserCoupon(models.UserCoupon{
		ID:       3,
		CouponID: 7,
		UserID:   "user-1",
		Status:   models.UserCouponActive,
		Coupon: &models.Coupon{
			ID:            7,
			ShopID:        5,
			DiscountType:  models.DiscountTypePercentage,
			DiscountValue: 10,
			StartDate:     checkoutTime.Add(-time.Hour),
			EndDate:       checkoutTime.Add(time.Hour),
		},
	})
	svc, _, _ := newTestCheckout(store)

	req := baseRequest()
	couponID := int64(3)
	req.UserCouponID = &couponID

	result, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if result.Order.TotalPrice != 900 {
		t.Errorf("Expected discounted total 900, got %d", result.Order.TotalPrice)
	}
	// item snapshots keep the undiscounted price
	if result.Order.Items[0].UnitPrice != 500 {
		t.Errorf("Expected snapshot price 500, got %d", result.Order.Items[0].UnitPrice)
	}
	if result.GatewayFields["TotalAmount"] != "900" {
		t.Errorf("Expected signed amount 900, got %s", result.GatewayFields["TotalAmount"])
	}

	uc, _ := store.GetUserCoupon(context.Background(), 3)
	if uc.Status != models.UserCouponUsed {
		t.Errorf("Expected coupon USED, got %s", uc.Status)
	}
	if uc.OrderID == nil || *uc.OrderID != result.Order.ID {
		t.Error("Expected coupon to record the consuming order")
	}
}

func TestCreateOrderCouponSecondUseRejected(t *testing.T) {
	store := repository.NewMemoryStore()
	seedCatalog(store)
	store.SeedUserCoupon(models.UserCoupon{
		ID:       3,
		CouponID: 7,
		UserID:   "user-1",
		Status:   models.UserCouponActive,
		Coupon: &models.Coupon{
			ID:            7,
			ShopID:        5,
			DiscountType:  models.DiscountTypeFixedAmount,
			DiscountValue: 100,
			StartDate:     checkoutTime.Add(-time.Hour),
			EndDate:       checkoutTime.Add(time.Hour),
		},
	})
	svc, _, _ := newTestCheckout(store)

	couponID := int64(3)
	req := baseRequest()
	req.UserCouponID = &couponID
	if _, err := svc.CreateOrder(context.Background(), req); err != nil {
		t.Fatalf("First checkout failed: %v", err)
	}

	second := baseRequest()
	second.UserCouponID = &couponID
	_, err := svc.CreateOrder(context.Background(), second)
	if apperrors.CouponReasonOf(err) != apperrors.CouponAlreadyUsed {
		t.Errorf("Expected already_used rejection, got %v", err)
	}

	// the rejected checkout must not consume stock
	if got := store.SKUStock(11); got != 8 {
		t.Errorf("Expected stock 8 after one checkout, got %d", got)
	}
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	store := repository.NewMemoryStore()
	seedCatalog(store)
	svc, publisher, _ := newTestCheckout(store)

	req := baseRequest()
	req.Items = []CheckoutItem{
		{SKUID: 11, Quantity: 2},
		{SKUID: 12, Quantity: 5}, // only 3 in stock
	}

	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, apperrors.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	// the first line's decrement must roll back with the transaction
	if got := store.SKUStock(11); got != 10 {
		t.Errorf("Expected stock 10 after rollback, got %d", got)
	}
	if len(publisher.Events) != 0 {
		t.Errorf("Expected no events for a failed checkout, got %d", len(publisher.Events))
	}
}

func TestCreateOrderRejectsForeignShopSKU(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SeedSKU(models.SKU{ID: 21, ShopID: 9, ProductName: "Other Shop Item", Price: 50, Stock: 5})
	svc, _, _ := newTestCheckout(store)

	req := baseRequest()
	req.Items = []CheckoutItem{{SKUID: 21, Quantity: 1}}

	_, err := svc.CreateOrder(context.Background(), req)
	if !apperrors.IsValidation(err) {
		t.Errorf("Expected validation error for cross-shop sku, got %v", err)
	}
}

func TestCreateOrderClearsCart(t *testing.T) {
	store := repository.NewMemoryStore()
	seedCatalog(store)
	svc, _, cart := newTestCheckout(store)

	if _, err := svc.CreateOrder(context.Background(), baseRequest()); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if len(cart.Cleared) != 1 || cart.Cleared[0] != "user-1" {
		t.Errorf("Expected cart cleared for user-1, got %v", cart.Cleared)
	}
}

func TestValidateCheckoutRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(req *CheckoutRequest)
	}{
		{"missing user", func(req *CheckoutRequest) { req.UserID = "" }},
		{"missing shop", func(req *CheckoutRequest) { req.ShopID = 0 }},
		{"no items", func(req *CheckoutRequest) { req.Items = nil }},
		{"zero quantity", func(req *CheckoutRequest) { req.Items[0].Quantity = 0 }},
		{"negative quantity", func(req *CheckoutRequest) { req.Items[0].Quantity = -1 }},
		{"duplicate sku", func(req *CheckoutRequest) {
			req.Items = append(req.Items, CheckoutItem{SKUID: 11, Quantity: 1})
		}},
		{"missing recipient", func(req *CheckoutRequest) { req.ShippingAddress.Recipient = "" }},
		{"missing billing city", func(req *CheckoutRequest) { req.BillingAddress.City = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(req)
			if err := ValidateCheckoutRequest(req); !apperrors.IsValidation(err) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}

	if err := ValidateCheckoutRequest(baseRequest()); err != nil {
		t.Errorf("Expected valid request to pass, got %v", err)
	}
}
