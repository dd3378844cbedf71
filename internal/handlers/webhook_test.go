package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stallwise/stallwise-orders-service/internal/clients"
	"github.com/stallwise/stallwise-orders-service/internal/config"
	"github.com/stallwise/stallwise-orders-service/internal/events"
	"github.com/stallwise/stallwise-orders-service/internal/gateway"
	"github.com/stallwise/stallwise-orders-service/internal/logging"
	"github.com/stallwise/stallwise-orders-service/internal/models"
	"github.com/stallwise/stallwise-orders-service/internal/repository"
	"github.com/stallwise/stallwise-orders-service/internal/service"
)

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

func newTestHandlers(store *repository.MemoryStore) *Handlers {
	adapter := gateway.NewAdapter(testGatewayConfig())
	publisher := events.NewMockPublisher()
	notifier := clients.NewMockNotificationSender()

	machine := service.NewStateMachine(store, repository.NoopOrderCache{}, publisher, notifier)
	checkout := service.NewCheckoutService(store, repository.NoopOrderCache{}, adapter, clients.NewMockCartClient(), publisher)
	reconcile := service.NewReconcileService(store, adapter, machine)

	return &Handlers{
		checkout:  checkout,
		machine:   machine,
		reconcile: reconcile,
		config:    &config.Config{Gateway: testGatewayConfig()},
		logger:    logging.New("handlers-test"),
	}
}

func seedUnpaidOrder(store *repository.MemoryStore, id int64, total int64) {
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	store.SeedOrder(models.Order{
		ID:         id,
		UserID:     "user-1",
		ShopID:     5,
		Status:     models.OrderStatusUnpaid,
		TotalPrice: total,
		Items: []models.OrderItem{
			{SKUID: 11, ShopID: 5, ProductName: "Blue Mug", UnitPrice: total, Quantity: 1},
		},
		Payments: []models.Payment{
			{ID: "pay-1", OrderID: id, Method: models.PaymentMethodUnknown, Status: models.PaymentStatusUnpaid, CreatedAt: created, UpdatedAt: created},
		},
		History: []models.OrderStatusHistory{
			{ID: 1, OrderID: id, Status: models.OrderStatusUnpaid, CreatedAt: created},
		},
		CreatedAt: created,
		UpdatedAt: created,
	})
}

func signedForm(orderID int64, amount int64) url.Values {
	cfg := testGatewayConfig()
	fields := map[string]string{
		"MerchantID":      cfg.MerchantID,
		"MerchantTradeNo": gateway.FormatTradeNo(orderID, time.Unix(1717232400, 0)),
		"TradeNo":         "2404150000001234",
		"RtnCode":         "1",
		"RtnMsg":          "Succeeded",
		"TradeAmt":        strconv.FormatInt(amount, 10),
		"PaymentType":     "Credit_CreditCard",
		"PaymentDate":     "2024/06/01 11:00:00",
	}
	fields["CheckMacValue"] = gateway.NewSigner(cfg.HashKey, cfg.HashIV).CheckMacValue(fields)

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	return values
}

func postNotification(h *Handlers, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/notify",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req

	h.PaymentNotify(c)
	return w
}

func TestPaymentNotifyAcksVerifiedPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	seedUnpaidOrder(store, 1, 900)
	h := newTestHandlers(store)

	w := postNotification(h, signedForm(1, 900))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "1|OK" {
		t.Errorf("Expected body 1|OK, got %q", w.Body.String())
	}

	order, _ := store.GetOrder(context.Background(), 1)
	if order.Status != models.OrderStatusPaid {
		t.Errorf("Expected PAID, got %s", order.Status)
	}
}

func TestPaymentNotifyRejectsTamperedPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	seedUnpaidOrder(store, 1, 900)
	h := newTestHandlers(store)

	form := signedForm(1, 900)
	form.Set("TradeAmt", "1")
	w := postNotification(h, form)

	// rejection travels in the body, not the HTTP status
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "0|Error:CheckMacValue" {
		t.Errorf("Expected checksum rejection, got %q", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := &Handlers{}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Health(c)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
