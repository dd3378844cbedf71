package service

import (
	"context"
	"testing"
	"time"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
	"github.com/stallwise/stallwise-orders-service/internal/clients"
	"github.com/stallwise/stallwise-orders-service/internal/events"
	"github.com/stallwise/stallwise-orders-service/internal/models"
	"github.com/stallwise/stallwise-orders-service/internal/repository"
)

func seedOrder(store *repository.MemoryStore, id int64, status models.OrderStatus) {
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	store.SeedOrder(models.Order{
		ID:         id,
		UserID:     "user-1",
		ShopID:     5,
		Status:     status,
		TotalPrice: 900,
		Items: []models.OrderItem{
			{SKUID: 11, ShopID: 5, ProductName: "Blue Mug", UnitPrice: 500, Quantity: 2},
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

func newTestMachine(store *repository.MemoryStore) (*StateMachine, *events.MockPublisher, *clients.MockNotificationSender) {
	publisher := events.NewMockPublisher()
	notifier := clients.NewMockNotificationSender()
	machine := NewStateMachine(store, repository.NoopOrderCache{}, publisher, notifier)
	return machine, publisher, notifier
}

func TestMarkPaymentResultSuccess(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOrder(store, 1, models.OrderStatusUnpaid)
	machine, publisher, _ := newTestMachine(store)

	at := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)
	changed, err := machine.MarkPaymentResult(context.Background(), 1, true, models.PaymentMethodCredit, at)
	if err != nil {
		t.Fatalf("MarkPaymentResult failed: %v", err)
	}
	if !changed {
		t.Fatal("Expected transition to apply")
	}

	order, _ := store.GetOrder(context.Background(), 1)
	if order.Status != models.OrderStatusPaid {
		t.Errorf("Expected status PAID, got %s", order.Status)
	}
	if len(order.History) != 2 {
		t.Fatalf("Expected 2 history rows, got %d", len(order.History))
	}
	if order.History[1].Status != models.OrderStatusPaid {
		t.Errorf("Expected PAID history row, got %s", order.History[1].Status)
	}

	payment := order.EffectivePayment()
	if payment.Status != models.PaymentStatusPaid {
		t.Errorf("Expected payment PAID, got %s", payment.Status)
	}
	if payment.Method != models.PaymentMethodCredit {
		t.Errorf("Expected method Credit, got %s", payment.Method)
	}

	if len(publisher.Events) != 1 {
		t.Errorf("Expected 1 published event, got %d", len(publisher.Events))
	}
}

func TestMarkPaymentResultReplayIsNoOp(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOrder(store, 1, models.OrderStatusUnpaid)
	machine, _, _ := newTestMachine(store)

	at := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)
	if _, err := machine.MarkPaymentResult(context.Background(), 1, true, models.PaymentMethodCredit, at); err != nil {
		t.Fatalf("First notification failed: %v", err)
	}

	changed, err := machine.MarkPaymentResult(context.Background(), 1, true, models.PaymentMethodCredit, at.Add(time.Minute))
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if changed {
		t.Error("Expected replay to be a no-op")
	}

	order, _ := store.GetOrder(context.Background(), 1)
	if order.Status != models.OrderStatusPaid {
		t.Errorf("Expected status PAID after replay, got %s", order.Status)
	}
	if len(order.History) != 2 {
		t.Errorf("Expected replay to add no history, got %d rows", len(order.History))
	}
}

func TestMarkPaymentResultFailureAfterSuccessIsNoOp(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOrder(store, 1, models.OrderStatusUnpaid)
	machine, _, _ := newTestMachine(store)

	at := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)
	machine.MarkPaymentResult(context.Background(), 1, true, models.PaymentMethodCredit, at)

	changed, err := machine.MarkPaymentResult(context.Background(), 1, false, models.PaymentMethodCredit, at.Add(time.Minute))
	if err != nil {
		t.Fatalf("Late failure notification errored: %v", err)
	}
	if changed {
		t.Error("Expected a late failure to leave a paid order untouched")
	}

	order, _ := store.GetOrder(context.Background(), 1)
	if order.Status != models.OrderStatusPaid {
		t.Errorf("Expected PAID to survive a late failure, got %s", order.Status)
	}
}

func TestMarkPaymentResultFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOrder(store, 1, models.OrderStatusUnpaid)
	machine, _, _ := newTestMachine(store)

	changed, err := machine.MarkPaymentResult(context.Background(), 1, false, models.PaymentMethodATM, time.Now())
	if err != nil {
		t.Fatalf("MarkPaymentResult failed: %v", err)
	}
	if !changed {
		t.Fatal("Expected transition to apply")
	}

	order, _ := store.GetOrder(context.Background(), 1)
	if order.Status != models.OrderStatusPaymentFailed {
		t.Errorf("Expected PAYMENT_FAILED, got %s", order.Status)
	}
	if order.EffectivePayment().Status != models.PaymentStatusFailed {
		t.Errorf("Expected payment FAILED, got %s", order.EffectivePayment().Status)
	}
}

func TestAdvanceFulfillmentChain(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOrder(store, 1, models.OrderStatusPaid)
	machine, _, _ := newTestMachine(store)

	steps := []models.OrderStatus{
		models.OrderStatusPreparing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
		models.OrderStatusCompleted,
	}

	for _, target := range steps {
		changed, err := machine.Advance(context.Background(), 1, target, time.Now())
		if err != nil {
			t.Fatalf("Advance to %s failed: %v", target, err)
		}
		if !changed {
			t.Fatalf("Expected advance to %s to apply", target)
		}
	}

	order, _ := store.GetOrder(context.Background(), 1)
	if order.Status != models.OrderStatusCompleted {
		t.Errorf("Expected COMPLETED, got %s", order.Status)
	}
	// seeded UNPAID row plus one per step
	if len(order.History) != 5 {
		t.Errorf("Expected 5 history rows, got %d", len(order.History))
	}
}

func TestAdvanceSkippingStateIsNoOp(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOrder(store, 1, models.OrderStatusPaid)
	machine, _, _ := newTestMachine(store)

	changed, err := machine.Advance(context.Background(), 1, models.OrderStatusShipped, time.Now())
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if changed {
		t.Error("Expected skipping PREPARING to be a no-op")
	}

	order, _ := store.GetOrder(context.Background(), 1)
	if order.Status != models.OrderStatusPaid {
		t.Errorf("Expected status unchanged, got %s", order.Status)
	}
}

func TestAdvanceRejectsNonFulfillmentTarget(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOrder(store, 1, models.OrderStatusUnpaid)
	machine, _, _ := newTestMachine(store)

	_, err := machine.Advance(context.Background(), 1, models.OrderStatusPaid, time.Now())
	if !apperrors.IsValidation(err) {
		t.Errorf("Expected validation error for PAID target, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name        string
		from        models.OrderStatus
		wantChanged bool
		wantStatus  models.OrderStatus
	}{
		{"unpaid order cancels", models.OrderStatusUnpaid, true, models.OrderStatusCancelled},
		{"shipped order cancels", models.OrderStatusShipped, true, models.OrderStatusCancelled},
		{"completed order is untouched", models.OrderStatusCompleted, false, models.OrderStatusCompleted},
		{"cancelled order is untouched", models.OrderStatusCancelled, false, models.OrderStatusCancelled},
		{"failed payment is untouched", models.OrderStatusPaymentFailed, false, models.OrderStatusPaymentFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			seedOrder(store, 1, tt.from)
			machine, _, _ := newTestMachine(store)

			changed, err := machine.Cancel(context.Background(), 1, time.Now())
			if err != nil {
				t.Fatalf("Cancel failed: %v", err)
			}
			if changed != tt.wantChanged {
				t.Errorf("Expected changed=%v, got %v", tt.wantChanged, changed)
			}

			order, _ := store.GetOrder(context.Background(), 1)
			if order.Status != tt.wantStatus {
				t.Errorf("Expected %s, got %s", tt.wantStatus, order.Status)
			}
		})
	}
}
