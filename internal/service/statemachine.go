package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
	"github.com/stallwise/stallwise-orders-service/internal/clients"
	"github.com/stallwise/stallwise-orders-service/internal/events"
	"github.com/stallwise/stallwise-orders-service/internal/logging"
	"github.com/stallwise/stallwise-orders-service/internal/metrics"
	"github.com/stallwise/stallwise-orders-service/internal/models"
	"github.com/stallwise/stallwise-orders-service/internal/repository"
)

// fulfillmentSources declares the legal source state for each
// seller-driven transition. The chain is linear; no skipping.
var fulfillmentSources = map[models.OrderStatus]models.OrderStatus{
	models.OrderStatusPreparing: models.OrderStatusPaid,
	models.OrderStatusShipped:   models.OrderStatusPreparing,
	models.OrderStatusDelivered: models.OrderStatusShipped,
	models.OrderStatusCompleted: models.OrderStatusDelivered,
}

// StateMachine owns every Order.status mutation. Each transition locks
// the order row, checks its declared source state, and writes the status
// change, one history row and any payment update in a single transaction.
// An attempt from any other state returns success without mutation, which
// makes replayed notifications safe.
type StateMachine struct {
	store     repository.Store
	cache     repository.OrderCache
	publisher events.Publisher
	notifier  clients.NotificationSender
	logger    *logging.Logger
}

func NewStateMachine(
	store repository.Store,
	cache repository.OrderCache,
	publisher events.Publisher,
	notifier clients.NotificationSender,
) *StateMachine {
	return &StateMachine{
		store:     store,
		cache:     cache,
		publisher: publisher,
		notifier:  notifier,
		logger:    logging.New("order-state-machine"),
	}
}

// MarkPaymentResult applies Unpaid -> Paid or Unpaid -> PaymentFailed
// from a verified gateway notification, updating the effective payment
// row in the same transaction. Returns false when the order was not
// Unpaid, which is the replay no-op.
func (m *StateMachine) MarkPaymentResult(ctx context.Context, orderID int64, success bool, method string, at time.Time) (bool, error) {
	target := models.OrderStatusPaid
	paymentStatus := models.PaymentStatusPaid
	if !success {
		target = models.OrderStatusPaymentFailed
		paymentStatus = models.PaymentStatusFailed
	}

	var (
		previous models.OrderStatus
		updated  *models.Order
	)
	err := m.store.WithinTx(ctx, func(tx repository.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status

		if order.Status != models.OrderStatusUnpaid {
			return apperrors.ErrStaleTransition
		}

		if err := tx.UpdateOrderStatus(ctx, orderID, target, at); err != nil {
			return err
		}
		if err := tx.AppendStatusHistory(ctx, orderID, target, at); err != nil {
			return err
		}

		payment := order.EffectivePayment()
		if payment == nil {
			payment = &models.Payment{
				ID:        uuid.NewString(),
				OrderID:   orderID,
				CreatedAt: at,
			}
			payment.Method = method
			payment.Status = paymentStatus
			payment.UpdatedAt = at
			if err := tx.InsertPayment(ctx, payment); err != nil {
				return err
			}
		} else {
			if method != "" {
				payment.Method = method
			}
			payment.Status = paymentStatus
			payment.UpdatedAt = at
			if err := tx.UpdatePayment(ctx, payment); err != nil {
				return err
			}
		}

		order.Status = target
		order.UpdatedAt = at
		updated = order
		return nil
	})
	if errors.Is(err, apperrors.ErrStaleTransition) {
		m.logger.Info("Payment transition skipped, order not unpaid", logging.Fields{
			"order_id": orderID,
			"status":   previous,
		})
		return false, nil
	}
	if err != nil {
		return false, err
	}

	m.afterTransition(ctx, updated, previous)
	go m.notifyPaymentOutcome(context.Background(), updated, success)
	return true, nil
}

// Advance applies one seller-driven fulfillment transition. Targets
// outside the fulfillment chain are a validation error; an attempt from
// the wrong source state is a success no-op.
func (m *StateMachine) Advance(ctx context.Context, orderID int64, target models.OrderStatus, at time.Time) (bool, error) {
	source, ok := fulfillmentSources[target]
	if !ok {
		return false, apperrors.NewValidationError("status",
			fmt.Sprintf("%s is not a fulfillment status", target))
	}

	var (
		previous models.OrderStatus
		updated  *models.Order
	)
	err := m.store.WithinTx(ctx, func(tx repository.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status

		if order.Status != source {
			return apperrors.ErrStaleTransition
		}

		if err := tx.UpdateOrderStatus(ctx, orderID, target, at); err != nil {
			return err
		}
		if err := tx.AppendStatusHistory(ctx, orderID, target, at); err != nil {
			return err
		}

		order.Status = target
		order.UpdatedAt = at
		updated = order
		return nil
	})
	if errors.Is(err, apperrors.ErrStaleTransition) {
		m.logger.Info("Fulfillment transition skipped", logging.Fields{
			"order_id": orderID,
			"status":   previous,
			"target":   target,
		})
		return false, nil
	}
	if err != nil {
		return false, err
	}

	m.afterTransition(ctx, updated, previous)
	if target == models.OrderStatusShipped {
		go m.notifyShipped(context.Background(), updated)
	}
	return true, nil
}

// Cancel moves the order to Cancelled. Accepted from any non-terminal
// state, shipped orders included; see the model's CanCancel note. A
// cancel on a terminal order is a success no-op.
func (m *StateMachine) Cancel(ctx context.Context, orderID int64, at time.Time) (bool, error) {
	var (
		previous models.OrderStatus
		updated  *models.Order
	)
	err := m.store.WithinTx(ctx, func(tx repository.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status

		if order.Status.IsTerminal() {
			return apperrors.ErrStaleTransition
		}

		if err := tx.UpdateOrderStatus(ctx, orderID, models.OrderStatusCancelled, at); err != nil {
			return err
		}
		if err := tx.AppendStatusHistory(ctx, orderID, models.OrderStatusCancelled, at); err != nil {
			return err
		}

		order.Status = models.OrderStatusCancelled
		order.UpdatedAt = at
		updated = order
		return nil
	})
	if errors.Is(err, apperrors.ErrStaleTransition) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	m.afterTransition(ctx, updated, previous)
	return true, nil
}

// afterTransition runs the best-effort side effects of a committed
// transition: cache invalidation, event publishing, metrics. Failures
// are logged and never unwind the transition.
func (m *StateMachine) afterTransition(ctx context.Context, order *models.Order, previous models.OrderStatus) {
	metrics.TransitionsTotal.WithLabelValues(string(previous), string(order.Status)).Inc()

	m.logger.Info("Order transitioned", logging.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       order.Status,
	})

	if m.cache != nil {
		if err := m.cache.Delete(ctx, order.ID); err != nil {
			m.logger.Error("Cache invalidation failed", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
		m.cache.InvalidateByUserID(ctx, order.UserID)
	}

	if m.publisher != nil {
		if err := m.publisher.PublishStatusChanged(ctx, order, previous); err != nil {
			m.logger.Error("Failed to publish transition event", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}
}

func (m *StateMachine) notifyPaymentOutcome(ctx context.Context, order *models.Order, success bool) {
	if m.notifier == nil {
		return
	}
	subject := "Payment Received"
	body := fmt.Sprintf("Payment for order %d was received.", order.ID)
	if !success {
		subject = "Payment Failed"
		body = fmt.Sprintf("Payment for order %d failed.", order.ID)
	}
	req := &clients.SendNotificationRequest{
		Type:      clients.NotificationPaymentOutcome,
		Recipient: order.UserID,
		Subject:   subject,
		Body:      body,
		Metadata: map[string]string{
			"order_id": fmt.Sprintf("%d", order.ID),
			"status":   string(order.Status),
		},
	}
	if err := m.notifier.Send(ctx, req); err != nil {
		m.logger.Error("Failed to send payment notification", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}

func (m *StateMachine) notifyShipped(ctx context.Context, order *models.Order) {
	if m.notifier == nil {
		return
	}
	req := &clients.SendNotificationRequest{
		Type:      clients.NotificationOrderShipped,
		Recipient: order.UserID,
		Subject:   "Order Shipped",
		Body:      fmt.Sprintf("Your order %d has been shipped.", order.ID),
		Metadata: map[string]string{
			"order_id": fmt.Sprintf("%d", order.ID),
		},
	}
	if err := m.notifier.Send(ctx, req); err != nil {
		m.logger.Error("Failed to send shipment notification", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}
