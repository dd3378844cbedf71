package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
	"github.com/stallwise/stallwise-orders-service/internal/gateway"
	"github.com/stallwise/stallwise-orders-service/internal/logging"
	"github.com/stallwise/stallwise-orders-service/internal/metrics"
	"github.com/stallwise/stallwise-orders-service/internal/models"
	"github.com/stallwise/stallwise-orders-service/internal/repository"
)

// ReconcileService consumes payment gateway notifications and applies
// their outcome to orders. The gateway redelivers until it reads the
// success acknowledgement, so every path through HandleNotification must
// terminate in a deliberate ack string.
type ReconcileService struct {
	store   repository.Store
	adapter *gateway.Adapter
	machine *StateMachine
	logger  *logging.Logger
	now     func() time.Time
}

func NewReconcileService(store repository.Store, adapter *gateway.Adapter, machine *StateMachine) *ReconcileService {
	return &ReconcileService{
		store:   store,
		adapter: adapter,
		machine: machine,
		logger:  logging.New("reconcile-service"),
		now:     time.Now,
	}
}

// HandleNotification verifies, decodes and applies one gateway callback,
// returning the plain-text acknowledgement body. Verification comes
// first; an unverifiable payload is rejected before any field is
// trusted. A replayed notification for an already-settled order acks
// success without touching the order.
func (s *ReconcileService) HandleNotification(ctx context.Context, values url.Values) string {
	started := s.now()
	defer func() {
		metrics.WebhookDuration.Observe(time.Since(started).Seconds())
	}()

	fields, err := s.adapter.VerifyNotification(values)
	if err != nil {
		s.logger.Warn("Rejected unverifiable notification", logging.Fields{
			"trade_no": values.Get("MerchantTradeNo"),
			"error":    err.Error(),
		})
		metrics.NotificationsTotal.WithLabelValues("checksum_rejected").Inc()
		return gateway.AckError("CheckMacValue")
	}

	n := gateway.ParseNotification(fields)

	order, err := s.resolveOrder(ctx, n)
	if err != nil {
		if errors.Is(err, apperrors.ErrOrderNotFound) {
			metrics.NotificationsTotal.WithLabelValues("order_not_found").Inc()
			return gateway.AckError("OrderNotFound")
		}
		if errors.Is(err, errAmbiguousMatch) {
			metrics.NotificationsTotal.WithLabelValues("ambiguous").Inc()
			return gateway.AckError("AmbiguousOrder")
		}
		s.logger.Error("Order resolution failed", logging.Fields{
			"trade_no": n.MerchantTradeNo,
			"error":    err.Error(),
		})
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return gateway.AckError("Internal")
	}

	changed, err := s.machine.MarkPaymentResult(ctx, order.ID, n.Succeeded(), methodFromPaymentType(n.PaymentType), s.now())
	if err != nil {
		s.logger.Error("Failed to apply payment result", logging.Fields{
			"order_id": order.ID,
			"trade_no": n.MerchantTradeNo,
			"error":    err.Error(),
		})
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return gateway.AckError("Internal")
	}

	outcome := "applied"
	if !changed {
		outcome = "replayed"
	}
	metrics.NotificationsTotal.WithLabelValues(outcome).Inc()
	s.logger.Info("Notification reconciled", logging.Fields{
		"order_id": order.ID,
		"trade_no": n.MerchantTradeNo,
		"rtn_code": n.RtnCode,
		"outcome":  outcome,
	})
	return gateway.AckSuccess
}

var errAmbiguousMatch = errors.New("notification matches multiple unpaid orders")

// resolveOrder locates the order a notification refers to. The primary
// path decodes the order id from the trade number; only when the trade
// number cannot be parsed at all does the fallback match the notified
// amount against unpaid orders, and a fallback hit is only trusted when
// exactly one order matches. A trade number that parses to a missing
// order is rejected outright: matching it by amount could settle a
// different order than the one the gateway charged.
func (s *ReconcileService) resolveOrder(ctx context.Context, n *gateway.Notification) (*models.Order, error) {
	orderID, parseErr := gateway.ParseTradeNo(n.MerchantTradeNo)
	if parseErr == nil {
		return s.store.GetOrder(ctx, orderID)
	}

	s.logger.Warn("Unparsable trade number, falling back to amount match", logging.Fields{
		"trade_no": n.MerchantTradeNo,
		"error":    parseErr.Error(),
	})

	if n.TradeAmt <= 0 {
		return nil, apperrors.ErrOrderNotFound
	}

	candidates, err := s.store.FindUnpaidOrdersByTotal(ctx, n.TradeAmt)
	if err != nil {
		return nil, err
	}
	switch len(candidates) {
	case 0:
		return nil, apperrors.ErrOrderNotFound
	case 1:
		s.logger.Info("Resolved notification by amount fallback", logging.Fields{
			"trade_no": n.MerchantTradeNo,
			"order_id": candidates[0].ID,
			"amount":   n.TradeAmt,
		})
		return candidates[0], nil
	default:
		s.logger.Error("Amount fallback matched multiple unpaid orders", logging.Fields{
			"trade_no": n.MerchantTradeNo,
			"amount":   n.TradeAmt,
			"matches":  len(candidates),
		})
		return nil, errAmbiguousMatch
	}
}

// methodFromPaymentType maps the gateway's PaymentType values, e.g.
// "Credit_CreditCard" or "ATM_TAISHIN", onto our payment method names.
func methodFromPaymentType(paymentType string) string {
	prefix := paymentType
	if i := strings.Index(paymentType, "_"); i > 0 {
		prefix = paymentType[:i]
	}
	switch prefix {
	case "Credit":
		return models.PaymentMethodCredit
	case "WebATM":
		return models.PaymentMethodWebATM
	case "ATM":
		return models.PaymentMethodATM
	case "CVS":
		return models.PaymentMethodCVS
	case "":
		return models.PaymentMethodUnknown
	default:
		return models.PaymentMethodUnknown
	}
}
