package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckoutsTotal counts checkout attempts by outcome.
	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_checkouts_total",
		Help: "Checkout attempts by result.",
	}, []string{"result"})

	// NotificationsTotal counts inbound gateway notifications by outcome.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_gateway_notifications_total",
		Help: "Inbound payment gateway notifications by outcome.",
	}, []string{"outcome"})

	// TransitionsTotal counts applied order state transitions.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_state_transitions_total",
		Help: "Applied order state transitions.",
	}, []string{"from", "to"})

	// WebhookDuration observes end-to-end notification handling latency.
	WebhookDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orders_webhook_duration_seconds",
		Help:    "Payment notification handling latency.",
		Buckets: prometheus.DefBuckets,
	})
)
