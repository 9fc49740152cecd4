// Package telemetry holds Prometheus metrics for business-level
// observability of the order lifecycle.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds business metrics collectors. Constructed once in
// cmd/server and injected; the registry is the default global one so the
// /metrics endpoint picks everything up.
type Metrics struct {
	// Checkout funnel
	OrdersCreated    prometheus.Counter
	OrderValue       prometheus.Histogram
	CheckoutFailed   *prometheus.CounterVec // reason: validation, product, gateway
	PaymentSucceeded prometheus.Counter
	PaymentFailed    prometheus.Counter

	// Webhook reconciliation
	WebhookReceived *prometheus.CounterVec // event type
	WebhookOutcome  *prometheus.CounterVec // event type, outcome
	WebhookRejected prometheus.Counter     // signature failures
	StockClamped    prometheus.Counter
	NotifyFailed    prometheus.Counter
}

// NewMetrics creates and registers business metrics under the given
// namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "selene"
	}

	return &Metrics{
		OrdersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders persisted in PENDING_PAYMENT",
		}),
		OrderValue: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_value_cents",
			Help:      "Order totals in minor currency units",
			Buckets:   prometheus.ExponentialBuckets(500, 4, 8),
		}),
		CheckoutFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_failed_total",
			Help:      "Failed order creations by reason",
		}, []string{"reason"}),
		PaymentSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_succeeded_total",
			Help:      "Payment confirmations applied",
		}),
		PaymentFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_failed_total",
			Help:      "Payment failure events applied",
		}),
		WebhookReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_received_total",
			Help:      "Webhook events accepted after signature verification",
		}, []string{"type"}),
		WebhookOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_processed_total",
			Help:      "Webhook processing outcomes",
		}, []string{"type", "outcome"}),
		WebhookRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_rejected_total",
			Help:      "Webhook deliveries rejected for invalid signatures",
		}),
		StockClamped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_decrement_clamped_total",
			Help:      "Stock decrements clamped at zero (oversell detected)",
		}),
		NotifyFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Best-effort customer notifications that failed",
		}),
	}
}
