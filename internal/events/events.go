// Package events publishes order lifecycle events to NATS. Consumers (the
// notify worker) react asynchronously; publication is strictly best-effort
// and never fails the operation that triggered it.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subjects for order lifecycle events.
const (
	SubjectOrderConfirmed     = "orders.confirmed"
	SubjectOrderPaymentFailed = "orders.payment_failed"
	SubjectOrderStatusChanged = "orders.status_changed"
)

// OrderEvent is the payload published on all order subjects.
type OrderEvent struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	Status        string    `json:"status"`
	TotalCents    int64     `json:"total_cents"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher emits order lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, subject string, event OrderEvent) error
}

// NATSPublisher publishes events to a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

var _ Publisher = (*NATSPublisher)(nil)

// Connect dials NATS and returns a publisher over the connection.
func Connect(url string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn *nats.Conn, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, logger: logger}
}

// Publish marshals and publishes the event.
func (p *NATSPublisher) Publish(_ context.Context, subject string, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, data)
}

// Conn exposes the underlying connection for subscribers.
func (p *NATSPublisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn().Err(err).Msg("nats drain failed")
	}
}

// NopPublisher discards all events. Used when NATS is disabled.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

func (NopPublisher) Publish(context.Context, string, OrderEvent) error { return nil }
