// Package notify consumes order lifecycle events and delivers customer
// notifications. It runs in-process next to the HTTP server; losing a
// notification is acceptable, losing an order is not, which is why this
// sits behind the event bus instead of inside the request path.
package notify

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/mkrell/selene/internal/email"
	"github.com/mkrell/selene/internal/events"
)

// Worker subscribes to order subjects and sends templated emails.
type Worker struct {
	conn     *nats.Conn
	sender   email.Sender
	currency string
	logger   zerolog.Logger

	subs []*nats.Subscription
}

// NewWorker creates a notification worker over an existing NATS connection.
func NewWorker(conn *nats.Conn, sender email.Sender, currency string, logger zerolog.Logger) *Worker {
	return &Worker{
		conn:     conn,
		sender:   sender,
		currency: currency,
		logger:   logger,
	}
}

// Start registers the subscriptions. Handlers run on the NATS delivery
// goroutine; email sending failures are logged and dropped.
func (w *Worker) Start() error {
	handlers := map[string]func(events.OrderEvent) *email.Message{
		events.SubjectOrderConfirmed: func(e events.OrderEvent) *email.Message {
			return email.OrderConfirmed(w.emailData(e))
		},
		events.SubjectOrderPaymentFailed: func(e events.OrderEvent) *email.Message {
			return email.OrderPaymentFailed(w.emailData(e))
		},
		events.SubjectOrderStatusChanged: func(e events.OrderEvent) *email.Message {
			return email.OrderStatusChanged(w.emailData(e), e.Status)
		},
	}

	for subject, build := range handlers {
		sub, err := w.conn.Subscribe(subject, func(msg *nats.Msg) {
			var event events.OrderEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				w.logger.Error().Err(err).Str("subject", msg.Subject).Msg("notify: bad event payload")
				return
			}
			w.deliver(msg.Subject, event, build(event))
		})
		if err != nil {
			w.Stop()
			return err
		}
		w.subs = append(w.subs, sub)
	}

	w.logger.Info().Msg("notification worker started")
	return nil
}

func (w *Worker) deliver(subject string, event events.OrderEvent, msg *email.Message) {
	if msg == nil {
		return
	}
	msg.To = event.CustomerEmail

	if err := w.sender.Send(context.Background(), msg); err != nil {
		w.logger.Warn().
			Err(err).
			Str("subject", subject).
			Str("order_number", event.OrderNumber).
			Msg("notify: delivery failed")
		return
	}
	w.logger.Info().
		Str("subject", subject).
		Str("order_number", event.OrderNumber).
		Msg("notify: delivered")
}

func (w *Worker) emailData(e events.OrderEvent) email.OrderEmailData {
	return email.OrderEmailData{
		OrderNumber:  e.OrderNumber,
		CustomerName: e.CustomerName,
		TotalCents:   e.TotalCents,
		Currency:     w.currency,
	}
}

// Stop unsubscribes all handlers.
func (w *Worker) Stop() {
	for _, sub := range w.subs {
		_ = sub.Unsubscribe()
	}
	w.subs = nil
}
