package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"

	"github.com/mkrell/selene/internal/domain"
	"github.com/mkrell/selene/internal/payment"
	"github.com/mkrell/selene/internal/service"
	"github.com/mkrell/selene/internal/telemetry"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "X-Payment-Signature"

// WebhookHandler processes signed payment gateway callbacks.
type WebhookHandler struct {
	orders    *service.OrderService
	secret    string
	tolerance time.Duration
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
}

func NewWebhookHandler(orders *service.OrderService, secret string, metrics *telemetry.Metrics, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		orders:    orders,
		secret:    secret,
		tolerance: payment.DefaultTolerance,
		metrics:   metrics,
		logger:    logger,
	}
}

// HandleEvent handles POST /webhooks/payment.
//
// The body must be read raw before parsing; the signature covers the exact
// bytes on the wire. After the signature verifies, the handler always
// acknowledges with 200 so the gateway stops retrying. Processing problems
// on a verified event (unknown order, unhandled type) are logged, never
// surfaced, because a retry would hit the same condition.
func (h *WebhookHandler) HandleEvent(c echo.Context) error {
	payloadBytes, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return domain.Invalid("webhook", "could not read request body")
	}

	signature := c.Request().Header.Get(SignatureHeader)
	if err := payment.VerifySignature(payloadBytes, signature, h.secret, h.tolerance); err != nil {
		if h.metrics != nil {
			h.metrics.WebhookRejected.Inc()
		}
		// Potential forgery or replay, logged as a security event.
		h.logger.Warn().
			Err(err).
			Str("remote_ip", c.RealIP()).
			Msg("webhook signature verification failed")

		if errors.Is(err, payment.ErrMissingSignature) {
			return echo.NewHTTPError(http.StatusBadRequest, "missing signature")
		}
		return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
	}

	// From here on the sender is authenticated, so every outcome ACKs with
	// 200. An unparseable body would fail identically on redelivery.
	var event stripe.Event
	if err := json.Unmarshal(payloadBytes, &event); err != nil {
		h.logger.Warn().Err(err).Msg("webhook payload is not valid JSON")
		if h.metrics != nil {
			h.metrics.WebhookOutcome.WithLabelValues("unknown", "unparseable").Inc()
		}
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}

	eventType := string(event.Type)
	if h.metrics != nil {
		h.metrics.WebhookReceived.WithLabelValues(eventType).Inc()
	}
	h.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", eventType).
		Msg("webhook event received")

	ctx := c.Request().Context()
	outcome := "processed"

	switch event.Type {
	case "checkout.session.completed":
		outcome = h.handleCheckoutCompleted(ctx, event)
	case "payment_intent.payment_failed":
		outcome = h.handlePaymentFailed(ctx, event)
	default:
		outcome = "ignored"
		h.logger.Debug().Str("event_type", eventType).Msg("unhandled webhook event type")
	}

	if h.metrics != nil {
		h.metrics.WebhookOutcome.WithLabelValues(eventType, outcome).Inc()
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

// handleCheckoutCompleted applies a payment success. The order is
// correlated through the internal order id planted in session metadata at
// checkout time.
func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) string {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error().Err(err).Str("event_id", event.ID).Msg("could not parse checkout session from event")
		return "error"
	}

	orderIDValue := session.Metadata[payment.MetadataOrderIDKey]
	orderID, err := uuid.Parse(orderIDValue)
	if err != nil {
		h.logger.Warn().
			Str("event_id", event.ID).
			Str("metadata_order_id", orderIDValue).
			Msg("checkout session has no usable order id metadata")
		return "unresolved"
	}

	input := service.ConfirmPaymentInput{
		OrderID:           orderID,
		CheckoutSessionID: session.ID,
		Method:            "card",
		PaidAt:            time.Unix(event.Created, 0).UTC(),
	}
	if session.PaymentIntent != nil {
		input.PaymentIntentID = session.PaymentIntent.ID
		input.PaymentID = session.PaymentIntent.ID
	}
	if len(session.PaymentMethodTypes) > 0 {
		input.Method = string(session.PaymentMethodTypes[0])
	}

	if err := h.orders.ConfirmPayment(ctx, input); err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			h.logger.Warn().
				Str("event_id", event.ID).
				Str("order_id", orderID.String()).
				Msg("webhook references unknown order")
			return "unresolved"
		}
		h.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to apply payment confirmation")
		return "error"
	}
	return "processed"
}

// handlePaymentFailed applies a payment failure. Failure events carry no
// session metadata, so correlation goes through the stored payment intent
// id.
func (h *WebhookHandler) handlePaymentFailed(ctx context.Context, event stripe.Event) string {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.logger.Error().Err(err).Str("event_id", event.ID).Msg("could not parse payment intent from event")
		return "error"
	}

	input := service.FailPaymentInput{PaymentIntentID: intent.ID}
	if intent.LastPaymentError != nil {
		input.FailureCode = string(intent.LastPaymentError.Code)
		input.FailureMessage = intent.LastPaymentError.Msg
	}

	if err := h.orders.FailPayment(ctx, input); err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			h.logger.Warn().
				Str("event_id", event.ID).
				Str("payment_intent_id", intent.ID).
				Msg("payment failure references unknown order")
			return "unresolved"
		}
		h.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to apply payment failure")
		return "error"
	}
	return "processed"
}
