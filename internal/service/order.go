package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkrell/selene/internal/domain"
	"github.com/mkrell/selene/internal/events"
	"github.com/mkrell/selene/internal/payment"
	"github.com/mkrell/selene/internal/telemetry"
)

// OrderConfig holds the static settings the order lifecycle needs.
type OrderConfig struct {
	// BaseURL is the public origin used to build gateway callback URLs.
	BaseURL string

	// Currency is the ISO 4217 code all checkout sessions charge in.
	Currency string
}

// OrderItemInput is one requested cart line.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int32
}

// CreateOrderInput is a validated checkout submission.
type CreateOrderInput struct {
	Customer domain.CustomerDetails
	Items    []OrderItemInput
}

// CreateOrderResult is returned to the caller for redirect to the hosted
// payment page.
type CreateOrderResult struct {
	OrderID     uuid.UUID
	OrderNumber string
	CheckoutURL string
}

// ConfirmPaymentInput carries the fields extracted from a payment success
// webhook event.
type ConfirmPaymentInput struct {
	// OrderID is the internal order id recovered from session metadata.
	OrderID uuid.UUID

	CheckoutSessionID string
	PaymentIntentID   string
	PaymentID         string
	Method            string
	PaidAt            time.Time
}

// FailPaymentInput carries the fields extracted from a payment failure
// webhook event. Failure events correlate by payment intent id because the
// gateway does not replay session metadata on them.
type FailPaymentInput struct {
	PaymentIntentID string
	FailureCode     string
	FailureMessage  string
}

// UpdateStatusInput is an admin status change request.
type UpdateStatusInput struct {
	OrderID   uuid.UUID
	NewStatus domain.OrderStatus
	Note      string
	Author    string
}

// OrderService orchestrates order creation, checkout-session initiation,
// and webhook-driven payment reconciliation.
type OrderService struct {
	catalog   domain.CatalogStore
	orders    domain.OrderRepository
	gateway   payment.Gateway
	publisher events.Publisher
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
	config    OrderConfig
}

// NewOrderService wires the order lifecycle manager. metrics may be nil in
// tests.
func NewOrderService(
	catalog domain.CatalogStore,
	orders domain.OrderRepository,
	gateway payment.Gateway,
	publisher events.Publisher,
	metrics *telemetry.Metrics,
	logger zerolog.Logger,
	config OrderConfig,
) *OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &OrderService{
		catalog:   catalog,
		orders:    orders,
		gateway:   gateway,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		config:    config,
	}
}

// CreateOrder validates the requested items against the catalog, persists a
// PENDING_PAYMENT order with price snapshots, and creates a hosted checkout
// session.
//
// Item validation is strictly sequential and fails fast on the first
// violation; no order is persisted in that case. Stock is NOT decremented
// here - it is authoritative and only decremented on confirmed payment, so
// abandoned checkouts never reserve inventory.
//
// If the gateway call fails after the order is persisted, the order is kept
// in PENDING_PAYMENT (never rolled back) and a *domain.PaymentGatewayError
// carrying the order identifiers is returned so the caller can offer a
// retry. A stranded pending order beats silently losing a customer's order.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	const op = "order.create"

	if len(input.Items) == 0 {
		s.countCheckoutFailure("validation")
		return nil, domain.Invalid(op, "order must contain at least one item")
	}

	items := make([]domain.OrderItem, 0, len(input.Items))
	var total int64

	for _, requested := range input.Items {
		if requested.Quantity < 1 {
			s.countCheckoutFailure("validation")
			return nil, domain.Invalid(op, "item quantity must be at least 1")
		}

		product, err := s.catalog.GetProduct(ctx, requested.ProductID)
		if err != nil {
			s.countCheckoutFailure("product")
			return nil, err
		}
		if !product.IsActive {
			s.countCheckoutFailure("product")
			return nil, domain.ErrProductInactive
		}
		if product.StockQuantity < requested.Quantity {
			s.countCheckoutFailure("product")
			return nil, domain.ErrInsufficientStock
		}

		subtotal := product.PriceCents * int64(requested.Quantity)
		items = append(items, domain.OrderItem{
			ProductID:       product.ID,
			Name:            product.Name,
			ImageURL:        product.PrimaryImage(),
			UnitPriceCents:  product.PriceCents,
			Quantity:        requested.Quantity,
			TotalPriceCents: subtotal,
		})
		total += subtotal
	}

	order := &domain.Order{
		ID:          uuid.New(),
		OrderNumber: newOrderNumber(),
		Customer:    input.Customer,
		Items:       items,
		TotalCents:  total,
		Status:      domain.StatusPendingPayment,
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.countCheckoutFailure("storage")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
		s.metrics.OrderValue.Observe(float64(total))
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutSessionParams{
		LineItems: gatewayLineItems(items),
		Billing: payment.BillingInfo{
			Name:  input.Customer.Name,
			Email: input.Customer.Email,
			Phone: input.Customer.Phone,
		},
		Currency:   s.config.Currency,
		SuccessURL: fmt.Sprintf("%s/checkout/success?order=%s", s.config.BaseURL, order.ID),
		CancelURL:  fmt.Sprintf("%s/checkout/cancelled?order=%s", s.config.BaseURL, order.ID),
		Metadata: map[string]string{
			payment.MetadataOrderIDKey: order.ID.String(),
		},
	})
	if err != nil {
		// The order stays persisted; only the checkout attempt failed.
		s.countCheckoutFailure("gateway")
		s.logger.Error().
			Err(err).
			Str("order_number", order.OrderNumber).
			Msg("checkout session creation failed, order kept in PENDING_PAYMENT")
		return nil, &domain.PaymentGatewayError{
			OrderID:     order.ID.String(),
			OrderNumber: order.OrderNumber,
			Err:         err,
		}
	}

	err = s.orders.UpdatePaymentSession(ctx, order.ID, session.ID, session.PaymentIntentID, domain.PaymentStatusAwaitingGateway)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("checkout_session_id", session.ID).
		Int64("total_cents", total).
		Msg("order created, awaiting payment")

	return &CreateOrderResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CheckoutURL: session.URL,
	}, nil
}

// ConfirmPayment applies a payment success event.
//
// The idempotency guard lives in the repository: MarkPaymentConfirmed is a
// compare-and-set on the order's payment state, so a duplicate or racing
// delivery observes ok=false and skips the stock decrement. Stock is
// therefore decremented exactly once per order no matter how many times the
// gateway replays the event. A success arriving after a stale failure event
// still confirms; PAYMENT_FAILED is not terminal for an unpaid order.
func (s *OrderService) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) error {
	order, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		return err
	}

	if order.PaymentConfirmed() {
		s.logger.Info().
			Str("order_number", order.OrderNumber).
			Msg("payment already confirmed, ignoring replayed event")
		return nil
	}

	claimed, err := s.orders.MarkPaymentConfirmed(ctx, domain.ConfirmPaymentParams{
		OrderID:   order.ID,
		PaymentID: input.PaymentID,
		Method:    input.Method,
		PaidAt:    input.PaidAt,
	})
	if err != nil {
		return err
	}
	if !claimed {
		// A concurrent delivery won the compare-and-set.
		s.logger.Info().
			Str("order_number", order.OrderNumber).
			Msg("payment confirmation lost race to concurrent delivery, no-op")
		return nil
	}

	for _, item := range order.Items {
		dec, err := s.catalog.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			// The order is confirmed; a failed decrement is logged for
			// operator follow-up rather than unwinding the payment.
			s.logger.Error().
				Err(err).
				Str("order_number", order.OrderNumber).
				Str("product_id", item.ProductID.String()).
				Msg("stock decrement failed after payment confirmation")
			continue
		}
		if dec.Clamped {
			// Oversold: concurrent confirmed orders exceeded stock. The
			// floor keeps the record sane; no compensating transaction.
			if s.metrics != nil {
				s.metrics.StockClamped.Inc()
			}
			s.logger.Warn().
				Str("order_number", order.OrderNumber).
				Str("product_id", item.ProductID.String()).
				Int32("requested", item.Quantity).
				Int32("previous_stock", dec.Previous).
				Msg("stock decrement clamped at zero")
		}
	}

	if s.metrics != nil {
		s.metrics.PaymentSucceeded.Inc()
	}
	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("payment_intent_id", input.PaymentIntentID).
		Msg("payment confirmed")

	s.publish(ctx, events.SubjectOrderConfirmed, order, domain.StatusPaymentConfirmed)
	return nil
}

// FailPayment applies a payment failure event. Only an order still in
// PENDING_PAYMENT transitions; an order already confirmed by a racing
// success event treats the failure as stale and nothing changes.
func (s *OrderService) FailPayment(ctx context.Context, input FailPaymentInput) error {
	order, err := s.orders.GetOrderByPaymentIntentID(ctx, input.PaymentIntentID)
	if err != nil {
		return err
	}

	moved, err := s.orders.MarkPaymentFailed(ctx, order.ID)
	if err != nil {
		return err
	}
	if !moved {
		s.logger.Info().
			Str("order_number", order.OrderNumber).
			Str("status", string(order.Status)).
			Msg("payment failure event is stale, no status change")
		return nil
	}

	note := domain.OrderNote{
		StatusAt: domain.StatusPaymentFailed,
		Author:   "system",
		Body:     fmt.Sprintf("Payment failed: %s (%s)", input.FailureMessage, input.FailureCode),
	}
	if err := s.orders.AppendNote(ctx, order.ID, note); err != nil {
		s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to record failure note")
	}

	if s.metrics != nil {
		s.metrics.PaymentFailed.Inc()
	}
	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("failure_code", input.FailureCode).
		Msg("payment failed")

	s.publish(ctx, events.SubjectOrderPaymentFailed, order, domain.StatusPaymentFailed)
	return nil
}

// UpdateStatus applies an admin status change with an append-only audit
// note.
//
// Transition legality is deliberately NOT validated: the admin surface is
// also the correction mechanism for operator mistakes, and the upstream
// product decision is that flexibility wins over a transition table. See
// DESIGN.md.
func (s *OrderService) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*domain.Order, error) {
	const op = "order.update_status"

	if !input.NewStatus.Valid() {
		return nil, domain.Invalid(op, fmt.Sprintf("unknown order status %q", input.NewStatus))
	}

	order, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	if order.Status == input.NewStatus && input.Note == "" {
		return nil, domain.Invalid(op, "order already has this status and no note was supplied")
	}

	if input.Note != "" {
		note := domain.OrderNote{
			StatusAt: input.NewStatus,
			Author:   input.Author,
			Body:     input.Note,
		}
		if err := s.orders.AppendNote(ctx, order.ID, note); err != nil {
			return nil, err
		}
	}

	statusChanged := order.Status != input.NewStatus
	if statusChanged {
		if err := s.orders.UpdateStatus(ctx, order.ID, input.NewStatus); err != nil {
			return nil, err
		}
		s.logger.Info().
			Str("order_number", order.OrderNumber).
			Str("from", string(order.Status)).
			Str("to", string(input.NewStatus)).
			Str("author", input.Author).
			Msg("order status updated")

		s.publish(ctx, events.SubjectOrderStatusChanged, order, input.NewStatus)
	}

	return s.orders.GetOrder(ctx, order.ID)
}

// UpdateShipping sets courier and tracking details on an order.
func (s *OrderService) UpdateShipping(ctx context.Context, orderID uuid.UUID, shipping domain.ShippingInfo) (*domain.Order, error) {
	if err := s.orders.UpdateShipping(ctx, orderID, shipping); err != nil {
		return nil, err
	}
	return s.orders.GetOrder(ctx, orderID)
}

// GetOrder retrieves an order by internal id.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.orders.GetOrder(ctx, id)
}

// GetOrderByNumber retrieves an order by its human-readable number.
func (s *OrderService) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return s.orders.GetOrderByNumber(ctx, number)
}

// ListOrders returns orders for the admin surface.
func (s *OrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return s.orders.ListOrders(ctx, filter)
}

// publish emits a lifecycle event. Failures are logged, never propagated -
// notifications are best-effort by contract.
func (s *OrderService) publish(ctx context.Context, subject string, order *domain.Order, status domain.OrderStatus) {
	err := s.publisher.Publish(ctx, subject, events.OrderEvent{
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		Status:        string(status),
		TotalCents:    order.TotalCents,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.NotifyFailed.Inc()
		}
		s.logger.Warn().
			Err(err).
			Str("subject", subject).
			Str("order_number", order.OrderNumber).
			Msg("failed to publish order event")
	}
}

func (s *OrderService) countCheckoutFailure(reason string) {
	if s.metrics != nil {
		s.metrics.CheckoutFailed.WithLabelValues(reason).Inc()
	}
}

func gatewayLineItems(items []domain.OrderItem) []payment.LineItem {
	out := make([]payment.LineItem, len(items))
	for i, item := range items {
		out[i] = payment.LineItem{
			Name:           item.Name,
			ImageURL:       item.ImageURL,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		}
	}
	return out
}

// crockford base32, no ambiguous characters.
const orderNumberAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// newOrderNumber builds a human-readable order number from the current UTC
// time plus a 4-character random suffix (20 bits of entropy), so two orders
// created in the same second do not collide.
func newOrderNumber() string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand only fails if the OS entropy source is broken;
		// fall back to the nanosecond clock rather than crash checkout.
		nano := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(nano >> (i * 8))
		}
	}
	suffix := make([]byte, 4)
	for i, b := range buf {
		suffix[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102150405"), suffix)
}
