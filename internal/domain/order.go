package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderStatus enumerates the order state machine.
//
//	PENDING_PAYMENT -> {PAYMENT_CONFIRMED, PAYMENT_FAILED}
//	PAYMENT_CONFIRMED -> PROCESSING -> SHIPPED_LOCAL -> DELIVERED
//	any non-terminal -> CANCELLED_BY_ADMIN / CANCELLED_BY_CUSTOMER
//	PAYMENT_CONFIRMED -> REFUNDED
type OrderStatus string

const (
	StatusPendingPayment      OrderStatus = "PENDING_PAYMENT"
	StatusPaymentConfirmed    OrderStatus = "PAYMENT_CONFIRMED"
	StatusPaymentFailed       OrderStatus = "PAYMENT_FAILED"
	StatusProcessing          OrderStatus = "PROCESSING"
	StatusShippedLocal        OrderStatus = "SHIPPED_LOCAL"
	StatusDelivered           OrderStatus = "DELIVERED"
	StatusCancelledByCustomer OrderStatus = "CANCELLED_BY_CUSTOMER"
	StatusCancelledByAdmin    OrderStatus = "CANCELLED_BY_ADMIN"
	StatusRefunded            OrderStatus = "REFUNDED"
)

// AllStatuses lists every valid order status.
var AllStatuses = []OrderStatus{
	StatusPendingPayment,
	StatusPaymentConfirmed,
	StatusPaymentFailed,
	StatusProcessing,
	StatusShippedLocal,
	StatusDelivered,
	StatusCancelledByCustomer,
	StatusCancelledByAdmin,
	StatusRefunded,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the order can leave this status.
// PAYMENT_FAILED is terminal for the checkout attempt, not for the record:
// an admin can still cancel an order that failed payment.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelledByCustomer, StatusCancelledByAdmin, StatusRefunded:
		return true
	}
	return false
}

// Internal payment status strings, kept alongside the order status so
// webhook replays can be detected without consulting the gateway.
const (
	PaymentStatusAwaitingGateway = "awaiting_payment_gateway"
	PaymentStatusPaid            = "paid"
	PaymentStatusFailed          = "failed"
)

// CustomerDetails is the contact and shipping information captured at
// checkout.
type CustomerDetails struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
}

// OrderItem is an immutable snapshot of a product at purchase time. Later
// catalog changes (price, name, deactivation) never affect historical
// orders.
type OrderItem struct {
	ProductID       uuid.UUID
	Name            string
	ImageURL        string
	UnitPriceCents  int64
	Quantity        int32
	TotalPriceCents int64
}

// PaymentDetails records the gateway identifiers and outcome for an order's
// checkout attempt.
type PaymentDetails struct {
	CheckoutSessionID string
	PaymentIntentID   string
	PaymentID         string
	Method            string
	Status            string // internal gateway status string, see PaymentStatus*
	PaidAt            *time.Time
}

// ShippingInfo is optional courier/tracking data set by the admin.
type ShippingInfo struct {
	Courier        string
	TrackingNumber string
}

// OrderNote is one entry in an order's append-only note log. StatusAt
// records the target status at the time the note was written.
type OrderNote struct {
	CreatedAt time.Time
	StatusAt  OrderStatus
	Author    string
	Body      string
}

// Order is a customer order. TotalCents always equals the sum of item
// subtotals, computed once at creation time.
type Order struct {
	ID          uuid.UUID
	OrderNumber string
	Customer    CustomerDetails
	Items       []OrderItem
	TotalCents  int64
	Status      OrderStatus
	Payment     PaymentDetails
	Shipping    ShippingInfo
	Notes       []OrderNote
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PaymentConfirmed reports whether this order's payment has already been
// reconciled. Used as the idempotency guard for replayed webhook events.
func (o *Order) PaymentConfirmed() bool {
	return o.Status == StatusPaymentConfirmed || o.Payment.Status == PaymentStatusPaid
}

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	Status *OrderStatus
	Limit  int32
	Offset int32
}

// ConfirmPaymentParams carries the gateway identifiers recorded when a
// payment success event is applied.
type ConfirmPaymentParams struct {
	OrderID   uuid.UUID
	PaymentID string
	Method    string
	PaidAt    time.Time
}

// OrderRepository persists orders. Implementations must make
// MarkPaymentConfirmed a conditional update so that two concurrent webhook
// deliveries cannot both claim the same order.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*Order, error)
	GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)

	// UpdatePaymentSession stores the gateway session identifiers after a
	// checkout session is created.
	UpdatePaymentSession(ctx context.Context, orderID uuid.UUID, checkoutSessionID, paymentIntentID, paymentStatus string) error

	// MarkPaymentConfirmed transitions the order to PAYMENT_CONFIRMED and
	// records payment details, only if it is still awaiting payment.
	// Returns false without error when the order was already claimed.
	MarkPaymentConfirmed(ctx context.Context, params ConfirmPaymentParams) (bool, error)

	// MarkPaymentFailed transitions the order to PAYMENT_FAILED, only if it
	// is still PENDING_PAYMENT. Returns false when no transition happened.
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error)

	UpdateStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus) error
	UpdateShipping(ctx context.Context, orderID uuid.UUID, shipping ShippingInfo) error
	AppendNote(ctx context.Context, orderID uuid.UUID, note OrderNote) error
}
