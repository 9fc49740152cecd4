// Package payment wraps the hosted-checkout payment gateway. The order
// lifecycle depends only on the Gateway interface; Stripe specifics stay
// behind it.
package payment

import (
	"context"
)

// MetadataOrderIDKey is the metadata key carrying the internal order id.
// It is set on the checkout session at creation time and round-trips
// unchanged to the success webhook, where it is the correlation key back to
// the order. The internal id is used (not a gateway-native id) because it
// exists before the gateway session does.
const MetadataOrderIDKey = "order_id"

// LineItem is one purchasable line of a checkout session.
type LineItem struct {
	Name           string
	ImageURL       string
	UnitPriceCents int64
	Quantity       int32
}

// BillingInfo prefills the hosted payment page.
type BillingInfo struct {
	Name  string
	Email string
	Phone string
}

// CheckoutSessionParams describes a hosted checkout session to create.
type CheckoutSessionParams struct {
	LineItems  []LineItem
	Billing    BillingInfo
	Currency   string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutSession is the created hosted payment flow. URL is where the
// customer completes payment; the ids correlate webhook events back to the
// order.
type CheckoutSession struct {
	ID              string
	PaymentIntentID string
	URL             string
}

// Gateway creates hosted checkout sessions. Asynchronous payment outcomes
// arrive separately as signed webhook events.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
}
