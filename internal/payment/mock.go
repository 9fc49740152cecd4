package payment

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway implements Gateway for tests and local development without
// gateway credentials. Calls are recorded for assertions.
type MockGateway struct {
	mu    sync.Mutex
	calls []CheckoutSessionParams

	// CreateCheckoutSessionFunc overrides the default behavior when set.
	CreateCheckoutSessionFunc func(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
}

var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates a mock gateway that succeeds with deterministic
// session identifiers.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// CreateCheckoutSession records the call and returns a synthetic session.
func (g *MockGateway) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	g.mu.Lock()
	g.calls = append(g.calls, params)
	n := len(g.calls)
	g.mu.Unlock()

	if g.CreateCheckoutSessionFunc != nil {
		return g.CreateCheckoutSessionFunc(ctx, params)
	}

	return &CheckoutSession{
		ID:              fmt.Sprintf("cs_test_%d", n),
		PaymentIntentID: fmt.Sprintf("pi_test_%d", n),
		URL:             fmt.Sprintf("https://checkout.example.test/pay/cs_test_%d", n),
	}, nil
}

// Calls returns a copy of the recorded checkout session requests.
func (g *MockGateway) Calls() []CheckoutSessionParams {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]CheckoutSessionParams, len(g.calls))
	copy(out, g.calls)
	return out
}
