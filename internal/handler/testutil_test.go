package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mkrell/selene/internal/domain"
	"github.com/mkrell/selene/internal/middleware"
	"github.com/mkrell/selene/internal/payment"
	"github.com/mkrell/selene/internal/service"
)

const (
	testWebhookSecret = "whsec_handler_test"
	testJWTSecret     = "jwt_handler_test"
)

// testCatalog is a minimal in-memory catalog for handler tests.
type testCatalog struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
}

func (c *testCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *testCatalog) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (c *testCatalog) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Product
	for _, p := range c.products {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (c *testCatalog) CreateProduct(ctx context.Context, params domain.CreateProductParams) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.Slug == params.Slug {
			return nil, domain.ErrSlugTaken
		}
	}
	p := &domain.Product{
		ID:            uuid.New(),
		Name:          params.Name,
		Slug:          params.Slug,
		Description:   params.Description,
		PriceCents:    params.PriceCents,
		StockQuantity: params.Stock,
		Images:        params.Images,
		IsActive:      params.IsActive,
	}
	c.products[p.ID] = p
	cp := *p
	return &cp, nil
}

func (c *testCatalog) UpdateProduct(ctx context.Context, id uuid.UUID, params domain.UpdateProductParams) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	if params.Name != nil {
		p.Name = *params.Name
	}
	if params.Slug != nil {
		p.Slug = *params.Slug
	}
	if params.PriceCents != nil {
		p.PriceCents = *params.PriceCents
	}
	if params.Stock != nil {
		p.StockQuantity = *params.Stock
	}
	if params.IsActive != nil {
		p.IsActive = *params.IsActive
	}
	cp := *p
	return &cp, nil
}

func (c *testCatalog) SetProductActive(ctx context.Context, id uuid.UUID, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.IsActive = active
	return nil
}

func (c *testCatalog) DecrementStock(ctx context.Context, id uuid.UUID, qty int32) (*domain.StockDecrement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	dec := &domain.StockDecrement{Previous: p.StockQuantity}
	remaining := p.StockQuantity - qty
	if remaining < 0 {
		remaining = 0
		dec.Clamped = true
	}
	p.StockQuantity = remaining
	dec.Remaining = remaining
	return dec, nil
}

// testOrderRepo is a minimal in-memory order repository for handler tests.
type testOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func (r *testOrderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *testOrderRepo) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *testOrderRepo) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *testOrderRepo) GetOrderByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Payment.PaymentIntentID == intentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *testOrderRepo) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (r *testOrderRepo) UpdatePaymentSession(ctx context.Context, id uuid.UUID, sessionID, intentID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Payment.CheckoutSessionID = sessionID
	o.Payment.PaymentIntentID = intentID
	o.Payment.Status = status
	return nil
}

func (r *testOrderRepo) MarkPaymentConfirmed(ctx context.Context, params domain.ConfirmPaymentParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[params.OrderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	claimable := o.Status == domain.StatusPendingPayment || o.Status == domain.StatusPaymentFailed
	if !claimable || o.Payment.Status == domain.PaymentStatusPaid {
		return false, nil
	}
	o.Status = domain.StatusPaymentConfirmed
	o.Payment.Status = domain.PaymentStatusPaid
	o.Payment.PaymentID = params.PaymentID
	o.Payment.Method = params.Method
	paidAt := params.PaidAt
	o.Payment.PaidAt = &paidAt
	return true, nil
}

func (r *testOrderRepo) MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Status != domain.StatusPendingPayment {
		return false, nil
	}
	o.Status = domain.StatusPaymentFailed
	o.Payment.Status = domain.PaymentStatusFailed
	return true, nil
}

func (r *testOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (r *testOrderRepo) UpdateShipping(ctx context.Context, id uuid.UUID, shipping domain.ShippingInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Shipping = shipping
	return nil
}

func (r *testOrderRepo) AppendNote(ctx context.Context, id uuid.UUID, note domain.OrderNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	note.CreatedAt = time.Now().UTC()
	o.Notes = append(o.Notes, note)
	return nil
}

// testServer bundles the wired router with its backing fakes so tests can
// inspect state after requests.
type testServer struct {
	echo    *echo.Echo
	catalog *testCatalog
	repo    *testOrderRepo
	gateway *payment.MockGateway
	orders  *service.OrderService
}

func newTestServer() *testServer {
	catalog := &testCatalog{products: make(map[uuid.UUID]*domain.Product)}
	repo := &testOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
	gateway := payment.NewMockGateway()
	logger := zerolog.Nop()

	orders := service.NewOrderService(catalog, repo, gateway, nil, nil, logger, service.OrderConfig{
		BaseURL:  "https://shop.example.test",
		Currency: "usd",
	})
	products := service.NewProductService(catalog, logger)

	e := NewRouter(RouterConfig{
		Checkout:       NewCheckoutHandler(orders),
		Webhook:        NewWebhookHandler(orders, testWebhookSecret, nil, logger),
		Admin:          NewAdminHandler(orders, products),
		AdminJWTSecret: testJWTSecret,
		Logger:         logger,
	})

	return &testServer{echo: e, catalog: catalog, repo: repo, gateway: gateway, orders: orders}
}

func (s *testServer) seedProduct(price int64, stock int32) *domain.Product {
	p := &domain.Product{
		ID:            uuid.New(),
		Name:          "Colombia Supremo",
		Slug:          "colombia-supremo-" + uuid.NewString()[:8],
		PriceCents:    price,
		StockQuantity: stock,
		IsActive:      true,
	}
	s.catalog.mu.Lock()
	s.catalog.products[p.ID] = p
	s.catalog.mu.Unlock()
	return p
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func adminToken() string {
	token, _ := middleware.GenerateAdminToken("admin@example.test", testJWTSecret, time.Hour)
	return token
}
