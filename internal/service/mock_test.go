package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkrell/selene/internal/domain"
	"github.com/mkrell/selene/internal/events"
)

// =============================================================================
// IN-MEMORY CATALOG STORE
// =============================================================================

type memCatalog struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product

	decrementCalls []decrementCall
}

type decrementCall struct {
	productID uuid.UUID
	qty       int32
}

func newMemCatalog(products ...*domain.Product) *memCatalog {
	c := &memCatalog{products: make(map[uuid.UUID]*domain.Product)}
	for _, p := range products {
		cp := *p
		c.products[p.ID] = &cp
	}
	return c
}

func (c *memCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *memCatalog) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
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

func (c *memCatalog) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
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

func (c *memCatalog) CreateProduct(ctx context.Context, params domain.CreateProductParams) (*domain.Product, error) {
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
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	c.products[p.ID] = p
	cp := *p
	return &cp, nil
}

func (c *memCatalog) UpdateProduct(ctx context.Context, id uuid.UUID, params domain.UpdateProductParams) (*domain.Product, error) {
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
	if params.Description != nil {
		p.Description = *params.Description
	}
	if params.PriceCents != nil {
		p.PriceCents = *params.PriceCents
	}
	if params.Stock != nil {
		p.StockQuantity = *params.Stock
	}
	if params.Images != nil {
		p.Images = params.Images
	}
	if params.IsActive != nil {
		p.IsActive = *params.IsActive
	}
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (c *memCatalog) SetProductActive(ctx context.Context, id uuid.UUID, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.IsActive = active
	return nil
}

func (c *memCatalog) DecrementStock(ctx context.Context, id uuid.UUID, qty int32) (*domain.StockDecrement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	c.decrementCalls = append(c.decrementCalls, decrementCall{productID: id, qty: qty})
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

func (c *memCatalog) decrements() []decrementCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]decrementCall(nil), c.decrementCalls...)
}

// =============================================================================
// IN-MEMORY ORDER REPOSITORY
// =============================================================================

type memOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[uuid.UUID]*domain.Order)}
}

func (r *memOrders) CreateOrder(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	cp := cloneOrder(order)
	r.orders[order.ID] = cp
	return nil
}

func (r *memOrders) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *memOrders) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == number {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *memOrders) GetOrderByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Payment.PaymentIntentID == intentID {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *memOrders) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	return out, nil
}

func (r *memOrders) UpdatePaymentSession(ctx context.Context, id uuid.UUID, sessionID, intentID string, status string) error {
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

func (r *memOrders) MarkPaymentConfirmed(ctx context.Context, params domain.ConfirmPaymentParams) (bool, error) {
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

func (r *memOrders) MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error) {
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

func (r *memOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memOrders) UpdateShipping(ctx context.Context, id uuid.UUID, shipping domain.ShippingInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Shipping = shipping
	return nil
}

func (r *memOrders) AppendNote(ctx context.Context, id uuid.UUID, note domain.OrderNote) error {
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

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	cp.Notes = append([]domain.OrderNote(nil), o.Notes...)
	return &cp
}

// =============================================================================
// RECORDING EVENT PUBLISHER
// =============================================================================

type memPublisher struct {
	mu        sync.Mutex
	published []publishedEvent
	err       error
}

type publishedEvent struct {
	subject string
	event   events.OrderEvent
}

func (p *memPublisher) Publish(ctx context.Context, subject string, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedEvent{subject: subject, event: event})
	return nil
}

func (p *memPublisher) events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.published...)
}
