package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry. Prices are stored in minor currency units
// (cents) to avoid floating-point rounding.
type Product struct {
	ID            uuid.UUID
	Name          string
	Slug          string
	Description   string
	PriceCents    int64
	StockQuantity int32
	Images        []string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PrimaryImage returns the first product image, or "" if none exist.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// StockDecrement is the result of an atomic stock decrement.
// Remaining is clamped at zero; Clamped reports that the product had fewer
// units than requested (an oversell that the caller should log).
type StockDecrement struct {
	Previous  int32
	Remaining int32
	Clamped   bool
}

// CreateProductParams describes a new catalog entry.
type CreateProductParams struct {
	Name        string
	Slug        string
	Description string
	PriceCents  int64
	Stock       int32
	Images      []string
	IsActive    bool
}

// UpdateProductParams carries optional field updates. Nil pointers leave
// the stored value untouched.
type UpdateProductParams struct {
	Name        *string
	Slug        *string
	Description *string
	PriceCents  *int64
	Stock       *int32
	Images      []string
	IsActive    *bool
}

// CatalogStore persists products. The order lifecycle only reads products
// and decrements stock; all other mutations come from the admin surface.
type CatalogStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)

	CreateProduct(ctx context.Context, params CreateProductParams) (*Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, params UpdateProductParams) (*Product, error)
	SetProductActive(ctx context.Context, id uuid.UUID, active bool) error

	// DecrementStock atomically subtracts qty from the product's stock,
	// clamping at zero. Concurrent decrements for the same product must not
	// lose updates.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int32) (*StockDecrement, error)
}
