package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkrell/selene/internal/domain"
)

// ProductService is the admin-facing catalog management layer.
type ProductService struct {
	catalog domain.CatalogStore
	logger  zerolog.Logger
}

func NewProductService(catalog domain.CatalogStore, logger zerolog.Logger) *ProductService {
	return &ProductService{catalog: catalog, logger: logger}
}

// CreateProduct adds a catalog entry. An empty slug is derived from the
// name; slug uniqueness is enforced by the store.
func (s *ProductService) CreateProduct(ctx context.Context, params domain.CreateProductParams) (*domain.Product, error) {
	const op = "product.create"

	if params.Name == "" {
		return nil, domain.Invalid(op, "product name is required")
	}
	if params.PriceCents <= 0 {
		return nil, domain.Invalid(op, "product price must be positive")
	}
	if params.Stock < 0 {
		return nil, domain.Invalid(op, "product stock cannot be negative")
	}
	if params.Slug == "" {
		params.Slug = Slugify(params.Name)
	}

	product, err := s.catalog.CreateProduct(ctx, params)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("product_id", product.ID.String()).
		Str("slug", product.Slug).
		Msg("product created")
	return product, nil
}

// UpdateProduct applies a partial update. Nil fields are left untouched.
func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, params domain.UpdateProductParams) (*domain.Product, error) {
	const op = "product.update"

	if params.PriceCents != nil && *params.PriceCents <= 0 {
		return nil, domain.Invalid(op, "product price must be positive")
	}
	if params.Stock != nil && *params.Stock < 0 {
		return nil, domain.Invalid(op, "product stock cannot be negative")
	}
	if params.Slug != nil && *params.Slug == "" {
		return nil, domain.Invalid(op, "product slug cannot be empty")
	}

	return s.catalog.UpdateProduct(ctx, id, params)
}

// SetActive toggles whether a product can be ordered. Deactivation never
// touches existing orders; their item snapshots are immutable.
func (s *ProductService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.catalog.SetProductActive(ctx, id, active)
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.catalog.GetProduct(ctx, id)
}

func (s *ProductService) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return s.catalog.GetProductBySlug(ctx, slug)
}

func (s *ProductService) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	return s.catalog.ListProducts(ctx, activeOnly)
}

// Slugify lowercases a name and collapses non-alphanumeric runs into single
// hyphens.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}
