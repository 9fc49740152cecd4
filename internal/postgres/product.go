package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkrell/selene/internal/domain"
)

// CatalogStore implements domain.CatalogStore using PostgreSQL.
type CatalogStore struct {
	pool *pgxpool.Pool
}

var _ domain.CatalogStore = (*CatalogStore)(nil)

// NewCatalogStore creates a new PostgreSQL-backed catalog store.
func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

const productColumns = `id, name, slug, description, price_cents, stock_quantity, images, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.PriceCents,
		&p.StockQuantity,
		&p.Images,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProduct retrieves a product by id.
func (s *CatalogStore) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.Internal(err, "product.get", "failed to get product")
	}
	return p, nil
}

// GetProductBySlug retrieves a product by its unique slug.
func (s *CatalogStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.Internal(err, "product.get_by_slug", "failed to get product")
	}
	return p, nil
}

// ListProducts returns products ordered by name. When activeOnly is set,
// soft-deleted products are excluded.
func (s *CatalogStore) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, domain.Internal(err, "product.list", "failed to list products")
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, domain.Internal(err, "product.list", "failed to scan product")
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "product.list", "failed to list products")
	}
	return products, nil
}

// CreateProduct inserts a new product. A duplicate slug surfaces as
// domain.ErrSlugTaken.
func (s *CatalogStore) CreateProduct(ctx context.Context, params domain.CreateProductParams) (*domain.Product, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO products (name, slug, description, price_cents, stock_quantity, images, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+productColumns,
		params.Name,
		params.Slug,
		params.Description,
		params.PriceCents,
		params.Stock,
		params.Images,
		params.IsActive,
	)
	p, err := scanProduct(row)
	if err != nil {
		return nil, translateConstraint(err, "product.create")
	}
	return p, nil
}

// UpdateProduct applies the non-nil fields of params.
func (s *CatalogStore) UpdateProduct(ctx context.Context, id uuid.UUID, params domain.UpdateProductParams) (*domain.Product, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{id}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.Slug != nil {
		add("slug", *params.Slug)
	}
	if params.Description != nil {
		add("description", *params.Description)
	}
	if params.PriceCents != nil {
		add("price_cents", *params.PriceCents)
	}
	if params.Stock != nil {
		add("stock_quantity", *params.Stock)
	}
	if params.Images != nil {
		add("images", params.Images)
	}
	if params.IsActive != nil {
		add("is_active", *params.IsActive)
	}

	query := `UPDATE products SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + productColumns
	p, err := scanProduct(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, translateConstraint(err, "product.update")
	}
	return p, nil
}

// SetProductActive toggles the soft-delete flag.
func (s *CatalogStore) SetProductActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return domain.Internal(err, "product.set_active", "failed to update product")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// DecrementStock atomically subtracts qty from the product's stock,
// clamping at zero. The previous quantity is read in the same statement so
// concurrent decrements cannot lose updates and the caller can detect
// clamping.
func (s *CatalogStore) DecrementStock(ctx context.Context, id uuid.UUID, qty int32) (*domain.StockDecrement, error) {
	var dec domain.StockDecrement
	err := s.pool.QueryRow(ctx, `
		UPDATE products p
		SET stock_quantity = GREATEST(p.stock_quantity - $2, 0), updated_at = now()
		FROM (SELECT id, stock_quantity AS prev FROM products WHERE id = $1 FOR UPDATE) old
		WHERE p.id = old.id
		RETURNING old.prev, p.stock_quantity`,
		id, qty,
	).Scan(&dec.Previous, &dec.Remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.Internal(err, "product.decrement_stock", "failed to decrement stock")
	}
	dec.Clamped = dec.Previous < qty
	return &dec, nil
}
