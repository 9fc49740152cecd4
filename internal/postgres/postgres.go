// Package postgres implements the catalog store and order repository on
// top of a pgx connection pool. The pool is constructed once in cmd/server
// and injected; nothing in this package reaches for global state.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkrell/selene/internal/domain"
)

const uniqueViolation = "23505"

// Connect creates and verifies a connection pool.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// translateConstraint converts native constraint violations into the
// domain error model at the storage boundary, so callers never inspect
// driver error strings.
func translateConstraint(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "products_slug_key":
			return domain.ErrSlugTaken
		case "orders_order_number_key":
			return domain.Conflict(op, "order number already exists")
		}
		return domain.Conflict(op, "duplicate value violates a unique constraint")
	}
	return domain.Internal(err, op, "database operation failed")
}
