package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkrell/selene/internal/domain"
)

// OrderRepository implements domain.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, order_number, customer_name, customer_email, customer_phone,
	shipping_address, shipping_city, shipping_postal_code, status, total_cents,
	checkout_session_id, payment_intent_id, payment_id, payment_method, payment_status,
	paid_at, courier, tracking_number, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.Customer.Name,
		&o.Customer.Email,
		&o.Customer.Phone,
		&o.Customer.Address,
		&o.Customer.City,
		&o.Customer.PostalCode,
		&o.Status,
		&o.TotalCents,
		&o.Payment.CheckoutSessionID,
		&o.Payment.PaymentIntentID,
		&o.Payment.PaymentID,
		&o.Payment.Method,
		&o.Payment.Status,
		&o.Payment.PaidAt,
		&o.Shipping.Courier,
		&o.Shipping.TrackingNumber,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder persists the order, its item snapshots, and any initial notes
// in one transaction. The order's ID is assigned here if unset.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			id, order_number, customer_name, customer_email, customer_phone,
			shipping_address, shipping_city, shipping_postal_code, status, total_cents
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		order.ID,
		order.OrderNumber,
		order.Customer.Name,
		order.Customer.Email,
		order.Customer.Phone,
		order.Customer.Address,
		order.Customer.City,
		order.Customer.PostalCode,
		order.Status,
		order.TotalCents,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return translateConstraint(err, "order.create")
	}

	for i, item := range order.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, name, image_url, unit_price_cents, quantity, total_cents, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			order.ID,
			item.ProductID,
			item.Name,
			item.ImageURL,
			item.UnitPriceCents,
			item.Quantity,
			item.TotalPriceCents,
			i,
		)
		if err != nil {
			return domain.Internal(err, "order.create", "failed to insert order item")
		}
	}

	for _, note := range order.Notes {
		if err := insertNote(ctx, tx, order.ID, note); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "order.create", "failed to commit order")
	}
	return nil
}

func (r *OrderRepository) getOrderBy(ctx context.Context, op, where string, arg interface{}) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, op, "failed to get order")
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, domain.Internal(err, op, "failed to load order items")
	}
	if err := r.loadNotes(ctx, o); err != nil {
		return nil, domain.Internal(err, op, "failed to load order notes")
	}
	return o, nil
}

// GetOrder retrieves an order with items and notes by internal id.
func (r *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOrderBy(ctx, "order.get", "id = $1", id)
}

// GetOrderByNumber retrieves an order by its human-readable number.
func (r *OrderRepository) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.getOrderBy(ctx, "order.get_by_number", "order_number = $1", number)
}

// GetOrderByPaymentIntentID retrieves an order by the gateway's payment
// intent id. This is the correlation key for payment failure events.
func (r *OrderRepository) GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	return r.getOrderBy(ctx, "order.get_by_intent", "payment_intent_id = $1", paymentIntentID)
}

// ListOrders returns orders for the admin surface, newest first.
func (r *OrderRepository) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []interface{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += ` WHERE status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, "order.list", "failed to list orders")
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Internal(err, "order.list", "failed to scan order")
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.list", "failed to list orders")
	}
	return orders, nil
}

// UpdatePaymentSession stores the gateway session identifiers created for
// this order.
func (r *OrderRepository) UpdatePaymentSession(ctx context.Context, orderID uuid.UUID, checkoutSessionID, paymentIntentID, paymentStatus string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET checkout_session_id = $2, payment_intent_id = $3, payment_status = $4, updated_at = now()
		WHERE id = $1`,
		orderID, checkoutSessionID, paymentIntentID, paymentStatus)
	if err != nil {
		return domain.Internal(err, "order.update_session", "failed to store payment session")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// MarkPaymentConfirmed claims the order for payment confirmation. The WHERE
// clause makes this a compare-and-set: a replayed or racing webhook delivery
// finds zero rows and reports ok=false. PAYMENT_FAILED orders are still
// claimable because gateways deliver events out of order; a stale failure
// must not eat a real payment.
func (r *OrderRepository) MarkPaymentConfirmed(ctx context.Context, params domain.ConfirmPaymentParams) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    payment_id = $3,
		    payment_method = $4,
		    payment_status = $5,
		    paid_at = $6,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ($7, $8)
		  AND payment_status <> $5`,
		params.OrderID,
		domain.StatusPaymentConfirmed,
		params.PaymentID,
		params.Method,
		domain.PaymentStatusPaid,
		params.PaidAt,
		domain.StatusPendingPayment,
		domain.StatusPaymentFailed,
	)
	if err != nil {
		return false, domain.Internal(err, "order.confirm_payment", "failed to confirm payment")
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPaymentFailed records a failed checkout attempt, only while the
// order is still PENDING_PAYMENT. A success event that won the race makes
// this a no-op.
func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, updated_at = now()
		WHERE id = $1 AND status = $4`,
		orderID,
		domain.StatusPaymentFailed,
		domain.PaymentStatusFailed,
		domain.StatusPendingPayment,
	)
	if err != nil {
		return false, domain.Internal(err, "order.fail_payment", "failed to record payment failure")
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStatus sets the order status. Transition legality is not enforced
// here; see the order service for the rationale.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, status)
	if err != nil {
		return domain.Internal(err, "order.update_status", "failed to update status")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// UpdateShipping sets courier and tracking details.
func (r *OrderRepository) UpdateShipping(ctx context.Context, orderID uuid.UUID, shipping domain.ShippingInfo) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET courier = $2, tracking_number = $3, updated_at = now() WHERE id = $1`,
		orderID, shipping.Courier, shipping.TrackingNumber)
	if err != nil {
		return domain.Internal(err, "order.update_shipping", "failed to update shipping")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// AppendNote adds one entry to the order's append-only note log. Existing
// notes are never rewritten.
func (r *OrderRepository) AppendNote(ctx context.Context, orderID uuid.UUID, note domain.OrderNote) error {
	if err := insertNote(ctx, r.pool, orderID, note); err != nil {
		return err
	}
	return nil
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx, so notes can be
// written inside the order-creation transaction or standalone.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertNote(ctx context.Context, db execer, orderID uuid.UUID, note domain.OrderNote) error {
	createdAt := note.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.Exec(ctx, `
		INSERT INTO order_notes (order_id, status_at, author, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		orderID, note.StatusAt, note.Author, note.Body, createdAt)
	if err != nil {
		return domain.Internal(err, "order.append_note", "failed to append note")
	}
	return nil
}

func (r *OrderRepository) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, name, image_url, unit_price_cents, quantity, total_cents
		FROM order_items WHERE order_id = $1 ORDER BY position`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.ImageURL, &item.UnitPriceCents, &item.Quantity, &item.TotalPriceCents); err != nil {
			return err
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func (r *OrderRepository) loadNotes(ctx context.Context, o *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT created_at, status_at, author, body
		FROM order_notes WHERE order_id = $1 ORDER BY created_at`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var note domain.OrderNote
		if err := rows.Scan(&note.CreatedAt, &note.StatusAt, &note.Author, &note.Body); err != nil {
			return err
		}
		o.Notes = append(o.Notes, note)
	}
	return rows.Err()
}
