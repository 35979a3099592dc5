package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository handles order persistence
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates an order repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts an order row
func (r *Repository) Create(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO orders (id, user_id, order_no, pack, credits, amount_cents, currency, status, provider, checkout_id, provider_order_id, created_at, updated_at)
		VALUES (:id, :user_id, :order_no, :pack, :credits, :amount_cents, :currency, :status, :provider, :checkout_id, :provider_order_id, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("order repository create: %w", err)
	}
	return nil
}

// GetByOrderNo returns an order by its public order number
func (r *Repository) GetByOrderNo(ctx context.Context, orderNo string) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o,
		`SELECT * FROM orders WHERE order_no = $1`, orderNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order repository get: %w", err)
	}
	return &o, nil
}

// MarkCompleted flips a pending order to completed and records provider IDs.
// Returns false when the order was already completed (webhook replay).
func (r *Repository) MarkCompleted(ctx context.Context, orderNo, checkoutID, providerOrderID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, checkout_id = $2, provider_order_id = $3, updated_at = $4
		WHERE order_no = $5 AND status = $6`,
		StatusCompleted, checkoutID, providerOrderID, time.Now().UTC(), orderNo, StatusPending)
	if err != nil {
		return false, fmt.Errorf("order repository mark completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("order repository mark completed: %w", err)
	}
	return affected > 0, nil
}

// MarkFailed flips a pending order to failed
func (r *Repository) MarkFailed(ctx context.Context, orderNo string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $2 WHERE order_no = $3 AND status = $4`,
		StatusFailed, time.Now().UTC(), orderNo, StatusPending)
	if err != nil {
		return fmt.Errorf("order repository mark failed: %w", err)
	}
	return nil
}

// ListByUser returns a user's orders, newest first
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("order repository count: %w", err)
	}

	var orders []Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("order repository list: %w", err)
	}
	return orders, total, nil
}
