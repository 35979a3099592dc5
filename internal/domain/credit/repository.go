package credit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 5 * time.Second

// Repository handles credit ledger persistence
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a credit repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// drawOrder locks active grants oldest-expiring-first so credits closest to
// expiry are always spent before longer-lived ones.
const drawOrder = "ORDER BY expires_at ASC NULLS LAST, created_at ASC"

// Insert stores a single ledger row
func (r *Repository) Insert(ctx context.Context, tx *Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO credit_transactions (
			id, user_id, transaction_type, transaction_scene, credits,
			remaining_credits, status, expires_at, order_no, subscription_no,
			transaction_no, description, metadata, created_at
		) VALUES (
			:id, :user_id, :transaction_type, :transaction_scene, :credits,
			:remaining_credits, :status, :expires_at, :order_no, :subscription_no,
			:transaction_no, :description, :metadata, :created_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, tx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrderNo
		}
		return wrapDBError("failed to insert credit transaction", err)
	}
	return nil
}

// ConsumeResult reports a completed consume: the audit row plus the grant
// rows drawn from, in draw order.
type ConsumeResult struct {
	Transaction *Transaction `json:"transaction"`
	Draws       []Draw       `json:"draws"`
}

// Consume atomically draws amount credits from the user's active grants and
// records a consume audit row. All-or-nothing: when the active grants cannot
// cover the amount, nothing is written and ErrInsufficientCredits is returned.
func (r *Repository) Consume(ctx context.Context, userID uuid.UUID, amount int64, scene, description string, metadata json.RawMessage) (*ConsumeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	dbTx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapDBError("failed to begin transaction", err)
	}
	defer dbTx.Rollback()

	now := time.Now().UTC()

	// Lazily expire due grants inside the same transaction so they can never
	// be drawn from.
	if _, err := dbTx.ExecContext(ctx, `
		UPDATE credit_transactions
		SET status = $1
		WHERE user_id = $2 AND status = $3 AND expires_at IS NOT NULL AND expires_at <= $4`,
		StatusExpired, userID, StatusActive, now,
	); err != nil {
		return nil, wrapDBError("failed to expire due grants", err)
	}

	var grants []Transaction
	if err := dbTx.SelectContext(ctx, &grants, `
		SELECT * FROM credit_transactions
		WHERE user_id = $1 AND transaction_type = $2 AND status = $3 AND remaining_credits > 0
		`+drawOrder+`
		FOR UPDATE`,
		userID, TypeGrant, StatusActive,
	); err != nil {
		return nil, wrapDBError("failed to lock active grants", err)
	}

	draws, err := planDraws(grants, amount)
	if err != nil {
		return nil, err
	}

	for _, d := range draws {
		status := StatusActive
		if d.Remaining == 0 {
			status = StatusUsed
		}
		if _, err := dbTx.ExecContext(ctx, `
			UPDATE credit_transactions
			SET remaining_credits = $1, status = $2
			WHERE id = $3`,
			d.Remaining, status, d.GrantID,
		); err != nil {
			return nil, wrapDBError("failed to draw from grant", err)
		}
	}

	record := &Transaction{
		ID:               uuid.New(),
		UserID:           userID,
		TransactionType:  TypeConsume,
		TransactionScene: scene,
		Credits:          amount,
		RemainingCredits: 0,
		Status:           StatusUsed,
		Description:      description,
		Metadata:         metadata,
		CreatedAt:        now,
	}

	if _, err := dbTx.NamedExecContext(ctx, `
		INSERT INTO credit_transactions (
			id, user_id, transaction_type, transaction_scene, credits,
			remaining_credits, status, expires_at, order_no, subscription_no,
			transaction_no, description, metadata, created_at
		) VALUES (
			:id, :user_id, :transaction_type, :transaction_scene, :credits,
			:remaining_credits, :status, :expires_at, :order_no, :subscription_no,
			:transaction_no, :description, :metadata, :created_at
		)`, record,
	); err != nil {
		return nil, wrapDBError("failed to record consume", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, wrapDBError("failed to commit", err)
	}
	return &ConsumeResult{Transaction: record, Draws: draws}, nil
}

// GetBalance sums the remaining credits of unexpired active grants. Grants
// whose expiry has passed are excluded even before the sweep flips them.
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row struct {
		Credits          int64      `db:"credits"`
		ActiveGrants     int        `db:"active_grants"`
		NearestExpiresAt *time.Time `db:"nearest_expires_at"`
	}

	err := r.db.GetContext(ctx, &row, `
		SELECT
			COALESCE(SUM(remaining_credits), 0) AS credits,
			COUNT(*) AS active_grants,
			MIN(expires_at) AS nearest_expires_at
		FROM credit_transactions
		WHERE user_id = $1
		  AND transaction_type = $2
		  AND status = $3
		  AND remaining_credits > 0
		  AND (expires_at IS NULL OR expires_at > NOW())`,
		userID, TypeGrant, StatusActive,
	)
	if err != nil {
		return nil, wrapDBError("failed to get balance", err)
	}

	return &Balance{
		UserID:           userID,
		Credits:          row.Credits,
		ActiveGrants:     row.ActiveGrants,
		NearestExpiresAt: row.NearestExpiresAt,
	}, nil
}

// SweepExpired flips every due active grant to expired. Idempotent: a second
// run over the same rows matches nothing.
func (r *Repository) SweepExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE credit_transactions
		SET status = $1
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= NOW()`,
		StatusExpired, StatusActive,
	)
	if err != nil {
		return 0, wrapDBError("failed to sweep expired grants", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBError("failed to count swept grants", err)
	}
	return affected, nil
}

// ListByUser returns a user's ledger rows, newest first
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int64
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM credit_transactions WHERE user_id = $1`, userID,
	); err != nil {
		return nil, 0, wrapDBError("failed to count transactions", err)
	}

	var txs []Transaction
	if err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	); err != nil {
		return nil, 0, wrapDBError("failed to list transactions", err)
	}
	return txs, total, nil
}

// SearchFilter narrows a ledger search; zero values are ignored
type SearchFilter struct {
	UserID        uuid.UUID
	Type          string
	Scene         string
	Status        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Search returns ledger rows matching the filter, newest first
func (r *Repository) Search(ctx context.Context, filter SearchFilter) ([]Transaction, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	conditions := []string{"1=1"}
	args := []interface{}{}
	i := 1

	addCondition := func(clause string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(clause, i))
		args = append(args, value)
		i++
	}

	if filter.UserID != uuid.Nil {
		addCondition("user_id = $%d", filter.UserID)
	}
	if filter.Type != "" {
		addCondition("transaction_type = $%d", filter.Type)
	}
	if filter.Scene != "" {
		addCondition("transaction_scene = $%d", filter.Scene)
	}
	if filter.Status != "" {
		addCondition("status = $%d", filter.Status)
	}
	if filter.CreatedAfter != nil {
		addCondition("created_at >= $%d", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		addCondition("created_at <= $%d", *filter.CreatedBefore)
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM credit_transactions WHERE "+where, args...,
	); err != nil {
		return nil, 0, wrapDBError("failed to count search results", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := fmt.Sprintf(
		"SELECT * FROM credit_transactions WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, i, i+1,
	)
	args = append(args, limit, filter.Offset)

	var txs []Transaction
	if err := r.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, 0, wrapDBError("failed to search transactions", err)
	}
	return txs, total, nil
}

// FindByOrderNo looks up a ledger row by payment order number
func (r *Repository) FindByOrderNo(ctx context.Context, orderNo, txType string) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var tx Transaction
	err := r.db.GetContext(ctx, &tx, `
		SELECT * FROM credit_transactions
		WHERE order_no = $1 AND transaction_type = $2`,
		orderNo, txType,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapDBError("failed to find transaction by order", err)
	}
	return &tx, nil
}

// GetByID returns a single ledger row
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var tx Transaction
	err := r.db.GetContext(ctx, &tx,
		`SELECT * FROM credit_transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapDBError("failed to get transaction", err)
	}
	return &tx, nil
}

// isUniqueViolation reports postgres unique constraint violations (23505)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// wrapDBError tags retryable failures (serialization, deadlock, connection
// loss) with ErrTransient so callers can retry safely.
func wrapDBError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := pqErr.Code.Class()
		if class == "40" || class == "08" {
			return fmt.Errorf("%w: %s: %v", ErrTransient, msg, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
