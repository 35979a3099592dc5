package meme

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository handles meme persistence
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a meme repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a meme row
func (r *Repository) Create(ctx context.Context, m *Meme) error {
	query := `
		INSERT INTO memes (id, user_id, status, prompt, model, sheet_key, tile_count, credits_spent, fail_reason, created_at, updated_at)
		VALUES (:id, :user_id, :status, :prompt, :model, :sheet_key, :tile_count, :credits_spent, :fail_reason, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("meme repository create: %w", err)
	}
	return nil
}

// UpdateStatus transitions a meme's status
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status, failReason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE memes SET status = $1, fail_reason = $2, updated_at = $3 WHERE id = $4`,
		status, failReason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("meme repository update status: %w", err)
	}
	return nil
}

// GetByID returns a meme owned by the given user
func (r *Repository) GetByID(ctx context.Context, id, userID uuid.UUID) (*Meme, error) {
	var m Meme
	err := r.db.GetContext(ctx, &m,
		`SELECT * FROM memes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("meme repository get: %w", err)
	}
	return &m, nil
}

// ListByUser returns a user's memes, newest first
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Meme, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM memes WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("meme repository count: %w", err)
	}

	var memes []Meme
	err := r.db.SelectContext(ctx, &memes, `
		SELECT * FROM memes WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("meme repository list: %w", err)
	}
	return memes, total, nil
}

// Delete removes a meme row
func (r *Repository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM memes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("meme repository delete: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
