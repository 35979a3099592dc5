package credit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var validScenes = map[string]bool{
	SceneSignupGift:     true,
	ScenePurchase:       true,
	SceneAdminGrant:     true,
	SceneMemeGeneration: true,
}

// GrantOptions configures a credit grant
type GrantOptions struct {
	Scene          string
	ExpiresInDays  *int // nil means the grant never expires; 0 expires immediately
	OrderNo        string
	SubscriptionNo string
	TransactionNo  string
	Description    string
	Metadata       json.RawMessage
}

// Days wraps a validity span for GrantOptions.ExpiresInDays.
func Days(n int) *int { return &n }

// ConsumeOptions configures a credit consume
type ConsumeOptions struct {
	Scene       string
	Description string
	Metadata    json.RawMessage
}

// Service owns the credit ledger business rules
type Service struct {
	repo *Repository
}

// NewService creates a credit service
func NewService(db *sqlx.DB) *Service {
	return &Service{repo: NewRepository(db)}
}

// Grant issues credits to a user. When opts.OrderNo is set the grant is
// idempotent per payment order: replaying the same order returns
// ErrDuplicateOrderNo without writing a second grant.
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, amount int64, opts GrantOptions) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !validScenes[opts.Scene] {
		return nil, ErrInvalidScene
	}

	if opts.OrderNo != "" {
		existing, err := s.repo.FindByOrderNo(ctx, opts.OrderNo, TypeGrant)
		if err == nil && existing != nil {
			return existing, ErrDuplicateOrderNo
		}
		if err != nil && err != ErrNotFound {
			return nil, err
		}
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if opts.ExpiresInDays != nil {
		t := now.AddDate(0, 0, *opts.ExpiresInDays)
		expiresAt = &t
	}

	tx := &Transaction{
		ID:               uuid.New(),
		UserID:           userID,
		TransactionType:  TypeGrant,
		TransactionScene: opts.Scene,
		Credits:          amount,
		RemainingCredits: amount,
		Status:           StatusActive,
		ExpiresAt:        expiresAt,
		OrderNo:          opts.OrderNo,
		SubscriptionNo:   opts.SubscriptionNo,
		TransactionNo:    opts.TransactionNo,
		Description:      opts.Description,
		Metadata:         opts.Metadata,
		CreatedAt:        now,
	}

	if err := s.repo.Insert(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Consume spends amount credits from the user's active grants, drawing from
// the grant closest to expiry first. All-or-nothing. The result lists the
// grant rows drawn from for audit.
func (s *Service) Consume(ctx context.Context, userID uuid.UUID, amount int64, opts ConsumeOptions) (*ConsumeResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !validScenes[opts.Scene] {
		return nil, ErrInvalidScene
	}
	return s.repo.Consume(ctx, userID, amount, opts.Scene, opts.Description, opts.Metadata)
}

// GetBalance returns the user's spendable credit summary
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	return s.repo.GetBalance(ctx, userID)
}

// SweepExpired marks every due grant expired and returns how many were swept
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.SweepExpired(ctx)
}

// ListTransactions returns a user's ledger history, newest first
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// SearchTransactions returns ledger rows matching the filter (admin use)
func (s *Service) SearchTransactions(ctx context.Context, filter SearchFilter) ([]Transaction, int64, error) {
	return s.repo.Search(ctx, filter)
}

// FindByOrderNo looks up a grant by payment order number
func (s *Service) FindByOrderNo(ctx context.Context, orderNo string) (*Transaction, error) {
	return s.repo.FindByOrderNo(ctx, orderNo, TypeGrant)
}
