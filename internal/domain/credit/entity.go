package credit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Transaction types
const (
	TypeGrant   = "grant"
	TypeConsume = "consume"
)

// Grant statuses
const (
	StatusActive  = "active"
	StatusUsed    = "used"
	StatusExpired = "expired"
)

// Transaction scenes
const (
	SceneSignupGift     = "signup_gift"
	ScenePurchase       = "purchase"
	SceneAdminGrant     = "admin_grant"
	SceneMemeGeneration = "meme_generation"
)

// Transaction is one row of the credit ledger. Grants carry a positive
// credit amount and a remaining balance that is drawn down by consumes;
// consume rows are audit records with remaining_credits always zero.
type Transaction struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	UserID           uuid.UUID       `db:"user_id" json:"user_id"`
	TransactionType  string          `db:"transaction_type" json:"transaction_type"`
	TransactionScene string          `db:"transaction_scene" json:"transaction_scene"`
	Credits          int64           `db:"credits" json:"credits"`
	RemainingCredits int64           `db:"remaining_credits" json:"remaining_credits"`
	Status           string          `db:"status" json:"status"`
	ExpiresAt        *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
	OrderNo          string          `db:"order_no" json:"order_no,omitempty"`
	SubscriptionNo   string          `db:"subscription_no" json:"subscription_no,omitempty"`
	TransactionNo    string          `db:"transaction_no" json:"transaction_no,omitempty"`
	Description      string          `db:"description" json:"description,omitempty"`
	Metadata         json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// IsExpired reports whether the grant's expiry has passed at the given time.
// Grants without an expiry never expire.
func (t *Transaction) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// Balance is a user's spendable credit summary
type Balance struct {
	UserID           uuid.UUID  `json:"user_id"`
	Credits          int64      `json:"credits"`
	ActiveGrants     int        `json:"active_grants"`
	NearestExpiresAt *time.Time `json:"nearest_expires_at,omitempty"`
}
