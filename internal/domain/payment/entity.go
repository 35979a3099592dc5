package payment

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Order is one credit pack purchase
type Order struct {
	ID              uuid.UUID `db:"id" json:"id"`
	UserID          uuid.UUID `db:"user_id" json:"user_id"`
	OrderNo         string    `db:"order_no" json:"order_no"`
	Pack            string    `db:"pack" json:"pack"`
	Credits         int64     `db:"credits" json:"credits"`
	AmountCents     int64     `db:"amount_cents" json:"amount_cents"`
	Currency        string    `db:"currency" json:"currency"`
	Status          string    `db:"status" json:"status"`
	Provider        string    `db:"provider" json:"provider"`
	CheckoutID      string    `db:"checkout_id" json:"-"`
	ProviderOrderID string    `db:"provider_order_id" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Pack is a purchasable credit bundle
type Pack struct {
	Name        string `json:"name"`
	Credits     int64  `json:"credits"`
	AmountCents int64  `json:"amount_cents"`
	ProductID   string `json:"-"`
}

// DefaultPacks returns the sellable credit bundles. Product IDs come from
// configuration since they differ between Creem environments.
func DefaultPacks(starterID, creatorID, studioID string) map[string]Pack {
	return map[string]Pack{
		"starter": {Name: "starter", Credits: 100, AmountCents: 490, ProductID: starterID},
		"creator": {Name: "creator", Credits: 300, AmountCents: 990, ProductID: creatorID},
		"studio":  {Name: "studio", Credits: 1000, AmountCents: 2490, ProductID: studioID},
	}
}
