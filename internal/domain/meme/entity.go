package meme

import (
	"time"

	"github.com/google/uuid"
)

// Meme statuses
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Meme is one generated sticker sheet and its tiles
type Meme struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	Status       string    `db:"status" json:"status"`
	Prompt       string    `db:"prompt" json:"-"`
	Model        string    `db:"model" json:"model"`
	SheetKey     string    `db:"sheet_key" json:"-"`
	TileCount    int       `db:"tile_count" json:"tile_count"`
	CreditsSpent int64     `db:"credits_spent" json:"credits_spent"`
	FailReason   string    `db:"fail_reason" json:"fail_reason,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
