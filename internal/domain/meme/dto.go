package meme

import (
	"time"

	"github.com/google/uuid"
)

// MemeResponse is the public view of a meme with resolved asset URLs
type MemeResponse struct {
	ID           uuid.UUID `json:"id"`
	Status       string    `json:"status"`
	Model        string    `json:"model"`
	SheetURL     string    `json:"sheet_url,omitempty"`
	TileURLs     []string  `json:"tile_urls,omitempty"`
	CreditsSpent int64     `json:"credits_spent"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewMemeResponse builds the public view of a meme
func NewMemeResponse(m *Meme, sheetURL string, tileURLs []string) MemeResponse {
	resp := MemeResponse{
		ID:           m.ID,
		Status:       m.Status,
		Model:        m.Model,
		CreditsSpent: m.CreditsSpent,
		CreatedAt:    m.CreatedAt,
	}
	if m.Status == StatusCompleted {
		resp.SheetURL = sheetURL
		resp.TileURLs = tileURLs
	}
	return resp
}
