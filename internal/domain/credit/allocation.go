package credit

import "github.com/google/uuid"

// Draw is one planned deduction against a single grant row
type Draw struct {
	GrantID   uuid.UUID `json:"grant_id"`
	Amount    int64     `json:"amount"`
	Remaining int64     `json:"remaining"` // remaining_credits after the draw
}

// planDraws distributes amount across the given grants, which must already be
// ordered oldest-expiring-first. Grants that are expired or have nothing left
// are skipped. Returns ErrInsufficientCredits when the grants cannot cover the
// full amount; no partial plan is ever returned.
func planDraws(grants []Transaction, amount int64) ([]Draw, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var draws []Draw
	left := amount
	for _, g := range grants {
		if left == 0 {
			break
		}
		if g.RemainingCredits <= 0 || g.Status != StatusActive {
			continue
		}

		take := g.RemainingCredits
		if take > left {
			take = left
		}
		draws = append(draws, Draw{
			GrantID:   g.ID,
			Amount:    take,
			Remaining: g.RemainingCredits - take,
		})
		left -= take
	}

	if left > 0 {
		return nil, ErrInsufficientCredits
	}
	return draws, nil
}
