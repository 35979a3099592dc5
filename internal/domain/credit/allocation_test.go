package credit

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func activeGrant(remaining int64, expiresAt *time.Time) Transaction {
	return Transaction{
		ID:               uuid.New(),
		TransactionType:  TypeGrant,
		Status:           StatusActive,
		Credits:          remaining,
		RemainingCredits: remaining,
		ExpiresAt:        expiresAt,
	}
}

func daysFromNow(d int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, d)
	return &t
}

func TestPlanDraws(t *testing.T) {
	tests := []struct {
		name       string
		grants     []Transaction
		amount     int64
		wantErr    error
		wantCounts []int64
	}{
		{
			name:       "single grant covers amount",
			grants:     []Transaction{activeGrant(10, daysFromNow(30))},
			amount:     3,
			wantCounts: []int64{3},
		},
		{
			name: "spans multiple grants in order",
			grants: []Transaction{
				activeGrant(2, daysFromNow(10)),
				activeGrant(5, daysFromNow(20)),
			},
			amount:     4,
			wantCounts: []int64{2, 2},
		},
		{
			name: "exact drain uses every grant",
			grants: []Transaction{
				activeGrant(2, daysFromNow(10)),
				activeGrant(3, nil),
			},
			amount:     5,
			wantCounts: []int64{2, 3},
		},
		{
			name: "skips drained and inactive grants",
			grants: []Transaction{
				{ID: uuid.New(), Status: StatusUsed, RemainingCredits: 0},
				{ID: uuid.New(), Status: StatusExpired, RemainingCredits: 7},
				activeGrant(4, nil),
			},
			amount:     4,
			wantCounts: []int64{4},
		},
		{
			name:    "insufficient across all grants",
			grants:  []Transaction{activeGrant(1, daysFromNow(5)), activeGrant(1, nil)},
			amount:  3,
			wantErr: ErrInsufficientCredits,
		},
		{
			name:    "no grants at all",
			grants:  nil,
			amount:  1,
			wantErr: ErrInsufficientCredits,
		},
		{
			name:    "zero amount rejected",
			grants:  []Transaction{activeGrant(10, nil)},
			amount:  0,
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount rejected",
			grants:  []Transaction{activeGrant(10, nil)},
			amount:  -2,
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draws, err := planDraws(tt.grants, tt.amount)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("planDraws() error = %v, want %v", err, tt.wantErr)
				}
				if draws != nil {
					t.Fatalf("planDraws() returned partial plan on error: %v", draws)
				}
				return
			}
			if err != nil {
				t.Fatalf("planDraws() error = %v", err)
			}
			if len(draws) != len(tt.wantCounts) {
				t.Fatalf("planDraws() = %d draws, want %d", len(draws), len(tt.wantCounts))
			}
			var sum int64
			for i, d := range draws {
				if d.Amount != tt.wantCounts[i] {
					t.Errorf("draw %d amount = %d, want %d", i, d.Amount, tt.wantCounts[i])
				}
				sum += d.Amount
			}
			if sum != tt.amount {
				t.Errorf("draw total = %d, want %d", sum, tt.amount)
			}
		})
	}
}

func TestPlanDrawsOldestExpiringFirst(t *testing.T) {
	soon := activeGrant(5, daysFromNow(1))
	later := activeGrant(5, daysFromNow(100))
	never := activeGrant(5, nil)

	draws, err := planDraws([]Transaction{soon, later, never}, 7)
	if err != nil {
		t.Fatalf("planDraws() error = %v", err)
	}

	if len(draws) != 2 {
		t.Fatalf("planDraws() = %d draws, want 2", len(draws))
	}
	if draws[0].GrantID != soon.ID || draws[0].Amount != 5 {
		t.Errorf("first draw should drain the soonest-expiring grant")
	}
	if draws[1].GrantID != later.ID || draws[1].Amount != 2 {
		t.Errorf("second draw should come from the next-expiring grant")
	}
	if draws[0].Remaining != 0 || draws[1].Remaining != 3 {
		t.Errorf("remaining after draws = %d/%d, want 0/3", draws[0].Remaining, draws[1].Remaining)
	}
}
