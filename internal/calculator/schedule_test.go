package calculator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tontine/internal/models"
)

func testRun(minimal int64) *models.ContributionRun {
	return &models.ContributionRun{
		ID:                  "run-1",
		NumberOfMembers:     2,
		MinimalContribution: decimal.NewFromInt(minimal),
		StartDate:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func membership(id, userID string, parts int) *models.Membership {
	return &models.Membership{ID: id, RunID: "run-1", UserID: userID, NumberOfParts: parts}
}

func TestBuildSchedule(t *testing.T) {
	tests := []struct {
		name         string
		minimal      int64
		memberships  []*models.Membership
		wantErr      bool
		validateFunc func(t *testing.T, slots []Slot)
	}{
		{
			name:        "single member with one part",
			minimal:     100,
			memberships: []*models.Membership{membership("m1", "alice", 1)},
			validateFunc: func(t *testing.T, slots []Slot) {
				if len(slots) != 1 {
					t.Fatalf("expected 1 slot, got %d", len(slots))
				}
				if !slots[0].Amount.Equal(decimal.NewFromInt(100)) {
					t.Errorf("amount = %s, want 100", slots[0].Amount)
				}
				want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
				if !slots[0].Month.Equal(want) {
					t.Errorf("month = %v, want %v", slots[0].Month, want)
				}
			},
		},
		{
			name:    "fan-out is months times memberships",
			minimal: 50,
			memberships: []*models.Membership{
				membership("m1", "alice", 2),
				membership("m2", "bob", 1),
				membership("m3", "carol", 3),
			},
			validateFunc: func(t *testing.T, slots []Slot) {
				// Σparts = 6 months, 3 memberships -> 18 slots
				if len(slots) != 18 {
					t.Fatalf("expected 18 slots, got %d", len(slots))
				}
				for _, s := range slots {
					want := s.Membership.PartAmount(testRun(50))
					if !s.Amount.Equal(want) {
						t.Errorf("slot %d/%s amount = %s, want %s", s.Index, s.Membership.ID, s.Amount, want)
					}
				}
				// Ordered by period index, then membership order
				if slots[0].Membership.ID != "m1" || slots[1].Membership.ID != "m2" || slots[2].Membership.ID != "m3" {
					t.Errorf("unexpected membership order in first period")
				}
				if slots[3].Index != 1 {
					t.Errorf("slot 3 index = %d, want 1", slots[3].Index)
				}
			},
		},
		{
			name:    "fixed thirty day stride",
			minimal: 10,
			memberships: []*models.Membership{
				membership("m1", "alice", 3),
			},
			validateFunc: func(t *testing.T, slots []Slot) {
				want := []time.Time{
					time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
					time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
					time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), // 2024 is a leap year
				}
				for i, s := range slots {
					if !s.Month.Equal(want[i]) {
						t.Errorf("period %d month = %s, want %s", i, s.Month.Format(models.DateLayout), want[i].Format(models.DateLayout))
					}
				}
			},
		},
		{
			name:        "no memberships - empty schedule",
			minimal:     100,
			memberships: nil,
			validateFunc: func(t *testing.T, slots []Slot) {
				if len(slots) != 0 {
					t.Errorf("expected empty schedule, got %d slots", len(slots))
				}
			},
		},
		{
			name:        "zero parts should error",
			minimal:     100,
			memberships: []*models.Membership{membership("m1", "alice", 0)},
			wantErr:     true,
		},
		{
			name:        "zero minimal contribution should error",
			minimal:     0,
			memberships: []*models.Membership{membership("m1", "alice", 1)},
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := BuildSchedule(testRun(tt.minimal), tt.memberships)
			if (err != nil) != tt.wantErr {
				t.Errorf("BuildSchedule() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.validateFunc != nil {
				tt.validateFunc(t, slots)
			}
		})
	}
}

func TestMonthsDuration(t *testing.T) {
	got := MonthsDuration([]*models.Membership{
		membership("m1", "alice", 2),
		membership("m2", "bob", 5),
	})
	if got != 7 {
		t.Errorf("MonthsDuration() = %d, want 7", got)
	}
}
