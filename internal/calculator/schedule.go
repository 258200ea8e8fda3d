package calculator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tontine/internal/models"
)

// PeriodStride is the fixed spacing between two scheduled periods.
// Periods are not calendar-month aware.
const PeriodStride = 30

// Slot is one planned contribution: a period index, its month and the
// membership it is generated for.
type Slot struct {
	Index      int
	Month      time.Time
	Membership *models.Membership
	Amount     decimal.Decimal
}

// MonthsDuration returns the schedule length of a run: the sum of the parts
// held across all memberships.
func MonthsDuration(memberships []*models.Membership) int {
	total := 0
	for _, m := range memberships {
		total += m.NumberOfParts
	}
	return total
}

// PeriodMonth returns the date anchor of the period at index.
func PeriodMonth(start time.Time, index int) time.Time {
	return models.Date(start).AddDate(0, 0, PeriodStride*index)
}

// BuildSchedule plans the contributions of a run.
//
// Algorithm:
//   - months = Σ parts over all memberships
//   - for each period index i in [0, months): month = start + 30*i days
//   - for each membership (in the given order): one slot with
//     amount = parts × minimal contribution
//
// The result therefore holds months × len(memberships) slots, ordered by
// period index then membership order.
func BuildSchedule(run *models.ContributionRun, memberships []*models.Membership) ([]Slot, error) {
	if run == nil {
		return nil, fmt.Errorf("run is required")
	}
	if !run.MinimalContribution.IsPositive() {
		return nil, fmt.Errorf("minimal contribution must be positive, got %s", run.MinimalContribution)
	}
	for _, m := range memberships {
		if m.NumberOfParts <= 0 {
			return nil, fmt.Errorf("membership %s has non-positive parts: %d", m.ID, m.NumberOfParts)
		}
	}

	months := MonthsDuration(memberships)
	slots := make([]Slot, 0, months*len(memberships))
	for i := 0; i < months; i++ {
		month := PeriodMonth(run.StartDate, i)
		for _, m := range memberships {
			slots = append(slots, Slot{
				Index:      i,
				Month:      month,
				Membership: m,
				Amount:     m.PartAmount(run),
			})
		}
	}
	return slots, nil
}
