package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContributionRun represents a rotating-contribution session.
// A run is created once and is immutable afterwards except for EndDate.
type ContributionRun struct {
	// ID is the unique identifier for the run (UUID format).
	ID string

	// NumberOfMembers is the declared capacity of the run.
	// It is advisory only: enrollment does not check it.
	NumberOfMembers int

	// MinimalContribution is the monthly amount paid for one part.
	MinimalContribution decimal.Decimal

	// StartDate anchors the first period of the schedule.
	StartDate time.Time

	// EndDate is set when the run is closed. Nil while the run is open.
	EndDate *time.Time

	// CreatedAt is the Unix timestamp when the run was created.
	CreatedAt int64
}

// Membership binds one user to one run.
// There is at most one membership per (user, run) pair.
type Membership struct {
	// ID is the unique identifier for the membership (UUID format).
	ID string

	// RunID is the run this membership belongs to.
	RunID string

	// UserID is the enrolled user.
	UserID string

	// NumberOfParts weights both the user's monthly payment and the
	// number of periods the user adds to the schedule.
	NumberOfParts int

	// CreatedAt is the Unix timestamp (nanoseconds) of enrollment.
	// Schedules are generated in enrollment order.
	CreatedAt int64
}

// PartAmount returns the amount owed each period for this membership.
func (m *Membership) PartAmount(run *ContributionRun) decimal.Decimal {
	return run.MinimalContribution.Mul(decimal.NewFromInt(int64(m.NumberOfParts)))
}
