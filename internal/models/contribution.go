package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContributionStatus is the settlement state of a scheduled contribution.
type ContributionStatus string

const (
	// ContributionPending means at least one ledger entry is unpaid and no winner is set.
	ContributionPending ContributionStatus = "PENDING"
	// ContributionPaid means every ledger entry under the contribution is paid.
	ContributionPaid ContributionStatus = "PAID"
	// ContributionReceived means a winner has been designated for the payout.
	ContributionReceived ContributionStatus = "RECEIVED"
)

// Valid reports whether s is a known contribution status.
func (s ContributionStatus) Valid() bool {
	switch s {
	case ContributionPending, ContributionPaid, ContributionReceived:
		return true
	}
	return false
}

// Contribution is one scheduled period obligation.
// Each contribution is tied to one month and to the membership it was generated for.
type Contribution struct {
	// ID is the unique identifier for the contribution (UUID format).
	ID string

	// RunID is the run this contribution belongs to.
	RunID string

	// MembershipID is the membership the contribution was generated for.
	MembershipID string

	// UserID is the user of MembershipID, denormalized for listings.
	UserID string

	// Month is the date anchor of the period (start date + 30 days per period).
	Month time.Time

	// Amount is the membership's parts times the run's minimal contribution.
	Amount decimal.Decimal

	// Status is PENDING until settled, then PAID or RECEIVED.
	Status ContributionStatus

	// WinnerUserID is the payout recipient. Empty until a winner is set.
	WinnerUserID string

	// Sequence is the position of the contribution within its run, monotonic
	// across repeated schedule generations.
	Sequence int

	// CreatedAt is the Unix timestamp when the contribution was generated.
	CreatedAt int64
}

// HasWinner reports whether a payout recipient has been designated.
func (c *Contribution) HasWinner() bool {
	return c.WinnerUserID != ""
}
