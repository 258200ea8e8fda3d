package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the state of a single ledger entry.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

// LedgerEntry is one user's payment record for a contribution
// (a "user monthly contribution").
// Entries are created with their parent contribution and are mutated exactly once,
// from PENDING to PAID.
type LedgerEntry struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	// UserID is the user who owes this payment.
	UserID string

	// ContributionID is the parent contribution.
	ContributionID string

	// Amount is this user's share for the period.
	Amount decimal.Decimal

	// Status is PENDING until the payment is recorded.
	Status PaymentStatus

	// PaymentDate is the date the payment was recorded. Nil while pending.
	PaymentDate *time.Time
}

// Paid reports whether the entry has been settled.
func (e *LedgerEntry) Paid() bool {
	return e.Status == PaymentPaid
}

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Date truncates t to a calendar date at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
