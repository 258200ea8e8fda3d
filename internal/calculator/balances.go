package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tontine/internal/models"
)

// MemberBalance represents the standing of one member within a run.
type MemberBalance struct {
	UserID        string
	Parts         int
	TotalDue      decimal.Decimal // Sum of all ledger entries for this member
	TotalPaid     decimal.Decimal // Sum of paid ledger entries
	Outstanding   decimal.Decimal // TotalDue - TotalPaid
	PeriodsWon    int
	TotalReceived decimal.Decimal // Sum of contributions this member won
}

// CalculateSessionBalances computes per-member totals for a run.
//
// Algorithm:
//   - every membership gets a balance row, even without ledger entries
//   - each ledger entry adds to its user's due amount, and to paid when settled
//   - each contribution with a winner credits the winner with its amount
//
// Entries and winners for users without a membership are ignored.
// Rows are ordered by user ID.
func CalculateSessionBalances(
	memberships []*models.Membership,
	contributions []*models.Contribution,
	entries []*models.LedgerEntry,
) []MemberBalance {
	balances := make(map[string]*MemberBalance, len(memberships))
	for _, m := range memberships {
		balances[m.UserID] = &MemberBalance{
			UserID:        m.UserID,
			Parts:         m.NumberOfParts,
			TotalDue:      decimal.Zero,
			TotalPaid:     decimal.Zero,
			TotalReceived: decimal.Zero,
		}
	}

	for _, e := range entries {
		bal, ok := balances[e.UserID]
		if !ok {
			continue
		}
		bal.TotalDue = bal.TotalDue.Add(e.Amount)
		if e.Paid() {
			bal.TotalPaid = bal.TotalPaid.Add(e.Amount)
		}
	}

	for _, c := range contributions {
		if !c.HasWinner() {
			continue
		}
		bal, ok := balances[c.WinnerUserID]
		if !ok {
			continue
		}
		bal.PeriodsWon++
		bal.TotalReceived = bal.TotalReceived.Add(c.Amount)
	}

	result := make([]MemberBalance, 0, len(balances))
	for _, bal := range balances {
		bal.Outstanding = bal.TotalDue.Sub(bal.TotalPaid)
		result = append(result, *bal)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})
	return result
}
