package calculator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tontine/internal/models"
)

// AllPaid reports whether every ledger entry is paid.
// An empty set of entries is not considered settled.
func AllPaid(entries []*models.LedgerEntry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if !e.Paid() {
			return false
		}
	}
	return true
}

// NextStatus returns the status a contribution moves to once its unpaid
// entry count is known. Only PENDING contributions advance; PAID and
// RECEIVED are never reverted.
func NextStatus(current models.ContributionStatus, unpaid int) models.ContributionStatus {
	if current == models.ContributionPending && unpaid == 0 {
		return models.ContributionPaid
	}
	return current
}

// PeriodSummary aggregates the contributions scheduled for one month.
type PeriodSummary struct {
	Index         int
	Month         time.Time
	Contributions int
	Paid          int // PAID or RECEIVED
	Received      int
	Total         decimal.Decimal
	Status        models.ContributionStatus
	Winners       []string
}

// SummarizePeriods groups contributions by month into period-level
// settlement status.
//
// A period is RECEIVED when any of its contributions has a winner, PAID when
// every contribution is PAID (or RECEIVED), and PENDING otherwise.
func SummarizePeriods(contributions []*models.Contribution) []PeriodSummary {
	byMonth := make(map[time.Time]*PeriodSummary)
	for _, c := range contributions {
		month := models.Date(c.Month)
		p, ok := byMonth[month]
		if !ok {
			p = &PeriodSummary{Month: month, Total: decimal.Zero}
			byMonth[month] = p
		}
		p.Contributions++
		p.Total = p.Total.Add(c.Amount)
		switch c.Status {
		case models.ContributionPaid:
			p.Paid++
		case models.ContributionReceived:
			p.Paid++
			p.Received++
		}
		if c.HasWinner() && !contains(p.Winners, c.WinnerUserID) {
			p.Winners = append(p.Winners, c.WinnerUserID)
		}
	}

	periods := make([]PeriodSummary, 0, len(byMonth))
	for _, p := range byMonth {
		switch {
		case p.Received > 0:
			p.Status = models.ContributionReceived
		case p.Paid == p.Contributions:
			p.Status = models.ContributionPaid
		default:
			p.Status = models.ContributionPending
		}
		periods = append(periods, *p)
	}
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Month.Before(periods[j].Month)
	})
	for i := range periods {
		periods[i].Index = i
	}
	return periods
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
