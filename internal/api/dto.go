package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tontine/internal/calculator"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/service"
)

type createSessionRequest struct {
	NumberOfMembers     *int             `json:"number_of_members"    validate:"required,gt=0"`
	MinimalContribution *decimal.Decimal `json:"minimal_contribution" validate:"required"`
	StartDate           string           `json:"start_date"           validate:"required,datetime=2006-01-02"`
	EndDate             string           `json:"end_date"             validate:"omitempty,datetime=2006-01-02"`
}

type closeSessionRequest struct {
	EndDate string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type enrollRequest struct {
	UserID        string `json:"user_id"         validate:"required"`
	NumberOfParts *int   `json:"number_of_parts" validate:"omitempty,gt=0"`
}

type recordPaymentRequest struct {
	PaymentDate string `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
}

type setWinnerRequest struct {
	WinnerUserID string `json:"winner_user_id" validate:"required"`
}

type registerRequest struct {
	Email     string `json:"email"      validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"   validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// amount renders a decimal as a JSON number without float rounding.
func amount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func date(t time.Time) string {
	return t.Format(models.DateLayout)
}

func optionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := date(*t)
	return &s
}

// parseOptionalDate parses an already validated YYYY-MM-DD value.
func parseOptionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := models.ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

type sessionView struct {
	ID                  string      `json:"id"`
	NumberOfMembers     int         `json:"number_of_members"`
	MinimalContribution json.Number `json:"minimal_contribution"`
	StartDate           string      `json:"start_date"`
	EndDate             *string     `json:"end_date"`
	CreatedAt           int64       `json:"created_at"`
}

func newSessionView(r *models.ContributionRun) sessionView {
	return sessionView{
		ID:                  r.ID,
		NumberOfMembers:     r.NumberOfMembers,
		MinimalContribution: amount(r.MinimalContribution),
		StartDate:           date(r.StartDate),
		EndDate:             optionalDate(r.EndDate),
		CreatedAt:           r.CreatedAt,
	}
}

type contributionView struct {
	ID           string      `json:"id"`
	SessionID    string      `json:"session_id"`
	MembershipID string      `json:"membership_id"`
	UserID       string      `json:"user_id"`
	Month        string      `json:"month"`
	Amount       json.Number `json:"amount"`
	Status       string      `json:"status"`
	WinnerUserID *string     `json:"winner_user_id"`
	Sequence     int         `json:"sequence"`
}

func newContributionView(c *models.Contribution) contributionView {
	v := contributionView{
		ID:           c.ID,
		SessionID:    c.RunID,
		MembershipID: c.MembershipID,
		UserID:       c.UserID,
		Month:        date(c.Month),
		Amount:       amount(c.Amount),
		Status:       string(c.Status),
		Sequence:     c.Sequence,
	}
	if c.HasWinner() {
		winner := c.WinnerUserID
		v.WinnerUserID = &winner
	}
	return v
}

type paymentView struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	ContributionID string      `json:"contribution_id"`
	Amount         json.Number `json:"amount"`
	Status         string      `json:"status"`
	PaymentDate    *string     `json:"payment_date"`
}

func newPaymentView(e *models.LedgerEntry) paymentView {
	return paymentView{
		ID:             e.ID,
		UserID:         e.UserID,
		ContributionID: e.ContributionID,
		Amount:         amount(e.Amount),
		Status:         string(e.Status),
		PaymentDate:    optionalDate(e.PaymentDate),
	}
}

type periodView struct {
	Index         int         `json:"index"`
	Month         string      `json:"month"`
	Status        string      `json:"status"`
	Contributions int         `json:"contributions"`
	Paid          int         `json:"paid"`
	Total         json.Number `json:"total"`
	Winners       []string    `json:"winners"`
}

func newPeriodView(p calculator.PeriodSummary) periodView {
	winners := p.Winners
	if winners == nil {
		winners = []string{}
	}
	return periodView{
		Index:         p.Index,
		Month:         date(p.Month),
		Status:        string(p.Status),
		Contributions: p.Contributions,
		Paid:          p.Paid,
		Total:         amount(p.Total),
		Winners:       winners,
	}
}

type balanceView struct {
	UserID        string      `json:"user_id"`
	Parts         int         `json:"number_of_parts"`
	TotalDue      json.Number `json:"total_due"`
	TotalPaid     json.Number `json:"total_paid"`
	Outstanding   json.Number `json:"outstanding"`
	PeriodsWon    int         `json:"periods_won"`
	TotalReceived json.Number `json:"total_received"`
}

func newBalanceView(b calculator.MemberBalance) balanceView {
	return balanceView{
		UserID:        b.UserID,
		Parts:         b.Parts,
		TotalDue:      amount(b.TotalDue),
		TotalPaid:     amount(b.TotalPaid),
		Outstanding:   amount(b.Outstanding),
		PeriodsWon:    b.PeriodsWon,
		TotalReceived: amount(b.TotalReceived),
	}
}

type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

func newUserView(u *models.User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

type sessionResponse struct {
	User  userView `json:"user"`
	Token string   `json:"token"`
}

func newSessionResponse(s *service.Session) sessionResponse {
	return sessionResponse{User: newUserView(s.User), Token: s.Token}
}

// mapSlice converts every element with fn, always returning a non-nil slice.
func mapSlice[T, V any](items []T, fn func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
