package gormdb

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tontine/internal/models"
)

// MigrateModels lists the row types created by AutoMigrate, parents first.
var MigrateModels = []any{
	&userRow{},
	&runRow{},
	&membershipRow{},
	&contributionRow{},
	&ledgerEntryRow{},
}

type userRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;not null"`
	FirstName    string `gorm:"not null"`
	LastName     string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"size:16;not null"`
	CreatedAt    int64
	UpdatedAt    int64
}

func (userRow) TableName() string { return "users" }

func (r *userRow) toModel() *models.User {
	return &models.User{
		ID:           r.ID,
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PasswordHash: r.PasswordHash,
		Role:         models.Role(r.Role),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func userFromModel(u *models.User) *userRow {
	return &userRow{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

type runRow struct {
	ID                  string          `gorm:"primaryKey;size:36"`
	NumberOfMembers     int             `gorm:"not null"`
	MinimalContribution decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	StartDate           time.Time       `gorm:"type:date;not null"`
	EndDate             *time.Time      `gorm:"type:date"`
	CreatedAt           int64
}

func (runRow) TableName() string { return "contribution_runs" }

func (r *runRow) toModel() *models.ContributionRun {
	run := &models.ContributionRun{
		ID:                  r.ID,
		NumberOfMembers:     r.NumberOfMembers,
		MinimalContribution: r.MinimalContribution,
		StartDate:           models.Date(r.StartDate),
		CreatedAt:           r.CreatedAt,
	}
	if r.EndDate != nil {
		end := models.Date(*r.EndDate)
		run.EndDate = &end
	}
	return run
}

type membershipRow struct {
	ID            string `gorm:"primaryKey;size:36"`
	RunID         string `gorm:"size:36;not null;index;uniqueIndex:uq_membership_user_run,priority:2"`
	UserID        string `gorm:"size:36;not null;uniqueIndex:uq_membership_user_run,priority:1"`
	NumberOfParts int    `gorm:"not null;check:number_of_parts > 0"`
	CreatedAt     int64  `gorm:"autoCreateTime:nano"`
}

func (membershipRow) TableName() string { return "memberships" }

func (r *membershipRow) toModel() *models.Membership {
	return &models.Membership{
		ID:            r.ID,
		RunID:         r.RunID,
		UserID:        r.UserID,
		NumberOfParts: r.NumberOfParts,
		CreatedAt:     r.CreatedAt,
	}
}

type contributionRow struct {
	ID           string          `gorm:"primaryKey;size:36"`
	RunID        string          `gorm:"size:36;not null;index"`
	MembershipID string          `gorm:"size:36;not null"`
	Month        time.Time       `gorm:"type:date;not null"`
	Amount       decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Status       string          `gorm:"size:16;not null;default:PENDING"`
	WinnerUserID *string         `gorm:"size:36"`
	Sequence     int             `gorm:"not null"`
	CreatedAt    int64
}

func (contributionRow) TableName() string { return "contributions" }

// contributionView is a contribution joined with its membership's user.
// Columns are spelled out since gorm does not scan into unexported embeds.
type contributionView struct {
	ID           string          `gorm:"column:id"`
	RunID        string          `gorm:"column:run_id"`
	MembershipID string          `gorm:"column:membership_id"`
	UserID       string          `gorm:"column:user_id"`
	Month        time.Time       `gorm:"column:month"`
	Amount       decimal.Decimal `gorm:"column:amount"`
	Status       string          `gorm:"column:status"`
	WinnerUserID *string         `gorm:"column:winner_user_id"`
	Sequence     int             `gorm:"column:sequence"`
	CreatedAt    int64           `gorm:"column:created_at"`
}

func (r *contributionView) toModel() *models.Contribution {
	c := &models.Contribution{
		ID:           r.ID,
		RunID:        r.RunID,
		MembershipID: r.MembershipID,
		UserID:       r.UserID,
		Month:        models.Date(r.Month),
		Amount:       r.Amount,
		Status:       models.ContributionStatus(r.Status),
		Sequence:     r.Sequence,
		CreatedAt:    r.CreatedAt,
	}
	if r.WinnerUserID != nil {
		c.WinnerUserID = *r.WinnerUserID
	}
	return c
}

type ledgerEntryRow struct {
	ID             string          `gorm:"primaryKey;size:36"`
	UserID         string          `gorm:"size:36;not null;index"`
	ContributionID string          `gorm:"size:36;not null;index"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Status         string          `gorm:"size:16;not null;default:PENDING"`
	PaymentDate    *time.Time      `gorm:"type:date"`
}

func (ledgerEntryRow) TableName() string { return "ledger_entries" }

func (r *ledgerEntryRow) toModel() *models.LedgerEntry {
	e := &models.LedgerEntry{
		ID:             r.ID,
		UserID:         r.UserID,
		ContributionID: r.ContributionID,
		Amount:         r.Amount,
		Status:         models.PaymentStatus(r.Status),
	}
	if r.PaymentDate != nil {
		d := models.Date(*r.PaymentDate)
		e.PaymentDate = &d
	}
	return e
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
