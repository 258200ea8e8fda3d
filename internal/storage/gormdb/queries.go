package gormdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

// queries implements storage.Queries on a *gorm.DB, either the pool or a transaction.
type queries struct {
	db *gorm.DB
}

func (q *queries) CreateUser(ctx context.Context, user *models.User) error {
	err := q.db.WithContext(ctx).Create(userFromModel(user)).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", user.Email, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (q *queries) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	if err := q.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return row.toModel(), nil
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	if err := q.db.WithContext(ctx).Where("email = ?", email).Take(&row).Error; err != nil {
		return nil, notFound(err, "user", email)
	}
	return row.toModel(), nil
}

func (q *queries) CreateRun(ctx context.Context, run *models.ContributionRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().Unix()
	}
	row := &runRow{
		ID:                  run.ID,
		NumberOfMembers:     run.NumberOfMembers,
		MinimalContribution: run.MinimalContribution,
		StartDate:           models.Date(run.StartDate),
		EndDate:             run.EndDate,
		CreatedAt:           run.CreatedAt,
	}
	if err := q.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (q *queries) GetRun(ctx context.Context, runID string) (*models.ContributionRun, error) {
	var row runRow
	if err := q.db.WithContext(ctx).Where("id = ?", runID).Take(&row).Error; err != nil {
		return nil, notFound(err, "run", runID)
	}
	return row.toModel(), nil
}

func (q *queries) ListRuns(ctx context.Context) ([]*models.ContributionRun, error) {
	var rows []runRow
	if err := q.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs := make([]*models.ContributionRun, len(rows))
	for i := range rows {
		runs[i] = rows[i].toModel()
	}
	return runs, nil
}

func (q *queries) SetRunEndDate(ctx context.Context, runID string, endDate *time.Time) error {
	res := q.db.WithContext(ctx).Model(&runRow{}).Where("id = ?", runID).Update("end_date", endDate)
	if res.Error != nil {
		return fmt.Errorf("failed to update run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
	}
	return nil
}

func (q *queries) CreateMembership(ctx context.Context, m *models.Membership) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixNano()
	}
	row := &membershipRow{
		ID:            m.ID,
		RunID:         m.RunID,
		UserID:        m.UserID,
		NumberOfParts: m.NumberOfParts,
		CreatedAt:     m.CreatedAt,
	}
	err := q.db.WithContext(ctx).Create(row).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("membership of user %s in run %s: %w", m.UserID, m.RunID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

func (q *queries) GetMembership(ctx context.Context, runID, userID string) (*models.Membership, error) {
	var row membershipRow
	err := q.db.WithContext(ctx).Where("run_id = ? AND user_id = ?", runID, userID).Take(&row).Error
	if err != nil {
		return nil, notFound(err, "membership", userID)
	}
	return row.toModel(), nil
}

func (q *queries) ListMemberships(ctx context.Context, runID string) ([]*models.Membership, error) {
	var rows []membershipRow
	if err := q.db.WithContext(ctx).Where("run_id = ?", runID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	memberships := make([]*models.Membership, len(rows))
	for i := range rows {
		memberships[i] = rows[i].toModel()
	}
	return memberships, nil
}

func (q *queries) CreateContribution(ctx context.Context, c *models.Contribution) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}
	if c.Status == "" {
		c.Status = models.ContributionPending
	}
	row := &contributionRow{
		ID:           c.ID,
		RunID:        c.RunID,
		MembershipID: c.MembershipID,
		Month:        models.Date(c.Month),
		Amount:       c.Amount,
		Status:       string(c.Status),
		WinnerUserID: optionalString(c.WinnerUserID),
		Sequence:     c.Sequence,
		CreatedAt:    c.CreatedAt,
	}
	if err := q.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert contribution: %w", err)
	}
	return nil
}

// contributions selects contributions joined with their membership's user.
func (q *queries) contributions(ctx context.Context) *gorm.DB {
	return q.db.WithContext(ctx).
		Table("contributions AS c").
		Select("c.id, c.run_id, c.membership_id, m.user_id, c.month, c.amount, " +
			"c.status, c.winner_user_id, c.sequence, c.created_at").
		Joins("JOIN memberships m ON m.id = c.membership_id")
}

func (q *queries) GetContribution(ctx context.Context, contributionID string) (*models.Contribution, error) {
	var view contributionView
	if err := q.contributions(ctx).Where("c.id = ?", contributionID).Take(&view).Error; err != nil {
		return nil, notFound(err, "contribution", contributionID)
	}
	return view.toModel(), nil
}

// LockContribution takes a row lock on PostgreSQL. The sqlite dialect runs on
// a single connection, so its transactions are already serialized.
func (q *queries) LockContribution(ctx context.Context, contributionID string) (*models.Contribution, error) {
	if q.db.Dialector.Name() == "postgres" {
		var row contributionRow
		err := q.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", contributionID).
			Take(&row).Error
		if err != nil {
			return nil, notFound(err, "contribution", contributionID)
		}
	}
	return q.GetContribution(ctx, contributionID)
}

func (q *queries) ListContributions(ctx context.Context, runID string) ([]*models.Contribution, error) {
	var views []contributionView
	if err := q.contributions(ctx).Where("c.run_id = ?", runID).Order("c.month, c.sequence").Find(&views).Error; err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	contributions := make([]*models.Contribution, len(views))
	for i := range views {
		contributions[i] = views[i].toModel()
	}
	return contributions, nil
}

func (q *queries) CountContributions(ctx context.Context, runID string) (int, error) {
	var n int64
	if err := q.db.WithContext(ctx).Model(&contributionRow{}).Where("run_id = ?", runID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count contributions: %w", err)
	}
	return int(n), nil
}

func (q *queries) UpdateContributionStatus(ctx context.Context, contributionID string, status models.ContributionStatus, winnerUserID string) error {
	res := q.db.WithContext(ctx).Model(&contributionRow{}).
		Where("id = ?", contributionID).
		Updates(map[string]any{
			"status":         string(status),
			"winner_user_id": optionalString(winnerUserID),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update contribution: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("contribution %s: %w", contributionID, storage.ErrNotFound)
	}
	return nil
}

func (q *queries) CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = models.PaymentPending
	}
	row := &ledgerEntryRow{
		ID:             e.ID,
		UserID:         e.UserID,
		ContributionID: e.ContributionID,
		Amount:         e.Amount,
		Status:         string(e.Status),
		PaymentDate:    e.PaymentDate,
	}
	if err := q.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func (q *queries) GetLedgerEntry(ctx context.Context, entryID string) (*models.LedgerEntry, error) {
	var row ledgerEntryRow
	if err := q.db.WithContext(ctx).Where("id = ?", entryID).Take(&row).Error; err != nil {
		return nil, notFound(err, "ledger entry", entryID)
	}
	return row.toModel(), nil
}

func (q *queries) MarkLedgerEntryPaid(ctx context.Context, entryID string, paymentDate time.Time) error {
	date := models.Date(paymentDate)
	res := q.db.WithContext(ctx).Model(&ledgerEntryRow{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"status":       string(models.PaymentPaid),
			"payment_date": &date,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update ledger entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ledger entry %s: %w", entryID, storage.ErrNotFound)
	}
	return nil
}

func (q *queries) CountUnpaidEntries(ctx context.Context, contributionID string) (int, error) {
	var n int64
	err := q.db.WithContext(ctx).Model(&ledgerEntryRow{}).
		Where("contribution_id = ? AND status <> ?", contributionID, string(models.PaymentPaid)).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unpaid entries: %w", err)
	}
	return int(n), nil
}

func (q *queries) ListEntriesByContribution(ctx context.Context, contributionID string) ([]*models.LedgerEntry, error) {
	return q.listEntries(q.db.WithContext(ctx).
		Where("contribution_id = ?", contributionID).
		Order("id"))
}

func (q *queries) ListEntriesByUser(ctx context.Context, userID string) ([]*models.LedgerEntry, error) {
	return q.listEntries(q.db.WithContext(ctx).
		Select("ledger_entries.*").
		Joins("JOIN contributions ON contributions.id = ledger_entries.contribution_id").
		Where("ledger_entries.user_id = ?", userID).
		Order("contributions.month, contributions.sequence"))
}

func (q *queries) ListEntriesByRun(ctx context.Context, runID string) ([]*models.LedgerEntry, error) {
	return q.listEntries(q.db.WithContext(ctx).
		Select("ledger_entries.*").
		Joins("JOIN contributions ON contributions.id = ledger_entries.contribution_id").
		Where("contributions.run_id = ?", runID).
		Order("contributions.month, contributions.sequence"))
}

func (q *queries) listEntries(tx *gorm.DB) ([]*models.LedgerEntry, error) {
	var rows []ledgerEntryRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	entries := make([]*models.LedgerEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toModel()
	}
	return entries, nil
}
