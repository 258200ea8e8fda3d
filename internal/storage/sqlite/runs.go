package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

const runColumns = `id, number_of_members, minimal_contribution, start_date, end_date, created_at`

// CreateRun persists a new contribution run.
func (s *queries) CreateRun(ctx context.Context, run *models.ContributionRun) error {
	// Generate ID if not set
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().Unix()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO contribution_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.NumberOfMembers, run.MinimalContribution.String(),
		run.StartDate.Format(models.DateLayout), nullDate(run.EndDate), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *queries) GetRun(ctx context.Context, runID string) (*models.ContributionRun, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM contribution_runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves all runs, oldest first.
func (s *queries) ListRuns(ctx context.Context) ([]*models.ContributionRun, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+runColumns+` FROM contribution_runs ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ContributionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// SetRunEndDate updates the end date of a run.
func (s *queries) SetRunEndDate(ctx context.Context, runID string, endDate *time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE contribution_runs SET end_date = ? WHERE id = ?`,
		nullDate(endDate), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return checkAffected(res, "run", runID)
}

// CreateMembership enrolls a user in a run.
func (s *queries) CreateMembership(ctx context.Context, m *models.Membership) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixNano()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO memberships (id, run_id, user_id, number_of_parts, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.RunID, m.UserID, m.NumberOfParts, m.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("membership of user %s in run %s: %w", m.UserID, m.RunID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}

	return nil
}

// GetMembership retrieves the membership of a user in a run.
func (s *queries) GetMembership(ctx context.Context, runID, userID string) (*models.Membership, error) {
	m := &models.Membership{}
	err := s.q.QueryRowContext(ctx,
		`SELECT id, run_id, user_id, number_of_parts, created_at
		 FROM memberships WHERE run_id = ? AND user_id = ?`,
		runID, userID,
	).Scan(&m.ID, &m.RunID, &m.UserID, &m.NumberOfParts, &m.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership of user %s in run %s: %w", userID, runID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListMemberships retrieves a run's memberships in enrollment order.
func (s *queries) ListMemberships(ctx context.Context, runID string) ([]*models.Membership, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, run_id, user_id, number_of_parts, created_at
		 FROM memberships WHERE run_id = ? ORDER BY created_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		m := &models.Membership{}
		if err := rows.Scan(&m.ID, &m.RunID, &m.UserID, &m.NumberOfParts, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.ContributionRun, error) {
	run := &models.ContributionRun{}
	var startDate string
	var endDate sql.NullString
	if err := row.Scan(&run.ID, &run.NumberOfMembers, &run.MinimalContribution,
		&startDate, &endDate, &run.CreatedAt); err != nil {
		return nil, err
	}

	start, err := models.ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid stored start date %q: %w", startDate, err)
	}
	run.StartDate = start

	if run.EndDate, err = parseNullDate(endDate); err != nil {
		return nil, err
	}
	return run, nil
}
