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

const contributionSelect = `
	SELECT c.id, c.run_id, c.membership_id, m.user_id, c.month, c.amount, c.status,
	       c.winner_user_id, c.sequence, c.created_at
	FROM contributions c
	JOIN memberships m ON m.id = c.membership_id`

// CreateContribution persists a scheduled contribution.
func (s *queries) CreateContribution(ctx context.Context, c *models.Contribution) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}
	if c.Status == "" {
		c.Status = models.ContributionPending
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO contributions (id, run_id, membership_id, month, amount, status, winner_user_id, sequence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.RunID, c.MembershipID, c.Month.Format(models.DateLayout), c.Amount.String(),
		string(c.Status), nullString(c.WinnerUserID), c.Sequence, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contribution: %w", err)
	}

	return nil
}

// GetContribution retrieves a contribution by ID.
func (s *queries) GetContribution(ctx context.Context, contributionID string) (*models.Contribution, error) {
	row := s.q.QueryRowContext(ctx, contributionSelect+` WHERE c.id = ?`, contributionID)
	c, err := scanContribution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contribution %s: %w", contributionID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contribution: %w", err)
	}
	return c, nil
}

// LockContribution reads a contribution for update.
// SQLite has no row locks; transactions are opened with BEGIN IMMEDIATE, so the
// enclosing transaction already holds the database write lock.
func (s *queries) LockContribution(ctx context.Context, contributionID string) (*models.Contribution, error) {
	return s.GetContribution(ctx, contributionID)
}

// ListContributions retrieves a run's contributions ordered by month then sequence.
func (s *queries) ListContributions(ctx context.Context, runID string) ([]*models.Contribution, error) {
	rows, err := s.q.QueryContext(ctx,
		contributionSelect+` WHERE c.run_id = ? ORDER BY c.month, c.sequence`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	defer rows.Close()

	var contributions []*models.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributions: %w", err)
	}

	return contributions, nil
}

// CountContributions returns the number of contributions scheduled for a run.
func (s *queries) CountContributions(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contributions WHERE run_id = ?`, runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count contributions: %w", err)
	}
	return n, nil
}

// UpdateContributionStatus sets the status and winner of a contribution.
func (s *queries) UpdateContributionStatus(ctx context.Context, contributionID string, status models.ContributionStatus, winnerUserID string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE contributions SET status = ?, winner_user_id = ? WHERE id = ?`,
		string(status), nullString(winnerUserID), contributionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contribution: %w", err)
	}
	return checkAffected(res, "contribution", contributionID)
}

func scanContribution(row rowScanner) (*models.Contribution, error) {
	c := &models.Contribution{}
	var month, status string
	var winner sql.NullString
	if err := row.Scan(&c.ID, &c.RunID, &c.MembershipID, &c.UserID, &month, &c.Amount,
		&status, &winner, &c.Sequence, &c.CreatedAt); err != nil {
		return nil, err
	}

	m, err := models.ParseDate(month)
	if err != nil {
		return nil, fmt.Errorf("invalid stored month %q: %w", month, err)
	}
	c.Month = m
	c.Status = models.ContributionStatus(status)
	if winner.Valid {
		c.WinnerUserID = winner.String
	}
	return c, nil
}
