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

const entryColumns = `e.id, e.user_id, e.contribution_id, e.amount, e.status, e.payment_date`

// CreateLedgerEntry persists a user's payment record for a contribution.
func (s *queries) CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	// Generate ID if not set
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = models.PaymentPending
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, user_id, contribution_id, amount, status, payment_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.ContributionID, e.Amount.String(), string(e.Status), nullDate(e.PaymentDate),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	return nil
}

// GetLedgerEntry retrieves a ledger entry by ID.
func (s *queries) GetLedgerEntry(ctx context.Context, entryID string) (*models.LedgerEntry, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries e WHERE e.id = ?`, entryID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger entry %s: %w", entryID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return e, nil
}

// MarkLedgerEntryPaid sets an entry PAID with the given payment date.
func (s *queries) MarkLedgerEntryPaid(ctx context.Context, entryID string, paymentDate time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE ledger_entries SET status = ?, payment_date = ? WHERE id = ?`,
		string(models.PaymentPaid), paymentDate.Format(models.DateLayout), entryID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}
	return checkAffected(res, "ledger entry", entryID)
}

// CountUnpaidEntries returns the number of pending entries under a contribution.
func (s *queries) CountUnpaidEntries(ctx context.Context, contributionID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE contribution_id = ? AND status != ?`,
		contributionID, string(models.PaymentPaid),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unpaid entries: %w", err)
	}
	return n, nil
}

// ListEntriesByContribution retrieves the entries under a contribution.
func (s *queries) ListEntriesByContribution(ctx context.Context, contributionID string) ([]*models.LedgerEntry, error) {
	return s.listEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries e WHERE e.contribution_id = ? ORDER BY e.rowid`,
		contributionID)
}

// ListEntriesByUser retrieves all entries owed by a user.
func (s *queries) ListEntriesByUser(ctx context.Context, userID string) ([]*models.LedgerEntry, error) {
	return s.listEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries e
		 JOIN contributions c ON c.id = e.contribution_id
		 WHERE e.user_id = ? ORDER BY c.month, e.rowid`,
		userID)
}

// ListEntriesByRun retrieves all entries of a run's contributions.
func (s *queries) ListEntriesByRun(ctx context.Context, runID string) ([]*models.LedgerEntry, error) {
	return s.listEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries e
		 JOIN contributions c ON c.id = e.contribution_id
		 WHERE c.run_id = ? ORDER BY c.month, e.rowid`,
		runID)
}

func (s *queries) listEntries(ctx context.Context, query string, arg string) ([]*models.LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	e := &models.LedgerEntry{}
	var status string
	var paymentDate sql.NullString
	if err := row.Scan(&e.ID, &e.UserID, &e.ContributionID, &e.Amount, &status, &paymentDate); err != nil {
		return nil, err
	}
	e.Status = models.PaymentStatus(status)

	var err error
	if e.PaymentDate, err = parseNullDate(paymentDate); err != nil {
		return nil, err
	}
	return e, nil
}
