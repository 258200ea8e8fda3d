// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/tontine/internal/models"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness constraint is violated.
	ErrConflict = errors.New("already exists")
)

// Queries defines the row-level operations on every entity.
// Implementations wrap ErrNotFound and ErrConflict with %w.
type Queries interface {
	// CreateUser persists a new user. Returns ErrConflict on a duplicate email.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// CreateRun persists a new run. The run.ID and CreatedAt fields are
	// populated by the store when empty.
	CreateRun(ctx context.Context, run *models.ContributionRun) error
	GetRun(ctx context.Context, runID string) (*models.ContributionRun, error)
	ListRuns(ctx context.Context) ([]*models.ContributionRun, error)
	// SetRunEndDate updates the only mutable field of a run.
	SetRunEndDate(ctx context.Context, runID string, endDate *time.Time) error

	// CreateMembership persists a membership.
	// Returns ErrConflict if the (user, run) pair is already enrolled.
	CreateMembership(ctx context.Context, m *models.Membership) error
	// GetMembership returns the membership of userID in runID.
	GetMembership(ctx context.Context, runID, userID string) (*models.Membership, error)
	// ListMemberships returns a run's memberships in enrollment order.
	ListMemberships(ctx context.Context, runID string) ([]*models.Membership, error)

	CreateContribution(ctx context.Context, c *models.Contribution) error
	GetContribution(ctx context.Context, contributionID string) (*models.Contribution, error)
	// LockContribution reads a contribution and holds a write lock on it until
	// the enclosing transaction ends.
	LockContribution(ctx context.Context, contributionID string) (*models.Contribution, error)
	// ListContributions returns a run's contributions ordered by month then sequence.
	ListContributions(ctx context.Context, runID string) ([]*models.Contribution, error)
	CountContributions(ctx context.Context, runID string) (int, error)
	// UpdateContributionStatus sets the status and winner of a contribution.
	UpdateContributionStatus(ctx context.Context, contributionID string, status models.ContributionStatus, winnerUserID string) error

	CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error
	GetLedgerEntry(ctx context.Context, entryID string) (*models.LedgerEntry, error)
	// MarkLedgerEntryPaid sets the entry PAID with the given payment date.
	MarkLedgerEntryPaid(ctx context.Context, entryID string, paymentDate time.Time) error
	// CountUnpaidEntries returns the number of PENDING entries under a contribution.
	CountUnpaidEntries(ctx context.Context, contributionID string) (int, error)
	ListEntriesByContribution(ctx context.Context, contributionID string) ([]*models.LedgerEntry, error)
	ListEntriesByUser(ctx context.Context, userID string) ([]*models.LedgerEntry, error)
	ListEntriesByRun(ctx context.Context, runID string) ([]*models.LedgerEntry, error)
}

// Store is the repository used by the service layer.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	Queries

	// InTx runs fn inside a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise; no partial writes are visible.
	InTx(ctx context.Context, fn func(q Queries) error) error

	// Close releases any resources held by the store.
	Close() error
}
