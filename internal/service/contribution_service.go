package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/tontine/internal/apperrors"
	"github.com/mmynk/tontine/internal/calculator"
	"github.com/mmynk/tontine/internal/config"
	"github.com/mmynk/tontine/internal/metrics"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

const tracerName = "github.com/mmynk/tontine/internal/service"

// Options carries the settings that change ledger behavior.
type Options struct {
	Defaults config.Defaults

	// RejectRegeneration fails GenerateSchedule with a conflict when the run
	// already has contributions. Off by default: a second call duplicates the schedule.
	RejectRegeneration bool

	// RequirePaidBeforeWinner fails SetWinner on contributions that are not PAID.
	// Off by default.
	RequirePaidBeforeWinner bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig builds service options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Defaults:                cfg.Defaults,
		RejectRegeneration:      cfg.Schedule.RejectRegeneration,
		RequirePaidBeforeWinner: cfg.Settlement.RequirePaidBeforeWinner,
	}
}

// ContributionService implements session registry, schedule generation,
// settlement and winner assignment on top of a storage.Store.
type ContributionService struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	opts    Options
}

// NewContributionService creates a ContributionService.
func NewContributionService(store storage.Store, logger *slog.Logger, m *metrics.Metrics, opts Options) *ContributionService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Defaults.Parts <= 0 {
		opts.Defaults.Parts = 1
	}
	return &ContributionService{
		store:   store,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
		opts:    opts,
	}
}

// CreateSessionInput holds the fields of a new run.
type CreateSessionInput struct {
	NumberOfMembers     int
	MinimalContribution decimal.Decimal
	StartDate           time.Time
	EndDate             *time.Time
}

// PaymentResult is the outcome of RecordPayment.
type PaymentResult struct {
	Entry              *models.LedgerEntry
	ContributionStatus models.ContributionStatus
}

// CreateSession creates a new contribution run.
func (s *ContributionService) CreateSession(ctx context.Context, in CreateSessionInput) (*models.ContributionRun, error) {
	ctx, span := s.tracer.Start(ctx, "CreateSession")
	defer span.End()

	s.logger.Info("CreateSession request received",
		"number_of_members", in.NumberOfMembers,
		"minimal_contribution", in.MinimalContribution.String(),
		"start_date", in.StartDate.Format(models.DateLayout),
	)

	if in.NumberOfMembers <= 0 {
		return nil, fail(span, apperrors.InvalidArgument("number_of_members must be positive"))
	}
	if !in.MinimalContribution.IsPositive() {
		return nil, fail(span, apperrors.InvalidArgument("minimal_contribution must be positive"))
	}
	if in.StartDate.IsZero() {
		return nil, fail(span, apperrors.InvalidArgument("start_date is required"))
	}
	run := &models.ContributionRun{
		NumberOfMembers:     in.NumberOfMembers,
		MinimalContribution: in.MinimalContribution,
		StartDate:           models.Date(in.StartDate),
	}
	if in.EndDate != nil {
		end := models.Date(*in.EndDate)
		if end.Before(run.StartDate) {
			return nil, fail(span, apperrors.InvalidArgument("end_date must not precede start_date"))
		}
		run.EndDate = &end
	}

	if err := s.store.CreateRun(ctx, run); err != nil {
		s.logger.Error("CreateSession failed", "error", err)
		return nil, fail(span, translate(err, "session"))
	}

	s.metrics.SessionsCreated.Inc()
	span.SetAttributes(attribute.String("run_id", run.ID))
	s.logger.Info("Session created", "run_id", run.ID)
	return run, nil
}

// GetSession returns a run by ID.
func (s *ContributionService) GetSession(ctx context.Context, runID string) (*models.ContributionRun, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, translate(err, "session %s", runID)
	}
	return run, nil
}

// ListSessions returns every run in creation order.
func (s *ContributionService) ListSessions(ctx context.Context) ([]*models.ContributionRun, error) {
	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, translate(err, "sessions")
	}
	return runs, nil
}

// CloseSession sets the end date of a run, its only mutable field.
func (s *ContributionService) CloseSession(ctx context.Context, runID string, endDate time.Time) (*models.ContributionRun, error) {
	ctx, span := s.tracer.Start(ctx, "CloseSession", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	s.logger.Info("CloseSession request received", "run_id", runID, "end_date", endDate.Format(models.DateLayout))

	if endDate.IsZero() {
		return nil, fail(span, apperrors.InvalidArgument("end_date is required"))
	}
	end := models.Date(endDate)

	var run *models.ContributionRun
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		var err error
		run, err = q.GetRun(ctx, runID)
		if err != nil {
			return translate(err, "session %s", runID)
		}
		if end.Before(run.StartDate) {
			return apperrors.InvalidArgument("end_date must not precede start_date")
		}
		if err := q.SetRunEndDate(ctx, runID, &end); err != nil {
			return translate(err, "session %s", runID)
		}
		run.EndDate = &end
		return nil
	})
	if err != nil {
		s.logger.Error("CloseSession failed", "run_id", runID, "error", err)
		return nil, fail(span, err)
	}

	s.logger.Info("Session closed", "run_id", runID)
	return run, nil
}

// Enroll adds a user to a run. A nil parts uses the configured default.
func (s *ContributionService) Enroll(ctx context.Context, runID, userID string, parts *int) (*models.Membership, error) {
	ctx, span := s.tracer.Start(ctx, "Enroll", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("user_id", userID),
	))
	defer span.End()

	n := s.opts.Defaults.Parts
	if parts != nil {
		n = *parts
	}
	s.logger.Info("Enroll request received", "run_id", runID, "user_id", userID, "parts", n)

	if userID == "" {
		return nil, fail(span, apperrors.InvalidArgument("user_id is required"))
	}
	if n <= 0 {
		return nil, fail(span, apperrors.InvalidArgument("number_of_parts must be positive"))
	}

	membership := &models.Membership{RunID: runID, UserID: userID, NumberOfParts: n}
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		if _, err := q.GetRun(ctx, runID); err != nil {
			return translate(err, "session %s", runID)
		}
		if _, err := q.GetUserByID(ctx, userID); err != nil {
			return translate(err, "user %s", userID)
		}
		if _, err := q.GetMembership(ctx, runID, userID); err == nil {
			return apperrors.Conflict("user %s is already enrolled in session %s", userID, runID)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return translate(err, "membership")
		}
		if err := q.CreateMembership(ctx, membership); err != nil {
			return translate(err, "user %s is already enrolled in session %s", userID, runID)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Enroll failed", "run_id", runID, "user_id", userID, "error", err)
		return nil, fail(span, err)
	}

	s.metrics.Enrollments.Inc()
	s.logger.Info("User enrolled", "run_id", runID, "user_id", userID, "membership_id", membership.ID)
	return membership, nil
}

// GenerateSchedule creates the contributions and ledger entries of a run
// and returns how many contributions were created.
//
// Every membership gets one contribution per period, so a run produces
// (Σ parts) × memberships contributions. All rows commit together.
func (s *ContributionService) GenerateSchedule(ctx context.Context, runID string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "GenerateSchedule", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	s.logger.Info("GenerateSchedule request received", "run_id", runID)

	created := 0
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		run, err := q.GetRun(ctx, runID)
		if err != nil {
			return translate(err, "session %s", runID)
		}
		existing, err := q.CountContributions(ctx, runID)
		if err != nil {
			return translate(err, "contributions")
		}
		if existing > 0 && s.opts.RejectRegeneration {
			return apperrors.Conflict("session %s already has a schedule", runID)
		}
		memberships, err := q.ListMemberships(ctx, runID)
		if err != nil {
			return translate(err, "memberships")
		}

		slots, err := calculator.BuildSchedule(run, memberships)
		if err != nil {
			return apperrors.InvalidArgument("%v", err)
		}

		now := s.opts.Now().Unix()
		for i, slot := range slots {
			c := &models.Contribution{
				RunID:        run.ID,
				MembershipID: slot.Membership.ID,
				UserID:       slot.Membership.UserID,
				Month:        slot.Month,
				Amount:       slot.Amount,
				Status:       models.ContributionPending,
				Sequence:     existing + i,
				CreatedAt:    now,
			}
			if err := q.CreateContribution(ctx, c); err != nil {
				return translate(err, "contribution")
			}
			entry := &models.LedgerEntry{
				UserID:         slot.Membership.UserID,
				ContributionID: c.ID,
				Amount:         slot.Amount,
				Status:         models.PaymentPending,
			}
			if err := q.CreateLedgerEntry(ctx, entry); err != nil {
				return translate(err, "ledger entry")
			}
		}
		created = len(slots)
		return nil
	})
	if err != nil {
		s.logger.Error("GenerateSchedule failed", "run_id", runID, "error", err)
		return 0, fail(span, err)
	}

	s.metrics.ContributionsGenerated.Add(float64(created))
	span.SetAttributes(attribute.Int("contributions_created", created))
	s.logger.Info("Schedule generated", "run_id", runID, "contributions_created", created)
	return created, nil
}

// RecordPayment marks a ledger entry paid and moves its contribution to PAID
// once no sibling entry is left unpaid. A nil paymentDate means today.
// Recording an entry that is already paid returns it unchanged.
func (s *ContributionService) RecordPayment(ctx context.Context, entryID string, paymentDate *time.Time) (*PaymentResult, error) {
	ctx, span := s.tracer.Start(ctx, "RecordPayment", trace.WithAttributes(attribute.String("entry_id", entryID)))
	defer span.End()

	s.logger.Info("RecordPayment request received", "entry_id", entryID)

	date := models.Date(s.opts.Now().UTC())
	if paymentDate != nil {
		date = models.Date(*paymentDate)
	}

	var (
		result      *PaymentResult
		becamePaid  bool
		alreadyPaid bool
	)
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		entry, err := q.GetLedgerEntry(ctx, entryID)
		if err != nil {
			return translate(err, "payment %s", entryID)
		}

		// Lock the parent before reading the entry state and counting siblings,
		// so concurrent payments under the same contribution see each other's writes.
		c, err := q.LockContribution(ctx, entry.ContributionID)
		if err != nil {
			return translate(err, "contribution %s", entry.ContributionID)
		}
		entry, err = q.GetLedgerEntry(ctx, entryID)
		if err != nil {
			return translate(err, "payment %s", entryID)
		}
		if entry.Paid() {
			alreadyPaid = true
			result = &PaymentResult{Entry: entry, ContributionStatus: c.Status}
			return nil
		}

		if err := q.MarkLedgerEntryPaid(ctx, entryID, date); err != nil {
			return translate(err, "payment %s", entryID)
		}
		unpaid, err := q.CountUnpaidEntries(ctx, c.ID)
		if err != nil {
			return translate(err, "ledger entries")
		}

		next := calculator.NextStatus(c.Status, unpaid)
		if next != c.Status {
			if err := q.UpdateContributionStatus(ctx, c.ID, next, c.WinnerUserID); err != nil {
				return translate(err, "contribution %s", c.ID)
			}
			becamePaid = true
		}

		entry.Status = models.PaymentPaid
		entry.PaymentDate = &date
		result = &PaymentResult{Entry: entry, ContributionStatus: next}
		return nil
	})
	if err != nil {
		s.logger.Error("RecordPayment failed", "entry_id", entryID, "error", err)
		return nil, fail(span, err)
	}

	if alreadyPaid {
		s.logger.Info("Payment already recorded", "entry_id", entryID)
		return result, nil
	}
	s.metrics.PaymentsRecorded.Inc()
	if becamePaid {
		s.metrics.ContributionsPaid.Inc()
	}
	s.logger.Info("Payment recorded",
		"entry_id", entryID,
		"contribution_id", result.Entry.ContributionID,
		"contribution_status", result.ContributionStatus,
	)
	return result, nil
}

// SetWinner designates the payout recipient of a contribution and marks it
// RECEIVED. The winner must be enrolled in the contribution's run.
// Setting a winner again overwrites the previous one.
func (s *ContributionService) SetWinner(ctx context.Context, contributionID, winnerUserID string) (*models.Contribution, error) {
	ctx, span := s.tracer.Start(ctx, "SetWinner", trace.WithAttributes(
		attribute.String("contribution_id", contributionID),
		attribute.String("winner_user_id", winnerUserID),
	))
	defer span.End()

	s.logger.Info("SetWinner request received", "contribution_id", contributionID, "winner_user_id", winnerUserID)

	var contribution *models.Contribution
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		c, err := q.LockContribution(ctx, contributionID)
		if err != nil {
			return translate(err, "contribution %s", contributionID)
		}
		if winnerUserID == "" {
			return apperrors.InvalidArgument("winner_user_id is required")
		}
		if _, err := q.GetMembership(ctx, c.RunID, winnerUserID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.InvalidArgument("user %s is not a session member", winnerUserID)
			}
			return translate(err, "membership")
		}
		if s.opts.RequirePaidBeforeWinner && c.Status == models.ContributionPending {
			return apperrors.InvalidArgument("contribution %s is not fully paid", contributionID)
		}
		if err := q.UpdateContributionStatus(ctx, c.ID, models.ContributionReceived, winnerUserID); err != nil {
			return translate(err, "contribution %s", contributionID)
		}
		c.Status = models.ContributionReceived
		c.WinnerUserID = winnerUserID
		contribution = c
		return nil
	})
	if err != nil {
		s.logger.Error("SetWinner failed", "contribution_id", contributionID, "error", err)
		return nil, fail(span, err)
	}

	s.metrics.WinnersAssigned.Inc()
	s.logger.Info("Winner set", "contribution_id", contributionID, "winner_user_id", winnerUserID)
	return contribution, nil
}

// ListContributions returns a run's contributions ordered by month.
func (s *ContributionService) ListContributions(ctx context.Context, runID string) ([]*models.Contribution, error) {
	contributions, err := s.store.ListContributions(ctx, runID)
	if err != nil {
		return nil, translate(err, "contributions")
	}
	return contributions, nil
}

// ListUserPayments returns every ledger entry owed by a user.
func (s *ContributionService) ListUserPayments(ctx context.Context, userID string) ([]*models.LedgerEntry, error) {
	entries, err := s.store.ListEntriesByUser(ctx, userID)
	if err != nil {
		return nil, translate(err, "payments")
	}
	return entries, nil
}

// ListContributionPayments returns the ledger entries under a contribution.
func (s *ContributionService) ListContributionPayments(ctx context.Context, contributionID string) ([]*models.LedgerEntry, error) {
	if _, err := s.store.GetContribution(ctx, contributionID); err != nil {
		return nil, translate(err, "contribution %s", contributionID)
	}
	entries, err := s.store.ListEntriesByContribution(ctx, contributionID)
	if err != nil {
		return nil, translate(err, "payments")
	}
	return entries, nil
}

// SessionPeriods groups a run's contributions into per-month settlement status.
func (s *ContributionService) SessionPeriods(ctx context.Context, runID string) ([]calculator.PeriodSummary, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, translate(err, "session %s", runID)
	}
	contributions, err := s.store.ListContributions(ctx, runID)
	if err != nil {
		return nil, translate(err, "contributions")
	}
	return calculator.SummarizePeriods(contributions), nil
}

// SessionBalances computes what each member owes, has paid and has received.
func (s *ContributionService) SessionBalances(ctx context.Context, runID string) ([]calculator.MemberBalance, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, translate(err, "session %s", runID)
	}
	memberships, err := s.store.ListMemberships(ctx, runID)
	if err != nil {
		return nil, translate(err, "memberships")
	}
	contributions, err := s.store.ListContributions(ctx, runID)
	if err != nil {
		return nil, translate(err, "contributions")
	}
	entries, err := s.store.ListEntriesByRun(ctx, runID)
	if err != nil {
		return nil, translate(err, "payments")
	}
	return calculator.CalculateSessionBalances(memberships, contributions, entries), nil
}
