package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tontine/internal/apperrors"
	"github.com/mmynk/tontine/internal/config"
	"github.com/mmynk/tontine/internal/metrics"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
	"github.com/mmynk/tontine/internal/storage/gormdb"
	"github.com/mmynk/tontine/internal/storage/sqlite"
	"github.com/mmynk/tontine/pkg/logging"
)

var startDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// storeFactories lists the backends every scenario runs against.
var storeFactories = map[string]func(t *testing.T) storage.Store{
	"sqlite": func(t *testing.T) storage.Store {
		store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		return store
	},
	"gorm": func(t *testing.T) storage.Store {
		store, err := gormdb.OpenSQLite(filepath.Join(t.TempDir(), "gorm.db"))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		return store
	},
}

type fixture struct {
	svc     *ContributionService
	store   storage.Store
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, newStore func(t *testing.T) storage.Store, opts Options) *fixture {
	t.Helper()
	store := newStore(t)
	t.Cleanup(func() { store.Close() })
	if opts.Defaults.Parts == 0 {
		opts.Defaults = config.Defaults{Parts: 1, Role: models.RoleUser}
	}
	m := metrics.Noop()
	svc := NewContributionService(store, logging.Discard(), m, opts)
	return &fixture{svc: svc, store: store, metrics: m}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := models.NewUser(name+"@example.com", name, "Test", "hash", models.RoleUser)
	if err := f.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func (f *fixture) session(t *testing.T, members int, minimal int64) *models.ContributionRun {
	t.Helper()
	run, err := f.svc.CreateSession(context.Background(), CreateSessionInput{
		NumberOfMembers:     members,
		MinimalContribution: decimal.NewFromInt(minimal),
		StartDate:           startDate,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return run
}

func (f *fixture) enroll(t *testing.T, runID, userID string, parts int) *models.Membership {
	t.Helper()
	m, err := f.svc.Enroll(context.Background(), runID, userID, &parts)
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	return m
}

func (f *fixture) entriesOf(t *testing.T, contributionID string) []*models.LedgerEntry {
	t.Helper()
	entries, err := f.svc.ListContributionPayments(context.Background(), contributionID)
	if err != nil {
		t.Fatalf("ListContributionPayments failed: %v", err)
	}
	return entries
}

func forEachStore(t *testing.T, fn func(t *testing.T, newStore func(t *testing.T) storage.Store)) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			fn(t, newStore)
		})
	}
}

func TestEndToEndScenario(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(t *testing.T) storage.Store) {
		f := newFixture(t, newStore, Options{})
		ctx := context.Background()

		run := f.session(t, 2, 100)
		alice := f.user(t, "alice")
		f.enroll(t, run.ID, alice.ID, 1)

		created, err := f.svc.GenerateSchedule(ctx, run.ID)
		if err != nil {
			t.Fatalf("GenerateSchedule failed: %v", err)
		}
		if created != 1 {
			t.Fatalf("contributions_created = %d, want 1", created)
		}

		contributions, err := f.svc.ListContributions(ctx, run.ID)
		if err != nil {
			t.Fatalf("ListContributions failed: %v", err)
		}
		if len(contributions) != 1 {
			t.Fatalf("Expected 1 contribution, got %d", len(contributions))
		}
		c := contributions[0]
		if !c.Amount.Equal(decimal.NewFromInt(100)) {
			t.Errorf("amount = %s, want 100", c.Amount)
		}
		if c.Status != models.ContributionPending {
			t.Errorf("status = %s, want PENDING", c.Status)
		}
		if !c.Month.Equal(startDate) {
			t.Errorf("month = %v, want %v", c.Month, startDate)
		}

		entries := f.entriesOf(t, c.ID)
		if len(entries) != 1 {
			t.Fatalf("Expected 1 ledger entry, got %d", len(entries))
		}

		result, err := f.svc.RecordPayment(ctx, entries[0].ID, nil)
		if err != nil {
			t.Fatalf("RecordPayment failed: %v", err)
		}
		if result.ContributionStatus != models.ContributionPaid {
			t.Errorf("contribution status = %s, want PAID", result.ContributionStatus)
		}
		if result.Entry.Status != models.PaymentPaid || result.Entry.PaymentDate == nil {
			t.Errorf("entry = %+v, want PAID with a payment date", result.Entry)
		}

		won, err := f.svc.SetWinner(ctx, c.ID, alice.ID)
		if err != nil {
			t.Fatalf("SetWinner failed: %v", err)
		}
		if won.Status != models.ContributionReceived || won.WinnerUserID != alice.ID {
			t.Errorf("got status %s winner %q, want RECEIVED by %s", won.Status, won.WinnerUserID, alice.ID)
		}

		stored, err := f.store.GetContribution(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetContribution failed: %v", err)
		}
		if stored.Status != models.ContributionReceived || stored.WinnerUserID != alice.ID {
			t.Errorf("stored status %s winner %q", stored.Status, stored.WinnerUserID)
		}
	})
}

func TestGenerateScheduleFanOut(t *testing.T) {
	tests := []struct {
		name  string
		parts []int
	}{
		{name: "single member", parts: []int{1}},
		{name: "two members one part each", parts: []int{1, 1}},
		{name: "mixed parts", parts: []int{2, 1, 3}},
		{name: "no members", parts: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, storeFactories["sqlite"], Options{})
			ctx := context.Background()
			run := f.session(t, len(tt.parts)+1, 50)

			sum := 0
			for i, p := range tt.parts {
				u := f.user(t, fmt.Sprintf("member%d", i))
				f.enroll(t, run.ID, u.ID, p)
				sum += p
			}
			want := sum * len(tt.parts)

			created, err := f.svc.GenerateSchedule(ctx, run.ID)
			if err != nil {
				t.Fatalf("GenerateSchedule failed: %v", err)
			}
			if created != want {
				t.Errorf("created = %d, want (Σparts)×members = %d", created, want)
			}

			contributions, err := f.svc.ListContributions(ctx, run.ID)
			if err != nil {
				t.Fatalf("ListContributions failed: %v", err)
			}
			if len(contributions) != want {
				t.Fatalf("listed %d contributions, want %d", len(contributions), want)
			}
			entries, err := f.store.ListEntriesByRun(ctx, run.ID)
			if err != nil {
				t.Fatalf("ListEntriesByRun failed: %v", err)
			}
			if len(entries) != want {
				t.Errorf("ledger entries = %d, want %d", len(entries), want)
			}

			memberships, err := f.store.ListMemberships(ctx, run.ID)
			if err != nil {
				t.Fatalf("ListMemberships failed: %v", err)
			}
			partsByMembership := make(map[string]int, len(memberships))
			for _, m := range memberships {
				partsByMembership[m.ID] = m.NumberOfParts
			}
			for _, c := range contributions {
				wantAmount := decimal.NewFromInt(int64(50 * partsByMembership[c.MembershipID]))
				if !c.Amount.Equal(wantAmount) {
					t.Errorf("contribution %s amount = %s, want %s", c.ID, c.Amount, wantAmount)
				}
				paired := f.entriesOf(t, c.ID)
				if len(paired) != 1 || !paired[0].Amount.Equal(c.Amount) {
					t.Errorf("contribution %s has %d paired entries", c.ID, len(paired))
				}
			}

			// Period view: Σparts distinct months, each holding one
			// contribution per membership.
			periods, err := f.svc.SessionPeriods(ctx, run.ID)
			if err != nil {
				t.Fatalf("SessionPeriods failed: %v", err)
			}
			if len(periods) != sum {
				t.Fatalf("periods = %d, want %d", len(periods), sum)
			}
			for i, p := range periods {
				wantMonth := startDate.AddDate(0, 0, 30*i)
				if !p.Month.Equal(wantMonth) {
					t.Errorf("period %d month = %v, want %v", i, p.Month, wantMonth)
				}
				if p.Contributions != len(tt.parts) {
					t.Errorf("period %d has %d contributions, want %d", i, p.Contributions, len(tt.parts))
				}
			}
		})
	}
}

func TestGenerateScheduleErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture(t, storeFactories["sqlite"], Options{})
		_, err := f.svc.GenerateSchedule(ctx, "missing")
		if !apperrors.Is(err, apperrors.KindNotFound) {
			t.Fatalf("got %v, want NotFound", err)
		}
	})

	t.Run("regeneration duplicates by default", func(t *testing.T) {
		f := newFixture(t, storeFactories["sqlite"], Options{})
		run := f.session(t, 1, 10)
		f.enroll(t, run.ID, f.user(t, "dana").ID, 2)

		for i := 0; i < 2; i++ {
			if _, err := f.svc.GenerateSchedule(ctx, run.ID); err != nil {
				t.Fatalf("GenerateSchedule #%d failed: %v", i+1, err)
			}
		}
		contributions, err := f.svc.ListContributions(ctx, run.ID)
		if err != nil {
			t.Fatalf("ListContributions failed: %v", err)
		}
		if len(contributions) != 4 {
			t.Errorf("contributions = %d, want 4 after two generations", len(contributions))
		}
		seen := make(map[int]bool)
		for _, c := range contributions {
			if seen[c.Sequence] {
				t.Errorf("duplicate sequence %d", c.Sequence)
			}
			seen[c.Sequence] = true
		}
	})

	t.Run("regeneration rejected when guarded", func(t *testing.T) {
		f := newFixture(t, storeFactories["sqlite"], Options{RejectRegeneration: true})
		run := f.session(t, 1, 10)
		f.enroll(t, run.ID, f.user(t, "erin").ID, 1)

		if _, err := f.svc.GenerateSchedule(ctx, run.ID); err != nil {
			t.Fatalf("GenerateSchedule failed: %v", err)
		}
		_, err := f.svc.GenerateSchedule(ctx, run.ID)
		if !apperrors.Is(err, apperrors.KindConflict) {
			t.Fatalf("got %v, want Conflict", err)
		}
		contributions, err := f.svc.ListContributions(ctx, run.ID)
		if err != nil {
			t.Fatalf("ListContributions failed: %v", err)
		}
		if len(contributions) != 1 {
			t.Errorf("contributions = %d, want 1", len(contributions))
		}
	})
}

func TestRecordPayment(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(t *testing.T) storage.Store) {
		ctx := context.Background()
		f := newFixture(t, newStore, Options{})
		run := f.session(t, 2, 100)
		alice := f.user(t, "alice")
		f.enroll(t, run.ID, alice.ID, 1)
		if _, err := f.svc.GenerateSchedule(ctx, run.ID); err != nil {
			t.Fatalf("GenerateSchedule failed: %v", err)
		}
		contributions, err := f.svc.ListContributions(ctx, run.ID)
		if err != nil {
			t.Fatalf("ListContributions failed: %v", err)
		}
		entry := f.entriesOf(t, contributions[0].ID)[0]

		t.Run("unknown entry", func(t *testing.T) {
			_, err := f.svc.RecordPayment(ctx, "missing", nil)
			if !apperrors.Is(err, apperrors.KindNotFound) {
				t.Fatalf("got %v, want NotFound", err)
			}
		})

		t.Run("explicit date", func(t *testing.T) {
			paidOn := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
			result, err := f.svc.RecordPayment(ctx, entry.ID, &paidOn)
			if err != nil {
				t.Fatalf("RecordPayment failed: %v", err)
			}
			if !result.Entry.PaymentDate.Equal(paidOn) {
				t.Errorf("payment date = %v, want %v", result.Entry.PaymentDate, paidOn)
			}
		})

		t.Run("second payment is a no-op", func(t *testing.T) {
			later := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			result, err := f.svc.RecordPayment(ctx, entry.ID, &later)
			if err != nil {
				t.Fatalf("RecordPayment failed: %v", err)
			}
			want := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
			if !result.Entry.PaymentDate.Equal(want) {
				t.Errorf("payment date changed to %v, want %v", result.Entry.PaymentDate, want)
			}
			if result.ContributionStatus != models.ContributionPaid {
				t.Errorf("contribution status = %s, want PAID", result.ContributionStatus)
			}
		})
	})
}

func TestRecordPaymentWaitsForLastSibling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, storeFactories["sqlite"], Options{})
	run := f.session(t, 1, 100)
	alice := f.user(t, "alice")
	f.enroll(t, run.ID, alice.ID, 1)
	if _, err := f.svc.GenerateSchedule(ctx, run.ID); err != nil {
		t.Fatalf("GenerateSchedule failed: %v", err)
	}
	contributions, err := f.svc.ListContributions(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListContributions failed: %v", err)
	}
	c := contributions[0]

	// Generation pairs one entry per contribution; add a sibling to observe
	// the non-last payment path.
	sibling := &models.LedgerEntry{UserID: alice.ID, ContributionID: c.ID, Amount: c.Amount}
	if err := f.store.CreateLedgerEntry(ctx, sibling); err != nil {
		t.Fatalf("CreateLedgerEntry failed: %v", err)
	}
	entries := f.entriesOf(t, c.ID)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	first, err := f.svc.RecordPayment(ctx, entries[0].ID, nil)
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if first.ContributionStatus != models.ContributionPending {
		t.Errorf("after non-last payment status = %s, want PENDING", first.ContributionStatus)
	}

	last, err := f.svc.RecordPayment(ctx, entries[1].ID, nil)
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if last.ContributionStatus != models.ContributionPaid {
		t.Errorf("after last payment status = %s, want PAID", last.ContributionStatus)
	}
}

func TestConcurrentPaymentsSettleContribution(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(t *testing.T) storage.Store) {
		ctx := context.Background()
		f := newFixture(t, newStore, Options{})
		run := f.session(t, 1, 100)
		alice := f.user(t, "alice")
		f.enroll(t, run.ID, alice.ID, 1)
		if _, err := f.svc.GenerateSchedule(ctx, run.ID); err != nil {
			t.Fatalf("GenerateSchedule failed: %v", err)
		}
		contributions, err := f.svc.ListContributions(ctx, run.ID)
		if err != nil {
			t.Fatalf("ListContributions failed: %v", err)
		}
		c := contributions[0]
		for i := 0; i < 7; i++ {
			e := &models.LedgerEntry{UserID: alice.ID, ContributionID: c.ID, Amount: c.Amount}
			if err := f.store.CreateLedgerEntry(ctx, e); err != nil {
				t.Fatalf("CreateLedgerEntry failed: %v", err)
			}
		}
		entries := f.entriesOf(t, c.ID)

		var wg sync.WaitGroup
		errs := make(chan error, len(entries))
		for _, e := range entries {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := f.svc.RecordPayment(ctx, id, nil); err != nil {
					errs <- err
				}
			}(e.ID)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("RecordPayment failed: %v", err)
		}

		got, err := f.store.GetContribution(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetContribution failed: %v", err)
		}
		if got.Status != models.ContributionPaid {
			t.Errorf("status = %s, want PAID after all concurrent payments", got.Status)
		}
		if n := testutil.ToFloat64(f.metrics.ContributionsPaid); n != 1 {
			t.Errorf("contributions paid = %v, want 1", n)
		}
	})
}

func TestConcurrentPaymentsOnSameEntry(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(t *testing.T) storage.Store) {
		ctx := context.Background()
		f := newFixture(t, newStore, Options{})
		run := f.session(t, 1, 100)
		alice := f.user(t, "alice")
		f.enroll(t, run.ID, alice.ID, 1)
		if _, err := f.svc.GenerateSchedule(ctx, run.ID); err != nil {
			t.Fatalf("GenerateSchedule failed: %v", err)
		}
		contributions, err := f.svc.ListContributions(ctx, run.ID)
		if err != nil {
			t.Fatalf("ListContributions failed: %v", err)
		}
		entry := f.entriesOf(t, contributions[0].ID)[0]

		const callers = 6
		results := make(chan *PaymentResult, callers)
		errs := make(chan error, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(day int) {
				defer wg.Done()
				paidOn := startDate.AddDate(0, 0, day)
				result, err := f.svc.RecordPayment(ctx, entry.ID, &paidOn)
				if err != nil {
					errs <- err
					return
				}
				results <- result
			}(i + 1)
		}
		wg.Wait()
		close(errs)
		close(results)
		for err := range errs {
			t.Errorf("RecordPayment failed: %v", err)
		}

		if n := testutil.ToFloat64(f.metrics.PaymentsRecorded); n != 1 {
			t.Errorf("payments recorded = %v, want 1", n)
		}

		stored, err := f.store.GetLedgerEntry(ctx, entry.ID)
		if err != nil {
			t.Fatalf("GetLedgerEntry failed: %v", err)
		}
		if stored.PaymentDate == nil {
			t.Fatal("payment date not stored")
		}
		for result := range results {
			if result.ContributionStatus != models.ContributionPaid {
				t.Errorf("contribution status = %s, want PAID", result.ContributionStatus)
			}
			if result.Entry.PaymentDate == nil || !result.Entry.PaymentDate.Equal(*stored.PaymentDate) {
				t.Errorf("payment date = %v, want the first recorded %v", result.Entry.PaymentDate, *stored.PaymentDate)
			}
		}
	})
}

func TestSetWinner(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, opts Options) (*fixture, *models.Contribution, *models.User) {
		f := newFixture(t, storeFactories["sqlite"], opts)
		run := f.session(t, 2, 100)
		alice := f.user(t, "alice")
		f.enroll(t, run.ID, alice.ID, 1)
		if _, err := f.svc.GenerateSchedule(ctx, run.ID); err != nil {
			t.Fatalf("GenerateSchedule failed: %v", err)
		}
		contributions, err := f.svc.ListContributions(ctx, run.ID)
		if err != nil {
			t.Fatalf("ListContributions failed: %v", err)
		}
		return f, contributions[0], alice
	}

	t.Run("non-member is rejected and state unchanged", func(t *testing.T) {
		f, c, _ := setup(t, Options{})
		outsider := f.user(t, "mallory")

		_, err := f.svc.SetWinner(ctx, c.ID, outsider.ID)
		if !apperrors.Is(err, apperrors.KindInvalidArgument) {
			t.Fatalf("got %v, want InvalidArgument", err)
		}
		got, err := f.store.GetContribution(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetContribution failed: %v", err)
		}
		if got.Status != models.ContributionPending || got.HasWinner() {
			t.Errorf("contribution changed: status %s winner %q", got.Status, got.WinnerUserID)
		}
	})

	t.Run("unknown contribution", func(t *testing.T) {
		f, _, alice := setup(t, Options{})
		_, err := f.svc.SetWinner(ctx, "missing", alice.ID)
		if !apperrors.Is(err, apperrors.KindNotFound) {
			t.Fatalf("got %v, want NotFound", err)
		}
	})

	t.Run("pending contribution accepts a winner", func(t *testing.T) {
		f, c, alice := setup(t, Options{})
		got, err := f.svc.SetWinner(ctx, c.ID, alice.ID)
		if err != nil {
			t.Fatalf("SetWinner failed: %v", err)
		}
		if got.Status != models.ContributionReceived {
			t.Errorf("status = %s, want RECEIVED", got.Status)
		}

		// A later payment does not downgrade RECEIVED to PAID.
		entry := f.entriesOf(t, c.ID)[0]
		result, err := f.svc.RecordPayment(ctx, entry.ID, nil)
		if err != nil {
			t.Fatalf("RecordPayment failed: %v", err)
		}
		if result.ContributionStatus != models.ContributionReceived {
			t.Errorf("status after payment = %s, want RECEIVED", result.ContributionStatus)
		}
	})

	t.Run("second winner overwrites the first", func(t *testing.T) {
		f, c, alice := setup(t, Options{})
		bob := f.user(t, "bob")
		f.enroll(t, c.RunID, bob.ID, 1)

		if _, err := f.svc.SetWinner(ctx, c.ID, alice.ID); err != nil {
			t.Fatalf("SetWinner failed: %v", err)
		}
		got, err := f.svc.SetWinner(ctx, c.ID, bob.ID)
		if err != nil {
			t.Fatalf("SetWinner failed: %v", err)
		}
		if got.WinnerUserID != bob.ID {
			t.Errorf("winner = %s, want %s", got.WinnerUserID, bob.ID)
		}
	})

	t.Run("paid gate rejects pending contribution", func(t *testing.T) {
		f, c, alice := setup(t, Options{RequirePaidBeforeWinner: true})
		_, err := f.svc.SetWinner(ctx, c.ID, alice.ID)
		if !apperrors.Is(err, apperrors.KindInvalidArgument) {
			t.Fatalf("got %v, want InvalidArgument", err)
		}

		entry := f.entriesOf(t, c.ID)[0]
		if _, err := f.svc.RecordPayment(ctx, entry.ID, nil); err != nil {
			t.Fatalf("RecordPayment failed: %v", err)
		}
		if _, err := f.svc.SetWinner(ctx, c.ID, alice.ID); err != nil {
			t.Fatalf("SetWinner after payment failed: %v", err)
		}
	})
}

func TestEnroll(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(t *testing.T) storage.Store) {
		ctx := context.Background()
		f := newFixture(t, newStore, Options{Defaults: config.Defaults{Parts: 2, Role: models.RoleUser}})
		run := f.session(t, 3, 100)
		alice := f.user(t, "alice")

		m, err := f.svc.Enroll(ctx, run.ID, alice.ID, nil)
		if err != nil {
			t.Fatalf("Enroll failed: %v", err)
		}
		if m.NumberOfParts != 2 {
			t.Errorf("parts = %d, want configured default 2", m.NumberOfParts)
		}

		zero := 0
		tests := []struct {
			name     string
			runID    string
			userID   string
			parts    *int
			wantKind apperrors.Kind
		}{
			{"duplicate pair", run.ID, alice.ID, nil, apperrors.KindConflict},
			{"unknown session", "missing", alice.ID, nil, apperrors.KindNotFound},
			{"unknown user", run.ID, "missing", nil, apperrors.KindNotFound},
			{"zero parts", run.ID, alice.ID, &zero, apperrors.KindInvalidArgument},
			{"empty user", run.ID, "", nil, apperrors.KindInvalidArgument},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Enroll(ctx, tt.runID, tt.userID, tt.parts)
				if !apperrors.Is(err, tt.wantKind) {
					t.Fatalf("got %v, want %s", err, tt.wantKind)
				}
			})
		}
	})
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, storeFactories["sqlite"], Options{})

	t.Run("create validation", func(t *testing.T) {
		tests := []struct {
			name string
			in   CreateSessionInput
		}{
			{"zero members", CreateSessionInput{MinimalContribution: decimal.NewFromInt(1), StartDate: startDate}},
			{"zero minimal", CreateSessionInput{NumberOfMembers: 1, StartDate: startDate}},
			{"negative minimal", CreateSessionInput{NumberOfMembers: 1, MinimalContribution: decimal.NewFromInt(-5), StartDate: startDate}},
			{"missing start", CreateSessionInput{NumberOfMembers: 1, MinimalContribution: decimal.NewFromInt(1)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.CreateSession(ctx, tt.in)
				if !apperrors.Is(err, apperrors.KindInvalidArgument) {
					t.Fatalf("got %v, want InvalidArgument", err)
				}
			})
		}
	})

	run := f.session(t, 4, 25)

	t.Run("get and list", func(t *testing.T) {
		got, err := f.svc.GetSession(ctx, run.ID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if got.NumberOfMembers != 4 {
			t.Errorf("members = %d, want 4", got.NumberOfMembers)
		}
		if _, err := f.svc.GetSession(ctx, "missing"); !apperrors.Is(err, apperrors.KindNotFound) {
			t.Errorf("got %v, want NotFound", err)
		}
		runs, err := f.svc.ListSessions(ctx)
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("sessions = %d, want 1", len(runs))
		}
	})

	t.Run("close", func(t *testing.T) {
		if _, err := f.svc.CloseSession(ctx, run.ID, startDate.AddDate(0, 0, -1)); !apperrors.Is(err, apperrors.KindInvalidArgument) {
			t.Errorf("got %v, want InvalidArgument", err)
		}
		end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
		closed, err := f.svc.CloseSession(ctx, run.ID, end)
		if err != nil {
			t.Fatalf("CloseSession failed: %v", err)
		}
		if closed.EndDate == nil || !closed.EndDate.Equal(end) {
			t.Errorf("end date = %v, want %v", closed.EndDate, end)
		}
		if _, err := f.svc.CloseSession(ctx, "missing", end); !apperrors.Is(err, apperrors.KindNotFound) {
			t.Errorf("got %v, want NotFound", err)
		}
	})
}

func TestSessionBalances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, storeFactories["sqlite"], Options{})
	run := f.session(t, 2, 100)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	f.enroll(t, run.ID, alice.ID, 1)
	f.enroll(t, run.ID, bob.ID, 1)
	if _, err := f.svc.GenerateSchedule(ctx, run.ID); err != nil {
		t.Fatalf("GenerateSchedule failed: %v", err)
	}

	payments, err := f.svc.ListUserPayments(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListUserPayments failed: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("alice payments = %d, want 2", len(payments))
	}
	if _, err := f.svc.RecordPayment(ctx, payments[0].ID, nil); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if _, err := f.svc.SetWinner(ctx, payments[0].ContributionID, alice.ID); err != nil {
		t.Fatalf("SetWinner failed: %v", err)
	}

	balances, err := f.svc.SessionBalances(ctx, run.ID)
	if err != nil {
		t.Fatalf("SessionBalances failed: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("balances = %d, want 2", len(balances))
	}
	byUser := make(map[string]int)
	for i, b := range balances {
		byUser[b.UserID] = i
	}
	a := balances[byUser[alice.ID]]
	if !a.TotalDue.Equal(decimal.NewFromInt(200)) || !a.TotalPaid.Equal(decimal.NewFromInt(100)) {
		t.Errorf("alice due %s paid %s, want 200/100", a.TotalDue, a.TotalPaid)
	}
	if a.PeriodsWon != 1 || !a.TotalReceived.Equal(decimal.NewFromInt(100)) {
		t.Errorf("alice won %d received %s, want 1/100", a.PeriodsWon, a.TotalReceived)
	}
	b := balances[byUser[bob.ID]]
	if !b.Outstanding.Equal(decimal.NewFromInt(200)) {
		t.Errorf("bob outstanding %s, want 200", b.Outstanding)
	}

	if _, err := f.svc.SessionBalances(ctx, "missing"); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("got %v, want NotFound", err)
	}
	if _, err := f.svc.ListContributionPayments(ctx, "missing"); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("got %v, want NotFound", err)
	}
}
