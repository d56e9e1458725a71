package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"timeledger/internal/adapter/sqlstore"
	"timeledger/internal/domain"
	"timeledger/internal/migrate"
)

var (
	admin = domain.Actor{TenantID: "acme", UserID: "admin"}
	jan10 = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	store     *sqlstore.Store
	codes     *ActivityCodeRegistry
	ledger    *ProjectLedger
	validator *TimeEntryValidator
	entries   *TimeEntryService
	sheets    *TimesheetWorkflow
	sweep     *SweepUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "engine.db"), log)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := migrate.Run(ctx, store.DB(), string(store.Dialect()), log); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var seq atomic.Int64
	newID := IDFunc(func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) })
	now := Clock(func() time.Time { return jan10.Add(8 * time.Hour) })

	f := &fixture{store: store}
	f.codes = &ActivityCodeRegistry{Log: log, Codes: store.ActivityCodes(), Entries: store.TimeEntries(), Now: now, NewID: newID}
	f.ledger = &ProjectLedger{Log: log, Projects: store.Projects(), Codes: store.ActivityCodes(), Entries: store.TimeEntries(), Now: now, NewID: newID}
	f.validator = &TimeEntryValidator{Log: log, Projects: store.Projects(), Codes: store.ActivityCodes(), Entries: store.TimeEntries()}
	f.entries = &TimeEntryService{
		Log:        log,
		Validator:  f.validator,
		Entries:    store.TimeEntries(),
		Timesheets: store.Timesheets(),
		Codes:      store.ActivityCodes(),
		Now:        now,
		NewID:      newID,
	}
	f.sheets = &TimesheetWorkflow{
		Log:        log,
		Timesheets: store.Timesheets(),
		Entries:    store.TimeEntries(),
		Projects:   store.Projects(),
		Service:    f.entries,
		Now:        now,
		NewID:      newID,
	}
	f.sweep = &SweepUseCase{Log: log, Codes: f.codes, Ledger: f.ledger, Projects: store.Projects()}
	return f
}

func (f *fixture) code(t *testing.T, code string, rate *float64, parentID string) domain.ActivityCode {
	t.Helper()
	c, err := f.codes.Create(context.Background(), admin, domain.ActivityCodeInput{
		Code: code, Name: code + " work", Category: "engineering", Billable: rate != nil, DefaultRate: rate,
	}, parentID)
	if err != nil {
		t.Fatalf("create code %s: %v", code, err)
	}
	return c
}

// project creates an active billable project with the given employees
// assigned.
func (f *fixture) project(t *testing.T, code string, in domain.ProjectInput, employees ...string) domain.Project {
	t.Helper()
	ctx := context.Background()
	in.Code = code
	if in.Name == "" {
		in.Name = code + " project"
	}
	in.Billable = true
	p, err := f.ledger.Create(ctx, admin, in)
	if err != nil {
		t.Fatalf("create project %s: %v", code, err)
	}
	if len(employees) > 0 {
		if p, err = f.ledger.AssignEmployees(ctx, admin, p.ID, p.Version, employees); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}
	return p
}

func (f *fixture) timesheet(t *testing.T, employeeID string) domain.Timesheet {
	t.Helper()
	ts, err := f.sheets.Create(context.Background(), admin, employeeID, jan10, jan10.AddDate(0, 0, 6))
	if err != nil {
		t.Fatalf("create timesheet: %v", err)
	}
	return ts
}

func clock(s string) *domain.ClockTime {
	c := domain.MustClock(s)
	return &c
}

func ptr[T any](v T) *T { return &v }

func TestNotInitialized(t *testing.T) {
	ctx := context.Background()
	if _, err := (&ActivityCodeRegistry{}).List(ctx, "acme"); err != errNotInitialized {
		t.Fatalf("registry: %v", err)
	}
	if _, err := (&ProjectLedger{}).Get(ctx, "acme", "p"); err != errNotInitialized {
		t.Fatalf("ledger: %v", err)
	}
	if err := (&TimeEntryValidator{}).ValidateEntry(ctx, domain.TimeEntry{}); err != errNotInitialized {
		t.Fatalf("validator: %v", err)
	}
	if _, err := (&TimesheetWorkflow{}).Get(ctx, "acme", "ts"); err != errNotInitialized {
		t.Fatalf("workflow: %v", err)
	}
	if _, err := (&SweepUseCase{}).Run(ctx, nil); err != errNotInitialized {
		t.Fatalf("sweep: %v", err)
	}
}
