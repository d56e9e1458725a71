// Package sqlstore persists the engine's documents in a SQL database. Each
// entity lives in its own table as a JSON body plus the columns needed for
// tenant-scoped field queries. No write spans more than one row.
package sqlstore

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"timeledger/internal/domain"
	"timeledger/internal/ports"
)

// Store implements ports.Store on top of a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger

	codes    activityCodes
	projects projects
	entries  timeEntries
	sheets   timesheets
}

var _ ports.Store = (*Store)(nil)

// New wraps an open database. Migrations must already have been applied.
func New(db *sql.DB, dialect Dialect, log *slog.Logger) *Store {
	s := &Store{db: db, dialect: dialect, log: log}
	s.codes = activityCodes{&table[domain.ActivityCode]{
		db:      db,
		dialect: dialect,
		log:     log,
		name:    "activity_codes",
		kind:    "activity code",
		columns: []string{"code", "parent_id"},
		meta: func(c domain.ActivityCode) (string, string, int64) {
			return c.TenantID, c.ID, c.Version
		},
		index: func(c domain.ActivityCode) []any { return []any{c.Code, c.ParentID} },
		bump: func(c domain.ActivityCode, v int64) domain.ActivityCode {
			c.Version = v
			return c
		},
	}}
	s.projects = projects{&table[domain.Project]{
		db:      db,
		dialect: dialect,
		log:     log,
		name:    "projects",
		kind:    "project",
		columns: []string{"code", "status"},
		meta: func(p domain.Project) (string, string, int64) {
			return p.TenantID, p.ID, p.Version
		},
		index: func(p domain.Project) []any { return []any{p.Code, string(p.Status)} },
		bump: func(p domain.Project, v int64) domain.Project {
			p.Version = v
			return p
		},
	}}
	s.entries = timeEntries{&table[domain.TimeEntry]{
		db:      db,
		dialect: dialect,
		log:     log,
		name:    "time_entries",
		kind:    "time entry",
		columns: []string{"employee_id", "project_id", "activity_code_id", "timesheet_id", "entry_date"},
		meta: func(e domain.TimeEntry) (string, string, int64) {
			return e.TenantID, e.ID, e.Version
		},
		index: func(e domain.TimeEntry) []any {
			return []any{e.EmployeeID, e.ProjectID, e.ActivityCodeID, e.TimesheetID, e.Date.Format(domain.DateLayout)}
		},
		bump: func(e domain.TimeEntry, v int64) domain.TimeEntry {
			e.Version = v
			return e
		},
	}}
	s.sheets = timesheets{&table[domain.Timesheet]{
		db:      db,
		dialect: dialect,
		log:     log,
		name:    "timesheets",
		kind:    "timesheet",
		columns: []string{"employee_id", "status"},
		meta: func(t domain.Timesheet) (string, string, int64) {
			return t.TenantID, t.ID, t.Version
		},
		index: func(t domain.Timesheet) []any { return []any{t.EmployeeID, string(t.Status)} },
		bump: func(t domain.Timesheet, v int64) domain.Timesheet {
			t.Version = v
			return t
		},
	}}
	return s
}

func (s *Store) ActivityCodes() ports.ActivityCodeRepository { return s.codes }
func (s *Store) Projects() ports.ProjectRepository { return s.projects }
func (s *Store) TimeEntries() ports.TimeEntryRepository { return s.entries }
func (s *Store) Timesheets() ports.TimesheetRepository { return s.sheets }

// DB exposes the underlying pool, e.g. for migrations.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the SQL dialect of the store.
func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Close() error { return s.db.Close() }

type activityCodes struct{ t *table[domain.ActivityCode] }

func (r activityCodes) Get(ctx context.Context, tenantID, id string) (domain.ActivityCode, error) {
	return r.t.get(ctx, tenantID, id)
}

func (r activityCodes) List(ctx context.Context, tenantID string) ([]domain.ActivityCode, error) {
	return r.t.query(ctx, tenantID)
}

func (r activityCodes) FindByCode(ctx context.Context, tenantID, code string) ([]domain.ActivityCode, error) {
	return r.t.query(ctx, tenantID, filter{"Code", code})
}

func (r activityCodes) Put(ctx context.Context, c domain.ActivityCode) (domain.ActivityCode, error) {
	return r.t.put(ctx, c)
}

func (r activityCodes) Delete(ctx context.Context, tenantID, id string, version int64) error {
	return r.t.delete(ctx, tenantID, id, version)
}

type projects struct{ t *table[domain.Project] }

func (r projects) Get(ctx context.Context, tenantID, id string) (domain.Project, error) {
	return r.t.get(ctx, tenantID, id)
}

func (r projects) List(ctx context.Context, tenantID string) ([]domain.Project, error) {
	return r.t.query(ctx, tenantID)
}

func (r projects) FindByCode(ctx context.Context, tenantID, code string) ([]domain.Project, error) {
	return r.t.query(ctx, tenantID, filter{"Code", code})
}

func (r projects) Put(ctx context.Context, p domain.Project) (domain.Project, error) {
	return r.t.put(ctx, p)
}

type timeEntries struct{ t *table[domain.TimeEntry] }

func (r timeEntries) Get(ctx context.Context, tenantID, id string) (domain.TimeEntry, error) {
	return r.t.get(ctx, tenantID, id)
}

func (r timeEntries) ListByEmployeeDate(ctx context.Context, tenantID, employeeID string, date time.Time) ([]domain.TimeEntry, error) {
	return r.t.query(ctx, tenantID,
		filter{"EmployeeID", employeeID},
		filter{"EntryDate", domain.Day(date).Format(domain.DateLayout)},
	)
}

func (r timeEntries) ListByTimesheet(ctx context.Context, tenantID, timesheetID string) ([]domain.TimeEntry, error) {
	return r.t.query(ctx, tenantID, filter{"TimesheetID", timesheetID})
}

func (r timeEntries) ListByProject(ctx context.Context, tenantID, projectID string) ([]domain.TimeEntry, error) {
	return r.t.query(ctx, tenantID, filter{"ProjectID", projectID})
}

func (r timeEntries) ListByActivityCode(ctx context.Context, tenantID, activityCodeID string) ([]domain.TimeEntry, error) {
	return r.t.query(ctx, tenantID, filter{"ActivityCodeID", activityCodeID})
}

func (r timeEntries) Put(ctx context.Context, e domain.TimeEntry) (domain.TimeEntry, error) {
	return r.t.put(ctx, e)
}

func (r timeEntries) Delete(ctx context.Context, tenantID, id string, version int64) error {
	return r.t.delete(ctx, tenantID, id, version)
}

type timesheets struct{ t *table[domain.Timesheet] }

func (r timesheets) Get(ctx context.Context, tenantID, id string) (domain.Timesheet, error) {
	return r.t.get(ctx, tenantID, id)
}

func (r timesheets) ListByEmployee(ctx context.Context, tenantID, employeeID string) ([]domain.Timesheet, error) {
	return r.t.query(ctx, tenantID, filter{"EmployeeID", employeeID})
}

func (r timesheets) Put(ctx context.Context, t domain.Timesheet) (domain.Timesheet, error) {
	return r.t.put(ctx, t)
}
