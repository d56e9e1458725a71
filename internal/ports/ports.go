package ports

import (
	"context"
	"time"

	"timeledger/internal/domain"
)

// Repositories read and write whole documents keyed by tenant and id. Put
// performs an optimistic write: a document whose Version is 0 is inserted,
// otherwise the stored version must equal the document's Version or the write
// fails with domain.ErrStaleWrite. Put returns the document as stored, with
// its Version incremented. A missing document yields domain.ErrNotFound.

// ActivityCodeRepository stores activity codes.
type ActivityCodeRepository interface {
	Get(ctx context.Context, tenantID, id string) (domain.ActivityCode, error)
	List(ctx context.Context, tenantID string) ([]domain.ActivityCode, error)
	FindByCode(ctx context.Context, tenantID, code string) ([]domain.ActivityCode, error)
	Put(ctx context.Context, c domain.ActivityCode) (domain.ActivityCode, error)
	Delete(ctx context.Context, tenantID, id string, version int64) error
}

// ProjectRepository stores projects.
type ProjectRepository interface {
	Get(ctx context.Context, tenantID, id string) (domain.Project, error)
	List(ctx context.Context, tenantID string) ([]domain.Project, error)
	FindByCode(ctx context.Context, tenantID, code string) ([]domain.Project, error)
	Put(ctx context.Context, p domain.Project) (domain.Project, error)
}

// TimeEntryRepository stores time entries.
type TimeEntryRepository interface {
	Get(ctx context.Context, tenantID, id string) (domain.TimeEntry, error)
	ListByEmployeeDate(ctx context.Context, tenantID, employeeID string, date time.Time) ([]domain.TimeEntry, error)
	ListByTimesheet(ctx context.Context, tenantID, timesheetID string) ([]domain.TimeEntry, error)
	ListByProject(ctx context.Context, tenantID, projectID string) ([]domain.TimeEntry, error)
	ListByActivityCode(ctx context.Context, tenantID, activityCodeID string) ([]domain.TimeEntry, error)
	Put(ctx context.Context, e domain.TimeEntry) (domain.TimeEntry, error)
	Delete(ctx context.Context, tenantID, id string, version int64) error
}

// TimesheetRepository stores timesheets.
type TimesheetRepository interface {
	Get(ctx context.Context, tenantID, id string) (domain.Timesheet, error)
	ListByEmployee(ctx context.Context, tenantID, employeeID string) ([]domain.Timesheet, error)
	Put(ctx context.Context, t domain.Timesheet) (domain.Timesheet, error)
}

// Store bundles the repositories of one backing store.
type Store interface {
	ActivityCodes() ActivityCodeRepository
	Projects() ProjectRepository
	TimeEntries() TimeEntryRepository
	Timesheets() TimesheetRepository
	Close() error
}
