package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"timeledger/internal/domain"
	"timeledger/internal/ports"
)

// TimeEntryValidator checks entries against project access rules and
// reports scheduling conflicts. Conflicts are advisory and never returned as
// errors.
type TimeEntryValidator struct {
	Log      *slog.Logger
	Projects ports.ProjectRepository
	Codes    ports.ActivityCodeRepository
	Entries  ports.TimeEntryRepository
}

func (v *TimeEntryValidator) ready() error {
	if v.Projects == nil || v.Codes == nil || v.Entries == nil {
		return errNotInitialized
	}
	return nil
}

// ValidateEntry runs field checks, then the project access checks for
// billable entries.
func (v *TimeEntryValidator) ValidateEntry(ctx context.Context, e domain.TimeEntry) error {
	_, err := v.validate(ctx, e, true)
	return err
}

// validate returns the entry's project when it has one. Without checkAccess
// only field rules are checked; the project is still loaded for pricing.
func (v *TimeEntryValidator) validate(ctx context.Context, e domain.TimeEntry, checkAccess bool) (*domain.Project, error) {
	if err := v.ready(); err != nil {
		return nil, err
	}
	if err := validateFields(e); err != nil {
		return nil, err
	}
	if !checkAccess {
		if e.ProjectID == "" {
			return nil, nil
		}
		p, err := v.Projects.Get(ctx, e.TenantID, e.ProjectID)
		if err != nil {
			return nil, err
		}
		return &p, nil
	}
	if e.ActivityCodeID != "" {
		code, err := v.Codes.Get(ctx, e.TenantID, e.ActivityCodeID)
		if err != nil {
			return nil, err
		}
		if !code.IsActive {
			return nil, domain.Validation("activityCodeId", "activity code %s is inactive", code.Code)
		}
	}
	if e.ProjectID == "" {
		if e.Billable {
			return nil, domain.Validation("projectId", "billable time entries require a project")
		}
		return nil, nil
	}
	p, err := v.Projects.Get(ctx, e.TenantID, e.ProjectID)
	if err != nil {
		return nil, err
	}
	if e.Billable {
		if err := p.ValidateEmployeeAccess(e.EmployeeID); err != nil {
			return nil, err
		}
		if err := p.ValidateActivityCodeAccess(e.ActivityCodeID); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func validateFields(e domain.TimeEntry) error {
	if e.EmployeeID == "" {
		return domain.Validation("employeeId", "is required")
	}
	if e.Date.IsZero() {
		return domain.Validation("date", "is required")
	}
	if e.Duration < 0 {
		return domain.Validation("duration", "cannot be negative")
	}
	if e.HasTimeRange() && *e.StartTime >= *e.EndTime {
		return domain.Validation("endTime", "must be after startTime")
	}
	return nil
}

// DetectConflicts parses raw caller input and reports overlaps with the
// employee's entries on that day. excludeEntryID skips the entry being edited.
func (v *TimeEntryValidator) DetectConflicts(ctx context.Context, tenantID, employeeID, date, startTime, endTime, excludeEntryID string) (domain.ConflictReport, error) {
	if employeeID == "" {
		return domain.ConflictReport{}, domain.Validation("employeeId", "is required")
	}
	day, err := domain.ParseDate("date", date)
	if err != nil {
		return domain.ConflictReport{}, err
	}
	start, err := domain.ParseClockTime("startTime", startTime)
	if err != nil {
		return domain.ConflictReport{}, err
	}
	end, err := domain.ParseClockTime("endTime", endTime)
	if err != nil {
		return domain.ConflictReport{}, err
	}
	if start >= end {
		return domain.ConflictReport{}, domain.Validation("endTime", "must be after startTime")
	}
	return v.detect(ctx, tenantID, employeeID, day, start, end, excludeEntryID)
}

func (v *TimeEntryValidator) detect(ctx context.Context, tenantID, employeeID string, day time.Time, start, end domain.ClockTime, excludeEntryID string) (domain.ConflictReport, error) {
	if err := v.ready(); err != nil {
		return domain.ConflictReport{}, err
	}
	existing, err := v.Entries.ListByEmployeeDate(ctx, tenantID, employeeID, day)
	if err != nil {
		return domain.ConflictReport{}, err
	}
	others := existing[:0:0]
	for _, e := range existing {
		if excludeEntryID != "" && e.ID == excludeEntryID {
			continue
		}
		others = append(others, e)
	}
	return domain.DetectConflicts(start, end, others), nil
}

// EntryResult is a persisted entry together with the conflict report taken
// before the write. Conflicts is nil when the entry has no clock bounds.
type EntryResult struct {
	Entry     domain.TimeEntry
	Conflicts *domain.ConflictReport
}

// TimeEntryService persists time entries. Each write runs, in order: field
// validation, project access (on create, or when an update changes who or
// what the time is booked against), timesheet mutability, conflict detection,
// rate resolution, then a single document write. Conflict detection reads a
// snapshot, so two concurrent overlapping writes can both succeed.
type TimeEntryService struct {
	Log        *slog.Logger
	Validator  *TimeEntryValidator
	Entries    ports.TimeEntryRepository
	Timesheets ports.TimesheetRepository
	Codes      ports.ActivityCodeRepository
	Now        Clock
	NewID      IDFunc
}

func (s *TimeEntryService) ready() error {
	if s.Validator == nil || s.Entries == nil || s.Timesheets == nil || s.Codes == nil {
		return errNotInitialized
	}
	return nil
}

func (s *TimeEntryService) Get(ctx context.Context, tenantID, id string) (domain.TimeEntry, error) {
	if err := s.ready(); err != nil {
		return domain.TimeEntry{}, err
	}
	return s.Entries.Get(ctx, tenantID, id)
}

func (s *TimeEntryService) Create(ctx context.Context, actor domain.Actor, in domain.TimeEntryInput) (EntryResult, error) {
	if err := s.ready(); err != nil {
		return EntryResult{}, err
	}
	e, err := domain.NewTimeEntry(actor, s.NewID.next(), in, s.Now.now())
	if err != nil {
		return EntryResult{}, err
	}
	return s.write(ctx, e, "", true)
}

// Update applies patch to an entry whose timesheet still permits changes.
func (s *TimeEntryService) Update(ctx context.Context, actor domain.Actor, id string, version int64, patch domain.TimeEntryPatch) (EntryResult, error) {
	if err := s.ready(); err != nil {
		return EntryResult{}, err
	}
	if err := actor.Validate(); err != nil {
		return EntryResult{}, err
	}
	cur, err := s.Entries.Get(ctx, actor.TenantID, id)
	if err != nil {
		return EntryResult{}, err
	}
	if err := domain.CheckVersion("time entry", id, cur.Version, version); err != nil {
		return EntryResult{}, err
	}
	if err := s.ensureOwnerMutable(ctx, cur); err != nil {
		return EntryResult{}, err
	}
	next, err := cur.Apply(actor, patch, s.Now.now())
	if err != nil {
		return EntryResult{}, err
	}
	if patch.HourlyRate == nil && (patch.ProjectID != nil || patch.ActivityCodeID != nil || patch.Billable != nil) {
		next = next.WithRate(nil)
	}
	return s.write(ctx, next, id, accessChanged(cur, next))
}

// accessChanged reports whether an edit touches the fields the project access
// rules look at. Other edits stay possible after the project closes or the
// employee is unassigned.
func accessChanged(cur, next domain.TimeEntry) bool {
	return cur.EmployeeID != next.EmployeeID ||
		cur.ProjectID != next.ProjectID ||
		cur.ActivityCodeID != next.ActivityCodeID ||
		cur.Billable != next.Billable
}

// Delete removes an entry whose timesheet still permits changes.
func (s *TimeEntryService) Delete(ctx context.Context, actor domain.Actor, id string, version int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := actor.Validate(); err != nil {
		return err
	}
	cur, err := s.Entries.Get(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	if err := domain.CheckVersion("time entry", id, cur.Version, version); err != nil {
		return err
	}
	if err := s.ensureOwnerMutable(ctx, cur); err != nil {
		return err
	}
	if err := s.Entries.Delete(ctx, actor.TenantID, id, version); err != nil {
		return err
	}
	logOrDefault(s.Log).Info("time entry deleted", slog.String("tenant", actor.TenantID), slog.String("id", id))
	return nil
}

func (s *TimeEntryService) write(ctx context.Context, e domain.TimeEntry, excludeID string, checkAccess bool) (EntryResult, error) {
	log := logOrDefault(s.Log)
	project, err := s.Validator.validate(ctx, e, checkAccess)
	if err != nil {
		return EntryResult{}, err
	}
	if e.TimesheetID != "" {
		ts, err := s.Timesheets.Get(ctx, e.TenantID, e.TimesheetID)
		if err != nil {
			return EntryResult{}, err
		}
		if err := ts.AcceptEntry(e); err != nil {
			return EntryResult{}, err
		}
	}

	var report *domain.ConflictReport
	if e.HasTimeRange() {
		r, err := s.Validator.detect(ctx, e.TenantID, e.EmployeeID, e.Date, *e.StartTime, *e.EndTime, excludeID)
		if err != nil {
			return EntryResult{}, err
		}
		report = &r
		if r.HasConflicts || len(r.Warnings) > 0 {
			log.Warn("time entry conflicts detected",
				slog.String("tenant", e.TenantID),
				slog.String("employee", e.EmployeeID),
				slog.String("date", e.Date.Format(domain.DateLayout)),
				slog.Int("conflicts", len(r.Conflicts)),
				slog.Int("warnings", len(r.Warnings)),
			)
		}
	}

	if e.Billable && e.HourlyRate == nil {
		rate, err := s.resolveRate(ctx, e, project)
		if err != nil {
			return EntryResult{}, err
		}
		e = e.WithRate(rate)
	}

	saved, err := s.Entries.Put(ctx, e)
	if err != nil {
		return EntryResult{}, err
	}
	log.Info("time entry saved",
		slog.String("tenant", saved.TenantID),
		slog.String("id", saved.ID),
		slog.String("employee", saved.EmployeeID),
		slog.Int("duration", saved.Duration),
		slog.Int64("version", saved.Version),
	)
	return EntryResult{Entry: saved, Conflicts: report}, nil
}

// resolveRate picks the activity code's default rate, then the project's.
func (s *TimeEntryService) resolveRate(ctx context.Context, e domain.TimeEntry, project *domain.Project) (*float64, error) {
	if e.ActivityCodeID != "" {
		code, err := s.Codes.Get(ctx, e.TenantID, e.ActivityCodeID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if err == nil && code.Billable && code.DefaultRate != nil {
			return code.DefaultRate, nil
		}
	}
	if project != nil && project.DefaultHourlyRate != nil {
		return project.DefaultHourlyRate, nil
	}
	return nil, nil
}

// ensureOwnerMutable fails when the entry's current timesheet is approved or
// locked.
func (s *TimeEntryService) ensureOwnerMutable(ctx context.Context, e domain.TimeEntry) error {
	if e.TimesheetID == "" {
		return nil
	}
	ts, err := s.Timesheets.Get(ctx, e.TenantID, e.TimesheetID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return ts.EnsureMutable()
}
