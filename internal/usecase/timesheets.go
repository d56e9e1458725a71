package usecase

import (
	"context"
	"log/slog"
	"time"

	"timeledger/internal/domain"
	"timeledger/internal/ports"
)

// TimesheetWorkflow drives the approval state machine and owns the entries
// attached to each timesheet. Totals are recomputed on demand from the
// entries currently persisted.
type TimesheetWorkflow struct {
	Log        *slog.Logger
	Timesheets ports.TimesheetRepository
	Entries    ports.TimeEntryRepository
	Projects   ports.ProjectRepository
	Service    *TimeEntryService
	Now        Clock
	NewID      IDFunc
}

func (w *TimesheetWorkflow) ready() error {
	if w.Timesheets == nil || w.Entries == nil || w.Projects == nil || w.Service == nil {
		return errNotInitialized
	}
	return nil
}

// Create opens a draft timesheet. An employee cannot have two timesheets
// sharing a day.
func (w *TimesheetWorkflow) Create(ctx context.Context, actor domain.Actor, employeeID string, periodStart, periodEnd time.Time) (domain.Timesheet, error) {
	if err := w.ready(); err != nil {
		return domain.Timesheet{}, err
	}
	t, err := domain.NewTimesheet(actor, w.NewID.next(), employeeID, periodStart, periodEnd, w.Now.now())
	if err != nil {
		return domain.Timesheet{}, err
	}
	existing, err := w.Timesheets.ListByEmployee(ctx, t.TenantID, t.EmployeeID)
	if err != nil {
		return domain.Timesheet{}, err
	}
	for _, other := range existing {
		if other.OverlapsPeriod(t.PeriodStart, t.PeriodEnd) {
			return domain.Timesheet{}, domain.Invariant("timesheet %s already covers part of %s..%s",
				other.ID, t.PeriodStart.Format(domain.DateLayout), t.PeriodEnd.Format(domain.DateLayout))
		}
	}
	saved, err := w.Timesheets.Put(ctx, t)
	if err != nil {
		return domain.Timesheet{}, err
	}
	logOrDefault(w.Log).Info("timesheet created",
		slog.String("tenant", saved.TenantID),
		slog.String("id", saved.ID),
		slog.String("employee", saved.EmployeeID),
	)
	return saved, nil
}

func (w *TimesheetWorkflow) Get(ctx context.Context, tenantID, id string) (domain.Timesheet, error) {
	if err := w.ready(); err != nil {
		return domain.Timesheet{}, err
	}
	return w.Timesheets.Get(ctx, tenantID, id)
}

// Submit moves a draft to submitted. When every entry belongs to a project
// with autoApprove set, the timesheet is approved in the same write.
func (w *TimesheetWorkflow) Submit(ctx context.Context, actor domain.Actor, id string, version int64) (domain.Timesheet, error) {
	return w.mutate(ctx, actor, id, version, "submit", func(t domain.Timesheet) (domain.Timesheet, error) {
		entries, err := w.Entries.ListByTimesheet(ctx, t.TenantID, t.ID)
		if err != nil {
			return t, err
		}
		now := w.Now.now()
		next, err := t.Submit(actor, len(entries), now)
		if err != nil {
			return t, err
		}
		auto, err := w.autoApprove(ctx, t.TenantID, entries)
		if err != nil {
			return t, err
		}
		if auto {
			return next.Approve(actor, now)
		}
		return next, nil
	})
}

func (w *TimesheetWorkflow) Approve(ctx context.Context, actor domain.Actor, id string, version int64) (domain.Timesheet, error) {
	return w.mutate(ctx, actor, id, version, "approve", func(t domain.Timesheet) (domain.Timesheet, error) {
		return t.Approve(actor, w.Now.now())
	})
}

func (w *TimesheetWorkflow) Reject(ctx context.Context, actor domain.Actor, id string, version int64, reason string) (domain.Timesheet, error) {
	return w.mutate(ctx, actor, id, version, "reject", func(t domain.Timesheet) (domain.Timesheet, error) {
		return t.Reject(actor, reason, w.Now.now())
	})
}

func (w *TimesheetWorkflow) Lock(ctx context.Context, actor domain.Actor, id string, version int64) (domain.Timesheet, error) {
	return w.mutate(ctx, actor, id, version, "lock", func(t domain.Timesheet) (domain.Timesheet, error) {
		return t.Lock(actor, w.Now.now())
	})
}

func (w *TimesheetWorkflow) Unlock(ctx context.Context, actor domain.Actor, id string, version int64) (domain.Timesheet, error) {
	return w.mutate(ctx, actor, id, version, "unlock", func(t domain.Timesheet) (domain.Timesheet, error) {
		return t.Unlock(actor, w.Now.now())
	})
}

func (w *TimesheetWorkflow) ReturnToDraft(ctx context.Context, actor domain.Actor, id string, version int64) (domain.Timesheet, error) {
	return w.mutate(ctx, actor, id, version, "return_to_draft", func(t domain.Timesheet) (domain.Timesheet, error) {
		return t.ReturnToDraft(actor, w.Now.now())
	})
}

// CalculateTotals re-reads the timesheet's entries and stores the sums. The
// result reflects whatever entries are committed at read time.
func (w *TimesheetWorkflow) CalculateTotals(ctx context.Context, actor domain.Actor, id string) (domain.Timesheet, error) {
	if err := w.ready(); err != nil {
		return domain.Timesheet{}, err
	}
	if err := actor.Validate(); err != nil {
		return domain.Timesheet{}, err
	}
	t, err := w.Timesheets.Get(ctx, actor.TenantID, id)
	if err != nil {
		return domain.Timesheet{}, err
	}
	entries, err := w.Entries.ListByTimesheet(ctx, actor.TenantID, id)
	if err != nil {
		return domain.Timesheet{}, err
	}
	totals := domain.ComputeTotals(entries)
	if totals == t.Totals {
		return t, nil
	}
	saved, err := w.Timesheets.Put(ctx, t.WithTotals(totals, w.Now.now()))
	if err != nil {
		return domain.Timesheet{}, err
	}
	logOrDefault(w.Log).Debug("timesheet totals recomputed",
		slog.String("tenant", saved.TenantID),
		slog.String("id", saved.ID),
		slog.Int("totalMinutes", totals.TotalMinutes),
		slog.Int("billableMinutes", totals.BillableMinutes),
		slog.Int("entries", totals.EntryCount),
	)
	return saved, nil
}

// AddTimeEntry creates an entry owned by the timesheet. With recalc set the
// totals are recomputed after the write.
func (w *TimesheetWorkflow) AddTimeEntry(ctx context.Context, actor domain.Actor, timesheetID string, in domain.TimeEntryInput, recalc bool) (EntryResult, error) {
	if err := w.ready(); err != nil {
		return EntryResult{}, err
	}
	in.TimesheetID = timesheetID
	res, err := w.Service.Create(ctx, actor, in)
	if err != nil {
		return EntryResult{}, err
	}
	if recalc {
		if _, err := w.CalculateTotals(ctx, actor, timesheetID); err != nil {
			return res, err
		}
	}
	return res, nil
}

// RemoveTimeEntry detaches an entry from the timesheet. The entry itself is
// kept.
func (w *TimesheetWorkflow) RemoveTimeEntry(ctx context.Context, actor domain.Actor, timesheetID, entryID string, version int64, recalc bool) (domain.TimeEntry, error) {
	if err := w.ready(); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := actor.Validate(); err != nil {
		return domain.TimeEntry{}, err
	}
	e, err := w.Entries.Get(ctx, actor.TenantID, entryID)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	if e.TimesheetID != timesheetID {
		return domain.TimeEntry{}, domain.Validation("timesheetId", "entry %s does not belong to timesheet %s", entryID, timesheetID)
	}
	none := ""
	res, err := w.Service.Update(ctx, actor, entryID, version, domain.TimeEntryPatch{TimesheetID: &none})
	if err != nil {
		return domain.TimeEntry{}, err
	}
	if recalc {
		if _, err := w.CalculateTotals(ctx, actor, timesheetID); err != nil {
			return res.Entry, err
		}
	}
	return res.Entry, nil
}

// ImportFailure records why one entry of a bulk import was not persisted.
type ImportFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type ImportResult struct {
	Imported []domain.TimeEntry `json:"imported"`
	Failed   []ImportFailure    `json:"failed"`
	Totals   domain.Totals      `json:"totals"`
}

// BulkImport adds entries one by one. A failing entry does not roll back the
// ones before it; totals are recomputed once at the end. The immutability of
// the timesheet is checked per entry, so an import racing a lock stops
// persisting from the point the lock lands.
func (w *TimesheetWorkflow) BulkImport(ctx context.Context, actor domain.Actor, timesheetID string, inputs []domain.TimeEntryInput) (ImportResult, error) {
	if err := w.ready(); err != nil {
		return ImportResult{}, err
	}
	if err := actor.Validate(); err != nil {
		return ImportResult{}, err
	}
	if _, err := w.Timesheets.Get(ctx, actor.TenantID, timesheetID); err != nil {
		return ImportResult{}, err
	}
	log := logOrDefault(w.Log)
	res := ImportResult{Imported: []domain.TimeEntry{}, Failed: []ImportFailure{}}
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		in.TimesheetID = timesheetID
		r, err := w.Service.Create(ctx, actor, in)
		if err != nil {
			log.Warn("bulk import entry rejected",
				slog.String("timesheet", timesheetID),
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			res.Failed = append(res.Failed, ImportFailure{Index: i, Error: err.Error()})
			continue
		}
		res.Imported = append(res.Imported, r.Entry)
	}
	t, err := w.CalculateTotals(ctx, actor, timesheetID)
	if err != nil {
		return res, err
	}
	res.Totals = t.Totals
	log.Info("bulk import finished",
		slog.String("tenant", actor.TenantID),
		slog.String("timesheet", timesheetID),
		slog.Int("imported", len(res.Imported)),
		slog.Int("failed", len(res.Failed)),
	)
	return res, nil
}

// autoApprove is true when every entry has a project and all of those
// projects opt into automatic approval.
func (w *TimesheetWorkflow) autoApprove(ctx context.Context, tenantID string, entries []domain.TimeEntry) (bool, error) {
	if len(entries) == 0 {
		return false, nil
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.ProjectID == "" {
			return false, nil
		}
		if _, ok := seen[e.ProjectID]; ok {
			continue
		}
		p, err := w.Projects.Get(ctx, tenantID, e.ProjectID)
		if err != nil {
			return false, err
		}
		if !p.Settings.AutoApprove {
			return false, nil
		}
		seen[e.ProjectID] = true
	}
	return true, nil
}

func (w *TimesheetWorkflow) mutate(ctx context.Context, actor domain.Actor, id string, version int64, op string,
	fn func(domain.Timesheet) (domain.Timesheet, error)) (domain.Timesheet, error) {
	if err := w.ready(); err != nil {
		return domain.Timesheet{}, err
	}
	if err := actor.Validate(); err != nil {
		return domain.Timesheet{}, err
	}
	t, err := w.Timesheets.Get(ctx, actor.TenantID, id)
	if err != nil {
		return domain.Timesheet{}, err
	}
	if err := domain.CheckVersion("timesheet", id, t.Version, version); err != nil {
		return domain.Timesheet{}, err
	}
	next, err := fn(t)
	if err != nil {
		return domain.Timesheet{}, err
	}
	saved, err := w.Timesheets.Put(ctx, next)
	if err != nil {
		return domain.Timesheet{}, err
	}
	logOrDefault(w.Log).Info("timesheet transitioned",
		slog.String("op", op),
		slog.String("tenant", saved.TenantID),
		slog.String("id", saved.ID),
		slog.String("from", string(t.Status)),
		slog.String("to", string(saved.Status)),
		slog.Int64("version", saved.Version),
	)
	return saved, nil
}
