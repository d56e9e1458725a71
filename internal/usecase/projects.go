package usecase

import (
	"context"
	"log/slog"

	"timeledger/internal/domain"
	"timeledger/internal/ports"
)

// ProjectLedger owns project lifecycle, assignments, the activity code
// whitelist and budget projections.
type ProjectLedger struct {
	Log      *slog.Logger
	Projects ports.ProjectRepository
	Codes    ports.ActivityCodeRepository
	Entries  ports.TimeEntryRepository
	Now      Clock
	NewID    IDFunc
}

func (l *ProjectLedger) ready() error {
	if l.Projects == nil || l.Codes == nil || l.Entries == nil {
		return errNotInitialized
	}
	return nil
}

func (l *ProjectLedger) Create(ctx context.Context, actor domain.Actor, in domain.ProjectInput) (domain.Project, error) {
	if err := l.ready(); err != nil {
		return domain.Project{}, err
	}
	p, err := domain.NewProject(actor, l.NewID.next(), in, l.Now.now())
	if err != nil {
		return domain.Project{}, err
	}
	existing, err := l.Projects.FindByCode(ctx, p.TenantID, p.Code)
	if err != nil {
		return domain.Project{}, err
	}
	if len(existing) > 0 {
		return domain.Project{}, domain.Invariant("project code %s already exists", p.Code)
	}
	saved, err := l.Projects.Put(ctx, p)
	if err != nil {
		return domain.Project{}, err
	}
	logOrDefault(l.Log).Info("project created",
		slog.String("tenant", saved.TenantID),
		slog.String("id", saved.ID),
		slog.String("code", saved.Code),
	)
	return saved, nil
}

func (l *ProjectLedger) Get(ctx context.Context, tenantID, id string) (domain.Project, error) {
	if err := l.ready(); err != nil {
		return domain.Project{}, err
	}
	return l.Projects.Get(ctx, tenantID, id)
}

func (l *ProjectLedger) AssignEmployees(ctx context.Context, actor domain.Actor, id string, version int64, employeeIDs []string) (domain.Project, error) {
	return l.mutate(ctx, actor, id, version, "assign_employees", func(p domain.Project) (domain.Project, error) {
		return p.AssignEmployees(actor, employeeIDs, l.Now.now())
	})
}

func (l *ProjectLedger) UnassignEmployees(ctx context.Context, actor domain.Actor, id string, version int64, employeeIDs []string) (domain.Project, error) {
	return l.mutate(ctx, actor, id, version, "unassign_employees", func(p domain.Project) (domain.Project, error) {
		return p.UnassignEmployees(actor, employeeIDs, l.Now.now()), nil
	})
}

// SetActivityCodes replaces the whitelist after checking every id against the
// tenant's registry.
func (l *ProjectLedger) SetActivityCodes(ctx context.Context, actor domain.Actor, id string, version int64, codeIDs []string) (domain.Project, error) {
	return l.mutate(ctx, actor, id, version, "set_activity_codes", func(p domain.Project) (domain.Project, error) {
		all, err := l.Codes.List(ctx, p.TenantID)
		if err != nil {
			return p, err
		}
		known := make(map[string]domain.ActivityCode, len(all))
		for _, c := range all {
			known[c.ID] = c
		}
		return p.SetActivityCodes(actor, codeIDs, known, l.Now.now())
	})
}

func (l *ProjectLedger) ChangeStatus(ctx context.Context, actor domain.Actor, id string, version int64, status domain.ProjectStatus) (domain.Project, error) {
	return l.mutate(ctx, actor, id, version, "change_status", func(p domain.Project) (domain.Project, error) {
		return p.ChangeStatus(actor, status, l.Now.now())
	})
}

// SetBudget replaces the budget; nil clears it.
func (l *ProjectLedger) SetBudget(ctx context.Context, actor domain.Actor, id string, version int64, amount *float64) (domain.Project, error) {
	return l.mutate(ctx, actor, id, version, "set_budget", func(p domain.Project) (domain.Project, error) {
		return p.SetBudget(actor, amount, l.Now.now())
	})
}

func (l *ProjectLedger) ValidateEmployeeAccess(ctx context.Context, tenantID, projectID, employeeID string) error {
	if err := l.ready(); err != nil {
		return err
	}
	p, err := l.Projects.Get(ctx, tenantID, projectID)
	if err != nil {
		return err
	}
	return p.ValidateEmployeeAccess(employeeID)
}

func (l *ProjectLedger) ValidateActivityCodeAccess(ctx context.Context, tenantID, projectID, activityCodeID string) error {
	if err := l.ready(); err != nil {
		return err
	}
	p, err := l.Projects.Get(ctx, tenantID, projectID)
	if err != nil {
		return err
	}
	return p.ValidateActivityCodeAccess(activityCodeID)
}

// BudgetUtilization projects a caller-supplied spend against the budget.
func (l *ProjectLedger) BudgetUtilization(ctx context.Context, tenantID, projectID string, spent float64) (domain.BudgetStatus, error) {
	if err := l.ready(); err != nil {
		return domain.BudgetStatus{}, err
	}
	if spent < 0 {
		return domain.BudgetStatus{}, domain.Validation("spent", "cannot be negative")
	}
	p, err := l.Projects.Get(ctx, tenantID, projectID)
	if err != nil {
		return domain.BudgetStatus{}, err
	}
	return p.BudgetStatus(spent), nil
}

// BudgetReport derives spend from the billable cost of the project's
// persisted entries. Entries written concurrently may or may not be counted.
func (l *ProjectLedger) BudgetReport(ctx context.Context, tenantID, projectID string) (domain.BudgetStatus, error) {
	if err := l.ready(); err != nil {
		return domain.BudgetStatus{}, err
	}
	p, err := l.Projects.Get(ctx, tenantID, projectID)
	if err != nil {
		return domain.BudgetStatus{}, err
	}
	entries, err := l.Entries.ListByProject(ctx, tenantID, projectID)
	if err != nil {
		return domain.BudgetStatus{}, err
	}
	return p.BudgetStatus(domain.ComputeTotals(entries).BillableAmount), nil
}

func (l *ProjectLedger) mutate(ctx context.Context, actor domain.Actor, id string, version int64, op string,
	fn func(domain.Project) (domain.Project, error)) (domain.Project, error) {
	if err := l.ready(); err != nil {
		return domain.Project{}, err
	}
	if err := actor.Validate(); err != nil {
		return domain.Project{}, err
	}
	p, err := l.Projects.Get(ctx, actor.TenantID, id)
	if err != nil {
		return domain.Project{}, err
	}
	if err := domain.CheckVersion("project", id, p.Version, version); err != nil {
		return domain.Project{}, err
	}
	next, err := fn(p)
	if err != nil {
		return domain.Project{}, err
	}
	saved, err := l.Projects.Put(ctx, next)
	if err != nil {
		return domain.Project{}, err
	}
	logOrDefault(l.Log).Info("project updated",
		slog.String("op", op),
		slog.String("tenant", saved.TenantID),
		slog.String("id", saved.ID),
		slog.String("status", string(saved.Status)),
		slog.Int64("version", saved.Version),
	)
	return saved, nil
}
