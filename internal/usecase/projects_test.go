package usecase

import (
	"context"
	"errors"
	"testing"

	"timeledger/internal/domain"
)

func TestLedgerCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t, "WEB", domain.ProjectInput{})
	if p.Status != domain.ProjectActive || p.Version != 1 {
		t.Fatalf("project = %+v", p)
	}
	if _, err := f.ledger.Create(ctx, admin, domain.ProjectInput{Name: "Other", Code: "web"}); !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("duplicate code: err = %v", err)
	}
	if _, err := f.ledger.Create(ctx, admin, domain.ProjectInput{Name: "Broke", Code: "NEG", Budget: ptr(-5.0)}); !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("negative budget: err = %v", err)
	}
}

func TestLedgerStatusAndVersions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t, "WEB", domain.ProjectInput{})

	held, err := f.ledger.ChangeStatus(ctx, admin, p.ID, p.Version, domain.ProjectOnHold)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := f.ledger.ChangeStatus(ctx, admin, p.ID, held.Version, domain.ProjectCompleted); !errors.Is(err, domain.ErrStateTransition) {
		t.Fatalf("on_hold -> completed: err = %v", err)
	}
	stored, err := f.ledger.Get(ctx, admin.TenantID, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != domain.ProjectOnHold || stored.Version != held.Version {
		t.Fatalf("failed transition was persisted: %s v%d", stored.Status, stored.Version)
	}
	if _, err := f.ledger.ChangeStatus(ctx, admin, p.ID, p.Version, domain.ProjectActive); !errors.Is(err, domain.ErrStaleWrite) {
		t.Fatalf("stale status change: err = %v", err)
	}
	if _, err := f.ledger.AssignEmployees(ctx, admin, "missing", 1, []string{"emp-1"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing project: err = %v", err)
	}
}

func TestLedgerActivityCodes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dev := f.code(t, "DEV", ptr(100.0), "")
	old := f.code(t, "OLD", nil, "")
	old, err := f.codes.Deactivate(ctx, admin, old.ID, old.Version)
	if err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	p := f.project(t, "WEB", domain.ProjectInput{Settings: domain.ProjectSettings{RequireActivityCode: true}}, "emp-1")

	if _, err := f.ledger.SetActivityCodes(ctx, admin, p.ID, p.Version, []string{dev.ID, old.ID}); !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("inactive code: err = %v", err)
	}
	p, err = f.ledger.SetActivityCodes(ctx, admin, p.ID, p.Version, []string{dev.ID})
	if err != nil {
		t.Fatalf("SetActivityCodes: %v", err)
	}
	if err := f.ledger.ValidateActivityCodeAccess(ctx, admin.TenantID, p.ID, dev.ID); err != nil {
		t.Fatalf("whitelisted code: %v", err)
	}
	if err := f.ledger.ValidateActivityCodeAccess(ctx, admin.TenantID, p.ID, old.ID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("other code: err = %v", err)
	}
	if err := f.ledger.ValidateEmployeeAccess(ctx, admin.TenantID, p.ID, "emp-1"); err != nil {
		t.Fatalf("assigned employee: %v", err)
	}
	p, err = f.ledger.UnassignEmployees(ctx, admin, p.ID, p.Version, []string{"emp-1"})
	if err != nil {
		t.Fatalf("Unassign: %v", err)
	}
	if err := f.ledger.ValidateEmployeeAccess(ctx, admin.TenantID, p.ID, "emp-1"); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("unassigned employee: err = %v", err)
	}
}

func TestLedgerBudgetOverrun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t, "WEB", domain.ProjectInput{Budget: ptr(1000.0), DefaultHourlyRate: ptr(100.0)}, "emp-1")

	// 12 billable hours at the project rate
	for _, day := range []int{0, 1} {
		_, err := f.entries.Create(ctx, admin, domain.TimeEntryInput{
			EmployeeID: "emp-1", ProjectID: p.ID, Date: jan10.AddDate(0, 0, day), Duration: 6 * 60, Billable: true,
		})
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
	}
	// non-billable time does not count towards spend
	if _, err := f.entries.Create(ctx, admin, domain.TimeEntryInput{EmployeeID: "emp-1", ProjectID: p.ID, Date: jan10, Duration: 60}); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	s, err := f.ledger.BudgetReport(ctx, admin.TenantID, p.ID)
	if err != nil {
		t.Fatalf("BudgetReport: %v", err)
	}
	if s.Spent != 1200 || s.UtilizationPercentage != 120 || !s.IsOverBudget || s.Remaining != -200 {
		t.Fatalf("budget status = %+v", s)
	}

	direct, err := f.ledger.BudgetUtilization(ctx, admin.TenantID, p.ID, 1200)
	if err != nil {
		t.Fatalf("BudgetUtilization: %v", err)
	}
	if direct.UtilizationPercentage != 120 || !direct.IsOverBudget {
		t.Fatalf("direct status = %+v", direct)
	}
	if _, err := f.ledger.BudgetUtilization(ctx, admin.TenantID, p.ID, -1); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("negative spend: err = %v", err)
	}

	p, err = f.ledger.SetBudget(ctx, admin, p.ID, p.Version, nil)
	if err != nil {
		t.Fatalf("clear budget: %v", err)
	}
	if s, _ = f.ledger.BudgetReport(ctx, admin.TenantID, p.ID); s.IsOverBudget || s.UtilizationPercentage != 0 {
		t.Fatalf("unbudgeted project status = %+v", s)
	}
}
