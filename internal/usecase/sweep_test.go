package usecase

import (
	"context"
	"errors"
	"testing"

	"timeledger/internal/domain"
)

func TestSweepReportsDrift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	eng := f.code(t, "ENG", nil, "")
	dev := f.code(t, "DEV", nil, eng.ID)
	code := "ENGR"
	if _, err := f.codes.Update(ctx, admin, eng.ID, eng.Version, domain.ActivityCodePatch{Code: &code}); err != nil {
		t.Fatalf("rename: %v", err)
	}

	tight := f.project(t, "TIGHT", domain.ProjectInput{Budget: ptr(100.0), DefaultHourlyRate: ptr(100.0)}, "emp-1")
	roomy := f.project(t, "ROOMY", domain.ProjectInput{Budget: ptr(1000.0), DefaultHourlyRate: ptr(100.0)}, "emp-1")
	f.project(t, "OPEN", domain.ProjectInput{DefaultHourlyRate: ptr(100.0)}, "emp-1")
	for _, p := range []domain.Project{tight, roomy} {
		in := domain.TimeEntryInput{EmployeeID: "emp-1", ProjectID: p.ID, Date: jan10, Duration: 120, Billable: true}
		if _, err := f.entries.Create(ctx, admin, in); err != nil {
			t.Fatalf("entry on %s: %v", p.Code, err)
		}
	}

	reports, err := f.sweep.Run(ctx, []string{admin.TenantID, "globex"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %d", len(reports))
	}
	acme := reports[0]
	if acme.Hierarchy.IsValid || len(acme.Hierarchy.Issues) != 1 || acme.Hierarchy.Issues[0].ActivityCodeID != dev.ID {
		t.Fatalf("hierarchy = %+v", acme.Hierarchy)
	}
	if len(acme.Budgets) != 2 {
		t.Fatalf("budgets = %+v", acme.Budgets)
	}
	if len(acme.OverBudget) != 1 || acme.OverBudget[0] != tight.ID {
		t.Fatalf("over budget = %v", acme.OverBudget)
	}
	for _, b := range acme.Budgets {
		if b.Spent != 200 {
			t.Fatalf("spent = %v on %s", b.Spent, b.ProjectID)
		}
	}

	globex := reports[1]
	if globex.TenantID != "globex" || !globex.Hierarchy.IsValid || len(globex.Budgets) != 0 {
		t.Fatalf("globex = %+v", globex)
	}
}

func TestSweepRejectsOverlappingRuns(t *testing.T) {
	f := newFixture(t)
	f.sweep.running.Store(true)
	if _, err := f.sweep.Run(context.Background(), []string{admin.TenantID}); !errors.Is(err, ErrSweepRunning) {
		t.Fatalf("err = %v, want ErrSweepRunning", err)
	}
	f.sweep.running.Store(false)
	if _, err := f.sweep.Run(context.Background(), []string{admin.TenantID}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSweepStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reports, err := f.sweep.Run(ctx, []string{admin.TenantID})
	if !errors.Is(err, context.Canceled) || len(reports) != 0 {
		t.Fatalf("Run = %v, %v", reports, err)
	}
	if _, err := f.sweep.Run(context.Background(), nil); err != nil {
		t.Fatalf("guard not released after cancel: %v", err)
	}
}
