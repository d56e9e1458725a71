package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"timeledger/internal/domain"
	"timeledger/internal/ports"
)

// ErrSweepRunning is returned when a sweep is started while another one is
// still in progress.
var ErrSweepRunning = errors.New("sweep already running")

// TenantReport is the outcome of sweeping one tenant.
type TenantReport struct {
	TenantID   string                 `json:"tenantId"`
	Hierarchy  domain.HierarchyReport `json:"hierarchy"`
	Budgets    []domain.BudgetStatus  `json:"budgets"`
	OverBudget []string               `json:"overBudget"`
}

// SweepUseCase checks stored data for drift: activity code hierarchy caches
// and project budgets. It only reads and logs.
type SweepUseCase struct {
	Log      *slog.Logger
	Codes    *ActivityCodeRegistry
	Ledger   *ProjectLedger
	Projects ports.ProjectRepository

	running atomic.Bool
}

func (uc *SweepUseCase) Run(ctx context.Context, tenantIDs []string) ([]TenantReport, error) {
	if uc.Codes == nil || uc.Ledger == nil || uc.Projects == nil {
		return nil, errNotInitialized
	}
	if !uc.running.CompareAndSwap(false, true) {
		return nil, ErrSweepRunning
	}
	defer uc.running.Store(false)

	log := logOrDefault(uc.Log)
	start := time.Now()
	log.Info("starting consistency sweep", slog.Int("tenants", len(tenantIDs)))

	reports := make([]TenantReport, 0, len(tenantIDs))
	for _, tenant := range tenantIDs {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r, err := uc.sweepTenant(ctx, tenant)
		if err != nil {
			log.Error("tenant sweep failed", slog.String("tenant", tenant), slog.String("error", err.Error()))
			return reports, err
		}
		reports = append(reports, r)
	}
	log.Info("sweep completed", slog.Int("tenants", len(reports)), slog.Duration("dur", time.Since(start)))
	return reports, nil
}

// SweepTenant runs the checks for a single tenant.
func (uc *SweepUseCase) SweepTenant(ctx context.Context, tenantID string) (TenantReport, error) {
	if uc.Codes == nil || uc.Ledger == nil || uc.Projects == nil {
		return TenantReport{}, errNotInitialized
	}
	return uc.sweepTenant(ctx, tenantID)
}

func (uc *SweepUseCase) sweepTenant(ctx context.Context, tenantID string) (TenantReport, error) {
	log := logOrDefault(uc.Log)
	r := TenantReport{TenantID: tenantID, Budgets: []domain.BudgetStatus{}, OverBudget: []string{}}

	h, err := uc.Codes.ValidateHierarchy(ctx, tenantID)
	if err != nil {
		return r, err
	}
	r.Hierarchy = h

	projects, err := uc.Projects.List(ctx, tenantID)
	if err != nil {
		return r, err
	}
	for _, p := range projects {
		if p.Budget == nil {
			continue
		}
		b, err := uc.Ledger.BudgetReport(ctx, tenantID, p.ID)
		if err != nil {
			return r, err
		}
		r.Budgets = append(r.Budgets, b)
		if b.IsOverBudget {
			r.OverBudget = append(r.OverBudget, p.ID)
			log.Warn("project over budget",
				slog.String("tenant", tenantID),
				slog.String("project", p.Code),
				slog.Float64("spent", b.Spent),
			)
		}
	}
	log.Info("tenant swept",
		slog.String("tenant", tenantID),
		slog.Bool("hierarchyValid", h.IsValid),
		slog.Int("budgets", len(r.Budgets)),
		slog.Int("overBudget", len(r.OverBudget)),
	)
	return r, nil
}
