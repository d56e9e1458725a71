package domain

import (
	"strings"
	"time"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectInactive  ProjectStatus = "inactive"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

// projectEdges lists every allowed status change.
var projectEdges = map[ProjectStatus][]ProjectStatus{
	ProjectActive:    {ProjectOnHold, ProjectCompleted, ProjectInactive},
	ProjectOnHold:    {ProjectActive, ProjectInactive},
	ProjectCompleted: {ProjectActive, ProjectInactive},
	ProjectInactive:  {ProjectActive},
}

func (s ProjectStatus) Valid() bool {
	_, ok := projectEdges[s]
	return ok
}

// CanTransitionTo reports whether s -> target is an edge of the project state
// machine. Self-loops are not edges.
func (s ProjectStatus) CanTransitionTo(target ProjectStatus) bool {
	for _, t := range projectEdges[s] {
		if t == target {
			return true
		}
	}
	return false
}

type ProjectSettings struct {
	RequireActivityCode bool `json:"requireActivityCode"`
	AllowOvertime       bool `json:"allowOvertime"`
	AutoApprove         bool `json:"autoApprove"`
}

// Project is a project ledger: lifecycle, budget and the employee and
// activity code whitelists that gate time entries.
type Project struct {
	ID                string          `json:"id"`
	TenantID          string          `json:"tenantId"`
	ClientID          string          `json:"clientId,omitempty"`
	Name              string          `json:"name"`
	Code              string          `json:"code"`
	Description       string          `json:"description,omitempty"`
	Status            ProjectStatus   `json:"status"`
	StartDate         *time.Time      `json:"startDate,omitempty"`
	EndDate           *time.Time      `json:"endDate,omitempty"`
	Budget            *float64        `json:"budget,omitempty"`
	DefaultHourlyRate *float64        `json:"defaultHourlyRate,omitempty"`
	Billable          bool            `json:"billable"`
	AssignedEmployees []string        `json:"assignedEmployees"`
	ActivityCodes     []string        `json:"activityCodes"`
	Settings          ProjectSettings `json:"settings"`
	Audit
}

type ProjectInput struct {
	ClientID          string
	Name              string
	Code              string
	Description       string
	StartDate         *time.Time
	EndDate           *time.Time
	Budget            *float64
	DefaultHourlyRate *float64
	Billable          bool
	Settings          ProjectSettings
}

// NewProject validates in and builds an active project.
func NewProject(actor Actor, id string, in ProjectInput, now time.Time) (Project, error) {
	if err := actor.Validate(); err != nil {
		return Project{}, err
	}
	p := Project{
		ID:                id,
		TenantID:          actor.TenantID,
		ClientID:          strings.TrimSpace(in.ClientID),
		Name:              strings.TrimSpace(in.Name),
		Code:              NormalizeCode(in.Code),
		Description:       strings.TrimSpace(in.Description),
		Status:            ProjectActive,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		Budget:            in.Budget,
		DefaultHourlyRate: in.DefaultHourlyRate,
		Billable:          in.Billable,
		AssignedEmployees: []string{},
		ActivityCodes:     []string{},
		Settings:          in.Settings,
		Audit:             newAudit(actor, now),
	}
	if err := p.validate(); err != nil {
		return Project{}, err
	}
	return p, nil
}

func (p Project) validate() error {
	if err := validateText("name", p.Name, true, 100); err != nil {
		return err
	}
	if err := validateCode("code", p.Code); err != nil {
		return err
	}
	if err := validateText("description", p.Description, false, 1000); err != nil {
		return err
	}
	if p.StartDate != nil && p.EndDate != nil && !p.EndDate.After(*p.StartDate) {
		return validationError("endDate", "must be after startDate")
	}
	if p.Budget != nil && *p.Budget < 0 {
		return invariantError("project budget cannot be negative")
	}
	if err := validateRate("budget", p.Budget); err != nil {
		return err
	}
	return validateRate("defaultHourlyRate", p.DefaultHourlyRate)
}

func (p Project) touched(actor Actor, now time.Time) Project {
	p.Audit = p.Audit.touch(actor, now)
	return p
}

// AssignEmployees adds ids to the assignment set.
func (p Project) AssignEmployees(actor Actor, ids []string, now time.Time) (Project, error) {
	if len(ids) == 0 {
		return p, validationError("employeeIds", "at least one employee id is required")
	}
	next := p
	next.AssignedEmployees = addUnique(p.AssignedEmployees, ids...)
	return next.touched(actor, now), nil
}

// UnassignEmployees removes ids from the assignment set. Unknown ids are ignored.
func (p Project) UnassignEmployees(actor Actor, ids []string, now time.Time) Project {
	next := p
	next.AssignedEmployees = removeAll(p.AssignedEmployees, ids...)
	return next.touched(actor, now)
}

// SetActivityCodes replaces the whitelist. known holds the tenant's codes
// keyed by id; every id must name an active code.
func (p Project) SetActivityCodes(actor Actor, ids []string, known map[string]ActivityCode, now time.Time) (Project, error) {
	for _, id := range ids {
		c, ok := known[id]
		if !ok || c.TenantID != p.TenantID {
			return p, invariantError("activity code %q does not exist", id)
		}
		if !c.IsActive {
			return p, invariantError("activity code %s is inactive", c.Code)
		}
	}
	next := p
	next.ActivityCodes = addUnique(nil, ids...)
	return next.touched(actor, now), nil
}

// ChangeStatus moves the project along one edge of its state machine.
// Completing a project stamps EndDate when it is unset.
func (p Project) ChangeStatus(actor Actor, to ProjectStatus, now time.Time) (Project, error) {
	if !to.Valid() {
		return p, validationError("status", "unknown project status %q", to)
	}
	if !p.Status.CanTransitionTo(to) {
		return p, &TransitionError{Entity: "project", From: string(p.Status), To: string(to)}
	}
	next := p
	next.Status = to
	if to == ProjectCompleted && next.EndDate == nil {
		end := now
		if next.StartDate != nil && !end.After(*next.StartDate) {
			return p, invariantError("project cannot be completed before its start date")
		}
		next.EndDate = &end
	}
	return next.touched(actor, now), nil
}

// SetBudget replaces the budget. nil clears it.
func (p Project) SetBudget(actor Actor, amount *float64, now time.Time) (Project, error) {
	next := p
	next.Budget = amount
	if amount != nil && *amount < 0 {
		return p, invariantError("project budget cannot be negative")
	}
	if err := validateRate("budget", amount); err != nil {
		return p, err
	}
	return next.touched(actor, now), nil
}

// CanAcceptTimeEntries reports whether time may be logged against p.
func (p Project) CanAcceptTimeEntries() bool {
	return p.Status == ProjectActive || p.Status == ProjectOnHold
}

// ValidateEmployeeAccess fails unless employeeID is assigned and the project
// accepts time entries.
func (p Project) ValidateEmployeeAccess(employeeID string) error {
	if !contains(p.AssignedEmployees, employeeID) {
		return accessDenied("employee %q is not assigned to project %s", employeeID, p.Code)
	}
	if !p.CanAcceptTimeEntries() {
		return accessDenied("project %s does not accept time entries while %s", p.Code, p.Status)
	}
	return nil
}

// ValidateActivityCodeAccess checks the whitelist when the project requires
// activity codes.
func (p Project) ValidateActivityCodeAccess(activityCodeID string) error {
	if !p.Settings.RequireActivityCode {
		return nil
	}
	if activityCodeID == "" {
		return accessDenied("project %s requires an activity code", p.Code)
	}
	if !contains(p.ActivityCodes, activityCodeID) {
		return accessDenied("activity code %q is not allowed on project %s", activityCodeID, p.Code)
	}
	return nil
}

// BudgetUtilization is spent as a percentage of the budget, 0 without one.
// A zero budget also reports 0; IsBudgetExceeded is what flags spend on it.
func (p Project) BudgetUtilization(spent float64) float64 {
	if p.Budget == nil || *p.Budget == 0 {
		return 0
	}
	return spent / *p.Budget * 100
}

// IsBudgetExceeded is false whenever no budget is set.
func (p Project) IsBudgetExceeded(spent float64) bool {
	return p.Budget != nil && spent > *p.Budget
}

// BudgetStatus is a read-only projection of a project's budget.
type BudgetStatus struct {
	ProjectID             string   `json:"projectId"`
	Budget                *float64 `json:"budget"`
	Spent                 float64  `json:"spent"`
	Remaining             float64  `json:"remaining"`
	UtilizationPercentage float64  `json:"utilizationPercentage"`
	IsOverBudget          bool     `json:"isOverBudget"`
}

func (p Project) BudgetStatus(spent float64) BudgetStatus {
	s := BudgetStatus{
		ProjectID:             p.ID,
		Budget:                p.Budget,
		Spent:                 roundCents(spent),
		UtilizationPercentage: roundCents(p.BudgetUtilization(spent)),
		IsOverBudget:          p.IsBudgetExceeded(spent),
	}
	if p.Budget != nil {
		s.Remaining = roundCents(*p.Budget - spent)
	}
	return s
}
