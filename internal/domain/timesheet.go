package domain

import (
	"math"
	"strings"
	"time"
)

// TimesheetStatus is a state of the approval workflow.
type TimesheetStatus string

const (
	TimesheetDraft     TimesheetStatus = "draft"
	TimesheetSubmitted TimesheetStatus = "submitted"
	TimesheetApproved  TimesheetStatus = "approved"
	TimesheetRejected  TimesheetStatus = "rejected"
	TimesheetLocked    TimesheetStatus = "locked"
)

// Totals are derived from the timesheet's entries at computation time.
type Totals struct {
	TotalMinutes       int     `json:"totalMinutes"`
	BillableMinutes    int     `json:"billableMinutes"`
	NonBillableMinutes int     `json:"nonBillableMinutes"`
	EntryCount         int     `json:"entryCount"`
	BillableAmount     float64 `json:"billableAmount"`
}

// ComputeTotals sums entries. The result does not depend on entry order.
func ComputeTotals(entries []TimeEntry) Totals {
	var t Totals
	var cents int64
	for _, e := range entries {
		t.EntryCount++
		t.TotalMinutes += e.Duration
		if e.Billable {
			t.BillableMinutes += e.Duration
			if e.TotalCost != nil {
				cents += int64(math.Round(*e.TotalCost * 100))
			}
		} else {
			t.NonBillableMinutes += e.Duration
		}
	}
	t.BillableAmount = float64(cents) / 100
	return t
}

// Timesheet is the approval envelope for one employee's entries in a period.
type Timesheet struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenantId"`
	EmployeeID      string          `json:"employeeId"`
	PeriodStart     time.Time       `json:"periodStart"`
	PeriodEnd       time.Time       `json:"periodEnd"`
	Status          TimesheetStatus `json:"status"`
	Totals          Totals          `json:"totals"`
	Notes           string          `json:"notes,omitempty"`
	SubmittedAt     *time.Time      `json:"submittedAt,omitempty"`
	SubmittedBy     string          `json:"submittedBy,omitempty"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	ApprovedBy      string          `json:"approvedBy,omitempty"`
	RejectedAt      *time.Time      `json:"rejectedAt,omitempty"`
	RejectedBy      string          `json:"rejectedBy,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	LockedAt        *time.Time      `json:"lockedAt,omitempty"`
	LockedBy        string          `json:"lockedBy,omitempty"`
	Audit
}

// NewTimesheet builds a draft timesheet for [periodStart, periodEnd].
func NewTimesheet(actor Actor, id, employeeID string, periodStart, periodEnd time.Time, now time.Time) (Timesheet, error) {
	if err := actor.Validate(); err != nil {
		return Timesheet{}, err
	}
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return Timesheet{}, validationError("employeeId", "is required")
	}
	if periodStart.IsZero() || periodEnd.IsZero() {
		return Timesheet{}, validationError("period", "periodStart and periodEnd are required")
	}
	start, end := Day(periodStart), Day(periodEnd)
	if !end.After(start) {
		return Timesheet{}, validationError("periodEnd", "must be after periodStart")
	}
	return Timesheet{
		ID:          id,
		TenantID:    actor.TenantID,
		EmployeeID:  employeeID,
		PeriodStart: start,
		PeriodEnd:   end,
		Status:      TimesheetDraft,
		Audit:       newAudit(actor, now),
	}, nil
}

// Covers reports whether day falls inside the period, both ends inclusive.
func (t Timesheet) Covers(day time.Time) bool {
	d := Day(day)
	return !d.Before(t.PeriodStart) && !d.After(t.PeriodEnd)
}

// OverlapsPeriod reports whether two timesheets share at least one day.
func (t Timesheet) OverlapsPeriod(start, end time.Time) bool {
	return !Day(start).After(t.PeriodEnd) && !t.PeriodStart.After(Day(end))
}

// CanMutateEntries is false once the timesheet is approved or locked.
func (t Timesheet) CanMutateEntries() bool {
	return t.Status != TimesheetApproved && t.Status != TimesheetLocked
}

// EnsureMutable returns ErrImmutable when entries can no longer change.
func (t Timesheet) EnsureMutable() error {
	if !t.CanMutateEntries() {
		return immutableError("timesheet %s is %s; its time entries cannot be changed", t.ID, t.Status)
	}
	return nil
}

// AcceptEntry checks that e may be owned by t.
func (t Timesheet) AcceptEntry(e TimeEntry) error {
	if err := t.EnsureMutable(); err != nil {
		return err
	}
	if e.EmployeeID != t.EmployeeID {
		return validationError("employeeId", "entry belongs to %q, timesheet to %q", e.EmployeeID, t.EmployeeID)
	}
	if !t.Covers(e.Date) {
		return validationError("date", "%s is outside the timesheet period %s..%s",
			e.Date.Format(DateLayout), t.PeriodStart.Format(DateLayout), t.PeriodEnd.Format(DateLayout))
	}
	return nil
}

// WithTotals returns a copy carrying freshly computed totals.
func (t Timesheet) WithTotals(totals Totals, now time.Time) Timesheet {
	next := t
	next.Totals = totals
	next.UpdatedAt = now
	return next
}

func (t Timesheet) transition(to TimesheetStatus, allowed ...TimesheetStatus) error {
	for _, s := range allowed {
		if t.Status == s {
			return nil
		}
	}
	return &TransitionError{Entity: "timesheet", From: string(t.Status), To: string(to)}
}

// Submit moves a draft with at least one entry to submitted.
func (t Timesheet) Submit(actor Actor, entryCount int, now time.Time) (Timesheet, error) {
	if err := t.transition(TimesheetSubmitted, TimesheetDraft); err != nil {
		return t, err
	}
	if entryCount < 1 {
		return t, validationError("entries", "cannot submit a timesheet without time entries")
	}
	next := t
	next.Status = TimesheetSubmitted
	next.SubmittedAt = &now
	next.SubmittedBy = actor.UserID
	next.Audit = t.Audit.touch(actor, now)
	return next, nil
}

func (t Timesheet) Approve(actor Actor, now time.Time) (Timesheet, error) {
	if err := t.transition(TimesheetApproved, TimesheetSubmitted); err != nil {
		return t, err
	}
	next := t
	next.Status = TimesheetApproved
	next.ApprovedAt = &now
	next.ApprovedBy = actor.UserID
	next.Audit = t.Audit.touch(actor, now)
	return next, nil
}

// Reject sends a submitted timesheet back with a mandatory reason.
func (t Timesheet) Reject(actor Actor, reason string, now time.Time) (Timesheet, error) {
	if err := t.transition(TimesheetRejected, TimesheetSubmitted); err != nil {
		return t, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return t, validationError("reason", "is required")
	}
	next := t
	next.Status = TimesheetRejected
	next.RejectedAt = &now
	next.RejectedBy = actor.UserID
	next.RejectionReason = reason
	next.Audit = t.Audit.touch(actor, now)
	return next, nil
}

func (t Timesheet) Lock(actor Actor, now time.Time) (Timesheet, error) {
	if err := t.transition(TimesheetLocked, TimesheetApproved); err != nil {
		return t, err
	}
	next := t
	next.Status = TimesheetLocked
	next.LockedAt = &now
	next.LockedBy = actor.UserID
	next.Audit = t.Audit.touch(actor, now)
	return next, nil
}

// Unlock is a privileged override returning a locked timesheet to approved.
func (t Timesheet) Unlock(actor Actor, now time.Time) (Timesheet, error) {
	if err := t.transition(TimesheetApproved, TimesheetLocked); err != nil {
		return t, err
	}
	next := t
	next.Status = TimesheetApproved
	next.LockedAt = nil
	next.LockedBy = ""
	next.Audit = t.Audit.touch(actor, now)
	return next, nil
}

// ReturnToDraft reopens a rejected timesheet for editing.
func (t Timesheet) ReturnToDraft(actor Actor, now time.Time) (Timesheet, error) {
	if err := t.transition(TimesheetDraft, TimesheetRejected); err != nil {
		return t, err
	}
	next := t
	next.Status = TimesheetDraft
	next.SubmittedAt = nil
	next.SubmittedBy = ""
	next.Audit = t.Audit.touch(actor, now)
	return next, nil
}
