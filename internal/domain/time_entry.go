package domain

import (
	"sort"
	"strings"
	"time"
)

// TimeEntry is a single logged block of work. Date is the UTC calendar day;
// StartTime and EndTime are optional wall-clock bounds on that day.
type TimeEntry struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenantId"`
	EmployeeID     string     `json:"employeeId"`
	ProjectID      string     `json:"projectId,omitempty"`
	ActivityCodeID string     `json:"activityCodeId,omitempty"`
	TimesheetID    string     `json:"timesheetId,omitempty"`
	Date           time.Time  `json:"date"`
	StartTime      *ClockTime `json:"startTime,omitempty"`
	EndTime        *ClockTime `json:"endTime,omitempty"`
	Duration       int        `json:"duration"` // minutes
	Billable       bool       `json:"billable"`
	HourlyRate     *float64   `json:"hourlyRate,omitempty"`
	TotalCost      *float64   `json:"totalCost,omitempty"`
	Description    string     `json:"description,omitempty"`
	Audit
}

type TimeEntryInput struct {
	EmployeeID     string
	ProjectID      string
	ActivityCodeID string
	TimesheetID    string
	Date           time.Time
	StartTime      *ClockTime
	EndTime        *ClockTime
	Duration       int
	Billable       bool
	HourlyRate     *float64
	Description    string
}

// TimeEntryPatch is a partial update; nil fields are left unchanged.
type TimeEntryPatch struct {
	ProjectID      *string
	ActivityCodeID *string
	TimesheetID    *string
	Date           *time.Time
	StartTime      *ClockTime
	EndTime        *ClockTime
	ClearTimes     bool
	Duration       *int
	Billable       *bool
	HourlyRate     *float64
	Description    *string
}

// HasTimeRange reports whether both clock bounds are set.
func (e TimeEntry) HasTimeRange() bool {
	return e.StartTime != nil && e.EndTime != nil
}

// NewTimeEntry validates in and builds an entry. When both clock bounds are
// given and Duration is zero the duration is derived from them.
func NewTimeEntry(actor Actor, id string, in TimeEntryInput, now time.Time) (TimeEntry, error) {
	if err := actor.Validate(); err != nil {
		return TimeEntry{}, err
	}
	e := TimeEntry{
		ID:             id,
		TenantID:       actor.TenantID,
		EmployeeID:     strings.TrimSpace(in.EmployeeID),
		ProjectID:      strings.TrimSpace(in.ProjectID),
		ActivityCodeID: strings.TrimSpace(in.ActivityCodeID),
		TimesheetID:    strings.TrimSpace(in.TimesheetID),
		Date:           Day(in.Date),
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		Duration:       in.Duration,
		Billable:       in.Billable,
		HourlyRate:     in.HourlyRate,
		Description:    strings.TrimSpace(in.Description),
		Audit:          newAudit(actor, now),
	}
	if in.Date.IsZero() {
		return TimeEntry{}, validationError("date", "is required")
	}
	if err := e.normalize(); err != nil {
		return TimeEntry{}, err
	}
	return e, nil
}

// normalize checks field-level rules and derives duration and cost.
func (e *TimeEntry) normalize() error {
	if e.EmployeeID == "" {
		return validationError("employeeId", "is required")
	}
	if e.Duration < 0 {
		return validationError("duration", "cannot be negative")
	}
	if (e.StartTime == nil) != (e.EndTime == nil) {
		return validationError("endTime", "startTime and endTime must be provided together")
	}
	if e.HasTimeRange() {
		if *e.StartTime >= *e.EndTime {
			return validationError("endTime", "must be after startTime")
		}
		if e.Duration == 0 {
			e.Duration = int(*e.EndTime - *e.StartTime)
		}
	}
	if e.Duration > minutesPerDay {
		return validationError("duration", "cannot exceed 24 hours")
	}
	if err := validateRate("hourlyRate", e.HourlyRate); err != nil {
		return err
	}
	if err := validateText("description", e.Description, false, 500); err != nil {
		return err
	}
	e.price()
	return nil
}

// price derives TotalCost from duration and rate.
func (e *TimeEntry) price() {
	e.TotalCost = nil
	if e.Billable && e.HourlyRate != nil {
		cost := roundCents(float64(e.Duration) / 60 * *e.HourlyRate)
		e.TotalCost = &cost
	}
}

// Apply returns a copy of e with patch applied and re-validated.
func (e TimeEntry) Apply(actor Actor, patch TimeEntryPatch, now time.Time) (TimeEntry, error) {
	next := e
	if patch.ProjectID != nil {
		next.ProjectID = strings.TrimSpace(*patch.ProjectID)
	}
	if patch.ActivityCodeID != nil {
		next.ActivityCodeID = strings.TrimSpace(*patch.ActivityCodeID)
	}
	if patch.TimesheetID != nil {
		next.TimesheetID = strings.TrimSpace(*patch.TimesheetID)
	}
	if patch.Date != nil {
		next.Date = Day(*patch.Date)
	}
	if patch.ClearTimes {
		next.StartTime, next.EndTime = nil, nil
	}
	if patch.StartTime != nil {
		next.StartTime = patch.StartTime
	}
	if patch.EndTime != nil {
		next.EndTime = patch.EndTime
	}
	switch {
	case patch.Duration != nil:
		next.Duration = *patch.Duration
	case patch.StartTime != nil || patch.EndTime != nil:
		// re-derive from the new bounds
		next.Duration = 0
	}
	if patch.Billable != nil {
		next.Billable = *patch.Billable
	}
	if patch.HourlyRate != nil {
		next.HourlyRate = patch.HourlyRate
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if err := next.normalize(); err != nil {
		return e, err
	}
	next.Audit = e.Audit.touch(actor, now)
	return next, nil
}

// WithRate returns a copy priced at rate. Used when the rate is inherited from
// the activity code or project, whose rates are validated on their own writes.
func (e TimeEntry) WithRate(rate *float64) TimeEntry {
	next := e
	next.HourlyRate = rate
	next.price()
	return next
}

// Conflict types and warning codes reported by DetectConflicts.
const (
	ConflictTimeOverlap = "time_overlap"

	WarningDailyLimit = "daily_limit_exceeded"
	WarningLongEntry  = "long_entry"
)

const (
	dailyLimitMinutes = 24 * 60
	longEntryMinutes  = 12 * 60
)

// Conflict is a pairwise overlap between the proposed block and an existing
// entry.
type Conflict struct {
	EntryID        string    `json:"entryId"`
	ProjectID      string    `json:"projectId,omitempty"`
	ActivityCodeID string    `json:"activityCodeId,omitempty"`
	StartTime      ClockTime `json:"startTime"`
	EndTime        ClockTime `json:"endTime"`
	Duration       int       `json:"duration"`
	OverlapMinutes int       `json:"overlapMinutes"`
	ConflictType   string    `json:"conflictType"`
}

type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ConflictSummary struct {
	ExistingEntries       int `json:"existingEntries"`
	ExistingMinutes       int `json:"existingMinutes"`
	ProposedMinutes       int `json:"proposedMinutes"`
	ProjectedDailyMinutes int `json:"projectedDailyMinutes"`
	ConflictCount         int `json:"conflictCount"`
}

// ConflictReport is advisory: it never blocks a write by itself.
type ConflictReport struct {
	HasConflicts bool            `json:"hasConflicts"`
	Conflicts    []Conflict      `json:"conflicts"`
	Warnings     []Warning       `json:"warnings"`
	Summary      ConflictSummary `json:"summary"`
}

// Overlaps applies the closed-open rule: [aStart,aEnd) and [bStart,bEnd)
// overlap iff aStart < bEnd and bStart < aEnd. Touching ends do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd ClockTime) bool {
	return aStart < bEnd && bStart < aEnd
}

// DetectConflicts compares the proposed block [start,end) with the employee's
// existing entries on the same day. existing must already exclude the entry
// being edited. Entries without clock bounds only count towards the daily
// total.
func DetectConflicts(start, end ClockTime, existing []TimeEntry) ConflictReport {
	proposed := int(end - start)
	r := ConflictReport{Conflicts: []Conflict{}, Warnings: []Warning{}}
	for _, e := range existing {
		r.Summary.ExistingEntries++
		r.Summary.ExistingMinutes += e.Duration
		if !e.HasTimeRange() {
			continue
		}
		es, ee := *e.StartTime, *e.EndTime
		if !Overlaps(start, end, es, ee) {
			continue
		}
		r.Conflicts = append(r.Conflicts, Conflict{
			EntryID:        e.ID,
			ProjectID:      e.ProjectID,
			ActivityCodeID: e.ActivityCodeID,
			StartTime:      es,
			EndTime:        ee,
			Duration:       e.Duration,
			OverlapMinutes: int(min(end, ee) - max(start, es)),
			ConflictType:   ConflictTimeOverlap,
		})
	}
	sort.Slice(r.Conflicts, func(i, j int) bool {
		if r.Conflicts[i].StartTime != r.Conflicts[j].StartTime {
			return r.Conflicts[i].StartTime < r.Conflicts[j].StartTime
		}
		return r.Conflicts[i].EntryID < r.Conflicts[j].EntryID
	})
	r.Summary.ProposedMinutes = proposed
	r.Summary.ProjectedDailyMinutes = r.Summary.ExistingMinutes + proposed
	r.Summary.ConflictCount = len(r.Conflicts)
	r.HasConflicts = len(r.Conflicts) > 0
	if r.Summary.ProjectedDailyMinutes > dailyLimitMinutes {
		r.Warnings = append(r.Warnings, Warning{
			Type:    WarningDailyLimit,
			Message: "Total time for the day would exceed 24 hours",
		})
	}
	if proposed > longEntryMinutes {
		r.Warnings = append(r.Warnings, Warning{
			Type:    WarningLongEntry,
			Message: "Single entry is longer than 12 hours",
		})
	}
	return r
}
