package domain

import (
	"sort"
	"strings"
	"time"
)

// Hierarchy is the cached position of an activity code in its tenant's tree.
// Children are not refreshed when their parent changes, so Path and FullName
// may be stale until the child itself is next written.
type Hierarchy struct {
	Level    int    `json:"level"`
	Path     string `json:"path"`
	FullName string `json:"fullName"`
}

// ActivityCode is a billable or non-billable work category, optionally nested
// one level below a root code.
type ActivityCode struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenantId"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category"`
	ParentID        string    `json:"parentId,omitempty"`
	Billable        bool      `json:"billable"`
	DefaultRate     *float64  `json:"defaultRate,omitempty"`
	IsActive        bool      `json:"isActive"`
	ProjectSpecific bool      `json:"projectSpecific"`
	Hierarchy       Hierarchy `json:"hierarchy"`
	Audit
}

// ActivityCodeInput carries the caller-supplied fields of a new code.
type ActivityCodeInput struct {
	Code            string
	Name            string
	Description     string
	Category        string
	Billable        bool
	DefaultRate     *float64
	ProjectSpecific bool
}

// ActivityCodePatch is a partial update; nil fields are left unchanged.
// ClearRate removes the default rate.
type ActivityCodePatch struct {
	Code            *string
	Name            *string
	Description     *string
	Category        *string
	Billable        *bool
	DefaultRate     *float64
	ClearRate       bool
	IsActive        *bool
	ProjectSpecific *bool
}

func (c ActivityCode) HasParent() bool { return c.ParentID != "" }

// NewActivityCode validates in and builds a root (level 0) code.
func NewActivityCode(actor Actor, id string, in ActivityCodeInput, now time.Time) (ActivityCode, error) {
	if err := actor.Validate(); err != nil {
		return ActivityCode{}, err
	}
	c := ActivityCode{
		ID:              id,
		TenantID:        actor.TenantID,
		Code:            NormalizeCode(in.Code),
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		Category:        strings.TrimSpace(in.Category),
		Billable:        in.Billable,
		DefaultRate:     in.DefaultRate,
		IsActive:        true,
		ProjectSpecific: in.ProjectSpecific,
		Audit:           newAudit(actor, now),
	}
	if err := c.validateFields(); err != nil {
		return ActivityCode{}, err
	}
	c.Hierarchy = rootHierarchy(c)
	return c, nil
}

func (c ActivityCode) validateFields() error {
	if err := validateCode("code", c.Code); err != nil {
		return err
	}
	if err := validateText("name", c.Name, true, 100); err != nil {
		return err
	}
	if err := validateText("category", c.Category, true, 50); err != nil {
		return err
	}
	if err := validateText("description", c.Description, false, 500); err != nil {
		return err
	}
	if err := validateRate("defaultRate", c.DefaultRate); err != nil {
		return err
	}
	if !c.Billable && c.DefaultRate != nil {
		return invariantError("non-billable activity code %s cannot carry a default rate", c.Code)
	}
	return nil
}

// Apply returns a copy of c with patch applied. parent is the current parent
// document when c has one; the code's own hierarchy is recomputed from it.
func (c ActivityCode) Apply(actor Actor, patch ActivityCodePatch, parent *ActivityCode, now time.Time) (ActivityCode, error) {
	next := c
	if patch.Code != nil {
		next.Code = NormalizeCode(*patch.Code)
	}
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		next.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Billable != nil {
		next.Billable = *patch.Billable
	}
	if patch.ClearRate {
		next.DefaultRate = nil
	}
	if patch.DefaultRate != nil {
		next.DefaultRate = patch.DefaultRate
	}
	if patch.IsActive != nil {
		next.IsActive = *patch.IsActive
	}
	if patch.ProjectSpecific != nil {
		next.ProjectSpecific = *patch.ProjectSpecific
	}
	if err := next.validateFields(); err != nil {
		return c, err
	}
	if next.HasParent() && parent != nil && parent.ID == next.ParentID {
		next.Hierarchy = childHierarchy(next, *parent)
	} else if !next.HasParent() {
		next.Hierarchy = rootHierarchy(next)
	}
	next.Audit = c.Audit.touch(actor, now)
	return next, nil
}

// SetParent nests c below parent. all is every code of the tenant and is used
// to detect cycles and existing children of c.
func (c ActivityCode) SetParent(actor Actor, parent ActivityCode, all []ActivityCode, now time.Time) (ActivityCode, error) {
	if parent.ID == c.ID {
		return c, invariantError("Activity code cannot be its own parent")
	}
	if parent.TenantID != c.TenantID {
		return c, NotFound("activity code", parent.ID)
	}
	byID := indexCodes(all)
	byID[parent.ID] = parent
	if isAncestor(byID, c.ID, parent) {
		return c, invariantError("Activity code %s cannot be nested below its own descendant %s", c.Code, parent.Code)
	}
	if parent.HasParent() {
		return c, invariantError("Activity code hierarchy cannot exceed 2 levels")
	}
	for _, other := range all {
		if other.ParentID == c.ID && other.ID != c.ID {
			return c, invariantError("Activity code %s has child codes and cannot be nested", c.Code)
		}
	}
	if !parent.IsActive {
		return c, invariantError("Parent activity code %s is inactive", parent.Code)
	}
	next := c
	next.ParentID = parent.ID
	next.Hierarchy = childHierarchy(next, parent)
	next.Audit = c.Audit.touch(actor, now)
	return next, nil
}

// RemoveParent makes c a root code again.
func (c ActivityCode) RemoveParent(actor Actor, now time.Time) ActivityCode {
	next := c
	next.ParentID = ""
	next.Hierarchy = rootHierarchy(next)
	next.Audit = c.Audit.touch(actor, now)
	return next
}

// Deactivate soft-deletes c.
func (c ActivityCode) Deactivate(actor Actor, now time.Time) ActivityCode {
	next := c
	next.IsActive = false
	next.Audit = c.Audit.touch(actor, now)
	return next
}

func rootHierarchy(c ActivityCode) Hierarchy {
	return Hierarchy{Level: 0, Path: c.Code, FullName: c.Name}
}

func childHierarchy(c, parent ActivityCode) Hierarchy {
	return Hierarchy{
		Level:    1,
		Path:     parent.Code + "/" + c.Code,
		FullName: parent.Name + " > " + c.Name,
	}
}

func indexCodes(all []ActivityCode) map[string]ActivityCode {
	m := make(map[string]ActivityCode, len(all))
	for _, c := range all {
		m[c.ID] = c
	}
	return m
}

// isAncestor reports whether id appears on the parent chain starting at from
// (inclusive). The walk is bounded so corrupted data cannot loop forever.
func isAncestor(byID map[string]ActivityCode, id string, from ActivityCode) bool {
	cur := from
	for steps := 0; steps <= len(byID); steps++ {
		if cur.ID == id {
			return true
		}
		if !cur.HasParent() {
			return false
		}
		next, ok := byID[cur.ParentID]
		if !ok {
			return false
		}
		cur = next
	}
	return true
}

// HierarchyIssue lists the problems found on one activity code.
type HierarchyIssue struct {
	ActivityCodeID string   `json:"activityCodeId"`
	Code           string   `json:"code"`
	Issues         []string `json:"issues"`
}

// HierarchyReport is the result of a consistency sweep over a tenant's codes.
type HierarchyReport struct {
	IsValid bool             `json:"isValid"`
	Issues  []HierarchyIssue `json:"issues"`
}

// Hierarchy issue messages.
const (
	IssueOwnParent     = "Activity code cannot be its own parent"
	IssueMissingParent = "Parent activity code not found"
	IssueChildLevel    = "Activity code with a parent must have hierarchy level 1"
	IssueRootLevel     = "Root activity code must have hierarchy level 0"
	IssuePathMissing   = "Hierarchy path does not contain parent code"
	IssueDepthExceeded = "Activity code hierarchy cannot exceed 2 levels"
)

// ValidateHierarchy inspects every code of one tenant and reports drift. It
// never mutates its input.
func ValidateHierarchy(all []ActivityCode) HierarchyReport {
	byID := indexCodes(all)
	report := HierarchyReport{IsValid: true, Issues: []HierarchyIssue{}}
	for _, c := range all {
		var issues []string
		if c.HasParent() {
			parent, ok := byID[c.ParentID]
			switch {
			case c.ParentID == c.ID:
				issues = append(issues, IssueOwnParent)
			case !ok:
				issues = append(issues, IssueMissingParent)
			}
			if c.Hierarchy.Level != 1 {
				issues = append(issues, IssueChildLevel)
			}
			if ok && c.ParentID != c.ID {
				if !strings.Contains(c.Hierarchy.Path, parent.Code) {
					issues = append(issues, IssuePathMissing)
				}
				if parent.HasParent() {
					issues = append(issues, IssueDepthExceeded)
				}
			}
		} else if c.Hierarchy.Level != 0 {
			issues = append(issues, IssueRootLevel)
		}
		if len(issues) > 0 {
			report.IsValid = false
			report.Issues = append(report.Issues, HierarchyIssue{ActivityCodeID: c.ID, Code: c.Code, Issues: issues})
		}
	}
	sort.Slice(report.Issues, func(i, j int) bool {
		if report.Issues[i].Code != report.Issues[j].Code {
			return report.Issues[i].Code < report.Issues[j].Code
		}
		return report.Issues[i].ActivityCodeID < report.Issues[j].ActivityCodeID
	})
	return report
}
