package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Actor is the identity performing a mutation. Tenant resolution happens
// upstream; the engine trusts TenantID.
type Actor struct {
	TenantID string
	UserID   string
}

// Validate checks that the actor is usable for a mutation.
func (a Actor) Validate() error {
	if a.TenantID == "" {
		return validationError("tenantId", "is required")
	}
	if a.UserID == "" {
		return validationError("userId", "is required")
	}
	return nil
}

// Audit holds the bookkeeping fields shared by every document.
type Audit struct {
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy"`
	UpdatedBy string    `json:"updatedBy"`
}

func newAudit(actor Actor, now time.Time) Audit {
	return Audit{CreatedAt: now, UpdatedAt: now, CreatedBy: actor.UserID, UpdatedBy: actor.UserID}
}

func (a Audit) touch(actor Actor, now time.Time) Audit {
	a.UpdatedAt = now
	a.UpdatedBy = actor.UserID
	return a
}

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

const maxCodeLength = 20

// NormalizeCode trims and upper-cases a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateCode(field, code string) error {
	switch {
	case code == "":
		return validationError(field, "is required")
	case len(code) > maxCodeLength:
		return validationError(field, "must be at most %d characters", maxCodeLength)
	case !codePattern.MatchString(code):
		return validationError(field, "may only contain uppercase letters, digits, hyphens and underscores")
	}
	return nil
}

func validateText(field, value string, required bool, max int) error {
	if required && strings.TrimSpace(value) == "" {
		return validationError(field, "is required")
	}
	if len(value) > max {
		return validationError(field, "must be at most %d characters", max)
	}
	return nil
}

func validateRate(field string, rate *float64) error {
	if rate == nil {
		return nil
	}
	if math.IsNaN(*rate) || math.IsInf(*rate, 0) || *rate < 0 {
		return validationError(field, "must be a non-negative number")
	}
	return nil
}

// DateLayout is the wire format of calendar days.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar day at UTC midnight.
func ParseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, validationError(field, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// Day returns t's calendar date, read in t's own location, as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClockTime is a wall-clock time of day in minutes since midnight. 24:00 is
// representable so a block may end at the end of the day.
type ClockTime int

const minutesPerDay = 24 * 60

// ParseClockTime parses HH:MM.
func ParseClockTime(field, value string) (ClockTime, error) {
	value = strings.TrimSpace(value)
	if len(value) != 5 || value[2] != ':' || !isDigits(value[:2]) || !isDigits(value[3:]) {
		return 0, validationError(field, "must be a time in HH:MM format")
	}
	h, _ := strconv.Atoi(value[:2])
	m, _ := strconv.Atoi(value[3:])
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, validationError(field, "must be a time between 00:00 and 24:00")
	}
	return ClockTime(h*60 + m), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// MustClock parses HH:MM and panics on malformed input.
func MustClock(value string) ClockTime {
	c, err := ParseClockTime("time", value)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClockTime("time", string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// addUnique appends ids not already present, preserving order.
func addUnique(set []string, ids ...string) []string {
	out := append([]string(nil), set...)
	seen := make(map[string]bool, len(out))
	for _, id := range out {
		seen[id] = true
	}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func removeAll(set []string, ids ...string) []string {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	out := make([]string, 0, len(set))
	for _, id := range set {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

func contains(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
