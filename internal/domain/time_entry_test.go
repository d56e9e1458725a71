package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/kr/pretty"
)

var jan10 = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func clock(s string) *ClockTime {
	c := MustClock(s)
	return &c
}

func entryAt(id, start, end string) TimeEntry {
	s, e := MustClock(start), MustClock(end)
	return TimeEntry{ID: id, EmployeeID: "emp-1", Date: jan10, StartTime: &s, EndTime: &e, Duration: int(e - s), Billable: true}
}

func TestParseClockTime(t *testing.T) {
	cases := map[string]int{"00:00": 0, "09:30": 570, "23:59": 1439, "24:00": 1440}
	for in, want := range cases {
		got, err := ParseClockTime("t", in)
		if err != nil || int(got) != want {
			t.Fatalf("ParseClockTime(%q) = %d, %v; want %d", in, got, err, want)
		}
		if got.String() != in {
			t.Fatalf("String() = %q, want %q", got.String(), in)
		}
	}
	for _, bad := range []string{"", "9:30", "09:60", "24:01", "25:00", "ab:cd", "09-30", "+9:30"} {
		if _, err := ParseClockTime("t", bad); !errors.Is(err, ErrValidation) {
			t.Fatalf("ParseClockTime(%q) err = %v, want ErrValidation", bad, err)
		}
	}
}

func TestDayKeepsLocalDate(t *testing.T) {
	east := time.FixedZone("UTC+2", 2*60*60)
	west := time.FixedZone("UTC-5", -5*60*60)
	cases := []time.Time{
		time.Date(2024, 1, 10, 0, 0, 0, 0, east),
		time.Date(2024, 1, 10, 23, 30, 0, 0, west),
		time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	for _, in := range cases {
		if got := Day(in); !got.Equal(jan10) || got.Location() != time.UTC {
			t.Fatalf("Day(%v) = %v, want %v", in, got, jan10)
		}
	}

	e, err := NewTimeEntry(testActor, "e1", TimeEntryInput{EmployeeID: "emp-1", Date: cases[0], Duration: 30}, jan10)
	if err != nil {
		t.Fatalf("NewTimeEntry: %v", err)
	}
	if e.Date.Format(DateLayout) != "2024-01-10" {
		t.Fatalf("stored date = %s", e.Date.Format(DateLayout))
	}
}

func TestOverlapsClosedOpen(t *testing.T) {
	cases := []struct {
		a, b [2]string
		want bool
	}{
		{[2]string{"09:00", "10:00"}, [2]string{"09:30", "10:30"}, true},
		{[2]string{"09:00", "10:00"}, [2]string{"10:00", "11:00"}, false},
		{[2]string{"10:00", "11:00"}, [2]string{"09:00", "10:00"}, false},
		{[2]string{"09:00", "12:00"}, [2]string{"10:00", "11:00"}, true},
		{[2]string{"09:00", "10:00"}, [2]string{"11:00", "12:00"}, false},
		{[2]string{"09:00", "10:00"}, [2]string{"09:00", "10:00"}, true},
	}
	for _, tc := range cases {
		got := Overlaps(MustClock(tc.a[0]), MustClock(tc.a[1]), MustClock(tc.b[0]), MustClock(tc.b[1]))
		if got != tc.want {
			t.Fatalf("Overlaps(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
		rev := Overlaps(MustClock(tc.b[0]), MustClock(tc.b[1]), MustClock(tc.a[0]), MustClock(tc.a[1]))
		if rev != got {
			t.Fatalf("Overlaps is not symmetric for %v, %v", tc.a, tc.b)
		}
	}
}

func TestDetectConflictsSingleOverlap(t *testing.T) {
	existing := []TimeEntry{entryAt("e-1", "09:00", "10:00")}
	r := DetectConflicts(MustClock("09:30"), MustClock("10:30"), existing)
	want := ConflictReport{
		HasConflicts: true,
		Conflicts: []Conflict{{
			EntryID:        "e-1",
			StartTime:      MustClock("09:00"),
			EndTime:        MustClock("10:00"),
			Duration:       60,
			OverlapMinutes: 30,
			ConflictType:   ConflictTimeOverlap,
		}},
		Warnings: []Warning{},
		Summary: ConflictSummary{
			ExistingEntries:       1,
			ExistingMinutes:       60,
			ProposedMinutes:       60,
			ProjectedDailyMinutes: 120,
			ConflictCount:         1,
		},
	}
	if diff := pretty.Diff(r, want); len(diff) > 0 {
		t.Fatalf("report diff:\n%v", diff)
	}
}

func TestDetectConflictsAdjacencyAndUntimed(t *testing.T) {
	untimed := TimeEntry{ID: "e-3", EmployeeID: "emp-1", Date: jan10, Duration: 120}
	existing := []TimeEntry{
		entryAt("e-2", "10:00", "11:00"),
		entryAt("e-1", "08:00", "09:00"),
		untimed,
	}
	r := DetectConflicts(MustClock("09:00"), MustClock("10:00"), existing)
	if r.HasConflicts || len(r.Conflicts) != 0 {
		t.Fatalf("adjacent entries reported as conflicts: %# v", pretty.Formatter(r.Conflicts))
	}
	if r.Summary.ExistingEntries != 3 || r.Summary.ExistingMinutes != 240 || r.Summary.ProjectedDailyMinutes != 300 {
		t.Fatalf("summary = %+v", r.Summary)
	}

	r = DetectConflicts(MustClock("08:30"), MustClock("10:30"), existing)
	if r.Summary.ConflictCount != 2 {
		t.Fatalf("conflicts = %d, want 2", r.Summary.ConflictCount)
	}
	if r.Conflicts[0].EntryID != "e-1" || r.Conflicts[1].EntryID != "e-2" {
		t.Fatalf("conflicts not ordered by start: %v, %v", r.Conflicts[0].EntryID, r.Conflicts[1].EntryID)
	}
}

func TestDetectConflictsWarnings(t *testing.T) {
	r := DetectConflicts(MustClock("00:00"), MustClock("13:00"), nil)
	if len(r.Warnings) != 1 || r.Warnings[0].Type != WarningLongEntry {
		t.Fatalf("warnings = %+v", r.Warnings)
	}
	existing := []TimeEntry{{ID: "e-1", EmployeeID: "emp-1", Date: jan10, Duration: 20 * 60}}
	r = DetectConflicts(MustClock("18:00"), MustClock("23:00"), existing)
	if len(r.Warnings) != 1 || r.Warnings[0].Type != WarningDailyLimit {
		t.Fatalf("warnings = %+v", r.Warnings)
	}
	if r.HasConflicts {
		t.Fatalf("untimed entries cannot conflict")
	}
}

func TestNewTimeEntry(t *testing.T) {
	rate := 90.0
	e, err := NewTimeEntry(testActor, "e-1", TimeEntryInput{
		EmployeeID: "emp-1",
		Date:       time.Date(2024, 1, 10, 15, 4, 0, 0, time.UTC),
		StartTime:  clock("09:00"),
		EndTime:    clock("10:20"),
		Billable:   true,
		HourlyRate: &rate,
	}, testNow)
	if err != nil {
		t.Fatalf("NewTimeEntry: %v", err)
	}
	if !e.Date.Equal(jan10) {
		t.Fatalf("date = %v, want truncated day", e.Date)
	}
	if e.Duration != 80 {
		t.Fatalf("duration = %d, want 80", e.Duration)
	}
	if e.TotalCost == nil || *e.TotalCost != 120 {
		t.Fatalf("total cost = %v, want 120", e.TotalCost)
	}

	nb, err := NewTimeEntry(testActor, "e-2", TimeEntryInput{EmployeeID: "emp-1", Date: jan10, Duration: 30, HourlyRate: &rate}, testNow)
	if err != nil {
		t.Fatalf("non-billable: %v", err)
	}
	if nb.TotalCost != nil {
		t.Fatalf("non-billable entry priced at %v", *nb.TotalCost)
	}
}

func TestNewTimeEntryRejects(t *testing.T) {
	cases := []struct {
		name string
		in   TimeEntryInput
	}{
		{"missing employee", TimeEntryInput{Date: jan10, Duration: 10}},
		{"missing date", TimeEntryInput{EmployeeID: "emp-1", Duration: 10}},
		{"negative duration", TimeEntryInput{EmployeeID: "emp-1", Date: jan10, Duration: -5}},
		{"end before start", TimeEntryInput{EmployeeID: "emp-1", Date: jan10, StartTime: clock("10:00"), EndTime: clock("09:00")}},
		{"zero length", TimeEntryInput{EmployeeID: "emp-1", Date: jan10, StartTime: clock("10:00"), EndTime: clock("10:00")}},
		{"start only", TimeEntryInput{EmployeeID: "emp-1", Date: jan10, StartTime: clock("10:00")}},
		{"over a day", TimeEntryInput{EmployeeID: "emp-1", Date: jan10, Duration: 24*60 + 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTimeEntry(testActor, "e-1", tc.in, testNow); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestTimeEntryApply(t *testing.T) {
	rate := 60.0
	e, err := NewTimeEntry(testActor, "e-1", TimeEntryInput{
		EmployeeID: "emp-1", Date: jan10, StartTime: clock("09:00"), EndTime: clock("10:00"), Billable: true, HourlyRate: &rate,
	}, testNow)
	if err != nil {
		t.Fatalf("NewTimeEntry: %v", err)
	}
	next, err := e.Apply(testActor, TimeEntryPatch{EndTime: clock("11:30")}, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.Duration != 150 || *next.TotalCost != 150 {
		t.Fatalf("duration %d cost %v", next.Duration, *next.TotalCost)
	}
	if e.Duration != 60 {
		t.Fatalf("Apply mutated its receiver")
	}
	if _, err := e.Apply(testActor, TimeEntryPatch{StartTime: clock("12:00")}, testNow); !errors.Is(err, ErrValidation) {
		t.Fatalf("start after end: err = %v", err)
	}

	untimed, err := e.Apply(testActor, TimeEntryPatch{ClearTimes: true, Duration: ptr(45)}, testNow)
	if err != nil {
		t.Fatalf("clear times: %v", err)
	}
	if untimed.HasTimeRange() || untimed.Duration != 45 {
		t.Fatalf("untimed = %+v", untimed)
	}
}

func TestTimeEntryWithRate(t *testing.T) {
	e := entryAt("e-1", "09:00", "10:30")
	priced := e.WithRate(ptr(100.0))
	if priced.TotalCost == nil || *priced.TotalCost != 150 || e.TotalCost != nil {
		t.Fatalf("priced cost %v, receiver cost %v", priced.TotalCost, e.TotalCost)
	}
	if cleared := priced.WithRate(nil); cleared.HourlyRate != nil || cleared.TotalCost != nil {
		t.Fatalf("cleared = %+v", cleared)
	}
	e.Billable = false
	if free := e.WithRate(ptr(100.0)); free.TotalCost != nil {
		t.Fatalf("non-billable entry priced at %v", *free.TotalCost)
	}
}

func TestClockTimeJSONRoundTrip(t *testing.T) {
	e := entryAt("e-1", "07:15", "08:45")
	b, err := e.StartTime.MarshalText()
	if err != nil || string(b) != "07:15" {
		t.Fatalf("MarshalText = %q, %v", b, err)
	}
	var c ClockTime
	if err := c.UnmarshalText([]byte("08:45")); err != nil || c != *e.EndTime {
		t.Fatalf("UnmarshalText = %v, %v", c, err)
	}
	if err := c.UnmarshalText([]byte("8:45")); err == nil {
		t.Fatalf("expected error for malformed time")
	}
}
