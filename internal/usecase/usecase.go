// Package usecase implements the time-tracking integrity engine: the activity
// code registry, the project ledger, time entry validation and the timesheet
// workflow. Every operation reads its working set fresh from the repositories
// and writes whole documents back; nothing is shared between calls.
package usecase

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var errNotInitialized = errors.New("usecase not initialized: missing dependencies")

// Clock returns the current time. Nil means time.Now.
type Clock func() time.Time

// IDFunc generates document ids. Nil means random UUIDs.
type IDFunc func() string

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

func (f IDFunc) next() string {
	if f == nil {
		return uuid.NewString()
	}
	return f()
}

func logOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
