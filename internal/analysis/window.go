// Package analysis implements the spending analysis pipeline: period window
// computation, category aggregation, recurring merchant detection, narrative
// building, and the orchestrator that ties them to storage and the AI
// insight generator.
package analysis

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow reports a non-positive window length. This is a
// programmer error, fatal to the call.
var ErrInvalidWindow = errors.New("window length must be positive")

// Window is a pair of equal-length, contiguous date ranges used for
// period-over-period comparison. PrevEnd equals Start, so the previous
// window immediately precedes the current one.
type Window struct {
	Start     time.Time
	End       time.Time
	PrevStart time.Time
	PrevEnd   time.Time
}

// ComputeWindow derives the current and previous period bounds from a
// reference instant and a window length in days.
func ComputeWindow(now time.Time, windowDays int) (Window, error) {
	if windowDays <= 0 {
		return Window{}, fmt.Errorf("%w: got %d days", ErrInvalidWindow, windowDays)
	}
	start := now.AddDate(0, 0, -windowDays)
	return Window{
		Start:     start,
		End:       now,
		PrevStart: start.AddDate(0, 0, -windowDays),
		PrevEnd:   start,
	}, nil
}

// ContainsCurrent reports whether t falls in the current period.
// Bounds are inclusive on both ends.
func (w Window) ContainsCurrent(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ContainsPrevious reports whether t falls in the previous period.
// Bounds are inclusive on both ends.
func (w Window) ContainsPrevious(t time.Time) bool {
	return !t.Before(w.PrevStart) && !t.After(w.PrevEnd)
}
