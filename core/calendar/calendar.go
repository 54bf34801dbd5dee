// Package calendar defines the interfaces between the scheduler and an
// external calendar system: busy intervals flowing in, events flowing out.
package calendar

import (
	"context"
	"time"

	"github.com/chronoplan/chronoplan/core/model"
)

// Interval is a closed-open [Start, End) time range during which the worker
// is unavailable.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Overlaps reports whether [start, end) intersects the interval.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && end.After(i.Start)
}

// BusySource supplies intervals during which no task may run. Implementations
// must degrade to an empty list on failure; busy intervals are a best-effort
// constraint, not a hard dependency.
type BusySource interface {
	BusyIntervals(ctx context.Context, from, to time.Time) ([]Interval, error)
}

// EventWriter pushes scheduled tasks to an external calendar, one event per
// task. A failure on one task must not block the others.
type EventWriter interface {
	CreateEvent(ctx context.Context, task model.Task, entry model.ScheduledTask) error
}

// NopSource is a BusySource with no intervals, used when no calendar is
// configured.
type NopSource struct{}

func (NopSource) BusyIntervals(context.Context, time.Time, time.Time) ([]Interval, error) {
	return nil, nil
}
