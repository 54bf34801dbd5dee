package metrics

import "time"

// SolveEvent captures one scheduling run.
type SolveEvent struct {
	RunID    string
	Status   string
	Tasks    int
	Makespan time.Duration
	Duration time.Duration
	Time     time.Time
}

// FallbackEvent records that the deterministic fallback produced a schedule.
type FallbackEvent struct {
	RunID  string
	Reason string
	// Forced counts tasks scheduled out of dependency order because of a
	// circular dependency.
	Forced int
	Time   time.Time
}

// RescheduleEvent records an incremental schedule update.
type RescheduleEvent struct {
	TaskID       string
	DeltaMinutes int
	Shifted      int
	Time         time.Time
}

// MetricsSink records scheduler events for observability purposes.
type MetricsSink interface {
	RecordSolve(ev SolveEvent) error
	RecordFallback(ev FallbackEvent) error
	RecordReschedule(ev RescheduleEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveEvent) error           { return nil }
func (NopSink) RecordFallback(FallbackEvent) error     { return nil }
func (NopSink) RecordReschedule(RescheduleEvent) error { return nil }
