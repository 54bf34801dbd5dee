package metrics

import coremetrics "github.com/chronoplan/chronoplan/core/metrics"

// MultiSink fans scheduler events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards the event to all sinks, returning the first error.
func (m *MultiSink) RecordSolve(ev coremetrics.SolveEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSolve(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordFallback forwards fallback events.
func (m *MultiSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordFallback(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordReschedule forwards reschedule events.
func (m *MultiSink) RecordReschedule(ev coremetrics.RescheduleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordReschedule(ev); err != nil {
			return err
		}
	}
	return nil
}
