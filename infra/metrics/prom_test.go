package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/chronoplan/chronoplan/core/metrics"
)

func TestPromSinkRecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("sink: %v", err)
	}

	ev := coremetrics.SolveEvent{
		RunID:    "r1",
		Status:   "optimal",
		Tasks:    3,
		Makespan: 180 * time.Minute,
		Duration: 2 * time.Second,
		Time:     time.Now(),
	}
	if err := sink.RecordSolve(ev); err != nil {
		t.Fatalf("record solve: %v", err)
	}
	ps := sink.(*PromSink)
	if got := testutil.ToFloat64(ps.solves.WithLabelValues("optimal")); got != 1 {
		t.Fatalf("solves counter = %v", got)
	}
	if got := testutil.ToFloat64(ps.makespan); got != 180 {
		t.Fatalf("makespan gauge = %v", got)
	}

	if err := sink.RecordFallback(coremetrics.FallbackEvent{RunID: "r1", Forced: 2}); err != nil {
		t.Fatalf("record fallback: %v", err)
	}
	if got := testutil.ToFloat64(ps.fallbacks); got != 1 {
		t.Fatalf("fallbacks counter = %v", got)
	}
	if got := testutil.ToFloat64(ps.forced); got != 2 {
		t.Fatalf("forced counter = %v", got)
	}

	if err := sink.RecordReschedule(coremetrics.RescheduleEvent{TaskID: "a"}); err != nil {
		t.Fatalf("record reschedule: %v", err)
	}
	if got := testutil.ToFloat64(ps.reschedules); got != 1 {
		t.Fatalf("reschedules counter = %v", got)
	}
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("second registration should be tolerated: %v", err)
	}
}

type failSink struct{ calls int }

func (f *failSink) RecordSolve(coremetrics.SolveEvent) error {
	f.calls++
	return nil
}
func (f *failSink) RecordFallback(coremetrics.FallbackEvent) error     { f.calls++; return nil }
func (f *failSink) RecordReschedule(coremetrics.RescheduleEvent) error { f.calls++; return nil }

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &failSink{}, &failSink{}
	m := NewMultiSink(a, b)
	if err := m.RecordSolve(coremetrics.SolveEvent{}); err != nil {
		t.Fatalf("record solve: %v", err)
	}
	if err := m.RecordFallback(coremetrics.FallbackEvent{}); err != nil {
		t.Fatalf("record fallback: %v", err)
	}
	if err := m.RecordReschedule(coremetrics.RescheduleEvent{}); err != nil {
		t.Fatalf("record reschedule: %v", err)
	}
	if a.calls != 3 || b.calls != 3 {
		t.Fatalf("expected 3 calls each, got %d and %d", a.calls, b.calls)
	}
}
