package schedule

import (
	"testing"
	"time"
)

func TestSequentialScheduleOrdersByDependency(t *testing.T) {
	s := newTestSolver(nil)
	prob := &problem{
		tasks: []taskNode{
			{id: "b", duration: 60, deps: []int{1}},
			{id: "a", duration: 60},
		},
		endCap: 10000,
	}
	entries, forced := s.sequentialSchedule(testNow, prob)
	if forced != 0 {
		t.Fatalf("expected no forced tasks, got %d", forced)
	}
	if entries[0].TaskID != "a" || entries[1].TaskID != "b" {
		t.Fatalf("unexpected order: %s, %s", entries[0].TaskID, entries[1].TaskID)
	}
	if entries[1].StartTime.Before(entries[0].EndTime) {
		t.Fatalf("dependent task overlaps its dependency")
	}
}

func TestSequentialScheduleCursorSkipsBusyWindows(t *testing.T) {
	s := newTestSolver(nil)
	prob := &problem{
		tasks:  []taskNode{{id: "a", duration: 60}},
		endCap: 10000,
		// Adjacent windows: the cursor escapes both before placing.
		busy: []interval{{start: 0, end: 45}, {start: 40, end: 100}},
	}
	entries, _ := s.sequentialSchedule(testNow, prob)
	if !entries[0].StartTime.Equal(testNow.Add(100 * time.Minute)) {
		t.Fatalf("expected start at +100m, got %s", entries[0].StartTime)
	}
}

func TestSequentialScheduleForcesCycles(t *testing.T) {
	s := newTestSolver(nil)
	prob := &problem{
		tasks: []taskNode{
			{id: "a", duration: 60, deps: []int{1}},
			{id: "b", duration: 60, deps: []int{0}},
		},
		endCap: 10000,
	}
	entries, forced := s.sequentialSchedule(testNow, prob)
	if len(entries) != 2 {
		t.Fatalf("every task must be scheduled, got %d", len(entries))
	}
	if forced == 0 {
		t.Fatalf("expected forced tasks in a cycle")
	}
}
