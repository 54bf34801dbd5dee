package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/chronoplan/chronoplan/core/calendar"
	"github.com/chronoplan/chronoplan/core/model"
)

var testNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

type fixedBusy struct {
	intervals []calendar.Interval
}

func (f fixedBusy) BusyIntervals(context.Context, time.Time, time.Time) ([]calendar.Interval, error) {
	return f.intervals, nil
}

type failingBusy struct{}

func (failingBusy) BusyIntervals(context.Context, time.Time, time.Time) ([]calendar.Interval, error) {
	return nil, errors.New("calendar unreachable")
}

func newTestSolver(busy calendar.BusySource) *Solver {
	s := NewSolver(Config{}, busy, nil, nil)
	s.now = func() time.Time { return testNow }
	return s
}

func estimates(minutes int, ids ...string) []model.DurationEstimate {
	out := make([]model.DurationEstimate, len(ids))
	for i, id := range ids {
		out[i] = model.DurationEstimate{TaskID: id, EstimatedDurationMinutes: minutes}
	}
	return out
}

func entryByID(t *testing.T, res Result, id string) model.ScheduledTask {
	t.Helper()
	for _, e := range res.Tasks {
		if e.TaskID == id {
			return e
		}
	}
	t.Fatalf("task %s not in result", id)
	return model.ScheduledTask{}
}

func TestScheduleDependencyOrdering(t *testing.T) {
	s := newTestSolver(nil)
	tasks := []model.Task{
		{ID: "a", Title: "design"},
		{ID: "b", Title: "build", Dependencies: []string{"a"}},
		{ID: "c", Title: "ship", Dependencies: []string{"b"}},
	}
	res, err := s.Schedule(context.Background(), tasks, estimates(60, "a", "b", "c"), nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if res.Status != StatusOptimal {
		t.Fatalf("expected optimal, got %s", res.Status)
	}
	a, b, c := entryByID(t, res, "a"), entryByID(t, res, "b"), entryByID(t, res, "c")
	if b.StartTime.Before(a.EndTime) {
		t.Fatalf("b starts %s before a ends %s", b.StartTime, a.EndTime)
	}
	if c.StartTime.Before(b.EndTime) {
		t.Fatalf("c starts %s before b ends %s", c.StartTime, b.EndTime)
	}
	if res.Makespan != 180*time.Minute {
		t.Fatalf("expected 180m makespan, got %s", res.Makespan)
	}
	// List order reflects temporal order.
	for i := 1; i < len(res.Tasks); i++ {
		if res.Tasks[i].StartTime.Before(res.Tasks[i-1].StartTime) {
			t.Fatalf("result not ordered by start time")
		}
	}
}

func TestScheduleDurations(t *testing.T) {
	s := newTestSolver(nil)
	tasks := []model.Task{{ID: "a", Title: "estimated"}, {ID: "b", Title: "unestimated"}}
	res, err := s.Schedule(context.Background(), tasks, estimates(90, "a"), nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if d := entryByID(t, res, "a").Duration(); d != 90*time.Minute {
		t.Fatalf("expected 90m, got %s", d)
	}
	// Tasks without an estimate fall back to the default duration.
	if d := entryByID(t, res, "b").Duration(); d != 60*time.Minute {
		t.Fatalf("expected default 60m, got %s", d)
	}
}

func TestScheduleAvoidsBusyIntervals(t *testing.T) {
	busy := fixedBusy{intervals: []calendar.Interval{
		{Start: testNow.Add(30 * time.Minute), End: testNow.Add(90 * time.Minute)},
	}}
	s := newTestSolver(busy)
	res, err := s.Schedule(context.Background(), []model.Task{{ID: "a"}}, estimates(60, "a"), nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if res.Status != StatusOptimal {
		t.Fatalf("expected optimal, got %s", res.Status)
	}
	a := entryByID(t, res, "a")
	// The only placement avoiding the window starts when it ends.
	if !a.StartTime.Equal(testNow.Add(90 * time.Minute)) {
		t.Fatalf("expected start at +90m, got %s", a.StartTime)
	}
}

func TestScheduleBusySourceFailureDegrades(t *testing.T) {
	s := newTestSolver(failingBusy{})
	res, err := s.Schedule(context.Background(), []model.Task{{ID: "a"}}, estimates(60, "a"), nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if res.Status != StatusOptimal {
		t.Fatalf("expected optimal despite busy source failure, got %s", res.Status)
	}
	if !entryByID(t, res, "a").StartTime.Equal(testNow) {
		t.Fatalf("expected immediate start")
	}
}

func TestScheduleCycleUsesFallback(t *testing.T) {
	s := newTestSolver(nil)
	tasks := []model.Task{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	}
	res, err := s.Schedule(context.Background(), tasks, estimates(60, "a", "b"), nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if res.Status != StatusFallback {
		t.Fatalf("expected fallback on cycle, got %s", res.Status)
	}
	if len(res.Tasks) != 2 {
		t.Fatalf("fallback must schedule every task, got %d", len(res.Tasks))
	}
	for _, e := range res.Tasks {
		if !e.EndTime.After(e.StartTime) {
			t.Fatalf("entry %s has no duration", e.TaskID)
		}
	}
}

func TestScheduleLPFailureUsesFallback(t *testing.T) {
	orig := lpSolve
	lpSolve = func([]float64, *mat.Dense, []float64, *mat.Dense, []float64) ([]float64, float64, error) {
		return nil, 0, errors.New("solver exploded")
	}
	defer func() { lpSolve = orig }()

	s := newTestSolver(nil)
	res, err := s.Schedule(context.Background(), []model.Task{{ID: "a"}}, estimates(60, "a"), nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if res.Status != StatusFallback {
		t.Fatalf("expected fallback, got %s", res.Status)
	}
	if len(res.Tasks) != 1 {
		t.Fatalf("expected one entry, got %d", len(res.Tasks))
	}
}

func TestScheduleDeadlineAnnotation(t *testing.T) {
	s := newTestSolver(nil)
	tasks := []model.Task{{ID: "a", Title: "report", Description: "submit in 3 days"}}
	res, err := s.Schedule(context.Background(), tasks, estimates(60, "a"), nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	a := entryByID(t, res, "a")
	if a.Deadline == nil {
		t.Fatalf("expected deadline annotation")
	}
	want := time.Date(2025, 3, 15, 23, 59, 59, 0, time.UTC)
	if !a.Deadline.Equal(want) {
		t.Fatalf("deadline %s want %s", a.Deadline, want)
	}
	if a.Status != model.StatusOnTrack {
		t.Fatalf("expected on_track, got %s", a.Status)
	}
}

func TestScheduleEmptyBatch(t *testing.T) {
	s := newTestSolver(nil)
	res, err := s.Schedule(context.Background(), nil, nil, nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if res.Status != StatusOptimal || len(res.Tasks) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestScheduleMalformedInput(t *testing.T) {
	s := newTestSolver(nil)
	if _, err := s.Schedule(context.Background(), []model.Task{{ID: "  "}}, nil, nil); err == nil {
		t.Fatalf("expected error for blank id")
	}
	bad := []model.DurationEstimate{{TaskID: "a", EstimatedDurationMinutes: -1}}
	if _, err := s.Schedule(context.Background(), []model.Task{{ID: "a"}}, bad, nil); err == nil {
		t.Fatalf("expected error for negative estimate")
	}
}

func TestScheduleDependencyOutsideBatchIgnored(t *testing.T) {
	s := newTestSolver(nil)
	tasks := []model.Task{{ID: "a", Dependencies: []string{"ghost"}}}
	res, err := s.Schedule(context.Background(), tasks, estimates(60, "a"), nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if res.Status != StatusOptimal {
		t.Fatalf("expected optimal, got %s", res.Status)
	}
	if !entryByID(t, res, "a").StartTime.Equal(testNow) {
		t.Fatalf("unknown dependency must not delay the task")
	}
}

func TestTopoOrderCycle(t *testing.T) {
	p := &problem{tasks: []taskNode{
		{id: "a", duration: 60, deps: []int{1}},
		{id: "b", duration: 60, deps: []int{0}},
	}, endCap: 1000}
	if _, err := p.topoOrder(); !errors.Is(err, errCyclic) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestEarliestScheduleRespectsChoices(t *testing.T) {
	p := &problem{
		tasks:  []taskNode{{id: "a", duration: 60}},
		endCap: 1000,
		busy:   []interval{{start: 30, end: 90}},
	}
	starts, makespan, err := p.earliestSchedule([]choice{{task: 0, interval: 0, after: true}})
	if err != nil {
		t.Fatalf("earliest: %v", err)
	}
	if starts[0] != 90 || makespan != 150 {
		t.Fatalf("got start %d makespan %d", starts[0], makespan)
	}
	if _, _, err := p.earliestSchedule([]choice{{task: 0, interval: 0, after: false}}); err == nil {
		t.Fatalf("expected bound violation when task cannot fit before interval")
	}
}
