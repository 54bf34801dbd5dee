package schedule

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/chronoplan/chronoplan/core/calendar"
	"github.com/chronoplan/chronoplan/core/logger"
	"github.com/chronoplan/chronoplan/core/metrics"
	"github.com/chronoplan/chronoplan/core/model"
	"github.com/chronoplan/chronoplan/core/timeparse"
)

// Status reports how a schedule was obtained.
type Status int

const (
	// StatusOptimal means the search completed and the makespan is minimal.
	StatusOptimal Status = iota
	// StatusFeasible means the budget expired with a valid but not proven
	// optimal schedule.
	StatusFeasible
	// StatusFallback means the deterministic sequential scheduler produced
	// the result.
	StatusFallback
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusFallback:
		return "fallback"
	}
	return "unknown"
}

// Result is the outcome of one scheduling run.
type Result struct {
	RunID    string
	Status   Status
	Tasks    []model.ScheduledTask
	Makespan time.Duration
}

// Solver assigns start and end times to a batch of interdependent tasks,
// minimizing the makespan under deadline, dependency and busy-interval
// constraints. Each call builds and discards its own model, so concurrent
// calls on independent batches are safe.
type Solver struct {
	cfg  Config
	busy calendar.BusySource
	sink metrics.MetricsSink
	log  logger.Logger
	now  func() time.Time
}

// NewSolver creates a Solver. A nil busy source, sink or logger degrades to
// a no-op implementation.
func NewSolver(cfg Config, busy calendar.BusySource, sink metrics.MetricsSink, log logger.Logger) *Solver {
	cfg.SetDefaults()
	if busy == nil {
		busy = calendar.NopSource{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Solver{cfg: cfg, busy: busy, sink: sink, log: log, now: time.Now}
}

// Schedule computes a schedule for the batch. It returns an error only on
// malformed input; infeasibility and budget exhaustion route to the
// deterministic fallback instead.
func (s *Solver) Schedule(ctx context.Context, tasks []model.Task, estimates []model.DurationEstimate, constraints []string) (Result, error) {
	started := s.now()
	runID := uuid.NewString()

	tasks, err := model.NormalizeTasks(tasks)
	if err != nil {
		return Result{}, fmt.Errorf("schedule: %w", err)
	}
	estimates, err = model.NormalizeEstimates(estimates)
	if err != nil {
		return Result{}, fmt.Errorf("schedule: %w", err)
	}
	if len(tasks) == 0 {
		return Result{RunID: runID, Status: StatusOptimal}, nil
	}

	parser := timeparse.NewAt(s.now)
	deadlines := parser.ExtractTaskDeadlines(tasks)
	global := parser.ExtractGlobalConstraints(constraints)

	prob := s.buildProblem(ctx, started, tasks, estimates, deadlines, global)

	solveCtx, cancel := context.WithTimeout(ctx, s.cfg.Budget())
	defer cancel()
	starts, status, ok := s.branchAndBound(solveCtx, prob)

	var entries []model.ScheduledTask
	if ok {
		entries = s.materialize(started, prob, starts)
	} else {
		status = StatusFallback
		var forced int
		entries, forced = s.sequentialSchedule(started, prob)
		s.log.Warnf("no feasible solution within budget, sequential fallback scheduled %d tasks (%d forced)", len(entries), forced)
		if err := s.sink.RecordFallback(metrics.FallbackEvent{RunID: runID, Reason: "no feasible solution", Forced: forced, Time: started}); err != nil {
			s.log.Warnf("record fallback: %v", err)
		}
	}

	var makespan time.Duration
	for _, e := range entries {
		if d := e.EndTime.Sub(started); d > makespan {
			makespan = d
		}
	}
	if err := s.sink.RecordSolve(metrics.SolveEvent{
		RunID:    runID,
		Status:   status.String(),
		Tasks:    len(entries),
		Makespan: makespan,
		Duration: s.now().Sub(started),
		Time:     started,
	}); err != nil {
		s.log.Warnf("record solve: %v", err)
	}
	s.log.Infof("scheduled %d tasks in %s (status=%s, makespan=%s)", len(entries), s.now().Sub(started), status, makespan)
	return Result{RunID: runID, Status: status, Tasks: entries, Makespan: makespan}, nil
}

// buildProblem resolves durations, deadlines and busy intervals into the
// minute-based constraint model.
func (s *Solver) buildProblem(ctx context.Context, now time.Time, tasks []model.Task, estimates []model.DurationEstimate, deadlines map[string]time.Time, global model.ConstraintSet) *problem {
	durations := make(map[string]int, len(estimates))
	for _, e := range estimates {
		durations[e.TaskID] = e.EstimatedDurationMinutes
	}
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
	}

	horizon := s.cfg.Horizon()
	endCap := horizon
	if global.ProjectDeadline != nil {
		if pe := int(global.ProjectDeadline.Sub(now).Minutes()); pe > 0 && pe < endCap {
			endCap = pe
		}
	}

	nodes := make([]taskNode, len(tasks))
	for i, t := range tasks {
		dur, ok := durations[t.ID]
		if !ok {
			dur = s.cfg.DefaultDurationMinutes
			s.log.Warnf("no estimate for task %s, using default duration %dm", t.ID, dur)
		}
		node := taskNode{id: t.ID, duration: dur}
		for _, dep := range t.Dependencies {
			// Dependencies outside the batch carry no ordering constraint.
			if j, ok := index[dep]; ok && j != i {
				node.deps = append(node.deps, j)
			}
		}
		if dl, ok := deadlines[t.ID]; ok {
			node.hasDeadline = true
			node.deadlineAt = dl
			node.deadline = int(dl.Sub(now).Minutes())
		}
		nodes[i] = node
	}

	window := time.Duration(s.cfg.LookaheadDays) * 24 * time.Hour
	raw, err := s.busy.BusyIntervals(ctx, now, now.Add(window))
	if err != nil {
		s.log.Warnf("busy intervals unavailable: %v", err)
		raw = nil
	}
	var busy []interval
	for _, iv := range raw {
		start := int(iv.Start.Sub(now).Minutes())
		end := int(math.Ceil(iv.End.Sub(now).Minutes()))
		if end <= 0 || start >= horizon || end <= start {
			continue
		}
		if start < 0 {
			start = 0
		}
		busy = append(busy, interval{start: start, end: end})
	}

	return &problem{tasks: nodes, endCap: endCap, busy: busy}
}

const solveEps = 1e-6

// branchAndBound searches over the busy-interval disjunctions, bounding each
// subtree with the LP relaxation. It reports the best integral start times
// found, the solve status and whether any feasible schedule was found.
func (s *Solver) branchAndBound(ctx context.Context, prob *problem) ([]int, Status, bool) {
	stack := [][]choice{nil}
	var bestStarts []int
	bestMakespan := math.MaxInt
	timedOut := false

	for len(stack) > 0 {
		if ctx.Err() != nil {
			timedOut = true
			break
		}
		choices := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c, g, h, a, b := prob.buildLP(choices)
		x, opt, err := lpSolve(c, g, h, a, b)
		if err != nil {
			continue // infeasible subtree
		}
		if bestStarts != nil && opt >= float64(bestMakespan)-solveEps {
			continue
		}

		if ti, bi, violated := firstViolated(prob, choices, x); violated {
			stack = append(stack, branch(choices, ti, bi, false), branch(choices, ti, bi, true))
			continue
		}

		full := deriveChoices(prob, choices, x)
		starts, makespan, err := prob.earliestSchedule(full)
		if err != nil {
			// The relaxation admits the derived choices, so this only
			// happens with undecided pairs left; decide one and go on.
			if ti, bi, ok := firstUndecided(prob, choices); ok {
				stack = append(stack, branch(choices, ti, bi, false), branch(choices, ti, bi, true))
			}
			continue
		}
		if makespan < bestMakespan {
			bestMakespan = makespan
			bestStarts = starts
		}
	}

	if bestStarts == nil {
		return nil, StatusFallback, false
	}
	if timedOut {
		return bestStarts, StatusFeasible, true
	}
	return bestStarts, StatusOptimal, true
}

// firstViolated finds an undecided (task, interval) pair the relaxed
// solution overlaps.
func firstViolated(p *problem, choices []choice, x []float64) (int, int, bool) {
	n := len(p.tasks)
	for ti := 0; ti < n; ti++ {
		for bi, iv := range p.busy {
			if decided(choices, ti, bi) {
				continue
			}
			start, end := x[ti], x[n+ti]
			if start < float64(iv.end)-solveEps && end > float64(iv.start)+solveEps {
				return ti, bi, true
			}
		}
	}
	return 0, 0, false
}

// firstUndecided finds any pair not yet fixed by the choice set.
func firstUndecided(p *problem, choices []choice) (int, int, bool) {
	for ti := range p.tasks {
		for bi := range p.busy {
			if !decided(choices, ti, bi) {
				return ti, bi, true
			}
		}
	}
	return 0, 0, false
}

// deriveChoices completes the choice set using the relaxed solution's task
// positions relative to each busy interval.
func deriveChoices(p *problem, choices []choice, x []float64) []choice {
	n := len(p.tasks)
	full := make([]choice, len(choices), len(choices)+n*len(p.busy))
	copy(full, choices)
	for ti := 0; ti < n; ti++ {
		for bi, iv := range p.busy {
			if decided(choices, ti, bi) {
				continue
			}
			after := x[ti] >= float64(iv.end)-solveEps
			full = append(full, choice{task: ti, interval: bi, after: after})
		}
	}
	return full
}

func decided(choices []choice, ti, bi int) bool {
	for _, ch := range choices {
		if ch.task == ti && ch.interval == bi {
			return true
		}
	}
	return false
}

func branch(choices []choice, ti, bi int, after bool) []choice {
	next := make([]choice, len(choices)+1)
	copy(next, choices)
	next[len(choices)] = choice{task: ti, interval: bi, after: after}
	return next
}

// materialize converts solved minute offsets into absolute schedule entries,
// ordered by start time so that list order reflects temporal order.
func (s *Solver) materialize(now time.Time, prob *problem, starts []int) []model.ScheduledTask {
	entries := make([]model.ScheduledTask, len(prob.tasks))
	for i, t := range prob.tasks {
		start := now.Add(time.Duration(starts[i]) * time.Minute)
		end := start.Add(time.Duration(t.duration) * time.Minute)
		entry := model.ScheduledTask{
			TaskID:     t.id,
			StartTime:  start,
			EndTime:    end,
			AssignedTo: s.cfg.Assignee,
		}
		if t.hasDeadline {
			dl := t.deadlineAt
			entry.Deadline = &dl
			entry.Status = statusFor(end, dl)
		}
		entries[i] = entry
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartTime.Before(entries[j].StartTime)
	})
	return entries
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
