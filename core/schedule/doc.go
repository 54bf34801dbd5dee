// Package schedule assigns start and end times to batches of interdependent
// tasks, minimizing overall completion time (makespan) under dependency
// ordering, per-task deadlines, a project deadline and externally sourced
// busy intervals.
//
// The model bounds every task to a finite horizon and encodes busy-interval
// avoidance as one before/after disjunction per (task, interval) pair. A
// branch-and-bound search over those disjunctions, bounded by an LP
// relaxation solved with gonum's simplex, runs under a wall-clock budget.
// When no feasible solution is found in budget the deterministic sequential
// fallback guarantees every task still receives a schedule, even for cyclic
// dependency graphs.
//
// Key components:
//   - Solver: builds and solves the per-call constraint model.
//   - sequentialSchedule: the topological fallback with forced scheduling.
//   - UpdateSchedule: incremental rescheduling after a completion event.
package schedule
