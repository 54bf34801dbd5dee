package model

import (
	"fmt"
	"strings"
	"time"
)

// Task is one unit of work inside a scheduling batch. Tasks are produced by
// the planning collaborator and are immutable inputs to the solver.
type Task struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
	// Priority ranges 1-5 and is informational only.
	Priority int `json:"priority"`
}

// DurationEstimate is the planned duration for a task, keyed by task ID.
type DurationEstimate struct {
	TaskID                   string  `json:"task_id"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	ConfidenceScore          float64 `json:"confidence_score"`
	HistoricalDataUsed       bool    `json:"historical_data_used"`
}

// DeadlineStatus annotates a scheduled task relative to its deadline.
type DeadlineStatus string

const (
	StatusOnTrack DeadlineStatus = "on_track"
	// StatusTight marks entries whose buffer to the deadline is under 24h.
	StatusTight   DeadlineStatus = "tight"
	StatusOverdue DeadlineStatus = "overdue"
)

// ScheduledTask is one entry of a computed schedule. End always equals
// Start plus the resolved duration.
type ScheduledTask struct {
	TaskID     string         `json:"task_id"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	AssignedTo string         `json:"assigned_to"`
	Deadline   *time.Time     `json:"deadline,omitempty"`
	Status     DeadlineStatus `json:"status,omitempty"`
}

// Duration returns the scheduled duration of the entry.
func (s ScheduledTask) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// WorkHours is a daily start/end hour pair. It is parsed from constraints but
// currently advisory: the solver does not fence tasks into work hours.
type WorkHours struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ConstraintSet is the normalized form of the free-text global constraints.
type ConstraintSet struct {
	ProjectDeadline *time.Time `json:"project_deadline,omitempty"`
	WorkHours       WorkHours  `json:"work_hours"`
	WeekendsOff     bool       `json:"weekends_off"`
}

// DefaultConstraints returns the constraint set used when no free-text
// constraint matches: a 9-17 workday with weekends off.
func DefaultConstraints() ConstraintSet {
	return ConstraintSet{WorkHours: WorkHours{Start: 9, End: 17}, WeekendsOff: true}
}

// NormalizeID canonicalizes a task identifier to its trimmed string form.
// Every identifier is normalized once at the input boundary so that tasks,
// estimates and dependencies compare by plain string equality afterwards.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// NormalizeTasks returns a copy of the batch with all identifiers and
// dependency references canonicalized. A task without an identifier is a
// malformed input.
func NormalizeTasks(tasks []Task) ([]Task, error) {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		t.ID = NormalizeID(t.ID)
		if t.ID == "" {
			return nil, fmt.Errorf("task %d (%q): missing identifier", i, t.Title)
		}
		deps := make([]string, len(t.Dependencies))
		for j, d := range t.Dependencies {
			deps[j] = NormalizeID(d)
		}
		t.Dependencies = deps
		out[i] = t
	}
	return out, nil
}

// NormalizeEstimates canonicalizes estimate identifiers and validates
// durations. Negative durations are malformed input.
func NormalizeEstimates(estimates []DurationEstimate) ([]DurationEstimate, error) {
	out := make([]DurationEstimate, len(estimates))
	for i, e := range estimates {
		e.TaskID = NormalizeID(e.TaskID)
		if e.EstimatedDurationMinutes < 0 {
			return nil, fmt.Errorf("estimate for task %q: negative duration %d", e.TaskID, e.EstimatedDurationMinutes)
		}
		out[i] = e
	}
	return out, nil
}
