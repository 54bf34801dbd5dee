package schedule

import (
	"time"

	"github.com/chronoplan/chronoplan/core/model"
)

// sequentialSchedule is the deterministic fallback: tasks run one after
// another in dependency order from a moving cursor. When every remaining
// task still has an unscheduled dependency (a circular dependency), one is
// force-scheduled so the loop always terminates. Returns the entries in
// chronological order and the number of forced tasks.
func (s *Solver) sequentialSchedule(now time.Time, prob *problem) ([]model.ScheduledTask, int) {
	n := len(prob.tasks)
	scheduled := make([]bool, n)
	entries := make([]model.ScheduledTask, 0, n)
	cursor := 0 // minutes from now
	remaining := n
	forced := 0

	for remaining > 0 {
		progressed := false
		for i, t := range prob.tasks {
			if scheduled[i] {
				continue
			}
			ready := true
			for _, dep := range t.deps {
				if !scheduled[dep] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			cursor = s.placeAt(prob, cursor, i, now, &entries)
			scheduled[i] = true
			remaining--
			progressed = true
			break
		}
		if progressed {
			continue
		}
		// Circular dependency: force-schedule the first remaining task.
		for i := range prob.tasks {
			if !scheduled[i] {
				s.log.Warnf("circular dependency detected, force-scheduling task %s", prob.tasks[i].id)
				cursor = s.placeAt(prob, cursor, i, now, &entries)
				scheduled[i] = true
				remaining--
				forced++
				break
			}
		}
	}
	return entries, forced
}

// placeAt schedules task i at the cursor, first jumping past any busy
// interval the cursor falls into, and returns the advanced cursor.
func (s *Solver) placeAt(prob *problem, cursor, i int, now time.Time, entries *[]model.ScheduledTask) int {
	for moved := true; moved; {
		moved = false
		for _, iv := range prob.busy {
			if cursor >= iv.start && cursor < iv.end {
				cursor = iv.end
				moved = true
			}
		}
	}
	t := prob.tasks[i]
	start := now.Add(time.Duration(cursor) * time.Minute)
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
	*entries = append(*entries, entry)
	return cursor + t.duration
}
