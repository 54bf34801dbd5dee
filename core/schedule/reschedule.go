package schedule

import (
	"time"

	"github.com/chronoplan/chronoplan/core/metrics"
	"github.com/chronoplan/chronoplan/core/model"
)

// tightBuffer is the margin under which a deadline is flagged as tight.
const tightBuffer = 24 * time.Hour

// UpdateSchedule adjusts a schedule after a task completed with an actual
// duration differing from its planned one: every entry after the completed
// task in list order shifts by the delta, and deadline statuses are
// recomputed. List order is assumed to reflect temporal order, which holds
// for solver output. The completed entry itself is left unchanged.
//
// An unknown task ID is a no-op. The input slice is never mutated; callers
// updating a shared schedule must serialize writers themselves. Internal
// failures return the original schedule unchanged.
func (s *Solver) UpdateSchedule(schedule []model.ScheduledTask, taskID string, actualMinutes int) (result []model.ScheduledTask) {
	result = schedule
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("reschedule of task %s failed: %v", taskID, r)
			result = schedule
		}
	}()

	taskID = model.NormalizeID(taskID)
	pos := -1
	for i, e := range schedule {
		if e.TaskID == taskID {
			pos = i
			break
		}
	}
	if pos < 0 {
		s.log.Warnf("reschedule: task %s not in schedule, leaving it unchanged", taskID)
		return schedule
	}

	planned := int(schedule[pos].Duration().Minutes())
	delta := actualMinutes - planned
	if delta == 0 {
		return schedule
	}

	updated := make([]model.ScheduledTask, len(schedule))
	copy(updated, schedule)
	shift := time.Duration(delta) * time.Minute
	for i := pos + 1; i < len(updated); i++ {
		updated[i].StartTime = updated[i].StartTime.Add(shift)
		updated[i].EndTime = updated[i].EndTime.Add(shift)
		if updated[i].Deadline != nil {
			updated[i].Status = statusFor(updated[i].EndTime, *updated[i].Deadline)
		}
	}

	s.log.Infof("task %s took %dm instead of %dm, shifted %d downstream tasks by %dm", taskID, actualMinutes, planned, len(updated)-pos-1, delta)
	if err := s.sink.RecordReschedule(metrics.RescheduleEvent{
		TaskID:       taskID,
		DeltaMinutes: delta,
		Shifted:      len(updated) - pos - 1,
		Time:         s.now(),
	}); err != nil {
		s.log.Warnf("record reschedule: %v", err)
	}
	return updated
}

// statusFor classifies an end time against its deadline: overdue past the
// deadline, tight when the remaining buffer is under 24 hours.
func statusFor(end, deadline time.Time) model.DeadlineStatus {
	if end.After(deadline) {
		return model.StatusOverdue
	}
	if deadline.Sub(end) < tightBuffer {
		return model.StatusTight
	}
	return model.StatusOnTrack
}
