package schedule

import (
	"testing"
	"time"

	"github.com/chronoplan/chronoplan/core/model"
)

func chainSchedule() []model.ScheduledTask {
	base := testNow
	return []model.ScheduledTask{
		{TaskID: "a", StartTime: base, EndTime: base.Add(60 * time.Minute)},
		{TaskID: "b", StartTime: base.Add(60 * time.Minute), EndTime: base.Add(120 * time.Minute)},
		{TaskID: "c", StartTime: base.Add(120 * time.Minute), EndTime: base.Add(180 * time.Minute)},
	}
}

func TestUpdateScheduleShiftsDownstream(t *testing.T) {
	s := newTestSolver(nil)
	orig := chainSchedule()
	updated := s.UpdateSchedule(orig, "b", 90)

	if !updated[0].StartTime.Equal(orig[0].StartTime) {
		t.Fatalf("entries before the completed task must not move")
	}
	if !updated[1].EndTime.Equal(orig[1].EndTime) {
		t.Fatalf("the completed entry itself must not move")
	}
	wantStart := orig[2].StartTime.Add(30 * time.Minute)
	if !updated[2].StartTime.Equal(wantStart) {
		t.Fatalf("c start %s want %s", updated[2].StartTime, wantStart)
	}
	if !updated[2].EndTime.Equal(orig[2].EndTime.Add(30 * time.Minute)) {
		t.Fatalf("c end not shifted")
	}
	// The input slice stays untouched.
	if !orig[2].StartTime.Equal(testNow.Add(120 * time.Minute)) {
		t.Fatalf("input schedule mutated")
	}
}

func TestUpdateScheduleEarlyFinishShiftsBackward(t *testing.T) {
	s := newTestSolver(nil)
	orig := chainSchedule()
	updated := s.UpdateSchedule(orig, "a", 30)
	if !updated[1].StartTime.Equal(orig[1].StartTime.Add(-30 * time.Minute)) {
		t.Fatalf("b should move 30m earlier, got %s", updated[1].StartTime)
	}
	if !updated[2].StartTime.Equal(orig[2].StartTime.Add(-30 * time.Minute)) {
		t.Fatalf("c should move 30m earlier, got %s", updated[2].StartTime)
	}
}

func TestUpdateScheduleNoDelta(t *testing.T) {
	s := newTestSolver(nil)
	orig := chainSchedule()
	updated := s.UpdateSchedule(orig, "b", 60)
	for i := range orig {
		if !updated[i].StartTime.Equal(orig[i].StartTime) || !updated[i].EndTime.Equal(orig[i].EndTime) {
			t.Fatalf("entry %d moved on zero delta", i)
		}
	}
}

func TestUpdateScheduleUnknownTask(t *testing.T) {
	s := newTestSolver(nil)
	orig := chainSchedule()
	updated := s.UpdateSchedule(orig, "ghost", 90)
	for i := range orig {
		if !updated[i].StartTime.Equal(orig[i].StartTime) {
			t.Fatalf("unknown task must be a no-op")
		}
	}
}

func TestUpdateScheduleRecomputesStatus(t *testing.T) {
	s := newTestSolver(nil)
	sched := chainSchedule()
	deadline := sched[2].EndTime.Add(30 * time.Minute)
	sched[2].Deadline = &deadline
	sched[2].Status = model.StatusTight

	updated := s.UpdateSchedule(sched, "a", 120)
	if updated[2].Status != model.StatusOverdue {
		t.Fatalf("expected overdue after shift, got %s", updated[2].Status)
	}
}

func TestStatusFor(t *testing.T) {
	deadline := testNow.Add(48 * time.Hour)
	if got := statusFor(testNow, deadline); got != model.StatusOnTrack {
		t.Fatalf("expected on_track, got %s", got)
	}
	if got := statusFor(deadline.Add(-time.Hour), deadline); got != model.StatusTight {
		t.Fatalf("expected tight, got %s", got)
	}
	if got := statusFor(deadline.Add(time.Hour), deadline); got != model.StatusOverdue {
		t.Fatalf("expected overdue, got %s", got)
	}
}
