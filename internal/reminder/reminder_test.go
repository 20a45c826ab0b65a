package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hpungsan/wishpair/internal/cadence"
	"github.com/hpungsan/wishpair/internal/wish"
)

type fixedPicker int

func (f fixedPicker) IntN(n int) int { return int(f) % n }

type recordingScheduler struct {
	calls     []string
	scheduled []Notification
	failAt    int
}

func (r *recordingScheduler) CancelAll(ctx context.Context) error {
	r.calls = append(r.calls, "cancel")
	r.scheduled = nil
	return nil
}

func (r *recordingScheduler) Schedule(ctx context.Context, n Notification) error {
	if r.failAt > 0 && len(r.scheduled)+1 == r.failAt {
		return errors.New("denied")
	}
	r.calls = append(r.calls, "schedule")
	r.scheduled = append(r.scheduled, n)
	return nil
}

func sampleWishes() []wish.Wish {
	now := time.Now()
	return []wish.Wish{
		{ID: "w1", Title: "Picnic", Priority: wish.PriorityHigh, Status: wish.StatusTodo, CreatedAt: now},
		{ID: "w2", Title: "Museum", Priority: wish.PriorityLow, Status: wish.StatusTodo, CreatedAt: now},
		{ID: "w3", Title: "Done already", Priority: wish.PriorityHigh, Status: wish.StatusDone, CreatedAt: now},
	}
}

func TestPlan_Disabled(t *testing.T) {
	s := wish.DefaultNotificationSettings()
	s.Enabled = false
	if got := Plan(sampleWishes(), s, fixedPicker(0)); len(got) != 0 {
		t.Errorf("disabled settings planned %d notifications", len(got))
	}
}

func TestPlan_NoEligible(t *testing.T) {
	s := wish.DefaultNotificationSettings()
	w := sampleWishes()[2:]
	if got := Plan(w, s, fixedPicker(0)); len(got) != 0 {
		t.Errorf("planned %d notifications with no todo wishes", len(got))
	}
}

func TestPlan_LevelOne(t *testing.T) {
	s := wish.DefaultNotificationSettings()
	got := Plan(sampleWishes(), s, fixedPicker(1))
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, n := range got {
		if n.Title != Title {
			t.Errorf("title = %q", n.Title)
		}
		if n.Data["wishId"] != "w2" {
			t.Errorf("wishId = %q, want w2", n.Data["wishId"])
		}
		if n.Trigger.Hour != 12 {
			t.Errorf("hour = %d", n.Trigger.Hour)
		}
	}
}

func TestPlan_HighPriorityOnly(t *testing.T) {
	s := wish.DefaultNotificationSettings()
	s.HighPriorityOnly = true
	s.AnnoyanceLevel = 2
	got := Plan(sampleWishes(), s, fixedPicker(1))
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Data["wishId"] != "w1" {
		t.Errorf("wishId = %q, want w1", got[0].Data["wishId"])
	}
	if got[0].Trigger.Kind != cadence.TriggerDaily {
		t.Errorf("kind = %s", got[0].Trigger.Kind)
	}
}

func TestApply_ReplacesSchedule(t *testing.T) {
	sched := &recordingScheduler{}
	s := wish.DefaultNotificationSettings()

	n, err := Apply(context.Background(), sched, sampleWishes(), s, fixedPicker(0))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 2 {
		t.Errorf("n = %d", n)
	}

	s.AnnoyanceLevel = 3
	n, err = Apply(context.Background(), sched, sampleWishes(), s, fixedPicker(0))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 1 || len(sched.scheduled) != 1 {
		t.Errorf("expected full replace, got %d scheduled", len(sched.scheduled))
	}
	if sched.calls[0] != "cancel" || sched.calls[3] != "cancel" {
		t.Errorf("calls = %v", sched.calls)
	}
}

func TestApply_DisabledStillCancels(t *testing.T) {
	sched := &recordingScheduler{scheduled: []Notification{{Title: "old"}}}
	s := wish.DefaultNotificationSettings()
	s.Enabled = false
	n, err := Apply(context.Background(), sched, sampleWishes(), s, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 0 || len(sched.scheduled) != 0 {
		t.Errorf("old schedule not cleared")
	}
}

func TestApply_ScheduleError(t *testing.T) {
	sched := &recordingScheduler{failAt: 2}
	_, err := Apply(context.Background(), sched, sampleWishes(), wish.DefaultNotificationSettings(), fixedPicker(0))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestTestNotification(t *testing.T) {
	n := TestNotification(0, "Picnic", fixedPicker(0))
	if n.Trigger.Kind != cadence.TriggerInterval || n.Trigger.Seconds != 2 || n.Trigger.Repeats {
		t.Errorf("trigger = %+v", n.Trigger)
	}
	if n.Body == "" {
		t.Error("empty body")
	}
}
