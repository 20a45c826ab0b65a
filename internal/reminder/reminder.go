// Package reminder plans on-device local notifications from the active
// workspace's wishes and the user's notification settings.
package reminder

import (
	"context"
	"fmt"

	"github.com/hpungsan/wishpair/internal/cadence"
	"github.com/hpungsan/wishpair/internal/wish"
)

// Title is shown on every local reminder.
const Title = "Wish Nudge"

// TestDelaySeconds is the delay for the one-shot test notification.
const TestDelaySeconds = 2

// Notification is one scheduled local notification.
type Notification struct {
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data"`
	Trigger cadence.Trigger   `json:"trigger"`
}

// LocalScheduler is the device notification API. Implementations replace
// the whole schedule: CancelAll is always called before Schedule.
type LocalScheduler interface {
	CancelAll(ctx context.Context) error
	Schedule(ctx context.Context, n Notification) error
}

// Eligible returns the todo wishes reminders may mention.
func Eligible(wishes []wish.Wish, highOnly bool) []wish.Wish {
	var out []wish.Wish
	for _, w := range wishes {
		if w.Status != wish.StatusTodo {
			continue
		}
		if highOnly && w.Priority != wish.PriorityHigh {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Plan builds the notification set for the given settings. Each trigger
// gets its own randomly picked wish and message.
func Plan(wishes []wish.Wish, settings wish.NotificationSettings, p cadence.Picker) []Notification {
	if !settings.Enabled {
		return nil
	}
	eligible := Eligible(wishes, settings.HighPriorityOnly)
	if len(eligible) == 0 {
		return nil
	}

	level := cadence.Normalize(settings.AnnoyanceLevel)
	triggers := cadence.Triggers(level, settings.TimeWindow)
	out := make([]Notification, 0, len(triggers))
	for _, tr := range triggers {
		w := eligible[pickIndex(len(eligible), p)]
		out = append(out, Notification{
			Title:   Title,
			Body:    cadence.Message(level, w.Title, p),
			Data:    map[string]string{"wishId": w.ID},
			Trigger: tr,
		})
	}
	return out
}

// Apply clears every existing schedule and installs the new plan.
// It returns the number of notifications scheduled.
func Apply(ctx context.Context, sched LocalScheduler, wishes []wish.Wish, settings wish.NotificationSettings, p cadence.Picker) (int, error) {
	if err := sched.CancelAll(ctx); err != nil {
		return 0, fmt.Errorf("cancel scheduled notifications: %w", err)
	}
	plan := Plan(wishes, settings, p)
	for i, n := range plan {
		if err := sched.Schedule(ctx, n); err != nil {
			return i, fmt.Errorf("schedule notification %d: %w", i, err)
		}
	}
	return len(plan), nil
}

// TestNotification is a one-shot preview for the given level.
func TestNotification(level int, title string, p cadence.Picker) Notification {
	return Notification{
		Title: Title,
		Body:  cadence.Message(level, title, p),
		Data:  map[string]string{},
		Trigger: cadence.Trigger{
			Kind:    cadence.TriggerInterval,
			Seconds: TestDelaySeconds,
		},
	}
}

func pickIndex(n int, p cadence.Picker) int {
	if p == nil || n == 1 {
		return 0
	}
	return p.IntN(n)
}
