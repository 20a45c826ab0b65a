package workspace

import (
	"time"

	"github.com/hpungsan/wishpair/internal/wish"
)

type sample struct {
	id       string
	title    string
	category wish.Category
	season   string
	priority wish.Priority
	budget   wish.BudgetRange
	memo     string
	done     bool
	ageDays  int
}

var samples = []sample{
	{"sample-1", "Weekend trip to a hot spring town", wish.CategoryExperience, wish.SeasonNextMonth, wish.PriorityHigh, wish.BudgetUnder50k, "Look for a ryokan with a private bath.", false, 12},
	{"sample-2", "Dinner at the place from our first date", wish.CategoryAnniversary, wish.SeasonThisMonth, wish.PriorityHigh, wish.BudgetUnder10k, "", false, 9},
	{"sample-3", "Start a morning walk routine", wish.CategoryHealth, wish.SeasonThisMonth, wish.PriorityMid, wish.BudgetFree, "20 minutes, three times a week.", false, 7},
	{"sample-4", "Pick new curtains for the living room", wish.CategoryHome, wish.SeasonSomeday, wish.PriorityLow, wish.BudgetUnder30k, "", false, 5},
	{"sample-5", "Set up a shared savings goal", wish.CategoryMoney, wish.SeasonNextMonth, wish.PriorityMid, wish.BudgetFree, "", true, 20},
	{"sample-6", "Try a pottery class together", wish.CategoryHobby, wish.SeasonSomeday, wish.PriorityMid, wish.BudgetUnder10k, "", false, 3},
}

// SampleWishes returns the starter collection for a fresh personal
// workspace, tagged with ws and dated relative to now.
func SampleWishes(ws string, now time.Time) []wish.Wish {
	out := make([]wish.Wish, 0, len(samples))
	for _, s := range samples {
		created := now.Add(-time.Duration(s.ageDays) * 24 * time.Hour).UTC().Truncate(time.Second)
		season := s.season
		budget := s.budget
		w := wish.Wish{
			ID:          s.id,
			WorkspaceID: ws,
			Title:       s.title,
			Category:    s.category,
			Season:      &season,
			Priority:    s.priority,
			BudgetRange: &budget,
			Status:      wish.StatusTodo,
			CreatedBy:   GuestUserID,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		if s.memo != "" {
			memo := s.memo
			w.Memo = &memo
		}
		if s.done {
			w.Status = wish.StatusDone
		}
		out = append(out, w)
	}
	return out
}
