package wish

import (
	"strings"
	"time"

	"github.com/hpungsan/wishpair/internal/errors"
)

// Category groups wishes by life area.
type Category string

const (
	CategoryAnniversary Category = "anniversary"
	CategoryDate        Category = "date"
	CategoryExperience  Category = "experience"
	CategoryHealth      Category = "health"
	CategoryBeauty      Category = "beauty"
	CategoryHobby       Category = "hobby"
	CategoryHome        Category = "home"
	CategoryMoney       Category = "money"
	CategoryFamily      Category = "family"
	CategorySocial      Category = "social"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryAnniversary, CategoryDate, CategoryExperience, CategoryHealth, CategoryBeauty,
	CategoryHobby, CategoryHome, CategoryMoney, CategoryFamily, CategorySocial,
}

// Priority of a wish.
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityMid  Priority = "mid"
	PriorityLow  Priority = "low"
)

// Status of a wish. Transitions are unconstrained.
type Status string

const (
	StatusTodo Status = "todo"
	StatusDone Status = "done"
)

// BudgetRange is one of six fixed spend buckets.
type BudgetRange string

const (
	BudgetFree     BudgetRange = "free"
	BudgetUnder5k  BudgetRange = "under_5k"
	BudgetUnder10k BudgetRange = "under_10k"
	BudgetUnder30k BudgetRange = "under_30k"
	BudgetUnder50k BudgetRange = "under_50k"
	BudgetOver50k  BudgetRange = "over_50k"
)

// BudgetRanges lists every valid bucket, cheapest first.
var BudgetRanges = []BudgetRange{
	BudgetFree, BudgetUnder5k, BudgetUnder10k, BudgetUnder30k, BudgetUnder50k, BudgetOver50k,
}

// Well-known season hints. Season is free text otherwise.
const (
	SeasonThisMonth = "this_month"
	SeasonNextMonth = "next_month"
	SeasonSomeday   = "someday"
)

// DefaultTitle replaces a blank title on wishes arriving from other devices.
const DefaultTitle = "Untitled"

// Wish is a single desired activity.
//
// JSON field names follow the mobile client's snapshot format, so a
// serialized []Wish can travel inside a share link unchanged.
type Wish struct {
	ID          string       `json:"id"`
	WorkspaceID string       `json:"pairId"`
	Title       string       `json:"title"`
	Category    Category     `json:"category"`
	Season      *string      `json:"season"`
	Priority    Priority     `json:"priority"`
	BudgetRange *BudgetRange `json:"budgetRange"`
	BudgetMin   *int64       `json:"budgetMin,omitempty"`
	BudgetMax   *int64       `json:"budgetMax,omitempty"`
	Memo        *string      `json:"memo"`
	Status      Status       `json:"status"`
	CreatedBy   string       `json:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// Validate checks the invariants every stored wish must satisfy.
func (w *Wish) Validate() error {
	if strings.TrimSpace(w.Title) == "" {
		return errors.NewInvalidRequest("title is required")
	}
	if !w.Category.Valid() {
		return errors.NewInvalidRequest("category must be one of: " + joinCategories())
	}
	if !w.Priority.Valid() {
		return errors.NewInvalidRequest("priority must be high, mid, or low")
	}
	if !w.Status.Valid() {
		return errors.NewInvalidRequest("status must be todo or done")
	}
	if w.BudgetRange != nil && !w.BudgetRange.Valid() {
		return errors.NewInvalidRequest("budget_range is not a known bucket")
	}
	return nil
}

// Touch refreshes UpdatedAt.
func (w *Wish) Touch(now time.Time) {
	w.UpdatedAt = now
}

// SetStatus changes the status and keeps CompletedAt in step with it.
func (w *Wish) SetStatus(s Status, now time.Time) {
	w.Status = s
	if s == StatusDone {
		t := now
		w.CompletedAt = &t
	} else {
		w.CompletedAt = nil
	}
	w.Touch(now)
}

// Toggle flips todo <-> done.
func (w *Wish) Toggle(now time.Time) Status {
	if w.Status == StatusDone {
		w.SetStatus(StatusTodo, now)
	} else {
		w.SetStatus(StatusDone, now)
	}
	return w.Status
}

// IsHighTodo reports whether the wish is an open high-priority item.
func (w *Wish) IsHighTodo() bool {
	return w.Status == StatusTodo && w.Priority == PriorityHigh
}

// Clone returns a deep copy.
func (w Wish) Clone() Wish {
	c := w
	c.Season = cloneString(w.Season)
	c.Memo = cloneString(w.Memo)
	if w.BudgetRange != nil {
		b := *w.BudgetRange
		c.BudgetRange = &b
	}
	if w.BudgetMin != nil {
		v := *w.BudgetMin
		c.BudgetMin = &v
	}
	if w.BudgetMax != nil {
		v := *w.BudgetMax
		c.BudgetMax = &v
	}
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// NotificationSettings is the per-installation reminder preference.
type NotificationSettings struct {
	Enabled          bool       `json:"enabled"`
	AnnoyanceLevel   int        `json:"annoyanceLevel"`
	TimeWindow       TimeWindow `json:"timeWindow"`
	HighPriorityOnly bool       `json:"highPriorityOnly"`
}

// TimeWindow picks the time of day for scheduled reminders.
type TimeWindow string

const (
	WindowMorning TimeWindow = "morning"
	WindowNoon    TimeWindow = "noon"
	WindowNight   TimeWindow = "night"
)

// DefaultNotificationSettings matches a fresh install.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Enabled:          true,
		AnnoyanceLevel:   1,
		TimeWindow:       WindowNoon,
		HighPriorityOnly: false,
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func joinCategories() string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
