package wish

import (
	"strings"

	"github.com/hpungsan/wishpair/internal/errors"
)

// The backend and the older shared-store schema spell some values
// differently: "medium" for mid, "pending"/"completed" for todo/done.
const (
	backendPriorityMedium = "medium"
	backendStatusPending  = "pending"
	backendStatusComplete = "completed"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMid || p == PriorityLow
}

// Score ranks priorities high=3, mid=2, low=1.
func (p Priority) Score() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMid:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Backend returns the backend spelling ("medium" for mid).
func (p Priority) Backend() string {
	if p == PriorityMid {
		return backendPriorityMedium
	}
	return string(p)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusDone
}

// Backend returns the backend spelling ("pending"/"completed").
func (s Status) Backend() string {
	if s == StatusDone {
		return backendStatusComplete
	}
	return backendStatusPending
}

// Valid reports whether b is a known budget bucket.
func (b BudgetRange) Valid() bool {
	for _, known := range BudgetRanges {
		if b == known {
			return true
		}
	}
	return false
}

// ParseCategory parses a category strictly.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !c.Valid() {
		return "", errors.NewInvalidRequest("category must be one of: " + joinCategories())
	}
	return c, nil
}

// CategoryOr parses a category, falling back to experience.
func CategoryOr(s string) Category {
	if c, err := ParseCategory(s); err == nil {
		return c
	}
	return CategoryExperience
}

// ParsePriority parses a priority strictly, accepting the backend alias.
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimSpace(s)
	if s == backendPriorityMedium {
		return PriorityMid, nil
	}
	p := Priority(s)
	if !p.Valid() {
		return "", errors.NewInvalidRequest("priority must be high, mid (medium), or low")
	}
	return p, nil
}

// PriorityOr parses a priority, falling back to mid.
func PriorityOr(s string) Priority {
	if p, err := ParsePriority(s); err == nil {
		return p
	}
	return PriorityMid
}

// ParseStatus parses a status strictly, accepting the backend aliases.
func ParseStatus(s string) (Status, error) {
	switch strings.TrimSpace(s) {
	case string(StatusTodo), backendStatusPending:
		return StatusTodo, nil
	case string(StatusDone), backendStatusComplete:
		return StatusDone, nil
	}
	return "", errors.NewInvalidRequest("status must be todo (pending) or done (completed)")
}

// StatusOr parses a status, falling back to todo.
func StatusOr(s string) Status {
	if st, err := ParseStatus(s); err == nil {
		return st
	}
	return StatusTodo
}

// ParseBudgetRange parses an optional budget bucket. Empty input means absent.
func ParseBudgetRange(s string) (*BudgetRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	b := BudgetRange(s)
	if !b.Valid() {
		return nil, errors.NewInvalidRequest("budget_range must be one of: free, under_5k, under_10k, under_30k, under_50k, over_50k")
	}
	return &b, nil
}

// BudgetRangeOr parses a budget bucket, treating unknown values as absent.
func BudgetRangeOr(s string) *BudgetRange {
	b, err := ParseBudgetRange(s)
	if err != nil {
		return nil
	}
	return b
}

// NormalizeText trims s and returns nil when nothing is left.
func NormalizeText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// SeasonScore ranks season hints this_month=3, next_month=2, everything else 1.
func SeasonScore(season *string) int {
	if season == nil {
		return 1
	}
	switch *season {
	case SeasonThisMonth:
		return 3
	case SeasonNextMonth:
		return 2
	}
	return 1
}
