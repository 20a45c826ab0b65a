package wish

import "sort"

// SortOption orders a filtered collection.
type SortOption string

const (
	SortPriority SortOption = "priority"
	SortSeason   SortOption = "season"
	SortBudget   SortOption = "budget"
	SortCreated  SortOption = "created"
)

// Filter selects wishes. Empty fields match everything.
type Filter struct {
	Category Category
	Priority Priority
	Status   Status
	Sort     SortOption
}

// Apply returns the matching wishes in the requested order.
// The input slice is not modified. SortBudget keeps input order.
func (f Filter) Apply(wishes []Wish) []Wish {
	out := make([]Wish, 0, len(wishes))
	for _, w := range wishes {
		if f.Category != "" && w.Category != f.Category {
			continue
		}
		if f.Priority != "" && w.Priority != f.Priority {
			continue
		}
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		out = append(out, w)
	}

	switch f.Sort {
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Priority.Score() > out[j].Priority.Score()
		})
	case SortSeason:
		sort.SliceStable(out, func(i, j int) bool {
			return seasonRank(out[i].Season) > seasonRank(out[j].Season)
		})
	case SortCreated:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	return out
}

// seasonRank differs from SeasonScore: free-text seasons sort last.
func seasonRank(season *string) int {
	if season == nil {
		return 1
	}
	switch *season {
	case SeasonThisMonth:
		return 3
	case SeasonNextMonth:
		return 2
	case SeasonSomeday:
		return 1
	}
	return 0
}
