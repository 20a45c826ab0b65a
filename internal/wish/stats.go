package wish

import (
	"math"
	"sort"
)

// CategoryStat is the completion tally for one category.
type CategoryStat struct {
	Total int `json:"total"`
	Done  int `json:"done"`
	Rate  int `json:"rate"`
}

// Stats summarizes completion across a collection.
type Stats struct {
	Total       int                       `json:"total"`
	Done        int                       `json:"done"`
	OverallRate int                       `json:"overallRate"`
	Categories  map[Category]CategoryStat `json:"categoryStats"`
}

// ComputeStats tallies totals and rounded completion percentages.
func ComputeStats(wishes []Wish) Stats {
	s := Stats{Categories: map[Category]CategoryStat{}}
	for _, w := range wishes {
		s.Total++
		cs := s.Categories[w.Category]
		cs.Total++
		if w.Status == StatusDone {
			s.Done++
			cs.Done++
		}
		s.Categories[w.Category] = cs
	}
	s.OverallRate = rate(s.Done, s.Total)
	for c, cs := range s.Categories {
		cs.Rate = rate(cs.Done, cs.Total)
		s.Categories[c] = cs
	}
	return s
}

func rate(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

// NextCandidates returns up to limit open wishes ranked by
// priority score plus season score. Ties keep collection order.
func NextCandidates(wishes []Wish, limit int) []Wish {
	open := make([]Wish, 0, len(wishes))
	for _, w := range wishes {
		if w.Status == StatusTodo {
			open = append(open, w)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return candidateScore(open[i]) > candidateScore(open[j])
	})
	if limit >= 0 && len(open) > limit {
		open = open[:limit]
	}
	return open
}

func candidateScore(w Wish) int {
	return w.Priority.Score() + SeasonScore(w.Season)
}
