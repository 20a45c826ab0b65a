package nudge

import (
	"context"
	"database/sql"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hpungsan/wishpair/internal/cadence"
	"github.com/hpungsan/wishpair/internal/db"
	"github.com/hpungsan/wishpair/internal/wish"
)

const day = 24 * time.Hour

// Selector picks the wish a pair gets nudged about.
type Selector struct {
	db   *sql.DB
	pick cadence.Picker
	now  func() time.Time
}

// NewSelector creates a Selector. A nil picker uses the global random source;
// a nil clock uses time.Now.
func NewSelector(database *sql.DB, pick cadence.Picker, now func() time.Time) *Selector {
	if pick == nil {
		pick = globalPicker{}
	}
	if now == nil {
		now = time.Now
	}
	return &Selector{db: database, pick: pick, now: now}
}

// Pick returns a uniformly random high priority todo wish of pairID that is
// at least minAgeDays old, or nil when none qualifies.
func (s *Selector) Pick(ctx context.Context, pairID string, minAgeDays float64) (*wish.Wish, error) {
	cutoff := s.now().Add(-time.Duration(minAgeDays * float64(day)))
	candidates, err := db.EligibleWishes(ctx, s.db, pairID, cutoff.Unix())
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	w := candidates[s.pick.IntN(len(candidates))]
	return &w, nil
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// LockedPicker makes a *rand.Rand safe for the scheduler and API handlers
// to share.
type LockedPicker struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedPicker wraps r.
func NewLockedPicker(r *rand.Rand) *LockedPicker {
	return &LockedPicker{r: r}
}

// IntN implements cadence.Picker.
func (p *LockedPicker) IntN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.IntN(n)
}
