package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/wishpair/internal/db"
	"github.com/hpungsan/wishpair/internal/wish"
)

// NextCandidateCount is how many suggestions a board shows.
const NextCandidateCount = 3

// BoardOutput is a pair overview: all wishes with progress and suggestions.
type BoardOutput struct {
	Pair       db.Pair        `json:"pair"`
	Wishes     []wish.Wish    `json:"wishes"`
	Stats      wish.Stats     `json:"stats"`
	Next       []wish.Wish    `json:"next"`
	NudgeState *db.NudgeState `json:"nudgeState,omitempty"`
}

// PairBoard assembles the overview for pairID, optionally filtered.
func PairBoard(ctx context.Context, database *sql.DB, pairID string, filter wish.Filter) (*BoardOutput, error) {
	pair, err := GetPair(ctx, database, pairID)
	if err != nil {
		return nil, err
	}
	all, err := db.ListPairWishes(ctx, database, pairID)
	if err != nil {
		return nil, err
	}

	out := &BoardOutput{
		Pair:   *pair,
		Wishes: filter.Apply(all),
		Stats:  wish.ComputeStats(all),
		Next:   wish.NextCandidates(all, NextCandidateCount),
	}
	if out.Wishes == nil {
		out.Wishes = []wish.Wish{}
	}
	if state, err := db.GetNudgeState(ctx, database, pairID); err == nil {
		out.NudgeState = state
	}
	return out, nil
}
