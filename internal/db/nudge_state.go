package db

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/hpungsan/wishpair/internal/errors"
)

// EnsureNudgeState creates an empty state row for pairID if none exists.
// Calling it repeatedly is a no-op.
func EnsureNudgeState(ctx context.Context, q Querier, pairID string, now int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO pair_nudge_state (pair_id, updated_at)
		VALUES (?, ?)
		ON CONFLICT(pair_id) DO NOTHING
	`, pairID, now)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetNudgeState retrieves the state row for pairID.
func GetNudgeState(ctx context.Context, q Querier, pairID string) (*NudgeState, error) {
	var s NudgeState
	var last sql.NullInt64
	var wishID sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT pair_id, last_nudged_at, last_wish_id, updated_at
		FROM pair_nudge_state
		WHERE pair_id = ?
	`, pairID).Scan(&s.PairID, &last, &wishID, &s.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("nudge state", pairID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	s.LastNudgedAt = fromNullInt64(last)
	s.LastWishID = fromNullString(wishID)
	return &s, nil
}

// RecordNudge stores the outcome of a dispatched nudge. Last write wins.
func RecordNudge(ctx context.Context, q Querier, pairID, wishID string, now int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO pair_nudge_state (pair_id, last_nudged_at, last_wish_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(pair_id) DO UPDATE SET
		  last_nudged_at = excluded.last_nudged_at,
		  last_wish_id   = excluded.last_wish_id,
		  updated_at     = excluded.updated_at
	`, pairID, now, wishID, now)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// NudgeMember is one user of a pair as seen by the nudge run.
type NudgeMember struct {
	UserID     string
	PushToken  *string
	NudgeLevel int
}

// NudgePair is an active pair joined with its members and nudge state.
type NudgePair struct {
	PairID       string
	LastNudgedAt *int64
	Members      []NudgeMember
}

// ListNudgePairs returns active pairs with their members' push settings.
// A non-empty pairID restricts the result to that pair.
func ListNudgePairs(ctx context.Context, q Querier, pairID string) ([]NudgePair, error) {
	query := `
		SELECT
		  p.id,
		  s.last_nudged_at,
		  p.user1_id, u1.push_token, COALESCE(u1.nudge_level, 1),
		  p.user2_id, u2.push_token, COALESCE(u2.nudge_level, 1)
		FROM pairs p
		JOIN users u1 ON u1.id = p.user1_id
		JOIN users u2 ON u2.id = p.user2_id
		LEFT JOIN pair_nudge_state s ON s.pair_id = p.id
		WHERE p.status = 'active'
	`
	var args []any
	if pairID != "" {
		query += ` AND p.id = ?`
		args = append(args, pairID)
	}
	query += ` ORDER BY p.created_at ASC, p.id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []NudgePair
	for rows.Next() {
		var np NudgePair
		var last sql.NullInt64
		var m1, m2 NudgeMember
		var tok1, tok2 sql.NullString
		if err := rows.Scan(&np.PairID, &last,
			&m1.UserID, &tok1, &m1.NudgeLevel,
			&m2.UserID, &tok2, &m2.NudgeLevel); err != nil {
			return nil, errors.NewInternal(err)
		}
		np.LastNudgedAt = fromNullInt64(last)
		m1.PushToken = fromNullString(tok1)
		m2.PushToken = fromNullString(tok2)
		np.Members = []NudgeMember{m1, m2}
		out = append(out, np)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}
