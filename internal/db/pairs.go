package db

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/hpungsan/wishpair/internal/errors"
)

const pairColumns = `id, user1_id, user2_id, invite_code, status, created_at, updated_at`

// InsertPair stores a new pair.
func InsertPair(ctx context.Context, q Querier, p *Pair) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO pairs (id, user1_id, user2_id, invite_code, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.User1ID, toNullString(p.User2ID), p.InviteCode, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetPair retrieves a pair by id.
func GetPair(ctx context.Context, q Querier, id string) (*Pair, error) {
	row := q.QueryRowContext(ctx, `SELECT `+pairColumns+` FROM pairs WHERE id = ?`, id)
	p, err := scanPair(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("pair", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// GetAwaitingPairByCode finds an open invite by its code.
func GetAwaitingPairByCode(ctx context.Context, q Querier, code string) (*Pair, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+pairColumns+` FROM pairs WHERE invite_code = ? AND status = ?`, code, PairAwaiting)
	p, err := scanPair(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("invite", code)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// InviteCodeExists reports whether any pair already uses code.
func InviteCodeExists(ctx context.Context, q Querier, code string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM pairs WHERE invite_code = ?`, code).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// FindPairForUser returns the user's current pair, preferring an active
// pair over an awaiting invite, then the newest.
func FindPairForUser(ctx context.Context, q Querier, userID string) (*Pair, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+pairColumns+`
		FROM pairs
		WHERE (user1_id = ? OR user2_id = ?)
		  AND status IN ('awaiting', 'active')
		ORDER BY CASE status WHEN 'active' THEN 0 ELSE 1 END, created_at DESC, id DESC
		LIMIT 1
	`, userID, userID)
	p, err := scanPair(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("pair", "user:"+userID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// ActivatePair attaches user2 to an awaiting pair. The update only applies
// while the pair is still awaiting; a lost race returns CONFLICT.
func ActivatePair(ctx context.Context, q Querier, pairID, user2ID string, now int64) error {
	result, err := q.ExecContext(ctx, `
		UPDATE pairs
		SET user2_id = ?, status = 'active', updated_at = ?
		WHERE id = ? AND status = 'awaiting'
	`, user2ID, now, pairID)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewConflict("pair was already joined")
	}
	return nil
}

// ListActivePairs returns every active pair, oldest first.
func ListActivePairs(ctx context.Context, q Querier) ([]Pair, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+pairColumns+` FROM pairs WHERE status = 'active' ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		pairs = append(pairs, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return pairs, nil
}

func scanPair(row rowScanner) (*Pair, error) {
	var p Pair
	var user2 sql.NullString
	if err := row.Scan(&p.ID, &p.User1ID, &user2, &p.InviteCode, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.User2ID = fromNullString(user2)
	return &p, nil
}
