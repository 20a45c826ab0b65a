package db

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/hpungsan/wishpair/internal/errors"
)

const userColumns = `id, email, device_id, push_token, COALESCE(nudge_level, 1), created_at, updated_at`

// InsertUser stores a new user.
func InsertUser(ctx context.Context, q Querier, u *User) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, email, device_id, push_token, nudge_level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, toNullString(u.Email), toNullString(u.DeviceID), toNullString(u.PushToken),
		u.NudgeLevel, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetUser retrieves a user by id.
func GetUser(ctx context.Context, q Querier, id string) (*User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("user", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return u, nil
}

// GetUsers retrieves users by id. Unknown ids are skipped; order follows ids.
func GetUsers(ctx context.Context, q Querier, ids []string) ([]User, error) {
	out := make([]User, 0, len(ids))
	for _, id := range ids {
		u, err := GetUser(ctx, q, id)
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

// UpdateUser writes every mutable column of u.
func UpdateUser(ctx context.Context, q Querier, u *User) error {
	result, err := q.ExecContext(ctx, `
		UPDATE users
		SET email = ?, device_id = ?, push_token = ?, nudge_level = ?, updated_at = ?
		WHERE id = ?
	`, toNullString(u.Email), toNullString(u.DeviceID), toNullString(u.PushToken),
		u.NudgeLevel, u.UpdatedAt, u.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound("user", u.ID)
	}
	return nil
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var email, deviceID, pushToken sql.NullString
	if err := row.Scan(&u.ID, &email, &deviceID, &pushToken, &u.NudgeLevel, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Email = fromNullString(email)
	u.DeviceID = fromNullString(deviceID)
	u.PushToken = fromNullString(pushToken)
	return &u, nil
}
