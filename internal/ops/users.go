package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/wishpair/internal/cadence"
	"github.com/hpungsan/wishpair/internal/db"
	"github.com/hpungsan/wishpair/internal/errors"
)

// CreateUserInput contains parameters for CreateUser.
type CreateUserInput struct {
	Email      *string
	DeviceID   *string
	PushToken  *string
	NudgeLevel *int // default 1
}

// CreateUser registers a user identified by email, device id or both.
func CreateUser(ctx context.Context, database *sql.DB, input CreateUserInput) (*db.User, error) {
	email := normalizeEmail(input.Email)
	deviceID := cleanOptionalString(input.DeviceID)
	if email == nil && deviceID == nil {
		return nil, errors.NewInvalidRequest("email or deviceId is required")
	}

	level := cadence.DefaultLevel
	if input.NudgeLevel != nil {
		if !cadence.Valid(*input.NudgeLevel) {
			return nil, errNudgeLevel()
		}
		level = *input.NudgeLevel
	}

	id, err := generateID(prefixUser)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	u := &db.User{
		ID:         id,
		Email:      email,
		DeviceID:   deviceID,
		PushToken:  cleanOptionalString(input.PushToken),
		NudgeLevel: level,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.InsertUser(ctx, database, u); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewConflict("email or deviceId already exists")
		}
		return nil, err
	}
	return u, nil
}

// GetUser returns a user by id.
func GetUser(ctx context.Context, database *sql.DB, id string) (*db.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewInvalidRequest("user id is required")
	}
	return db.GetUser(ctx, database, id)
}

// UpdateUserInput contains parameters for UpdateUser.
// Nil fields are left unchanged; a blank string clears the field.
type UpdateUserInput struct {
	ID         string
	Email      *string
	DeviceID   *string
	PushToken  *string
	NudgeLevel *int
}

// UpdateUser applies a partial update to a user.
func UpdateUser(ctx context.Context, database *sql.DB, input UpdateUserInput) (*db.User, error) {
	if input.Email == nil && input.DeviceID == nil && input.PushToken == nil && input.NudgeLevel == nil {
		return nil, errors.NewInvalidRequest("no updatable fields provided")
	}
	if input.NudgeLevel != nil && !cadence.Valid(*input.NudgeLevel) {
		return nil, errNudgeLevel()
	}

	u, err := GetUser(ctx, database, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		u.Email = normalizeEmail(input.Email)
	}
	if input.DeviceID != nil {
		u.DeviceID = cleanOptionalString(input.DeviceID)
	}
	if input.PushToken != nil {
		u.PushToken = cleanOptionalString(input.PushToken)
	}
	if input.NudgeLevel != nil {
		u.NudgeLevel = *input.NudgeLevel
	}
	u.UpdatedAt = time.Now().Unix()

	if err := db.UpdateUser(ctx, database, u); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewConflict("email or deviceId already exists")
		}
		return nil, err
	}
	return u, nil
}

func normalizeEmail(s *string) *string {
	v := cleanOptionalString(s)
	if v == nil {
		return nil
	}
	lower := strings.ToLower(*v)
	return &lower
}

func errNudgeLevel() error {
	return errors.NewInvalidRequest("nudgeLevel must be an integer between 0 and 3")
}
