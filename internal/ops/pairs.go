package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"math/big"
	"strings"
	"time"

	"github.com/hpungsan/wishpair/internal/db"
	"github.com/hpungsan/wishpair/internal/errors"
)

// Invite codes avoid look-alike characters (0/O, 1/I).
const (
	inviteAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeLength  = 6
	inviteCodeRetries = 5
)

// InviteInput contains parameters for Invite.
type InviteInput struct {
	UserID string
}

// InviteOutput is the pair a user can share, plus a ready-made message.
type InviteOutput struct {
	db.Pair
	ShareText string `json:"shareText"`
}

// Invite opens a pairing invite for the user. An existing open invite by the
// same user is returned instead of a new one.
func Invite(ctx context.Context, database *sql.DB, input InviteInput) (*InviteOutput, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.NewInvalidRequest("userId is required")
	}
	if _, err := db.GetUser(ctx, database, userID); err != nil {
		return nil, err
	}

	existing, err := db.FindPairForUser(ctx, database, userID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.Status == db.PairActive {
			return nil, errors.NewAlreadyPaired(userID, existing.ID)
		}
		if existing.User1ID == userID {
			return &InviteOutput{Pair: *existing, ShareText: shareText(existing.InviteCode)}, nil
		}
	}

	code, err := allocateInviteCode(ctx, database)
	if err != nil {
		return nil, err
	}
	id, err := generateID(prefixPair)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	p := &db.Pair{
		ID:         id,
		User1ID:    userID,
		InviteCode: code,
		Status:     db.PairAwaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.InsertPair(ctx, database, p); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewConflict("invite code collision, retry")
		}
		return nil, err
	}
	return &InviteOutput{Pair: *p, ShareText: shareText(code)}, nil
}

// JoinInput contains parameters for Join.
type JoinInput struct {
	UserID     string
	InviteCode string
}

// Join completes a pair using an invite code and creates its nudge state.
func Join(ctx context.Context, database *sql.DB, input JoinInput) (*db.Pair, error) {
	userID := strings.TrimSpace(input.UserID)
	code := strings.ToUpper(strings.TrimSpace(input.InviteCode))
	if userID == "" || code == "" {
		return nil, errors.NewInvalidRequest("userId and inviteCode are required")
	}
	if _, err := db.GetUser(ctx, database, userID); err != nil {
		return nil, err
	}

	pair, err := db.GetAwaitingPairByCode(ctx, database, code)
	if err != nil {
		return nil, err
	}
	if pair.User1ID == userID {
		return nil, errors.NewInvalidRequest("cannot join your own invite")
	}

	current, err := db.FindPairForUser(ctx, database, userID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	if current != nil && current.Status == db.PairActive {
		return nil, errors.NewAlreadyPaired(userID, current.ID)
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().Unix()
	if err := db.ActivatePair(ctx, tx, pair.ID, userID, now); err != nil {
		return nil, err
	}
	if err := db.EnsureNudgeState(ctx, tx, pair.ID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return db.GetPair(ctx, database, pair.ID)
}

// GetUserPair returns the user's pair, preferring an active one.
func GetUserPair(ctx context.Context, database *sql.DB, userID string) (*db.Pair, error) {
	if _, err := db.GetUser(ctx, database, userID); err != nil {
		return nil, err
	}
	return db.FindPairForUser(ctx, database, userID)
}

// GetPair returns a pair by id.
func GetPair(ctx context.Context, database *sql.DB, pairID string) (*db.Pair, error) {
	if strings.TrimSpace(pairID) == "" {
		return nil, errors.NewInvalidRequest("pairId is required")
	}
	return db.GetPair(ctx, database, pairID)
}

func allocateInviteCode(ctx context.Context, database *sql.DB) (string, error) {
	for range inviteCodeRetries {
		code, err := newInviteCode()
		if err != nil {
			return "", errors.NewInternal(err)
		}
		taken, err := db.InviteCodeExists(ctx, database, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", errors.NewConflict("could not allocate a unique invite code")
}

func newInviteCode() (string, error) {
	limit := big.NewInt(int64(len(inviteAlphabet)))
	var b strings.Builder
	for range inviteCodeLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(inviteAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func shareText(code string) string {
	return "Invite code: " + code
}
