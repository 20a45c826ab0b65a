package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/wishpair/internal/db"
	"github.com/hpungsan/wishpair/internal/errors"
	"github.com/hpungsan/wishpair/internal/wish"
)

// TestFullWorkflow walks a couple through the whole lifecycle:
// register → invite → join → add wishes → board → complete → delete
func TestFullWorkflow(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()
	ctx := context.Background()

	// 1. Register
	alex, err := CreateUser(ctx, database, CreateUserInput{Email: stringPtr("alex@example.com"), NudgeLevel: intPtr(0)})
	require.NoError(t, err)
	sam, err := CreateUser(ctx, database, CreateUserInput{DeviceID: stringPtr("sam-phone"), NudgeLevel: intPtr(2)})
	require.NoError(t, err)

	// 2. Invite and join
	inv, err := Invite(ctx, database, InviteInput{UserID: alex.ID})
	require.NoError(t, err)
	pair, err := Join(ctx, database, JoinInput{UserID: sam.ID, InviteCode: inv.InviteCode})
	require.NoError(t, err)
	require.Equal(t, db.PairActive, pair.Status)

	_, err = Join(ctx, database, JoinInput{UserID: sam.ID, InviteCode: inv.InviteCode})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	// 3. Wishes
	aurora, err := CreateWish(ctx, database, CreateWishInput{
		PairID: pair.ID, CreatedBy: alex.ID, Title: "See the aurora",
		Priority: "high", Season: stringPtr(wish.SeasonThisMonth), Category: "experience",
	})
	require.NoError(t, err)
	_, err = CreateWish(ctx, database, CreateWishInput{
		PairID: pair.ID, CreatedBy: sam.ID, Title: "Pottery class", Priority: "low", Category: "hobby",
	})
	require.NoError(t, err)

	// 4. Board
	board, err := PairBoard(ctx, database, pair.ID, wish.Filter{})
	require.NoError(t, err)
	require.Len(t, board.Wishes, 2)
	require.Equal(t, 2, board.Stats.Total)
	require.Equal(t, 0, board.Stats.Done)
	require.Equal(t, aurora.ID, board.Next[0].ID)
	require.NotNil(t, board.NudgeState)

	// 5. Complete
	_, err = CompleteWish(ctx, database, CompleteWishInput{ID: aurora.ID})
	require.NoError(t, err)

	board, err = PairBoard(ctx, database, pair.ID, wish.Filter{Status: wish.StatusTodo})
	require.NoError(t, err)
	require.Len(t, board.Wishes, 1)
	require.Equal(t, 50, board.Stats.OverallRate)

	// 6. Delete
	_, err = DeleteWish(ctx, database, aurora.ID)
	require.NoError(t, err)
	list, err := ListWishes(ctx, database, ListWishesInput{PairID: pair.ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "Pottery class", list.Items[0].Title)
}
