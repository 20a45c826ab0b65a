package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/wishpair/internal/errors"
	"github.com/hpungsan/wishpair/internal/wish"
)

func stringPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func seedPair(t *testing.T, database *sql.DB) *Pair {
	t.Helper()
	ctx := context.Background()
	now := time.Now().Unix()
	for _, id := range []string{"usr_a", "usr_b"} {
		u := &User{ID: id, DeviceID: stringPtr("dev-" + id), NudgeLevel: 1, CreatedAt: now, UpdatedAt: now}
		if err := InsertUser(ctx, database, u); err != nil {
			t.Fatalf("InsertUser(%s) error = %v", id, err)
		}
	}
	p := &Pair{ID: "pair_1", User1ID: "usr_a", InviteCode: "ABC234", Status: PairAwaiting, CreatedAt: now, UpdatedAt: now}
	if err := InsertPair(ctx, database, p); err != nil {
		t.Fatalf("InsertPair() error = %v", err)
	}
	if err := ActivatePair(ctx, database, p.ID, "usr_b", now); err != nil {
		t.Fatalf("ActivatePair() error = %v", err)
	}
	got, err := GetPair(ctx, database, p.ID)
	if err != nil {
		t.Fatalf("GetPair() error = %v", err)
	}
	return got
}

func newTestWish(id, pairID, title string, created time.Time) *wish.Wish {
	return &wish.Wish{
		ID:          id,
		WorkspaceID: pairID,
		Title:       title,
		Category:    wish.CategoryDate,
		Priority:    wish.PriorityHigh,
		Status:      wish.StatusTodo,
		CreatedBy:   "usr_a",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestUsers_InsertGetUpdate(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	u := &User{ID: "usr_1", Email: stringPtr("a@example.com"), NudgeLevel: 2, CreatedAt: 10, UpdatedAt: 10}
	if err := InsertUser(ctx, database, u); err != nil {
		t.Fatalf("InsertUser() error = %v", err)
	}

	dup := &User{ID: "usr_2", Email: stringPtr("a@example.com"), CreatedAt: 10, UpdatedAt: 10}
	if err := InsertUser(ctx, database, dup); err != ErrUniqueConstraint {
		t.Errorf("duplicate email error = %v, want ErrUniqueConstraint", err)
	}

	got, err := GetUser(ctx, database, "usr_1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.NudgeLevel != 2 || *got.Email != "a@example.com" || got.DeviceID != nil {
		t.Errorf("GetUser() = %+v", got)
	}

	got.PushToken = stringPtr("ExponentPushToken[x]")
	got.UpdatedAt = 20
	if err := UpdateUser(ctx, database, got); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	got, _ = GetUser(ctx, database, "usr_1")
	if got.PushToken == nil || got.UpdatedAt != 20 {
		t.Errorf("update not persisted: %+v", got)
	}

	if _, err := GetUser(ctx, database, "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetUser(missing) error = %v, want NOT_FOUND", err)
	}
}

func TestUsers_NullNudgeLevelDefaultsToOne(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	if _, err := database.Exec(`INSERT INTO users (id, nudge_level, created_at, updated_at) VALUES ('usr_n', NULL, 1, 1)`); err != nil {
		t.Fatalf("raw insert error = %v", err)
	}
	got, err := GetUser(ctx, database, "usr_n")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.NudgeLevel != 1 {
		t.Errorf("NudgeLevel = %d, want 1", got.NudgeLevel)
	}
}

func TestPairs_ActivateOnce(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	p := seedPair(t, database)

	if p.Status != PairActive || p.User2ID == nil || *p.User2ID != "usr_b" {
		t.Fatalf("pair not active: %+v", p)
	}
	if !p.HasMember("usr_a") || !p.HasMember("usr_b") || p.HasMember("usr_c") {
		t.Errorf("HasMember mismatch")
	}

	err := ActivatePair(ctx, database, p.ID, "usr_a", time.Now().Unix())
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("second ActivatePair error = %v, want CONFLICT", err)
	}
}

func TestPairs_FindPairForUserPrefersActive(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	seedPair(t, database)

	awaiting := &Pair{ID: "pair_2", User1ID: "usr_a", InviteCode: "ZZZ999", Status: PairAwaiting, CreatedAt: time.Now().Unix() + 100, UpdatedAt: 1}
	if err := InsertPair(ctx, database, awaiting); err != nil {
		t.Fatalf("InsertPair() error = %v", err)
	}

	got, err := FindPairForUser(ctx, database, "usr_a")
	if err != nil {
		t.Fatalf("FindPairForUser() error = %v", err)
	}
	if got.ID != "pair_1" {
		t.Errorf("FindPairForUser() = %s, want pair_1", got.ID)
	}

	exists, err := InviteCodeExists(ctx, database, "ZZZ999")
	if err != nil || !exists {
		t.Errorf("InviteCodeExists = %v, %v", exists, err)
	}

	active, err := ListActivePairs(ctx, database)
	if err != nil {
		t.Fatalf("ListActivePairs() error = %v", err)
	}
	if len(active) != 1 {
		t.Errorf("len(active) = %d, want 1", len(active))
	}
}

func TestWishes_CRUD(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	p := seedPair(t, database)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	w := newTestWish("wish_1", p.ID, "Picnic", created)
	br := wish.BudgetUnder10k
	w.BudgetRange = &br
	w.BudgetMin = int64Ptr(5000)
	w.Memo = stringPtr("bring **snacks**")
	if err := InsertWish(ctx, database, w); err != nil {
		t.Fatalf("InsertWish() error = %v", err)
	}

	got, err := GetWish(ctx, database, "wish_1")
	if err != nil {
		t.Fatalf("GetWish() error = %v", err)
	}
	if !got.CreatedAt.Equal(created) || *got.BudgetRange != br || *got.BudgetMin != 5000 || got.BudgetMax != nil {
		t.Errorf("GetWish() = %+v", got)
	}

	now := created.Add(time.Hour)
	got.SetStatus(wish.StatusDone, now)
	if err := UpdateWish(ctx, database, got); err != nil {
		t.Fatalf("UpdateWish() error = %v", err)
	}
	got, _ = GetWish(ctx, database, "wish_1")
	if got.Status != wish.StatusDone || got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Errorf("status update not persisted: %+v", got)
	}

	if err := DeleteWish(ctx, database, "wish_1"); err != nil {
		t.Fatalf("DeleteWish() error = %v", err)
	}
	if err := DeleteWish(ctx, database, "wish_1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second DeleteWish error = %v, want NOT_FOUND", err)
	}
}

func TestListWishes_Filters(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	p := seedPair(t, database)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	w1 := newTestWish("wish_1", p.ID, "Beach trip", base)
	w1.BudgetMin, w1.BudgetMax = int64Ptr(100), int64Ptr(500)
	w2 := newTestWish("wish_2", p.ID, "Cook dinner", base.Add(time.Hour))
	w2.Priority = wish.PriorityLow
	w2.Memo = stringPtr("try the beach cafe recipe")
	w3 := newTestWish("wish_3", p.ID, "100% fun", base.Add(2*time.Hour))
	w3.Status = wish.StatusDone
	w3.BudgetMin, w3.BudgetMax = int64Ptr(1000), int64Ptr(2000)
	for _, w := range []*wish.Wish{w1, w2, w3} {
		if err := InsertWish(ctx, database, w); err != nil {
			t.Fatalf("InsertWish(%s) error = %v", w.ID, err)
		}
	}

	todo := wish.StatusTodo
	high := wish.PriorityHigh

	tests := []struct {
		name  string
		query WishQuery
		want  []string
	}{
		{"all newest first", WishQuery{Limit: 50}, []string{"wish_3", "wish_2", "wish_1"}},
		{"ascending", WishQuery{Limit: 50, Ascending: true}, []string{"wish_1", "wish_2", "wish_3"}},
		{"status", WishQuery{Status: &todo, Limit: 50}, []string{"wish_2", "wish_1"}},
		{"priority", WishQuery{Priority: &high, Limit: 50}, []string{"wish_3", "wish_1"}},
		{"text in memo or title", WishQuery{Text: "beach", Limit: 50}, []string{"wish_2", "wish_1"}},
		{"literal percent", WishQuery{Text: "100%", Limit: 50}, []string{"wish_3"}},
		{"min budget", WishQuery{MinBudget: int64Ptr(1500), Limit: 50}, []string{"wish_3", "wish_2"}},
		{"max budget", WishQuery{MaxBudget: int64Ptr(200), Limit: 50}, []string{"wish_2", "wish_1"}},
		{"sort priority desc", WishQuery{SortBy: "priority", Limit: 50}, []string{"wish_3", "wish_1", "wish_2"}},
		{"page", WishQuery{Limit: 1, Offset: 1}, []string{"wish_2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.query.PairID = p.ID
			items, total, err := ListWishes(ctx, database, tt.query)
			if err != nil {
				t.Fatalf("ListWishes() error = %v", err)
			}
			var got []string
			for _, w := range items {
				got = append(got, w.ID)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("ids = %v, want %v", got, tt.want)
				}
			}
			if tt.name == "page" && total != 3 {
				t.Errorf("total = %d, want 3", total)
			}
		})
	}
}

func TestEligibleWishes(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	p := seedPair(t, database)
	now := time.Now().UTC().Truncate(time.Second)

	old := newTestWish("wish_old", p.ID, "Old", now.Add(-5*24*time.Hour))
	fresh := newTestWish("wish_new", p.ID, "New", now.Add(-1*24*time.Hour))
	low := newTestWish("wish_low", p.ID, "Low", now.Add(-9*24*time.Hour))
	low.Priority = wish.PriorityLow
	done := newTestWish("wish_done", p.ID, "Done", now.Add(-9*24*time.Hour))
	done.Status = wish.StatusDone
	for _, w := range []*wish.Wish{old, fresh, low, done} {
		if err := InsertWish(ctx, database, w); err != nil {
			t.Fatalf("InsertWish(%s) error = %v", w.ID, err)
		}
	}

	cutoff := now.Add(-3 * 24 * time.Hour).Unix()
	got, err := EligibleWishes(ctx, database, p.ID, cutoff)
	if err != nil {
		t.Fatalf("EligibleWishes() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "wish_old" {
		t.Errorf("EligibleWishes() = %v", got)
	}
}

func TestNudgeState_EnsureAndRecord(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	p := seedPair(t, database)

	if err := EnsureNudgeState(ctx, database, p.ID, 100); err != nil {
		t.Fatalf("EnsureNudgeState() error = %v", err)
	}
	if err := RecordNudge(ctx, database, p.ID, "wish_x", 200); err != nil {
		t.Fatalf("RecordNudge() error = %v", err)
	}
	// Ensuring again must not reset the recorded nudge.
	if err := EnsureNudgeState(ctx, database, p.ID, 300); err != nil {
		t.Fatalf("EnsureNudgeState() error = %v", err)
	}

	s, err := GetNudgeState(ctx, database, p.ID)
	if err != nil {
		t.Fatalf("GetNudgeState() error = %v", err)
	}
	if s.LastNudgedAt == nil || *s.LastNudgedAt != 200 || s.LastWishID == nil || *s.LastWishID != "wish_x" {
		t.Errorf("state = %+v", s)
	}
	if s.UpdatedAt != 200 {
		t.Errorf("UpdatedAt = %d, want 200", s.UpdatedAt)
	}

	if _, err := GetNudgeState(ctx, database, "pair_missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing state error = %v", err)
	}
}

func TestQuerier_Transaction(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	u := &User{ID: "usr_tx", DeviceID: stringPtr("dev-tx"), CreatedAt: 1, UpdatedAt: 1}
	if err := InsertUser(ctx, tx, u); err != nil {
		t.Fatalf("InsertUser(tx) error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if _, err := GetUser(ctx, database, "usr_tx"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("rolled back user still visible: %v", err)
	}
}
