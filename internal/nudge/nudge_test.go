package nudge

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/wishpair/internal/db"
	"github.com/hpungsan/wishpair/internal/logger"
	"github.com/hpungsan/wishpair/internal/wish"
)

type fixedPicker int

func (f fixedPicker) IntN(n int) int { return int(f) % n }

type fakeGateway struct {
	tickets []PushTicket
	err     error
	calls   [][]PushMessage
}

func (f *fakeGateway) Send(_ context.Context, messages []PushMessage) ([]PushTicket, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	if f.tickets != nil {
		return f.tickets, nil
	}
	out := make([]PushTicket, len(messages))
	for i := range out {
		out[i] = PushTicket{Status: "ok"}
	}
	return out, nil
}

type fixture struct {
	t   *testing.T
	db  *sql.DB
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return &fixture{
		t:   t,
		db:  database,
		now: time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) clock() time.Time { return f.now }

func strPtr(s string) *string { return &s }

func (f *fixture) addUser(id string, token *string, level int) {
	f.t.Helper()
	u := &db.User{ID: id, DeviceID: strPtr("dev-" + id), PushToken: token, NudgeLevel: level, CreatedAt: f.now.Unix(), UpdatedAt: f.now.Unix()}
	if err := db.InsertUser(context.Background(), f.db, u); err != nil {
		f.t.Fatalf("InsertUser(%s) error = %v", id, err)
	}
}

func (f *fixture) addPair(id, user1, user2 string) {
	f.t.Helper()
	ctx := context.Background()
	p := &db.Pair{ID: id, User1ID: user1, InviteCode: id, Status: db.PairAwaiting, CreatedAt: f.now.Unix(), UpdatedAt: f.now.Unix()}
	if err := db.InsertPair(ctx, f.db, p); err != nil {
		f.t.Fatalf("InsertPair(%s) error = %v", id, err)
	}
	if err := db.ActivatePair(ctx, f.db, id, user2, f.now.Unix()); err != nil {
		f.t.Fatalf("ActivatePair(%s) error = %v", id, err)
	}
}

func (f *fixture) addWish(id, pairID string, priority wish.Priority, status wish.Status, age time.Duration) {
	f.t.Helper()
	created := f.now.Add(-age)
	w := &wish.Wish{
		ID: id, WorkspaceID: pairID, Title: "Title " + id, Category: wish.CategoryDate,
		Priority: priority, Status: status, CreatedBy: "u", CreatedAt: created, UpdatedAt: created,
	}
	if err := db.InsertWish(context.Background(), f.db, w); err != nil {
		f.t.Fatalf("InsertWish(%s) error = %v", id, err)
	}
}

func (f *fixture) setLastNudged(pairID string, ago time.Duration) {
	f.t.Helper()
	if err := db.RecordNudge(context.Background(), f.db, pairID, "wish_prev", f.now.Add(-ago).Unix()); err != nil {
		f.t.Fatalf("RecordNudge() error = %v", err)
	}
}

func (f *fixture) engine(gw PushGateway, enabled bool) *Engine {
	log := logger.Discard()
	return NewEngine(
		f.db,
		NewSelector(f.db, fixedPicker(0), f.clock),
		NewDispatcher(gw, enabled, fixedPicker(0), log),
		log,
		f.clock,
	)
}

func (f *fixture) state(pairID string) *db.NudgeState {
	f.t.Helper()
	s, err := db.GetNudgeState(context.Background(), f.db, pairID)
	if err != nil {
		f.t.Fatalf("GetNudgeState(%s) error = %v", pairID, err)
	}
	return s
}
