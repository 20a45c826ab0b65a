// Package remote implements the shared wish store that two devices
// reconcile against. Rows may use either of two column conventions;
// every operation tries the snake_case layout first, then camelCase.
package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/hpungsan/wishpair/internal/wish"
)

// GuestUserID owns rows written by devices that have no account.
const GuestUserID = "guest"

const untitled = wish.DefaultTitle

// Variant is a remote column naming convention.
type Variant int

const (
	Snake Variant = iota
	Camel
)

func (v Variant) String() string {
	if v == Camel {
		return "camel"
	}
	return "snake"
}

// Drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is a SQL-backed remote wish store.
type Store struct {
	db     *sql.DB
	driver string
	log    *logrus.Logger
	now    func() time.Time
}

// Open connects to the remote database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported remote driver %q", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("remote dsn is required")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open remote: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping remote: %w", err)
	}
	return db, nil
}

// New wraps an open remote database. driver selects the placeholder style.
func New(db *sql.DB, driver string, log *logrus.Logger) *Store {
	return &Store{db: db, driver: driver, log: log, now: time.Now}
}

// Fetch returns the workspace's wishes, newest first.
func (s *Store) Fetch(ctx context.Context, workspaceID string) ([]wish.Wish, error) {
	wishes, snakeErr := s.fetch(ctx, Snake, workspaceID)
	if snakeErr == nil {
		return wishes, nil
	}
	wishes, camelErr := s.fetch(ctx, Camel, workspaceID)
	if camelErr == nil {
		return wishes, nil
	}
	return nil, fmt.Errorf("fetch workspace %s: %w", workspaceID, errors.Join(snakeErr, camelErr))
}

// Push makes the remote collection equal to wishes: rows whose id is not
// in wishes are deleted, then every wish is upserted by id.
func (s *Store) Push(ctx context.Context, workspaceID string, wishes []wish.Wish) error {
	snakeErr := s.push(ctx, Snake, workspaceID, wishes)
	if snakeErr == nil {
		return nil
	}
	if s.log != nil {
		s.log.WithField("workspace_id", workspaceID).WithError(snakeErr).Debug("snake push failed, trying camel")
	}
	camelErr := s.push(ctx, Camel, workspaceID, wishes)
	if camelErr == nil {
		return nil
	}
	return fmt.Errorf("push workspace %s: %w", workspaceID, errors.Join(snakeErr, camelErr))
}

type columns struct {
	pairID, createdBy, season, budgetRange, createdAt, updatedAt string
}

var layouts = map[Variant]columns{
	Snake: {"pair_id", "created_by", "timing", "budget_range", "created_at", "updated_at"},
	Camel: {`"pairId"`, `"createdBy"`, "season", `"budgetRange"`, `"createdAt"`, `"updatedAt"`},
}

func (s *Store) fetch(ctx context.Context, v Variant, workspaceID string) ([]wish.Wish, error) {
	c := layouts[v]
	query := fmt.Sprintf(`SELECT id, %s, %s, title, category, priority, %s, %s, memo, status, %s, %s
		FROM wishes WHERE %s = %s ORDER BY %s DESC`,
		c.pairID, c.createdBy, c.season, c.budgetRange, c.createdAt, c.updatedAt,
		c.pairID, s.ph(1), c.createdAt)

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", v, err)
	}
	defer rows.Close()

	wishes := []wish.Wish{}
	for rows.Next() {
		var r rawRow
		if err := rows.Scan(&r.id, &r.pairID, &r.createdBy, &r.title, &r.category, &r.priority,
			&r.season, &r.budgetRange, &r.memo, &r.status, &r.createdAt, &r.updatedAt); err != nil {
			return nil, fmt.Errorf("%s scan: %w", v, err)
		}
		wishes = append(wishes, r.toWish(workspaceID, s.now()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", v, err)
	}
	return wishes, nil
}

func (s *Store) push(ctx context.Context, v Variant, workspaceID string, wishes []wish.Wish) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s begin: %w", v, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if v == Snake {
		if err := s.ensureSnakeRefs(ctx, tx, workspaceID); err != nil {
			return err
		}
	}
	if err := s.deleteStale(ctx, tx, v, workspaceID, wishes); err != nil {
		return err
	}
	for i := range wishes {
		if err := s.upsert(ctx, tx, v, workspaceID, &wishes[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", v, err)
	}
	return nil
}

// ensureSnakeRefs creates the guest user and the pair row the snake
// layout's foreign keys point at.
func (s *Store) ensureSnakeRefs(ctx context.Context, tx *sql.Tx, workspaceID string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO users (id, device_id, nudge_level) VALUES (%s, %s, 1) ON CONFLICT (id) DO NOTHING`,
		s.ph(1), s.ph(2)), GuestUserID, GuestUserID)
	if err != nil {
		return fmt.Errorf("snake ensure user: %w", err)
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO pairs (id, user1_id, invite_code, status) VALUES (%s, %s, %s, 'active') ON CONFLICT (id) DO NOTHING`,
		s.ph(1), s.ph(2), s.ph(3)), workspaceID, GuestUserID, workspaceID)
	if err != nil {
		return fmt.Errorf("snake ensure pair: %w", err)
	}
	return nil
}

func (s *Store) deleteStale(ctx context.Context, tx *sql.Tx, v Variant, workspaceID string, wishes []wish.Wish) error {
	c := layouts[v]
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM wishes WHERE %s = %s`, c.pairID, s.ph(1)), workspaceID)
	if err != nil {
		return fmt.Errorf("%s list ids: %w", v, err)
	}
	var existing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("%s scan id: %w", v, err)
		}
		existing = append(existing, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s list ids: %w", v, err)
	}

	stale := StaleIDs(existing, wishes)
	if len(stale) == 0 {
		return nil
	}

	args := make([]any, 0, len(stale)+1)
	args = append(args, workspaceID)
	marks := make([]string, len(stale))
	for i, id := range stale {
		marks[i] = s.ph(i + 2)
		args = append(args, id)
	}
	query := fmt.Sprintf(`DELETE FROM wishes WHERE %s = %s AND id IN (%s)`, c.pairID, s.ph(1), strings.Join(marks, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s delete stale: %w", v, err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, tx *sql.Tx, v Variant, workspaceID string, w *wish.Wish) error {
	c := layouts[v]
	cols := []string{"id", c.pairID, c.createdBy, "title", "category", "priority", c.season, c.budgetRange, "memo", "status", c.createdAt, c.updatedAt}

	createdBy := w.CreatedBy
	if createdBy == "" {
		createdBy = GuestUserID
	}
	priority, status := string(w.Priority), string(w.Status)
	if v == Snake {
		priority, status = w.Priority.Backend(), w.Status.Backend()
	}
	var budget any
	if w.BudgetRange != nil {
		budget = string(*w.BudgetRange)
	}
	args := []any{
		w.ID, workspaceID, createdBy, w.Title, string(w.Category), priority,
		nullable(w.Season), budget, nullable(w.Memo), status,
		formatTime(w.CreatedAt), formatTime(w.UpdatedAt),
	}

	marks := make([]string, len(cols))
	updates := make([]string, 0, len(cols)-1)
	for i, col := range cols {
		marks[i] = s.ph(i + 1)
		if col != "id" {
			updates = append(updates, col+" = excluded."+col)
		}
	}
	query := fmt.Sprintf(`INSERT INTO wishes (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
		strings.Join(cols, ", "), strings.Join(marks, ", "), strings.Join(updates, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s upsert %s: %w", v, w.ID, err)
	}
	return nil
}

// ph returns the n-th (1-based) bind placeholder for the driver.
// SQLite placeholders are positional, so queries bind arguments in order.
func (s *Store) ph(n int) string {
	if s.driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// StaleIDs returns the distinct ids in existing that no wish carries.
func StaleIDs(existing []string, wishes []wish.Wish) []string {
	keep := make(map[string]bool, len(wishes))
	for _, w := range wishes {
		keep[w.ID] = true
	}
	seen := make(map[string]bool, len(existing))
	var stale []string
	for _, id := range existing {
		if id == "" || keep[id] || seen[id] {
			continue
		}
		seen[id] = true
		stale = append(stale, id)
	}
	return stale
}

type rawRow struct {
	id, pairID, createdBy, title, category, priority sql.NullString
	season, budgetRange, memo, status                sql.NullString
	createdAt, updatedAt                             sql.NullString
}

// toWish maps a row leniently: unknown enum values fall back to defaults
// and missing fields are filled in.
func (r rawRow) toWish(workspaceID string, now time.Time) wish.Wish {
	w := wish.Wish{
		ID:          str(r.id, ""),
		WorkspaceID: str(r.pairID, workspaceID),
		Title:       str(r.title, untitled),
		Category:    wish.CategoryOr(r.category.String),
		Season:      optional(r.season),
		Priority:    wish.PriorityOr(r.priority.String),
		BudgetRange: wish.BudgetRangeOr(r.budgetRange.String),
		Memo:        optional(r.memo),
		Status:      wish.StatusOr(r.status.String),
		CreatedBy:   str(r.createdBy, GuestUserID),
		CreatedAt:   parseTime(r.createdAt, now),
		UpdatedAt:   parseTime(r.updatedAt, now),
	}
	if w.ID == "" {
		w.ID = "w-" + strings.ToLower(ulid.Make().String())
	}
	return w
}

func str(v sql.NullString, fallback string) string {
	if v.Valid && v.String != "" {
		return v.String
	}
	return fallback
}

func optional(v sql.NullString) *string {
	if v.Valid && v.String != "" {
		s := v.String
		return &s
	}
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"}

func parseTime(v sql.NullString, fallback time.Time) time.Time {
	if !v.Valid || v.String == "" {
		return fallback
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v.String); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
