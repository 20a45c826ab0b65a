package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/hpungsan/wishpair/internal/errors"
	"github.com/hpungsan/wishpair/internal/wish"
)

const wishColumns = `id, pair_id, created_by, title, category, season, priority,
	budget_range, budget_min, budget_max, memo, status, completed_at, created_at, updated_at`

// WishSortColumns maps API sort keys to columns.
var WishSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"priority":  "CASE priority WHEN 'high' THEN 3 WHEN 'mid' THEN 2 ELSE 1 END",
	"season":    "season",
	"timing":    "season",
	"budgetMin": "budget_min",
	"budgetMax": "budget_max",
	"status":    "status",
}

// WishQuery filters a pair's wishes. Nil filters are not applied.
type WishQuery struct {
	PairID    string
	Status    *wish.Status
	Category  *wish.Category
	Priority  *wish.Priority
	Season    *string
	CreatedBy *string
	Text      string // substring of title or memo
	MinBudget *int64 // wishes whose budget_max reaches at least this
	MaxBudget *int64 // wishes whose budget_min is at most this
	SortBy    string // key of WishSortColumns; default createdAt
	Ascending bool
	Limit     int
	Offset    int
}

// InsertWish stores a new wish.
func InsertWish(ctx context.Context, q Querier, w *wish.Wish) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO wishes (`+wishColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, wishArgs(w)...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetWish retrieves a wish by id.
func GetWish(ctx context.Context, q Querier, id string) (*wish.Wish, error) {
	row := q.QueryRowContext(ctx, `SELECT `+wishColumns+` FROM wishes WHERE id = ?`, id)
	w, err := scanWish(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("wish", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return w, nil
}

// UpdateWish overwrites every mutable column of w. ID and pair never change.
func UpdateWish(ctx context.Context, q Querier, w *wish.Wish) error {
	result, err := q.ExecContext(ctx, `
		UPDATE wishes
		SET title = ?, category = ?, season = ?, priority = ?, budget_range = ?,
		    budget_min = ?, budget_max = ?, memo = ?, status = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, w.Title, string(w.Category), toNullString(w.Season), string(w.Priority), budgetArg(w.BudgetRange),
		toNullInt64(w.BudgetMin), toNullInt64(w.BudgetMax), toNullString(w.Memo), string(w.Status),
		unixPtr(w.CompletedAt), w.UpdatedAt.Unix(), w.ID)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound("wish", w.ID)
	}
	return nil
}

// DeleteWish removes a wish permanently.
func DeleteWish(ctx context.Context, q Querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM wishes WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound("wish", id)
	}
	return nil
}

// ListWishes returns one page of wishes matching wq plus the total match count.
func ListWishes(ctx context.Context, q Querier, wq WishQuery) ([]wish.Wish, int, error) {
	clauses := []string{"pair_id = ?"}
	args := []any{wq.PairID}

	if wq.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, string(*wq.Status))
	}
	if wq.Category != nil {
		clauses = append(clauses, "category = ?")
		args = append(args, string(*wq.Category))
	}
	if wq.Priority != nil {
		clauses = append(clauses, "priority = ?")
		args = append(args, string(*wq.Priority))
	}
	if wq.Season != nil {
		clauses = append(clauses, "season = ?")
		args = append(args, *wq.Season)
	}
	if wq.CreatedBy != nil {
		clauses = append(clauses, "created_by = ?")
		args = append(args, *wq.CreatedBy)
	}
	if wq.Text != "" {
		like := "%" + escapeLike(wq.Text) + "%"
		clauses = append(clauses, `(title LIKE ? ESCAPE '\' OR memo LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}
	if wq.MinBudget != nil {
		clauses = append(clauses, "(budget_max IS NULL OR budget_max >= ?)")
		args = append(args, *wq.MinBudget)
	}
	if wq.MaxBudget != nil {
		clauses = append(clauses, "(budget_min IS NULL OR budget_min <= ?)")
		args = append(args, *wq.MaxBudget)
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM wishes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	sortCol, ok := WishSortColumns[wq.SortBy]
	if !ok {
		sortCol = WishSortColumns["createdAt"]
	}
	order := "DESC"
	if wq.Ascending {
		order = "ASC"
	}

	query := `SELECT ` + wishColumns + ` FROM wishes WHERE ` + where +
		` ORDER BY ` + sortCol + ` ` + order + `, id ` + order + ` LIMIT ? OFFSET ?`
	rows, err := q.QueryContext(ctx, query, append(args, wq.Limit, wq.Offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	items, err := collectWishes(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListPairWishes returns every wish of a pair, newest first.
func ListPairWishes(ctx context.Context, q Querier, pairID string) ([]wish.Wish, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+wishColumns+` FROM wishes WHERE pair_id = ? ORDER BY created_at DESC, id DESC`, pairID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	return collectWishes(rows)
}

// EligibleWishes returns the high priority todo wishes of a pair created at
// or before cutoff (Unix seconds), oldest first.
func EligibleWishes(ctx context.Context, q Querier, pairID string, cutoff int64) ([]wish.Wish, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+wishColumns+`
		FROM wishes
		WHERE pair_id = ? AND status = 'todo' AND priority = 'high' AND created_at <= ?
		ORDER BY created_at ASC, id ASC
	`, pairID, cutoff)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	return collectWishes(rows)
}

func collectWishes(rows *sql.Rows) ([]wish.Wish, error) {
	var out []wish.Wish
	for rows.Next() {
		w, err := scanWish(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func wishArgs(w *wish.Wish) []any {
	return []any{
		w.ID, w.WorkspaceID, w.CreatedBy, w.Title, string(w.Category), toNullString(w.Season),
		string(w.Priority), budgetArg(w.BudgetRange), toNullInt64(w.BudgetMin), toNullInt64(w.BudgetMax),
		toNullString(w.Memo), string(w.Status), unixPtr(w.CompletedAt), w.CreatedAt.Unix(), w.UpdatedAt.Unix(),
	}
}

func scanWish(row rowScanner) (*wish.Wish, error) {
	var w wish.Wish
	var category, priority, status string
	var season, budget, memo sql.NullString
	var budgetMin, budgetMax, completedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&w.ID, &w.WorkspaceID, &w.CreatedBy, &w.Title, &category, &season, &priority,
		&budget, &budgetMin, &budgetMax, &memo, &status, &completedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	w.Category = wish.Category(category)
	w.Priority = wish.Priority(priority)
	w.Status = wish.Status(status)
	w.Season = fromNullString(season)
	if budget.Valid {
		b := wish.BudgetRange(budget.String)
		w.BudgetRange = &b
	}
	w.BudgetMin = fromNullInt64(budgetMin)
	w.BudgetMax = fromNullInt64(budgetMax)
	w.Memo = fromNullString(memo)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0).UTC()
		w.CompletedAt = &t
	}
	w.CreatedAt = time.Unix(createdAt, 0).UTC()
	w.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &w, nil
}

func budgetArg(b *wish.BudgetRange) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*b), Valid: true}
}

func unixPtr(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
