package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/wishpair/internal/db"
	"github.com/hpungsan/wishpair/internal/errors"
	"github.com/hpungsan/wishpair/internal/wish"
)

// CreateWishInput contains parameters for CreateWish.
// Enum fields accept both vocabularies (mid/medium, todo/pending, done/completed).
type CreateWishInput struct {
	PairID      string
	CreatedBy   string
	Title       string
	Category    string // default: experience
	Season      *string
	Priority    string // default: mid
	Status      string // default: todo
	BudgetRange string
	BudgetMin   *int64
	BudgetMax   *int64
	Memo        *string
}

// CreateWish adds a wish to an active pair.
func CreateWish(ctx context.Context, database *sql.DB, input CreateWishInput) (*wish.Wish, error) {
	pair, err := db.GetPair(ctx, database, input.PairID)
	if err != nil {
		return nil, err
	}
	if pair.Status != db.PairActive {
		return nil, errors.NewNotFound("active pair", input.PairID)
	}
	if !pair.HasMember(input.CreatedBy) {
		return nil, errors.NewInvalidRequest("createdBy must be one of pair members")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.NewInvalidRequest("title is required")
	}

	category := wish.CategoryExperience
	if strings.TrimSpace(input.Category) != "" {
		if category, err = wish.ParseCategory(input.Category); err != nil {
			return nil, err
		}
	}
	priority := wish.PriorityMid
	if strings.TrimSpace(input.Priority) != "" {
		if priority, err = wish.ParsePriority(input.Priority); err != nil {
			return nil, err
		}
	}
	status := wish.StatusTodo
	if strings.TrimSpace(input.Status) != "" {
		if status, err = wish.ParseStatus(input.Status); err != nil {
			return nil, err
		}
	}
	budget, err := wish.ParseBudgetRange(input.BudgetRange)
	if err != nil {
		return nil, err
	}
	if err := validateBudgetBounds(input.BudgetMin, input.BudgetMax); err != nil {
		return nil, err
	}

	id, err := generateID(prefixWish)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	w := &wish.Wish{
		ID:          id,
		WorkspaceID: pair.ID,
		Title:       title,
		Category:    category,
		Season:      wish.NormalizeText(input.Season),
		Priority:    priority,
		BudgetRange: budget,
		BudgetMin:   input.BudgetMin,
		BudgetMax:   input.BudgetMax,
		Memo:        wish.NormalizeText(input.Memo),
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
	}
	w.SetStatus(status, now)

	if err := db.InsertWish(ctx, database, w); err != nil {
		return nil, err
	}
	return w, nil
}

// GetWish returns a wish by id.
func GetWish(ctx context.Context, database *sql.DB, id string) (*wish.Wish, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewInvalidRequest("wish id is required")
	}
	return db.GetWish(ctx, database, id)
}

// ListWishesInput contains parameters for ListWishes. Blank filters are ignored.
type ListWishesInput struct {
	PairID    string
	Status    string
	Category  string
	Priority  string
	Season    string
	CreatedBy string
	Q         string
	MinBudget *int64
	MaxBudget *int64
	SortBy    string // createdAt (default), updatedAt, priority, season, budgetMin, budgetMax, status
	Order     string // desc (default) or asc
	Limit     int    // default: 50, max: 200
	Offset    int
}

// ListWishesOutput contains the result of ListWishes.
type ListWishesOutput struct {
	Items      []wish.Wish `json:"items"`
	Pagination Pagination  `json:"pagination"`
	Sort       string      `json:"sort"`
}

// ListWishes returns a filtered, sorted page of a pair's wishes.
func ListWishes(ctx context.Context, database *sql.DB, input ListWishesInput) (*ListWishesOutput, error) {
	if _, err := GetPair(ctx, database, input.PairID); err != nil {
		return nil, err
	}

	q := db.WishQuery{
		PairID:    input.PairID,
		Text:      strings.TrimSpace(input.Q),
		MinBudget: input.MinBudget,
		MaxBudget: input.MaxBudget,
		Limit:     clampLimit(input.Limit),
		Offset:    max(input.Offset, 0),
		Ascending: strings.EqualFold(strings.TrimSpace(input.Order), "asc"),
	}

	if s := strings.TrimSpace(input.Status); s != "" {
		st, err := wish.ParseStatus(s)
		if err != nil {
			return nil, err
		}
		q.Status = &st
	}
	if s := strings.TrimSpace(input.Priority); s != "" {
		p, err := wish.ParsePriority(s)
		if err != nil {
			return nil, err
		}
		q.Priority = &p
	}
	if s := strings.TrimSpace(input.Category); s != "" {
		c, err := wish.ParseCategory(s)
		if err != nil {
			return nil, err
		}
		q.Category = &c
	}
	if s := strings.TrimSpace(input.Season); s != "" {
		q.Season = &s
	}
	if s := strings.TrimSpace(input.CreatedBy); s != "" {
		q.CreatedBy = &s
	}

	q.SortBy = input.SortBy
	if _, ok := db.WishSortColumns[q.SortBy]; !ok {
		q.SortBy = "createdAt"
	}

	items, total, err := db.ListWishes(ctx, database, q)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []wish.Wish{}
	}

	order := "desc"
	if q.Ascending {
		order = "asc"
	}
	return &ListWishesOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   q.Limit,
			Offset:  q.Offset,
			HasMore: q.Offset+len(items) < total,
			Total:   total,
		},
		Sort: q.SortBy + "_" + order,
	}, nil
}

// UpdateWishInput contains parameters for UpdateWish.
// Nil fields are left unchanged; blank text clears optional fields.
type UpdateWishInput struct {
	ID          string
	Title       *string
	Category    *string
	Season      *string
	Priority    *string
	Status      *string
	BudgetRange *string
	BudgetMin   *int64
	BudgetMax   *int64
	Memo        *string
}

func (in UpdateWishInput) empty() bool {
	return in.Title == nil && in.Category == nil && in.Season == nil && in.Priority == nil &&
		in.Status == nil && in.BudgetRange == nil && in.BudgetMin == nil && in.BudgetMax == nil &&
		in.Memo == nil
}

// UpdateWish applies a partial update. A status change keeps completedAt in step.
func UpdateWish(ctx context.Context, database *sql.DB, input UpdateWishInput) (*wish.Wish, error) {
	if input.empty() {
		return nil, errors.NewInvalidRequest("no updatable fields provided")
	}

	w, err := GetWish(ctx, database, input.ID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Truncate(time.Second)

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, errors.NewInvalidRequest("title must not be empty")
		}
		w.Title = title
	}
	if input.Category != nil {
		if w.Category, err = wish.ParseCategory(*input.Category); err != nil {
			return nil, err
		}
	}
	if input.Season != nil {
		w.Season = wish.NormalizeText(input.Season)
	}
	if input.Priority != nil {
		if w.Priority, err = wish.ParsePriority(*input.Priority); err != nil {
			return nil, err
		}
	}
	if input.BudgetRange != nil {
		if w.BudgetRange, err = wish.ParseBudgetRange(*input.BudgetRange); err != nil {
			return nil, err
		}
	}
	if input.BudgetMin != nil {
		w.BudgetMin = input.BudgetMin
	}
	if input.BudgetMax != nil {
		w.BudgetMax = input.BudgetMax
	}
	if err := validateBudgetBounds(w.BudgetMin, w.BudgetMax); err != nil {
		return nil, err
	}
	if input.Memo != nil {
		w.Memo = wish.NormalizeText(input.Memo)
	}
	if input.Status != nil {
		status, err := wish.ParseStatus(*input.Status)
		if err != nil {
			return nil, err
		}
		w.SetStatus(status, now)
	}
	w.Touch(now)

	if err := db.UpdateWish(ctx, database, w); err != nil {
		return nil, err
	}
	return w, nil
}

// CompleteWishInput contains parameters for CompleteWish.
type CompleteWishInput struct {
	ID        string
	Completed *bool // default: true
}

// CompleteWish marks a wish done (or reopens it with Completed=false).
func CompleteWish(ctx context.Context, database *sql.DB, input CompleteWishInput) (*wish.Wish, error) {
	w, err := GetWish(ctx, database, input.ID)
	if err != nil {
		return nil, err
	}
	status := wish.StatusDone
	if input.Completed != nil && !*input.Completed {
		status = wish.StatusTodo
	}
	w.SetStatus(status, time.Now().UTC().Truncate(time.Second))
	if err := db.UpdateWish(ctx, database, w); err != nil {
		return nil, err
	}
	return w, nil
}

// DeleteWishOutput contains the result of DeleteWish.
type DeleteWishOutput struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// DeleteWish removes a wish permanently.
func DeleteWish(ctx context.Context, database *sql.DB, id string) (*DeleteWishOutput, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewInvalidRequest("wish id is required")
	}
	if err := db.DeleteWish(ctx, database, id); err != nil {
		return nil, err
	}
	return &DeleteWishOutput{OK: true, ID: id}, nil
}

func validateBudgetBounds(lo, hi *int64) error {
	if (lo != nil && *lo < 0) || (hi != nil && *hi < 0) {
		return errors.NewInvalidRequest("budget bounds must not be negative")
	}
	if lo != nil && hi != nil && *lo > *hi {
		return errors.NewInvalidRequest("budgetMin must not exceed budgetMax")
	}
	return nil
}
