package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/wishpair/internal/cadence"
	"github.com/hpungsan/wishpair/internal/config"
	"github.com/hpungsan/wishpair/internal/errors"
	"github.com/hpungsan/wishpair/internal/nudge"
	"github.com/hpungsan/wishpair/internal/ops"
	"github.com/hpungsan/wishpair/internal/wish"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	engine *nudge.Engine
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, engine *nudge.Engine) *Handlers {
	return &Handlers{db: db, cfg: cfg, engine: engine}
}

// WishListRequest represents the arguments for wish_list.
type WishListRequest struct {
	PairID   string `json:"pair_id"`
	Status   string `json:"status,omitempty"`
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
	Q        string `json:"q,omitempty"`
	SortBy   string `json:"sort_by,omitempty"`
	Order    string `json:"order,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// WishCreateRequest represents the arguments for wish_create.
type WishCreateRequest struct {
	PairID      string  `json:"pair_id"`
	CreatedBy   string  `json:"created_by"`
	Title       string  `json:"title"`
	Category    string  `json:"category,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	Season      *string `json:"season,omitempty"`
	BudgetRange string  `json:"budget_range,omitempty"`
	Memo        *string `json:"memo,omitempty"`
}

// WishCompleteRequest represents the arguments for wish_complete.
type WishCompleteRequest struct {
	ID        string `json:"id"`
	Completed *bool  `json:"completed,omitempty"`
}

// PairGetRequest represents the arguments for pair_get.
type PairGetRequest struct {
	PairID string `json:"pair_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// NudgeTriggerRequest represents the arguments for nudge_trigger.
type NudgeTriggerRequest struct {
	PairID     string   `json:"pair_id,omitempty"`
	Force      *bool    `json:"force,omitempty"`
	MinAgeDays *float64 `json:"min_age_days,omitempty"`
}

// HandleWishList handles the wish_list tool call.
func (h *Handlers) HandleWishList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WishListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	limit := input.Limit
	if limit == 0 {
		limit = ops.DefaultListLimit
	}
	result, err := ops.ListWishes(ctx, h.db, ops.ListWishesInput{
		PairID:   input.PairID,
		Status:   input.Status,
		Category: input.Category,
		Priority: input.Priority,
		Q:        input.Q,
		SortBy:   input.SortBy,
		Order:    input.Order,
		Limit:    limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleWishCreate handles the wish_create tool call.
func (h *Handlers) HandleWishCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WishCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CreateWish(ctx, h.db, ops.CreateWishInput{
		PairID:      input.PairID,
		CreatedBy:   input.CreatedBy,
		Title:       input.Title,
		Category:    input.Category,
		Priority:    input.Priority,
		Season:      input.Season,
		BudgetRange: input.BudgetRange,
		Memo:        input.Memo,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleWishComplete handles the wish_complete tool call.
func (h *Handlers) HandleWishComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WishCompleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CompleteWish(ctx, h.db, ops.CompleteWishInput{
		ID:        input.ID,
		Completed: input.Completed,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePairGet handles the pair_get tool call.
func (h *Handlers) HandlePairGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PairGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	pairID := strings.TrimSpace(input.PairID)
	userID := strings.TrimSpace(input.UserID)
	if (pairID == "") == (userID == "") {
		return errorResult(errors.NewInvalidRequest("exactly one of pair_id or user_id is required")), nil
	}
	if userID != "" {
		pair, err := ops.GetUserPair(ctx, h.db, userID)
		if err != nil {
			return errorResult(err), nil
		}
		pairID = pair.ID
	}

	result, err := ops.PairBoard(ctx, h.db, pairID, wish.Filter{Sort: wish.SortPriority})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleNudgeTrigger handles the nudge_trigger tool call. Force defaults to true.
func (h *Handlers) HandleNudgeTrigger(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NudgeTriggerRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	in := nudge.TriggerInput{
		PairID:     strings.TrimSpace(input.PairID),
		Force:      true,
		MinAgeDays: h.cfg.EffectiveMinAgeDays(),
	}
	if input.Force != nil {
		in.Force = *input.Force
	}
	if input.MinAgeDays != nil {
		in.MinAgeDays = *input.MinAgeDays
	}

	result, err := h.engine.Trigger(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleNudgeConfig handles the nudge_config tool call.
func (h *Handlers) HandleNudgeConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(map[string]any{
		"nudge_levels":      cadence.Labels(),
		"min_age_days":      h.cfg.EffectiveMinAgeDays(),
		"push_enabled":      h.cfg.PushEnabled,
		"scheduler_enabled": h.cfg.SchedulerEnabled,
		"scheduler_spec":    h.cfg.SchedulerSpec,
	})
}

// errorResult creates an MCP error result from any error.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if wErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    wErr.Code,
			"message": wErr.Message,
			"status":  wErr.Status,
		}
		if wErr.Code != errors.ErrInternal && wErr.Details != nil {
			errorObj["details"] = wErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
