package mcp

import (
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/wishpair/internal/config"
	"github.com/hpungsan/wishpair/internal/nudge"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var (
	wishListToolDef = mcp.NewTool("wish_list",
		mcp.WithDescription("List a pair's wishes with optional filters, sorting and paging."),
		mcp.WithString("pair_id", mcp.Required(), mcp.Description("Pair id")),
		mcp.WithString("status", mcp.Description("todo|done (pending|completed accepted)")),
		mcp.WithString("category", mcp.Description("Category filter")),
		mcp.WithString("priority", mcp.Description("high|mid|low (medium accepted)")),
		mcp.WithString("q", mcp.Description("Substring match on title and memo")),
		mcp.WithString("sort_by", mcp.Description("createdAt, updatedAt, priority, season, budgetMin, budgetMax, status")),
		mcp.WithString("order", mcp.Description("asc or desc (default)")),
		mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 200")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	)

	wishCreateToolDef = mcp.NewTool("wish_create",
		mcp.WithDescription("Add a wish to an active pair."),
		mcp.WithString("pair_id", mcp.Required(), mcp.Description("Pair id")),
		mcp.WithString("created_by", mcp.Required(), mcp.Description("Id of a pair member")),
		mcp.WithString("title", mcp.Required(), mcp.Description("What the pair wants to do")),
		mcp.WithString("category", mcp.Description("Category, default experience")),
		mcp.WithString("priority", mcp.Description("high|mid|low, default mid")),
		mcp.WithString("season", mcp.Description("this_month, next_month, someday or free text")),
		mcp.WithString("budget_range", mcp.Description("free, under_5k, under_10k, under_30k, under_50k, over_50k")),
		mcp.WithString("memo", mcp.Description("Markdown notes")),
	)

	wishCompleteToolDef = mcp.NewTool("wish_complete",
		mcp.WithDescription("Mark a wish done, or reopen it with completed=false."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Wish id")),
		mcp.WithBoolean("completed", mcp.Description("Default true")),
	)

	pairGetToolDef = mcp.NewTool("pair_get",
		mcp.WithDescription("Get a pair board: pair, wishes, completion stats and next suggestions. Address by pair_id or user_id."),
		mcp.WithString("pair_id", mcp.Description("Pair id")),
		mcp.WithString("user_id", mcp.Description("Member id; resolves the user's pair")),
	)

	nudgeTriggerToolDef = mcp.NewTool("nudge_trigger",
		mcp.WithDescription("Run a nudge pass over active pairs and report per-pair outcomes."),
		mcp.WithString("pair_id", mcp.Description("Restrict to one pair")),
		mcp.WithBoolean("force", mcp.Description("Bypass cadence, default true")),
		mcp.WithNumber("min_age_days", mcp.Description("Minimum wish age in days")),
	)

	nudgeConfigToolDef = mcp.NewTool("nudge_config",
		mcp.WithDescription("Show nudge levels and the effective nudge settings."),
	)
)

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"wish_list": {
		def:     wishListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWishList },
	},
	"wish_create": {
		def:     wishCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWishCreate },
	},
	"wish_complete": {
		def:     wishCompleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWishComplete },
	},
	"pair_get": {
		def:     pairGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePairGet },
	},
	"nudge_trigger": {
		def:     nudgeTriggerToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNudgeTrigger },
	},
	"nudge_config": {
		def:     nudgeConfigToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNudgeConfig },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with wishpair tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, engine *nudge.Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"wishpair",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, engine)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, engine *nudge.Engine, version string) error {
	s := NewServer(db, cfg, engine, version)
	return server.ServeStdio(s)
}
