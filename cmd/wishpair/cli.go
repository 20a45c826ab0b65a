package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/wishpair/internal/cadence"
	"github.com/hpungsan/wishpair/internal/config"
	"github.com/hpungsan/wishpair/internal/errors"
	"github.com/hpungsan/wishpair/internal/nudge"
	"github.com/hpungsan/wishpair/internal/ops"
	"github.com/hpungsan/wishpair/internal/web"
	"github.com/hpungsan/wishpair/internal/wish"
)

// appDeps carries what commands need. Everything is nil for --help/--version.
type appDeps struct {
	db      *sql.DB
	cfg     *config.Config
	engine  *nudge.Engine
	log     *logrus.Logger
	baseDir string
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *appDeps) *cli.App {
	app := &cli.App{
		Name:    "wishpair",
		Usage:   "Shared wish lists for two, with nudges",
		Version: Version,
		Writer:  os.Stdout,
		Commands: []*cli.Command{
			userCmd(d),
			pairCmd(d),
			wishCmd(d),
			nudgeCmd(d),
			serveCmd(d),
			workspaceCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func profileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email address"},
		&cli.StringFlag{Name: "device-id", Usage: "Device identifier"},
		&cli.StringFlag{Name: "push-token", Usage: "Expo push token"},
		&cli.IntFlag{Name: "nudge-level", Aliases: []string{"l"}, Usage: "Nudge level 0-3 (weekly, every 3 days, daily, twice daily)"},
	}
}

func userCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Create and inspect users",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Register a user by email and/or device id",
				Flags: profileFlags(),
				Action: func(c *cli.Context) error {
					out, err := ops.CreateUser(c.Context, d.db, ops.CreateUserInput{
						Email:      optString(c, "email"),
						DeviceID:   optString(c, "device-id"),
						PushToken:  optString(c, "push-token"),
						NudgeLevel: optInt(c, "nudge-level"),
					})
					return respond(c, out, err)
				},
			},
			{
				Name:      "get",
				Usage:     "Show a user",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					out, err := ops.GetUser(c.Context, d.db, c.Args().First())
					return respond(c, out, err)
				},
			},
			{
				Name:      "update",
				Usage:     "Change a user's profile (blank clears a field)",
				ArgsUsage: "[flags] <id>",
				Flags:     append(profileFlags(), idFlag()),
				Action: func(c *cli.Context) error {
					id, err := idArg(c)
					if err != nil {
						return outputError(err)
					}
					out, err := ops.UpdateUser(c.Context, d.db, ops.UpdateUserInput{
						ID:         id,
						Email:      optString(c, "email"),
						DeviceID:   optString(c, "device-id"),
						PushToken:  optString(c, "push-token"),
						NudgeLevel: optInt(c, "nudge-level"),
					})
					return respond(c, out, err)
				},
			},
		},
	}
}

func pairCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "pair",
		Usage: "Invite a partner and inspect pairs",
		Subcommands: []*cli.Command{
			{
				Name:  "invite",
				Usage: "Open an invite code",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Usage: "Inviting user id"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.Invite(c.Context, d.db, ops.InviteInput{UserID: c.String("user")})
					return respond(c, out, err)
				},
			},
			{
				Name:  "join",
				Usage: "Join a pair with an invite code",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Usage: "Joining user id"},
					&cli.StringFlag{Name: "code", Aliases: []string{"c"}, Required: true, Usage: "Invite code"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.Join(c.Context, d.db, ops.JoinInput{
						UserID:     c.String("user"),
						InviteCode: c.String("code"),
					})
					return respond(c, out, err)
				},
			},
			{
				Name:      "get",
				Usage:     "Show a pair by id, or the active pair of --user",
				ArgsUsage: "[id]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Look up the pair of this user"},
				},
				Action: func(c *cli.Context) error {
					if user := c.String("user"); user != "" {
						out, err := ops.GetUserPair(c.Context, d.db, user)
						return respond(c, out, err)
					}
					out, err := ops.GetPair(c.Context, d.db, c.Args().First())
					return respond(c, out, err)
				},
			},
		},
	}
}

func wishFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title"},
		&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category"},
		&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "high|mid|low"},
		&cli.StringFlag{Name: "status", Usage: "todo|done"},
		&cli.StringFlag{Name: "season", Usage: "this_month|next_month|someday or free text"},
		&cli.StringFlag{Name: "budget", Usage: "free|under_5k|under_10k|under_30k|under_50k|over_50k"},
		&cli.StringFlag{Name: "memo", Aliases: []string{"m"}, Usage: "Memo (markdown)"},
	}
}

func wishCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "wish",
		Usage: "Manage a pair's wishes",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a wish to a pair",
				Flags: append(wishFlags(),
					&cli.StringFlag{Name: "pair", Required: true, Usage: "Pair id"},
					&cli.StringFlag{Name: "by", Required: true, Usage: "Author user id"},
				),
				Action: func(c *cli.Context) error {
					out, err := ops.CreateWish(c.Context, d.db, ops.CreateWishInput{
						PairID:      c.String("pair"),
						CreatedBy:   c.String("by"),
						Title:       c.String("title"),
						Category:    c.String("category"),
						Priority:    c.String("priority"),
						Status:      c.String("status"),
						Season:      optString(c, "season"),
						BudgetRange: c.String("budget"),
						Memo:        optString(c, "memo"),
					})
					return respond(c, out, err)
				},
			},
			{
				Name:  "list",
				Usage: "List a pair's wishes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pair", Required: true, Usage: "Pair id"},
					&cli.StringFlag{Name: "status", Usage: "Filter by status"},
					&cli.StringFlag{Name: "category", Usage: "Filter by category"},
					&cli.StringFlag{Name: "priority", Usage: "Filter by priority"},
					&cli.StringFlag{Name: "q", Usage: "Search title and memo"},
					&cli.StringFlag{Name: "sort", Usage: "createdAt|updatedAt|priority|season|budgetMin|budgetMax|status"},
					&cli.StringFlag{Name: "order", Usage: "asc|desc"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
					&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Items to skip"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.ListWishes(c.Context, d.db, ops.ListWishesInput{
						PairID:   c.String("pair"),
						Status:   c.String("status"),
						Category: c.String("category"),
						Priority: c.String("priority"),
						Q:        c.String("q"),
						SortBy:   c.String("sort"),
						Order:    c.String("order"),
						Limit:    c.Int("limit"),
						Offset:   c.Int("offset"),
					})
					return respond(c, out, err)
				},
			},
			{
				Name:      "update",
				Usage:     "Edit a wish (blank clears optional fields)",
				ArgsUsage: "[flags] <id>",
				Flags:     append(wishFlags(), idFlag()),
				Action: func(c *cli.Context) error {
					id, err := idArg(c)
					if err != nil {
						return outputError(err)
					}
					out, err := ops.UpdateWish(c.Context, d.db, ops.UpdateWishInput{
						ID:          id,
						Title:       optString(c, "title"),
						Category:    optString(c, "category"),
						Priority:    optString(c, "priority"),
						Status:      optString(c, "status"),
						Season:      optString(c, "season"),
						BudgetRange: optString(c, "budget"),
						Memo:        optString(c, "memo"),
					})
					return respond(c, out, err)
				},
			},
			{
				Name:      "complete",
				Usage:     "Mark a wish done",
				ArgsUsage: "[flags] <id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "reopen", Usage: "Move the wish back to todo"},
					idFlag(),
				},
				Action: func(c *cli.Context) error {
					id, err := idArg(c)
					if err != nil {
						return outputError(err)
					}
					completed := !c.Bool("reopen")
					out, err := ops.CompleteWish(c.Context, d.db, ops.CompleteWishInput{
						ID:        id,
						Completed: &completed,
					})
					return respond(c, out, err)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a wish",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					out, err := ops.DeleteWish(c.Context, d.db, c.Args().First())
					return respond(c, out, err)
				},
			},
			{
				Name:  "board",
				Usage: "Show a pair's stats, next candidates and filtered wishes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pair", Required: true, Usage: "Pair id"},
					&cli.StringFlag{Name: "category", Usage: "Filter by category"},
					&cli.StringFlag{Name: "priority", Usage: "Filter by priority"},
					&cli.StringFlag{Name: "status", Usage: "Filter by status"},
					&cli.StringFlag{Name: "sort", Value: string(wish.SortPriority), Usage: "priority|season|budget|created"},
				},
				Action: func(c *cli.Context) error {
					filter, err := boardFilter(c)
					if err != nil {
						return outputError(err)
					}
					out, err := ops.PairBoard(c.Context, d.db, c.String("pair"), filter)
					return respond(c, out, err)
				},
			},
		},
	}
}

// NudgeConfigOutput is printed by `nudge config`.
type NudgeConfigOutput struct {
	NudgeLevels      map[int]string `json:"nudgeLevels"`
	MinAgeDays       float64        `json:"minAgeDays"`
	PushEnabled      bool           `json:"pushEnabled"`
	SchedulerEnabled bool           `json:"schedulerEnabled"`
	SchedulerSpec    string         `json:"schedulerSpec"`
}

func nudgeCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "nudge",
		Usage: "Run and inspect partner nudges",
		Subcommands: []*cli.Command{
			{
				Name:  "trigger",
				Usage: "Run a nudge pass now",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pair", Usage: "Only this pair (default: every active pair)"},
					&cli.BoolFlag{Name: "force", Value: true, Usage: "Ignore the pair's cadence"},
					&cli.Float64Flag{Name: "min-age-days", Usage: "Minimum wish age in days (default from config)"},
				},
				Action: func(c *cli.Context) error {
					minAge := d.cfg.EffectiveMinAgeDays()
					if c.IsSet("min-age-days") {
						minAge = c.Float64("min-age-days")
					}
					out, err := d.engine.Trigger(c.Context, nudge.TriggerInput{
						PairID:     c.String("pair"),
						Force:      c.Bool("force"),
						MinAgeDays: minAge,
					})
					return respond(c, out, err)
				},
			},
			{
				Name:  "config",
				Usage: "Show nudge levels and scheduler settings",
				Action: func(c *cli.Context) error {
					return outputJSON(c, NudgeConfigOutput{
						NudgeLevels:      cadence.Labels(),
						MinAgeDays:       d.cfg.EffectiveMinAgeDays(),
						PushEnabled:      d.cfg.PushEnabled,
						SchedulerEnabled: d.cfg.SchedulerEnabled,
						SchedulerSpec:    d.cfg.SchedulerSpec,
					})
				},
			},
		},
	}
}

func serveCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API (and the hourly nudge scheduler when enabled)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (default from config)"},
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config)"},
			&cli.BoolFlag{Name: "scheduler", Usage: "Run the nudge scheduler (default from config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *d.cfg
			if c.IsSet("port") {
				cfg.Port = c.Int("port")
			}
			if c.IsSet("bind") {
				cfg.Bind = c.String("bind")
			}
			if c.IsSet("scheduler") {
				cfg.SchedulerEnabled = c.Bool("scheduler")
			}

			var scheduler *nudge.Scheduler
			if cfg.SchedulerEnabled {
				s, err := nudge.NewScheduler(d.engine, cfg.SchedulerSpec, cfg.EffectiveMinAgeDays(), d.log)
				if err != nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("scheduler: %v", err)))
				}
				scheduler = s
			}

			srv := web.NewServer(d.db, &cfg, d.engine, scheduler, d.log, Version)
			return web.Run(srv, scheduler, d.log)
		},
	}
}

// Helper functions

// boardFilter reads the board filter flags strictly.
func boardFilter(c *cli.Context) (wish.Filter, error) {
	var f wish.Filter
	if v := c.String("category"); v != "" {
		cat, err := wish.ParseCategory(v)
		if err != nil {
			return f, err
		}
		f.Category = cat
	}
	if v := c.String("priority"); v != "" {
		p, err := wish.ParsePriority(v)
		if err != nil {
			return f, err
		}
		f.Priority = p
	}
	if v := c.String("status"); v != "" {
		s, err := wish.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	switch sort := wish.SortOption(c.String("sort")); sort {
	case wish.SortPriority, wish.SortSeason, wish.SortBudget, wish.SortCreated:
		f.Sort = sort
	default:
		return f, errors.NewInvalidRequest("sort must be priority, season, budget, or created")
	}
	return f, nil
}

func idFlag() cli.Flag {
	return &cli.StringFlag{Name: "id", Usage: "Target id (or pass it as the last argument)"}
}

// idArg returns the target id from --id or the single positional argument.
// Flags after the id are not parsed, so trailing arguments are an error.
func idArg(c *cli.Context) (string, error) {
	args := c.Args().Slice()
	if id := strings.TrimSpace(c.String("id")); id != "" {
		if len(args) > 0 {
			return "", errors.NewInvalidRequest(fmt.Sprintf("unexpected arguments: %s", strings.Join(args, " ")))
		}
		return id, nil
	}
	if len(args) > 1 {
		return "", errors.NewInvalidRequest(fmt.Sprintf("unexpected arguments after id: %s (flags go before the id)", strings.Join(args[1:], " ")))
	}
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	return args[0], nil
}

// optString returns a pointer to the flag value when the flag was given.
func optString(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

func optInt(c *cli.Context, name string) *int {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Int(name)
	return &v
}

// respond prints out, or err in CLI form.
func respond(c *cli.Context, out any, err error) error {
	if err != nil {
		return outputError(err)
	}
	return outputJSON(c, out)
}

// outputJSON marshals result to the app writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	var w io.Writer = os.Stdout
	if c != nil && c.App != nil && c.App.Writer != nil {
		w = c.App.Writer
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if wErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", wErr.Code, wErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

