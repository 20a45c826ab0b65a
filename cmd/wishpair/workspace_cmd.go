package main

import (
	"context"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/wishpair/internal/config"
	"github.com/hpungsan/wishpair/internal/errors"
	"github.com/hpungsan/wishpair/internal/reminder"
	"github.com/hpungsan/wishpair/internal/remote"
	"github.com/hpungsan/wishpair/internal/wish"
	"github.com/hpungsan/wishpair/internal/workspace"
)

// workspaceView is what `workspace show` prints.
type workspaceView struct {
	WorkspaceID string      `json:"workspaceId"`
	Shared      bool        `json:"shared"`
	Wishes      []wish.Wish `json:"wishes"`
	Stats       wish.Stats  `json:"stats"`
	Next        []wish.Wish `json:"next"`
}

// logScheduler stands in for the device notification API: it logs the
// schedule it is given.
type logScheduler struct {
	log *logrus.Logger
}

func (s logScheduler) CancelAll(context.Context) error {
	s.log.Debug("reminders cleared")
	return nil
}

func (s logScheduler) Schedule(_ context.Context, n reminder.Notification) error {
	s.log.WithFields(logrus.Fields{
		"trigger": n.Trigger.Kind,
		"weekday": n.Trigger.Weekday,
		"hour":    n.Trigger.Hour,
		"wish_id": n.Data["wishId"],
	}).Debug(n.Body)
	return nil
}

// device bundles an opened workspace and what must be closed with it.
type device struct {
	ws     *workspace.Workspace
	picker *rand.Rand
	close  func()
}

// openDevice opens the local store under baseDir and, when configured,
// the remote store. A remote that cannot be reached leaves sync off.
func openDevice(ctx context.Context, d *appDeps) (*device, error) {
	store, err := workspace.OpenStore(filepath.Join(d.baseDir, "workspace"), d.log)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	closers := []func(){func() { store.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	picker := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	opts := workspace.Options{
		Scheduler: logScheduler{log: d.log},
		Picker:    picker,
		Log:       d.log,
	}
	if d.cfg.RemoteDSN != "" {
		driver := d.cfg.RemoteDriver
		if driver == "" {
			driver = config.DefaultRemoteDriver
		}
		rdb, err := remote.Open(ctx, driver, d.cfg.RemoteDSN)
		if err != nil {
			d.log.WithError(err).Warn("remote store unavailable, shared workspaces stay local")
		} else {
			closers = append(closers, func() { rdb.Close() })
			opts.Remote = remote.New(rdb, driver, d.log)
		}
	}

	ws, err := workspace.New(store, opts)
	if err != nil {
		closeAll()
		return nil, errors.NewInternal(err)
	}
	return &device{ws: ws, picker: picker, close: closeAll}, nil
}

// withDevice runs fn against the local workspace and prints its result.
func withDevice(d *appDeps, fn func(c *cli.Context, dev *device) (any, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		dev, err := openDevice(c.Context, d)
		if err != nil {
			return outputError(err)
		}
		defer dev.close()
		out, err := fn(c, dev)
		return respond(c, out, err)
	}
}

func showWorkspace(ctx context.Context, ws *workspace.Workspace) (*workspaceView, error) {
	wishes, err := ws.Read(ctx)
	if err != nil {
		return nil, err
	}
	id := ws.Active()
	return &workspaceView{
		WorkspaceID: id,
		Shared:      workspace.IsShared(id),
		Wishes:      wishes,
		Stats:       wish.ComputeStats(wishes),
		Next:        wish.NextCandidates(wishes, 3),
	}, nil
}

func workspaceCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "workspace",
		Usage: "Work with this device's wish list and shared workspaces",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the active workspace (reconciles shared workspaces)",
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					return showWorkspace(c.Context, dev.ws)
				}),
			},
			{
				Name:  "add",
				Usage: "Add a wish to the active workspace",
				Flags: wishFlags(),
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					return dev.ws.Add(c.Context, workspace.AddInput{
						Title:       c.String("title"),
						Category:    c.String("category"),
						Priority:    c.String("priority"),
						Season:      optString(c, "season"),
						BudgetRange: c.String("budget"),
						Memo:        optString(c, "memo"),
					})
				}),
			},
			{
				Name:      "update",
				Usage:     "Edit a wish in the active workspace",
				ArgsUsage: "[flags] <id>",
				Flags:     append(wishFlags(), idFlag()),
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					id, err := idArg(c)
					if err != nil {
						return nil, err
					}
					return dev.ws.Update(c.Context, id, workspace.Patch{
						Title:       optString(c, "title"),
						Category:    optString(c, "category"),
						Priority:    optString(c, "priority"),
						Status:      optString(c, "status"),
						Season:      optString(c, "season"),
						BudgetRange: optString(c, "budget"),
						Memo:        optString(c, "memo"),
					})
				}),
			},
			{
				Name:      "toggle",
				Usage:     "Flip a wish between todo and done",
				ArgsUsage: "<id>",
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					return dev.ws.Toggle(c.Context, c.Args().First())
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a wish",
				ArgsUsage: "<id>",
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					id := c.Args().First()
					if err := dev.ws.Delete(c.Context, id); err != nil {
						return nil, err
					}
					return map[string]any{"ok": true, "id": id}, nil
				}),
			},
			{
				Name:      "switch",
				Usage:     "Make another workspace active",
				ArgsUsage: "<workspace-id>",
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					if _, err := dev.ws.Switch(c.Context, c.Args().First(), nil); err != nil {
						return nil, err
					}
					return showWorkspace(c.Context, dev.ws)
				}),
			},
			{
				Name:  "create",
				Usage: "Start a new shared workspace and print its share link",
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					id, err := dev.ws.CreateShared(c.Context)
					if err != nil {
						return nil, err
					}
					link, err := dev.ws.ShareLink(d.cfg.ShareLinkScheme)
					if err != nil {
						return nil, err
					}
					return map[string]string{"workspaceId": id, "link": link}, nil
				}),
			},
			{
				Name:  "reset",
				Usage: "Return to the personal workspace",
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					if _, err := dev.ws.Reset(c.Context); err != nil {
						return nil, err
					}
					return showWorkspace(c.Context, dev.ws)
				}),
			},
			{
				Name:  "share",
				Usage: "Print a share link for the active workspace",
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					link, err := dev.ws.ShareLink(d.cfg.ShareLinkScheme)
					if err != nil {
						return nil, err
					}
					return map[string]string{"workspaceId": dev.ws.Active(), "link": link}, nil
				}),
			},
			{
				Name:      "open",
				Usage:     "Join the workspace in a share link",
				ArgsUsage: "<link>",
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					raw := c.Args().First()
					if _, ok := workspace.DecodeLink(raw); !ok {
						return nil, errors.NewInvalidRequest("link has no workspaceId")
					}
					if _, err := workspace.NewLinkHandler(dev.ws, d.log).Handle(c.Context, raw); err != nil {
						return nil, err
					}
					return showWorkspace(c.Context, dev.ws)
				}),
			},
			{
				Name:  "settings",
				Usage: "Show or change reminder settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "enabled", Usage: "Turn reminders on or off"},
					&cli.IntFlag{Name: "level", Aliases: []string{"l"}, Usage: "Annoyance level 0-3"},
					&cli.StringFlag{Name: "window", Usage: "morning|noon|night"},
					&cli.BoolFlag{Name: "high-only", Usage: "Only remind about high priority wishes"},
				},
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					settings, err := dev.ws.Settings()
					if err != nil {
						return nil, err
					}
					changed := false
					if c.IsSet("enabled") {
						settings.Enabled, changed = c.Bool("enabled"), true
					}
					if c.IsSet("level") {
						settings.AnnoyanceLevel, changed = c.Int("level"), true
					}
					if c.IsSet("window") {
						settings.TimeWindow, changed = wish.TimeWindow(c.String("window")), true
					}
					if c.IsSet("high-only") {
						settings.HighPriorityOnly, changed = c.Bool("high-only"), true
					}
					if !changed {
						return settings, nil
					}
					return dev.ws.SaveSettings(c.Context, settings)
				}),
			},
			{
				Name:  "remind",
				Usage: "Print the reminder schedule for the active workspace",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "test", Usage: "Print a one-off test reminder instead"},
				},
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					settings, err := dev.ws.Settings()
					if err != nil {
						return nil, err
					}
					wishes, err := dev.ws.Read(c.Context)
					if err != nil {
						return nil, err
					}
					if c.Bool("test") {
						title := "your next wish"
						if eligible := reminder.Eligible(wishes, settings.HighPriorityOnly); len(eligible) > 0 {
							title = eligible[0].Title
						}
						return reminder.TestNotification(settings.AnnoyanceLevel, title, dev.picker), nil
					}
					plan := reminder.Plan(wishes, settings, dev.picker)
					if plan == nil {
						plan = []reminder.Notification{}
					}
					return plan, nil
				}),
			},
			{
				Name:  "watch",
				Usage: "Keep reconciling a shared workspace until interrupted",
				Action: withDevice(d, func(c *cli.Context, dev *device) (any, error) {
					interval := time.Duration(d.cfg.PollIntervalSeconds) * time.Second
					poller, err := workspace.NewPoller(dev.ws, interval, d.log)
					if err != nil {
						return nil, err
					}
					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()

					poller.Start()
					d.log.WithField("workspace_id", dev.ws.Active()).Info("watching workspace")
					<-ctx.Done()
					<-poller.Stop().Done()
					return showWorkspace(context.Background(), dev.ws)
				}),
			},
		},
	}
}
