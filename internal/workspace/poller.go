package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is how often a shared workspace is reconciled.
const DefaultPollInterval = 10 * time.Second

// Poller re-reads the active workspace on a fixed interval while it is
// shared, so edits from the other device show up.
type Poller struct {
	cron *cron.Cron
	ws   *Workspace
	log  *logrus.Logger
}

// NewPoller schedules reconciliation every interval (DefaultPollInterval
// when zero or negative).
func NewPoller(ws *Workspace, interval time.Duration, log *logrus.Logger) (*Poller, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{ws: ws, log: log}
	p.cron = cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
	)
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := p.cron.AddFunc(spec, func() { p.Tick(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule poller: %w", err)
	}
	return p, nil
}

// Start begins polling in the background.
func (p *Poller) Start() {
	p.cron.Start()
}

// Stop halts polling. The returned context is done once a running tick
// has finished.
func (p *Poller) Stop() context.Context {
	return p.cron.Stop()
}

// Tick reconciles once if the active workspace is shared and reports
// whether it did.
func (p *Poller) Tick(ctx context.Context) bool {
	ws := p.ws.Active()
	if !IsShared(ws) {
		return false
	}
	wishes, err := p.ws.Read(ctx)
	if err != nil {
		p.log.WithError(err).WithField("workspace_id", ws).Warn("poll read failed")
		return true
	}
	p.log.WithFields(logrus.Fields{"workspace_id": ws, "count": len(wishes)}).Debug("workspace polled")
	return true
}
