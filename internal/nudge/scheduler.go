package nudge

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs cadence-respecting nudge passes on a cron schedule.
// Overlapping runs are skipped. A manual forced trigger is not excluded
// and may race a scheduled run on the same pair.
type Scheduler struct {
	cron       *cron.Cron
	engine     *Engine
	minAgeDays float64
	log        *logrus.Logger
}

// NewScheduler registers the nudge job with spec (standard 5-field cron).
func NewScheduler(engine *Engine, spec string, minAgeDays float64, log *logrus.Logger) (*Scheduler, error) {
	if err := ValidateMinAgeDays(minAgeDays); err != nil {
		return nil, err
	}
	s := &Scheduler{
		engine:     engine,
		minAgeDays: minAgeDays,
		log:        log,
	}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(log)),
		cron.SkipIfStillRunning(cron.PrintfLogger(log)),
	))
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("entries", len(s.cron.Entries())).Info("nudge scheduler started")
}

// Stop halts the schedule. The returned context is done once a running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce executes one non-forced pass and logs its summary.
func (s *Scheduler) RunOnce(ctx context.Context) *Summary {
	summary, err := s.engine.Trigger(ctx, TriggerInput{Force: false, MinAgeDays: s.minAgeDays})
	if err != nil {
		s.log.WithError(err).Error("scheduled nudge run failed")
		return nil
	}
	nudged := 0
	for _, r := range summary.Results {
		if r.Status == StatusNudged {
			nudged++
		}
	}
	s.log.WithFields(logrus.Fields{
		"processed_pairs": summary.ProcessedPairs,
		"nudged":          nudged,
	}).Info("scheduled nudge run completed")
	return summary
}
