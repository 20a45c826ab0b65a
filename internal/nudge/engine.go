// Package nudge runs the server-side reminder loop: pick a stale high
// priority wish per active pair and push it to both members when the
// pair's cadence is due.
package nudge

import (
	"context"
	"database/sql"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/wishpair/internal/cadence"
	"github.com/hpungsan/wishpair/internal/config"
	"github.com/hpungsan/wishpair/internal/db"
	"github.com/hpungsan/wishpair/internal/errors"
)

// Result statuses.
const (
	StatusNudged  = "nudged"
	StatusSkipped = "skipped"
)

// Skip reasons.
const (
	ReasonCadenceNotDue = "cadence_not_due"
	ReasonNoEligible    = "no_eligible_wish"
	ReasonInternal      = "internal_error"
)

// TriggerInput selects which pairs a run covers.
type TriggerInput struct {
	PairID     string  // empty = every active pair
	Force      bool    // bypass cadence
	MinAgeDays float64 // minimum wish age; must be >= 0
}

// WishRef is the short form of the wish a pair was nudged about.
type WishRef struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
}

// PairResult is the outcome for a single pair.
type PairResult struct {
	PairID     string     `json:"pairId"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	NudgeLevel int        `json:"nudgeLevel"`
	Wish       *WishRef   `json:"wish,omitempty"`
	Deliveries []Delivery `json:"deliveries,omitempty"`
}

// Summary is the result of one run.
type Summary struct {
	Force          bool         `json:"force"`
	MinAgeDays     float64      `json:"minAgeDays"`
	ProcessedPairs int          `json:"processedPairs"`
	Results        []PairResult `json:"results"`
}

// Engine orchestrates nudge runs. Pairs are processed sequentially.
type Engine struct {
	db         *sql.DB
	selector   *Selector
	dispatcher *Dispatcher
	log        *logrus.Logger
	now        func() time.Time
}

// NewEngine wires an Engine from its parts. A nil clock uses time.Now.
func NewEngine(database *sql.DB, selector *Selector, dispatcher *Dispatcher, log *logrus.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		db:         database,
		selector:   selector,
		dispatcher: dispatcher,
		log:        log,
		now:        now,
	}
}

// NewFromConfig builds an Engine with the Expo gateway and a shared random source.
func NewFromConfig(database *sql.DB, cfg *config.Config, log *logrus.Logger, pick cadence.Picker) *Engine {
	timeout := time.Duration(cfg.PushTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultPushTimeout * time.Second
	}
	endpoint := cfg.PushEndpoint
	if endpoint == "" {
		endpoint = config.DefaultPushEndpoint
	}
	gateway := NewExpoGateway(endpoint, timeout)
	return NewEngine(
		database,
		NewSelector(database, pick, nil),
		NewDispatcher(gateway, cfg.PushEnabled, pick, log),
		log,
		nil,
	)
}

// ValidateMinAgeDays rejects negative and non-finite ages.
func ValidateMinAgeDays(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return errors.NewInvalidRequest("minAgeDays must be a non-negative number")
	}
	return nil
}

// Trigger runs one nudge pass. Only invalid input and a failure to list
// pairs are returned as errors; per-pair problems become skipped results.
func (e *Engine) Trigger(ctx context.Context, in TriggerInput) (*Summary, error) {
	if err := ValidateMinAgeDays(in.MinAgeDays); err != nil {
		return nil, err
	}

	start := time.Now()
	runsTotal.WithLabelValues(strconv.FormatBool(in.Force)).Inc()
	defer func() { runDuration.Observe(time.Since(start).Seconds()) }()

	pairs, err := db.ListNudgePairs(ctx, e.db, in.PairID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Force:          in.Force,
		MinAgeDays:     in.MinAgeDays,
		ProcessedPairs: len(pairs),
		Results:        make([]PairResult, 0, len(pairs)),
	}

	for _, p := range pairs {
		r := e.processPair(ctx, p, in)
		observeResult(r)
		summary.Results = append(summary.Results, r)
	}
	return summary, nil
}

func (e *Engine) processPair(ctx context.Context, p db.NudgePair, in TriggerInput) PairResult {
	levels := make([]int, 0, len(p.Members))
	for _, m := range p.Members {
		levels = append(levels, m.NudgeLevel)
	}
	level := cadence.Effective(levels...)
	result := PairResult{PairID: p.PairID, NudgeLevel: level}
	logger := e.log.WithField("pair_id", p.PairID)

	now := e.now()
	if err := db.EnsureNudgeState(ctx, e.db, p.PairID, now.Unix()); err != nil {
		logger.WithError(err).Error("failed to ensure nudge state")
		return skipped(result, ReasonInternal)
	}

	if !in.Force {
		var last *time.Time
		if p.LastNudgedAt != nil {
			t := time.Unix(*p.LastNudgedAt, 0)
			last = &t
		}
		if !cadence.IsDue(last, level, now) {
			return skipped(result, ReasonCadenceNotDue)
		}
	}

	w, err := e.selector.Pick(ctx, p.PairID, in.MinAgeDays)
	if err != nil {
		logger.WithError(err).Error("failed to select wish")
		return skipped(result, ReasonInternal)
	}
	if w == nil {
		return skipped(result, ReasonNoEligible)
	}

	recipients := make([]Recipient, 0, len(p.Members))
	for _, m := range p.Members {
		recipients = append(recipients, Recipient{UserID: m.UserID, PushToken: m.PushToken, NudgeLevel: m.NudgeLevel})
	}
	deliveries := e.dispatcher.Deliver(ctx, p.PairID, w, recipients)

	if err := db.RecordNudge(ctx, e.db, p.PairID, w.ID, e.now().Unix()); err != nil {
		// Deliveries already went out; report them and keep going.
		logger.WithError(err).WithField("wish_id", w.ID).Error("failed to record nudge")
	}

	logger.WithFields(logrus.Fields{
		"wish_id":    w.ID,
		"level":      level,
		"recipients": len(deliveries),
	}).Info("pair nudged")

	result.Status = StatusNudged
	result.Wish = &WishRef{
		ID:        w.ID,
		Title:     w.Title,
		Priority:  string(w.Priority),
		CreatedAt: w.CreatedAt,
	}
	result.Deliveries = deliveries
	return result
}

func skipped(r PairResult, reason string) PairResult {
	r.Status = StatusSkipped
	r.Reason = reason
	return r
}
