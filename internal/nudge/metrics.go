package nudge

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishpair_nudge_runs_total",
		Help: "Nudge runs started, by whether cadence was bypassed",
	}, []string{"force"})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishpair_nudge_outcomes_total",
		Help: "Per-pair nudge outcomes",
	}, []string{"status", "reason"})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishpair_nudge_deliveries_total",
		Help: "Per-recipient nudge deliveries",
	}, []string{"channel", "sent"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wishpair_nudge_run_duration_seconds",
		Help:    "Wall time of a nudge run",
		Buckets: prometheus.DefBuckets,
	})
)

func observeResult(r PairResult) {
	outcomesTotal.WithLabelValues(r.Status, r.Reason).Inc()
	for _, d := range r.Deliveries {
		deliveriesTotal.WithLabelValues(d.Channel, strconv.FormatBool(d.Sent)).Inc()
	}
}
