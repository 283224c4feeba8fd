package updater

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("livegraph.updater")

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livegraph_updater_cycles_total",
		Help: "Update cycles by outcome (ok, fetch_error, parse_error, commit_error, abandoned)",
	}, []string{"updater", "outcome"})

	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livegraph_updater_records_total",
		Help: "Feed records by result (bound, skipped, unmatched, filtered)",
	}, []string{"updater", "result"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "livegraph_updater_stage_duration_seconds",
		Help:    "Duration of each cycle stage",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"updater", "stage"})

	patchesHeld = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "livegraph_updater_patches",
		Help: "Patches or annotated edges currently held per updater",
	}, []string{"updater"})
)

// Cycle outcomes.
const (
	outcomeOK          = "ok"
	outcomeFetchError  = "fetch_error"
	outcomeParseError  = "parse_error"
	outcomeCommitError = "commit_error"
	outcomeAbandoned   = "abandoned"
)
