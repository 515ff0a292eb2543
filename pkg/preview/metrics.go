package preview

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// workersTotal counts preview workers by outcome:
	// dispatched, applied, stale, failed.
	workersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spine_export_preview_workers_total",
			Help: "Preview workers by outcome",
		},
		[]string{"outcome"},
	)

	// workersInFlight tracks workers whose completion has not been applied yet.
	workersInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spine_export_preview_workers_in_flight",
			Help: "Preview workers dispatched and not yet applied",
		},
	)
)

const (
	outcomeDispatched = "dispatched"
	outcomeApplied    = "applied"
	outcomeStale      = "stale"
	outcomeFailed     = "failed"
)
