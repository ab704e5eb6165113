package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "voiceline_sync_runs_total",
	Help: "Sync/cleanup operations by outcome.",
}, []string{"operation", "outcome"})

func recordSync(operation, outcome string) {
	syncRuns.WithLabelValues(operation, outcome).Inc()
}
