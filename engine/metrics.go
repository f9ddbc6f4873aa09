package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	statusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modcatalog_status_transitions_total",
			Help: "Number of committed status transitions, by entity kind and destination status.",
		},
		[]string{"kind", "status"},
	)
	editsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modcatalog_edits_total",
			Help: "Number of edit operations, by outcome (applied, queued, merged, approved, rejected).",
		},
		[]string{"outcome"},
	)
	dependencyResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modcatalog_dependency_resolutions_total",
			Help: "Number of dependency resolutions, by mode (live, fallback).",
		},
		[]string{"mode"},
	)
	dependencyResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modcatalog_dependency_resolution_duration_seconds",
			Help:    "Time taken to resolve a version's dependencies.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		statusTransitionsTotal,
		editsTotal,
		dependencyResolutionsTotal,
		dependencyResolutionDuration,
	)
}
