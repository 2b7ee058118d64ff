package sidebar

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidebar",
			Name:      "cache_lookups_total",
			Help:      "Sidebar loads by cache outcome (fresh, stale, miss).",
		},
		[]string{"result"},
	)

	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidebar",
			Name:      "fetches_total",
			Help:      "Backend fetch rounds by outcome.",
		},
		[]string{"outcome"},
	)

	revalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidebar",
			Name:      "revalidations_total",
			Help:      "Background revalidations by outcome (replaced, unchanged, discarded).",
		},
		[]string{"outcome"},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidebar",
			Name:      "invalidations_total",
			Help:      "Applied mutations by kind.",
		},
		[]string{"kind"},
	)

	storageDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidebar",
			Name:      "storage_degraded_total",
			Help:      "Cache operations that failed and were skipped.",
		},
		[]string{"op"},
	)
)
