package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dayOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nsecli",
		Subsystem: "acquisition",
		Name:      "day_outcomes_total",
		Help:      "Per-day acquisition outcomes by data kind and status.",
	}, []string{"kind", "status"})

	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nsecli",
		Subsystem: "export",
		Name:      "jobs_total",
		Help:      "Completed export jobs by result.",
	}, []string{"result"})

	dashboardBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nsecli",
		Subsystem: "dashboard",
		Name:      "batches_total",
		Help:      "Dashboard symbol batches by outcome.",
	}, []string{"outcome"})

	dashboardDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nsecli",
		Subsystem: "dashboard",
		Name:      "build_duration_seconds",
		Help:      "Wall time of full dashboard builds.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
