package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studycore",
		Subsystem: "sync",
		Name:      "attempts_total",
		Help:      "Sync attempts by result.",
	}, []string{"result"})

	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "studycore",
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Duration of sync attempts that reached the network.",
		Buckets:   prometheus.DefBuckets,
	})

	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "studycore",
		Subsystem: "sync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful sync.",
	})
)
