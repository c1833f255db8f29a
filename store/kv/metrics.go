package kv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studycore",
			Subsystem: "kv",
			Name:      "operations_total",
			Help:      "Total number of key-value store operations",
		},
		[]string{"op", "result"},
	)

	opDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studycore",
			Subsystem: "kv",
			Name:      "operation_duration_seconds",
			Help:      "Key-value store operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"op"},
	)
)

func observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	opsTotal.WithLabelValues(op, result).Inc()
	opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
