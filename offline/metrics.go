package offline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	responsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studycore",
		Subsystem: "offline",
		Name:      "responses_total",
		Help:      "Responses served by the offline cache, by route and source.",
	}, []string{"route", "source"})

	installFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studycore",
		Subsystem: "offline",
		Name:      "install_fetch_total",
		Help:      "Manifest fetches during install, by result.",
	}, []string{"result"})

	revalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studycore",
		Subsystem: "offline",
		Name:      "revalidations_total",
		Help:      "Background revalidations, by result.",
	}, []string{"result"})

	generationsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "studycore",
		Subsystem: "offline",
		Name:      "generations",
		Help:      "Cache generations currently stored.",
	})
)
