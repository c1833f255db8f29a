package http

import "github.com/prometheus/client_golang/prometheus"

// 各组件通过 promauto 注册到默认 registry
var prometheusGatherer prometheus.Gatherer = prometheus.DefaultGatherer
