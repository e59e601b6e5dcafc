package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	triggerCreated = "created"
	triggerUpdated = "updated"
	triggerManual  = "manual"
)

type Metrics struct {
	// Labels: trigger
	LogsWritten *prometheus.CounterVec
	// Labels: trigger
	LogFailures *prometheus.CounterVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		LogsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cargo_status_logs_written_total",
				Help: "Total number of cargo status log entries persisted",
			},
			[]string{"trigger"},
		),
		LogFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cargo_status_log_failures_total",
				Help: "Total number of cargo status log entries that could not be persisted",
			},
			[]string{"trigger"},
		),
	}
}
