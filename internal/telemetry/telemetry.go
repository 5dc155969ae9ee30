// Package telemetry counts workflow outcomes and times remote calls for one CLI
// invocation. Metrics are written to a node-exporter textfile on exit.
package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
)

const namespace = "nftmp"

type Metrics struct {
	registry *prometheus.Registry
	outcomes *prometheus.CounterVec
	calls    *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_outcomes_total",
				Help:      "Submitted marketplace workflows by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		calls: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_call_duration_seconds",
				Help:      "Duration of contract reads and transactions.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"call"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_call_errors_total",
				Help:      "Failed contract reads and transactions.",
			},
			[]string{"call"},
		),
	}
	m.registry.MustRegister(m.outcomes, m.calls, m.errors)
	return m
}

// Record implements marketplace.Recorder.
func (m *Metrics) Record(_ context.Context, outcome marketplace.Outcome) {
	m.outcomes.WithLabelValues(outcome.Receipt.Operation, outcome.Receipt.Status).Inc()
}

// ObserveCall matches chain.CallObserver.
func (m *Metrics) ObserveCall(call string, elapsed time.Duration, err error) {
	m.calls.WithLabelValues(call).Observe(elapsed.Seconds())
	if err != nil {
		m.errors.WithLabelValues(call).Inc()
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteFile writes the registry in text exposition format. An empty path is a no-op.
func (m *Metrics) WriteFile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
