// Package metrics exposes Prometheus collectors for update cycles.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/hostsync/internal/cron"
	"github.com/flemzord/hostsync/internal/update"
)

// Metrics holds the collectors on a private registry, so several instances
// (one per test, or one per reload) never collide.
type Metrics struct {
	registry *prometheus.Registry

	cycles       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     prometheus.Histogram
	lastSuccess  prometheus.Gauge
	bytesWritten prometheus.Gauge
}

// Compile-time interface check.
var _ update.Observer = (*Metrics)(nil)

// New creates and registers the collectors. next, if non-nil, is sampled
// for the hostsync_next_run_timestamp_seconds gauge.
func New(next func() time.Time) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostsync_cycles_total",
				Help: "Update cycles by outcome",
			},
			[]string{"outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostsync_cycle_failures_total",
				Help: "Failed update cycles by stage",
			},
			[]string{"stage"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hostsync_cycle_duration_seconds",
			Help:    "Update cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostsync_last_success_timestamp_seconds",
			Help: "Unix time of the last cycle that did not fail",
		}),
		bytesWritten: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostsync_hosts_file_bytes",
			Help: "Size of the hosts file written by the last update",
		}),
	}

	m.registry.MustRegister(
		m.cycles, m.failures, m.duration, m.lastSuccess, m.bytesWritten,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if next != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "hostsync_next_run_timestamp_seconds",
				Help: "Unix time of the next scheduled cycle, 0 when stopped",
			},
			func() float64 {
				t := next()
				if t.IsZero() {
					return 0
				}
				return float64(t.Unix())
			},
		))
	}
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun implements update.Observer.
func (m *Metrics) ObserveRun(_ context.Context, r update.Report) {
	m.cycles.WithLabelValues(string(r.Outcome)).Inc()
	switch r.Outcome {
	case update.OutcomeFailed:
		m.failures.WithLabelValues(string(r.Stage)).Inc()
	case update.OutcomeUpdated:
		m.bytesWritten.Set(float64(r.BytesWritten))
		m.lastSuccess.Set(float64(r.FinishedAt.Unix()))
	default:
		m.lastSuccess.Set(float64(r.FinishedAt.Unix()))
	}
}

// ObserveCycle records the duration of a scheduler cycle. It has the
// signature of cron.Options.OnCycle.
func (m *Metrics) ObserveCycle(c cron.Cycle) {
	m.duration.Observe(c.Duration.Seconds())
}
