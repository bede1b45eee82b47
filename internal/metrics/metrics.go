// Package metrics exposes scan counters and latencies for Prometheus scraping.
// Metrics live on their own registry so tests and embedders never collide
// with the global default registry.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"neti/internal/domain"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// LabelUnknown replaces kind and scan type values that are not recognized
const LabelUnknown = "unknown"

// Metrics holds the scan collectors
type Metrics struct {
	registry *prometheus.Registry

	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	analyses     *prometheus.CounterVec
}

// New creates and registers all collectors, including Go runtime and process collectors
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neti_scans_total",
				Help: "Total number of scans by kind, scan type and outcome",
			},
			[]string{"kind", "scan_type", "outcome"},
		),
		scanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neti_scan_duration_seconds",
				Help:    "Scan wall-clock duration",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"kind", "scan_type"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "neti_scans_in_flight",
			Help: "Scans currently running",
		}),
		analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neti_analyses_total",
				Help: "Total number of report generation requests by outcome",
			},
			[]string{"outcome"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.scansTotal,
		m.scanDuration,
		m.inFlight,
		m.analyses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// ScanStarted marks a scan in flight and returns the function that records
// its completion. Kinds and scan types outside the known sets are recorded
// as LabelUnknown, since both come from request bodies.
func (m *Metrics) ScanStarted(kind, scanType string) func(failed bool) {
	if m == nil {
		return func(bool) {}
	}
	if !domain.TargetKind(kind).Valid() {
		kind = LabelUnknown
	}
	if !domain.ScanType(scanType).Valid() {
		scanType = LabelUnknown
	}
	start := time.Now()
	m.inFlight.Inc()
	return func(failed bool) {
		m.inFlight.Dec()
		outcome := OutcomeSuccess
		if failed {
			outcome = OutcomeFailure
		}
		m.scansTotal.WithLabelValues(kind, scanType, outcome).Inc()
		m.scanDuration.WithLabelValues(kind, scanType).Observe(time.Since(start).Seconds())
	}
}

// AnalysisDone counts one report generation
func (m *Metrics) AnalysisDone(failed bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if failed {
		outcome = OutcomeFailure
	}
	m.analyses.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
