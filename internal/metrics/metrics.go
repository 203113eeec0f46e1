// Package metrics collects per-run counters and writes them in the
// Prometheus text format for a node-exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"

	"github.com/sells-group/survey-cli/internal/model"
)

// Metrics owns a private registry so runs in the same process do not share
// state. A nil *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	records       *prometheus.CounterVec
	redirected    prometheus.Counter
	labelsWritten *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	lastRun       prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_records_total",
			Help: "Records read and written by reconciliation runs",
		}, []string{"direction"}),
		redirected: f.NewCounter(prometheus.CounterOpts{
			Name: "survey_redirected_values_total",
			Help: "Raw values moved to a different coding plan",
		}),
		labelsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_labels_written_total",
			Help: "Labels written by pipeline stages",
		}, []string{"stage"}),
		phaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "survey_phase_duration_seconds",
			Help:    "Duration of pipeline phases",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"phase", "status"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_runs_total",
			Help: "Reconciliation runs by final status",
		}, []string{"status"}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "survey_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObservePhase records one finished phase.
func (m *Metrics) ObservePhase(name string, status model.PhaseStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(name, string(status)).Observe(d.Seconds())
}

// AddLabels counts labels written by a stage.
func (m *Metrics) AddLabels(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.labelsWritten.WithLabelValues(stage).Add(float64(n))
}

// ObserveRun records the outcome of a finished run.
func (m *Metrics) ObserveRun(status model.RunStatus, result *model.RunResult, at time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(status)).Inc()
	m.lastRun.Set(float64(at.Unix()))
	if result == nil {
		return
	}
	m.records.WithLabelValues("in").Add(float64(result.RecordsIn))
	m.records.WithLabelValues("out").Add(float64(result.RecordsOut))
	m.redirected.Add(float64(result.Redirected))
}

// WriteTextfile writes the registry to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return eris.Wrapf(prometheus.WriteToTextfile(path, m.reg), "metrics: write %s", path)
}
