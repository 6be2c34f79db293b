// Package metrics collects Prometheus metrics for generation runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "folio"

// Chapter outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds run-scoped collectors on their own registry, so a batch run
// can be exported as a node_exporter textfile. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	ChaptersGenerated  *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	ValidationIssues   *prometheus.CounterVec
	TokensUsed         *prometheus.CounterVec
}

// New registers a fresh set of collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ChaptersGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "chapter",
				Name:      "generated_total",
				Help:      "Total number of chapter generations by outcome",
			},
			[]string{"status"},
		),
		GenerationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "chapter",
				Name:      "generation_duration_seconds",
				Help:      "Chapter generation duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
		ValidationIssues: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "validation",
				Name:      "issues_total",
				Help:      "Static validation issues by severity",
			},
			[]string{"severity"},
		),
		TokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "tokens_total",
				Help:      "Model tokens consumed by direction",
			},
			[]string{"direction"},
		),
	}
}

// ObserveChapter records one finished chapter.
func (m *Metrics) ObserveChapter(ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if !ok {
		status = StatusFailure
	}
	m.ChaptersGenerated.WithLabelValues(status).Inc()
	m.GenerationDuration.Observe(elapsed.Seconds())
}

// ObserveIssues adds validation issue counts keyed by severity.
func (m *Metrics) ObserveIssues(counts map[string]int) {
	if m == nil {
		return
	}
	for sev, n := range counts {
		m.ValidationIssues.WithLabelValues(sev).Add(float64(n))
	}
}

// ObserveTokens adds model token usage.
func (m *Metrics) ObserveTokens(input, output int) {
	if m == nil {
		return
	}
	m.TokensUsed.WithLabelValues("input").Add(float64(input))
	m.TokensUsed.WithLabelValues("output").Add(float64(output))
}

// WriteTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
