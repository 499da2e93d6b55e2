package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/promptloom/pkg/domain"
)

const namespace = "promptloom"

// Metrics holds the Prometheus collectors fed by the engine hooks.
type Metrics struct {
	Renders          *prometheus.CounterVec
	RenderDuration   *prometheus.HistogramVec
	Segments         *prometheus.CounterVec
	MissingVariables prometheus.Counter
	Diffs            prometheus.Counter
	DiffChangedLines prometheus.Histogram
	Replays          *prometheus.CounterVec
	Requests         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// Passing a dedicated registry keeps tests and multiple servers isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Total number of renders by output style and outcome",
			},
			[]string{"style", "status"},
		),
		RenderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Duration of renders",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"style"},
		),
		Segments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "segments_total",
				Help:      "Total number of rendered segments by node kind",
			},
			[]string{"kind"},
		),
		MissingVariables: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "missing_variables_total",
				Help:      "Total number of unresolved placeholders across rendered segments",
			},
		),
		Diffs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diffs_total",
				Help:      "Total number of text comparisons",
			},
		),
		DiffChangedLines: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "diff_changed_lines",
				Help:      "Number of non-identical rows per comparison",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		Replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replay_runs_total",
				Help:      "Total number of replayed dataset rows by status",
			},
			[]string{"status"},
		),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),
	}
	reg.MustRegister(
		m.Renders,
		m.RenderDuration,
		m.Segments,
		m.MissingVariables,
		m.Diffs,
		m.DiffChangedLines,
		m.Replays,
		m.Requests,
	)
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSegment: func(ctx context.Context, e *domain.SegmentEvent) {
			m.Segments.WithLabelValues(string(e.Kind)).Inc()
			if n := len(e.Missing); n > 0 {
				m.MissingVariables.Add(float64(n))
			}
		},
		OnRenderComplete: func(ctx context.Context, e *domain.RenderEvent) {
			status := "ok"
			if e.Errors > 0 {
				status = "error"
			}
			m.Renders.WithLabelValues(string(e.Style), status).Inc()
			m.RenderDuration.WithLabelValues(string(e.Style)).Observe(e.Duration.Seconds())
		},
		OnDiff: func(ctx context.Context, e *domain.DiffEvent) {
			m.Diffs.Inc()
			m.DiffChangedLines.Observe(float64(e.Changed))
		},
	}
}

// ObserveRuns counts replayed rows by status.
func (m *Metrics) ObserveRuns(runs []domain.RunSummary) {
	for _, r := range runs {
		m.Replays.WithLabelValues(string(r.Status)).Inc()
	}
}
