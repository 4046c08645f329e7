package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-run figures. A one-shot process has no scrape
// endpoint, so they are written to a node-exporter textfile at exit.
type Metrics struct {
	registry     *prometheus.Registry
	runs         *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	candidates   prometheus.Gauge
	trials       prometheus.Gauge
	postWidth    prometheus.Gauge
	lastRun      prometheus.Gauge
	lastSuccess  prometheus.Gauge
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notepost",
			Name:      "runs_total",
			Help:      "Runs by outcome.",
		}, []string{"outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "notepost",
			Name:      "step_duration_seconds",
			Help:      "Duration of each run step.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "notepost",
			Name:      "candidates",
			Help:      "Candidate notes seen by the last run.",
		}),
		trials: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "notepost",
			Name:      "adjust_trials",
			Help:      "Adjustments needed by the last run.",
		}),
		postWidth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "notepost",
			Name:      "post_width",
			Help:      "Width-aware length of the last generated post.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "notepost",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "notepost",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
	m.registry.MustRegister(m.runs, m.stepDuration, m.candidates, m.trials, m.postWidth, m.lastRun, m.lastSuccess)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeStep(step string, d time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Metrics) observeRun(r *Report, err error, at time.Time) {
	m.lastRun.Set(float64(at.Unix()))
	if r.Candidates > 0 {
		m.candidates.Set(float64(r.Candidates))
	}
	m.trials.Set(float64(r.Trials))
	if r.PostWidth > 0 {
		m.postWidth.Set(float64(r.PostWidth))
	}
	if err != nil {
		m.runs.WithLabelValues("failure").Inc()
		return
	}
	m.runs.WithLabelValues("success").Inc()
	m.lastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile atomically writes the metrics in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
