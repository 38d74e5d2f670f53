// Package observability holds the batch metrics of a run and writes them out for the
// node exporter textfile collector.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the pipelines.
type Metrics struct {
	Registry *prometheus.Registry

	// Runoff metrics.
	Timesteps        prometheus.Counter
	MeltingSteps     prometheus.Counter
	SubstitutedSteps prometheus.Counter

	// Calibration metrics.
	TrialsScored   *prometheus.CounterVec // labels: variable
	TrialsAccepted *prometheus.GaugeVec   // labels: variable
	JoinFailures   prometheus.Counter
	BestNSE        *prometheus.GaugeVec // labels: variable

	// Hypercube metrics.
	TrialsGenerated prometheus.Counter

	JobDuration *prometheus.HistogramVec // labels: job, status
}

// NewMetrics creates all pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Timesteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "isohydro",
			Name:      "timesteps_total",
			Help:      "Forcing timesteps run through the runoff engine.",
		}),
		MeltingSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "isohydro",
			Name:      "melting_steps_total",
			Help:      "Timesteps in the runoff-active regime.",
		}),
		SubstitutedSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "isohydro",
			Name:      "substituted_steps_total",
			Help:      "Timesteps whose runoff composition fell back to the monthly precipitation signature.",
		}),
		TrialsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isohydro",
			Name:      "trials_scored_total",
			Help:      "Ensemble output files scored against observations.",
		}, []string{"variable"}),
		TrialsAccepted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "isohydro",
			Name:      "trials_accepted",
			Help:      "Trials meeting the acceptance criteria in the last calibration.",
		}, []string{"variable"}),
		JoinFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "isohydro",
			Name:      "trial_join_failures_total",
			Help:      "Ensemble outputs whose trial id has no parameter row.",
		}),
		BestNSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "isohydro",
			Name:      "best_nse",
			Help:      "Highest NSE of the last calibration.",
		}, []string{"variable"}),
		TrialsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "isohydro",
			Name:      "hypercube_trials_generated_total",
			Help:      "Per-trial runoff forcing files written.",
		}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "isohydro",
			Name:      "job_duration_seconds",
			Help:      "Wall time of a pipeline job.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"job", "status"}),
	}

	m.Registry.MustRegister(
		m.Timesteps,
		m.MeltingSteps,
		m.SubstitutedSteps,
		m.TrialsScored,
		m.TrialsAccepted,
		m.JoinFailures,
		m.BestNSE,
		m.TrialsGenerated,
		m.JobDuration,
	)

	return m
}

// WriteTextfile writes the registry in the text exposition format. The file is written
// atomically so a collector never reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
