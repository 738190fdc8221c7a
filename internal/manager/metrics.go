package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triaged",
			Subsystem: "engine",
			Name:      "generations_total",
			Help:      "Total number of generations by result",
		},
		[]string{"result"},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "triaged",
			Subsystem: "engine",
			Name:      "generation_duration_seconds",
			Help:      "Duration of successful generations in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
	)

	triageReadyTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "triaged",
			Subsystem: "engine",
			Name:      "triage_ready_total",
			Help:      "Replies that matched a stop phrase",
		},
	)

	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triaged",
			Subsystem: "engine",
			Name:      "model_loads_total",
			Help:      "Model loads by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, generationDuration, triageReadyTotal, modelLoadsTotal)
}

// resultLabel buckets an error for the generations_total counter.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTooBusy(err):
		return "busy"
	case IsModelNotLoaded(err):
		return "not_loaded"
	default:
		return "error"
	}
}
