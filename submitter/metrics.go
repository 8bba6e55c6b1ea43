package submitter

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "submitter"

// Metrics contains metrics exposed by the submitter.
type Metrics struct {
	// Operations waiting, by destination and phase.
	QueueLength metrics.Gauge
	// Phase results, by destination, phase and result.
	Outcomes metrics.Counter
	// Operations removed by a critical failure, by destination.
	CriticalFailures metrics.Counter
}

// PrometheusMetrics returns Metrics built using the Prometheus client
// library and registered with the default registry. Call it once per process.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		QueueLength: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "queue_length",
			Help:      "Number of pending operations waiting for their next phase.",
		}, []string{"destination", "phase"}),
		Outcomes: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "phase_results",
			Help:      "Results of pending operation phases.",
		}, []string{"destination", "phase", "result"}),
		CriticalFailures: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "critical_failures",
			Help:      "Pending operations removed by a critical failure.",
		}, []string{"destination"}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		QueueLength:      discard.NewGauge(),
		Outcomes:         discard.NewCounter(),
		CriticalFailures: discard.NewCounter(),
	}
}
