package amplifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "intcode"

// Metrics records search progress. A nil *Metrics records nothing.
type Metrics struct {
	// TrialsTotal counts trials by topology and result (completed, failed).
	TrialsTotal *prometheus.CounterVec

	// TrialDurationSeconds measures wall time per trial.
	// Labels: topology
	TrialDurationSeconds *prometheus.HistogramVec

	// BestSignal is the best signal of the most recent search.
	// Labels: topology
	BestSignal *prometheus.GaugeVec
}

// NewMetrics creates the search metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TrialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "trials_total",
			Help:      "Amplifier trials run, by topology and result",
		}, []string{"topology", "result"}),
		TrialDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "trial_duration_seconds",
			Help:      "Wall time of one amplifier trial",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"topology"}),
		BestSignal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "best_signal",
			Help:      "Best signal found by the last search",
		}, []string{"topology"}),
	}
}

func (m *Metrics) recordTrial(t Trial) {
	if m == nil {
		return
	}
	result := "completed"
	if !t.Completed() {
		result = "failed"
	}
	topology := t.Topology.String()
	m.TrialsTotal.WithLabelValues(topology, result).Inc()
	m.TrialDurationSeconds.WithLabelValues(topology).Observe(t.Duration.Seconds())
}

func (m *Metrics) recordBest(topology Topology, signal int64) {
	if m == nil {
		return
	}
	m.BestSignal.WithLabelValues(topology.String()).Set(float64(signal))
}
