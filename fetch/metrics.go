package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/syssam/relgraph/graph"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics holds the prometheus collectors of a Loader.
// A nil *Metrics records nothing.
type Metrics struct {
	// Fetches counts finished fetches by relationship kind and outcome.
	Fetches *prometheus.CounterVec
	// Joined counts Load calls that waited for a fetch already in flight.
	Joined prometheus.Counter
	// InFlight is the number of fetches currently running.
	InFlight prometheus.Gauge
}

// NewMetrics creates the loader collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relgraph",
			Name:      "relationship_fetches_total",
			Help:      "Relationship fetches by relationship kind and outcome.",
		}, []string{"kind", "outcome"}),
		Joined: f.NewCounter(prometheus.CounterOpts{
			Namespace: "relgraph",
			Name:      "relationship_fetches_joined_total",
			Help:      "Loads that joined a relationship fetch already in flight.",
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "relgraph",
			Name:      "relationship_fetches_in_flight",
			Help:      "Relationship fetches currently running.",
		}),
	}
}

// start records a fetch start and returns the function recording its end.
func (m *Metrics) start(kind graph.Kind) func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	m.InFlight.Inc()
	return func(outcome string) {
		m.InFlight.Dec()
		m.Fetches.WithLabelValues(kind.String(), outcome).Inc()
	}
}

func (m *Metrics) joined() {
	if m != nil {
		m.Joined.Inc()
	}
}
