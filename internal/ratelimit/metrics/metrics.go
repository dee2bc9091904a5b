package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions   *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vektorkite_ratelimit_decisions_total",
			Help: "Rate limit decisions by endpoint class",
		}, []string{"class", "decision"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "vektorkite_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed open because the store errored",
		}),
	}
}

func (m *Metrics) IncrementDecision(class string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	m.Decisions.WithLabelValues(class, decision).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	m.StoreErrors.Inc()
}
