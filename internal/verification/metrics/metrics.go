package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts verification attempts by result and profile update failures.
type Metrics struct {
	Verifications         *prometheus.CounterVec
	ProfileUpdateFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vektorkite_email_verifications_total",
			Help: "Email verification attempts by result",
		}, []string{"result"}),
		ProfileUpdateFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "vektorkite_email_verification_profile_update_failures_total",
			Help: "Verified accounts whose provider profile could not be updated",
		}),
	}
}

func (m *Metrics) IncrementVerification(result string) {
	m.Verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementProfileUpdateFailure() {
	m.ProfileUpdateFailures.Inc()
}
