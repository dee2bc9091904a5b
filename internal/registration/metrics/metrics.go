package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration flow: validation
// failures by field, submission outcomes by status and kind, and the
// duration of the signup call.
type Metrics struct {
	ValidationFailures *prometheus.CounterVec
	Submissions        *prometheus.CounterVec
	SubmitDuration     prometheus.Histogram
	InFlightRejected   prometheus.Counter
}

// New registers the registration collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vektorkite_registration_validation_failures_total",
			Help: "Registration validation failures by field",
		}, []string{"field"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vektorkite_registration_submissions_total",
			Help: "Registration submissions by outcome status and error kind",
		}, []string{"status", "kind"}),
		SubmitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vektorkite_registration_submit_duration_seconds",
			Help:    "Duration of the signup call including classification",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		InFlightRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "vektorkite_registration_inflight_rejected_total",
			Help: "Submissions rejected because one for the same email was in flight",
		}),
	}
}

func (m *Metrics) IncrementValidationFailure(field string) {
	m.ValidationFailures.WithLabelValues(field).Inc()
}

func (m *Metrics) IncrementSubmission(status, kind string) {
	m.Submissions.WithLabelValues(status, kind).Inc()
}

// ObserveSubmit records the duration of a submission.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementInFlightRejected() {
	m.InFlightRejected.Inc()
}
