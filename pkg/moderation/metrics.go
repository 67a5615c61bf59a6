package moderation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition outcomes used as the "outcome" label.
const (
	OutcomeCommitted          = "committed"
	OutcomeInvalidTransition  = "invalid_transition"
	OutcomePreconditionFailed = "precondition_failed"
	OutcomeConfiguration      = "configuration_error"
	OutcomePersistence        = "persistence_error"
	OutcomeError              = "error"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	transitions   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	deferredFails prometheus.Counter
	eventFails    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reviewkit",
				Subsystem: "moderation",
				Name:      "transitions_total",
				Help:      "Fired triggers by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "reviewkit",
				Subsystem: "moderation",
				Name:      "transition_duration_seconds",
				Help:      "Time spent in Fire including lock wait and commit",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		deferredFails: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reviewkit",
			Subsystem: "moderation",
			Name:      "deferred_enqueue_failures_total",
			Help:      "Deferred tasks that could not be enqueued after commit",
		}),
		eventFails: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reviewkit",
			Subsystem: "moderation",
			Name:      "event_record_failures_total",
			Help:      "Container history events that could not be recorded",
		}),
	}
}

func (m *Metrics) observe(trigger Trigger, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(trigger), Outcome(err)).Inc()
	m.duration.WithLabelValues(string(trigger)).Observe(elapsed.Seconds())
}

func (m *Metrics) deferredFailed() {
	if m == nil {
		return
	}
	m.deferredFails.Inc()
}

func (m *Metrics) eventFailed() {
	if m == nil {
		return
	}
	m.eventFails.Inc()
}

// Outcome classifies the result of Fire.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeCommitted
	case IsInvalidTransitionError(err):
		return OutcomeInvalidTransition
	case IsPublishPreconditionError(err):
		return OutcomePreconditionFailed
	case IsConfigurationError(err):
		return OutcomeConfiguration
	case IsPersistenceError(err):
		return OutcomePersistence
	}
	return OutcomeError
}
