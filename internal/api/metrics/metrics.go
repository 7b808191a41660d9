// Package metrics defines the custom Prometheus metrics of the user registry
// API. It is the single source of truth for metric names, labels, and help
// strings.
//
// Build one Metrics per registry with New at startup, before the HTTP server
// starts.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/99minutos/user-registry/internal/core/domain"
)

const namespace = "user_registry"

// Registration outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics bundles every collector the API updates.
type Metrics struct {
	// RegistrationsTotal counts registration attempts.
	// Label:
	//   - outcome: "created", "invalid", "conflict" or "error"
	RegistrationsTotal *prometheus.CounterVec

	// ViolationsTotal counts individual rule violations.
	// Label:
	//   - field: the request field that failed (e.g. "username")
	ViolationsTotal *prometheus.CounterVec

	// LookupsTotal counts username and id lookups.
	// Label:
	//   - result: "found", "not_found" or "error"
	LookupsTotal *prometheus.CounterVec

	// BatchSize tracks how many items each batch registration carried.
	BatchSize prometheus.Histogram

	// BatchDuration measures a batch from submission until every item finished.
	BatchDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RegistrationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Total number of registration attempts, by outcome.",
			},
			[]string{"outcome"},
		),
		ViolationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_violations_total",
				Help:      "Total number of validation violations, by field.",
			},
			[]string{"field"},
		),
		LookupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Total number of user lookups, by result.",
			},
			[]string{"result"},
		),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of items per batch registration.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of a batch registration from submission to the last result.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveRegistration records the outcome of one Register call.
func (m *Metrics) ObserveRegistration(err error) {
	var verr *domain.ValidationError
	switch {
	case err == nil:
		m.RegistrationsTotal.WithLabelValues(OutcomeCreated).Inc()
	case errors.As(err, &verr):
		m.RegistrationsTotal.WithLabelValues(OutcomeInvalid).Inc()
		for _, v := range verr.Violations {
			m.ViolationsTotal.WithLabelValues(v.Field).Inc()
		}
	case errors.Is(err, domain.ErrUserExists):
		m.RegistrationsTotal.WithLabelValues(OutcomeConflict).Inc()
	default:
		m.RegistrationsTotal.WithLabelValues(OutcomeError).Inc()
	}
}

// ObserveLookup records the outcome of one lookup.
func (m *Metrics) ObserveLookup(err error) {
	switch {
	case err == nil:
		m.LookupsTotal.WithLabelValues("found").Inc()
	case errors.Is(err, domain.ErrUserNotFound):
		m.LookupsTotal.WithLabelValues("not_found").Inc()
	default:
		m.LookupsTotal.WithLabelValues("error").Inc()
	}
}
