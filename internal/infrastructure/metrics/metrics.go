// Package metrics exposes Prometheus collectors for invoice numbering and
// referential integrity operations.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"workgenio/internal/core/apperror"
	core "workgenio/internal/core/integrity"
	"workgenio/internal/domain/integrity"
	"workgenio/internal/domain/numbering"
)

var (
	_ numbering.Metrics = (*Metrics)(nil)
	_ integrity.Metrics = (*Metrics)(nil)
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds every collector of the service.
type Metrics struct {
	allocations        *prometheus.CounterVec
	allocationDuration prometheus.Histogram

	checks     *prometheus.CounterVec
	purges     *prometheus.CounterVec
	purgedRows *prometheus.CounterVec
}

// New registers the collectors on registerer (the default registerer when nil).
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		allocations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "workgenio_invoice_numbers_total",
			Help: "Invoice number allocations by outcome",
		}, []string{"outcome"}),
		allocationDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "workgenio_invoice_allocation_duration_seconds",
			Help:    "Duration of invoice number allocations, lock wait included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		checks: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "workgenio_dependency_checks_total",
			Help: "Dependency checks by entity type and outcome",
		}, []string{"entity_type", "outcome"}),
		purges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "workgenio_purges_total",
			Help: "Purge calls by entity type and final state",
		}, []string{"entity_type", "state", "outcome"}),
		purgedRows: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "workgenio_purged_rows_total",
			Help: "Rows deleted or nullified by committed purges",
		}, []string{"entity_type"}),
	}
}

// ObserveAllocation implements numbering.Metrics. The year is not a label:
// callers choose it, so its cardinality is unbounded.
func (m *Metrics) ObserveAllocation(_ int, err error, elapsed time.Duration) {
	m.allocations.WithLabelValues(outcome(err)).Inc()
	m.allocationDuration.Observe(elapsed.Seconds())
}

// ObserveCheck implements integrity.Metrics.
func (m *Metrics) ObserveCheck(entity core.EntityType, err error) {
	m.checks.WithLabelValues(string(entity), outcome(err)).Inc()
}

// ObservePurge implements integrity.Metrics.
func (m *Metrics) ObservePurge(entity core.EntityType, state integrity.State, rows int64, err error) {
	m.purges.WithLabelValues(string(entity), state.String(), outcome(err)).Inc()
	if state == integrity.StateCommitted && rows > 0 {
		m.purgedRows.WithLabelValues(string(entity)).Add(float64(rows))
	}
}

// outcome labels an error by its AppError code.
func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Code
	}
	return OutcomeError
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}
