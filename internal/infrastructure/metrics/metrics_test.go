package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workgenio/internal/core/apperror"
	core "workgenio/internal/core/integrity"
	"workgenio/internal/domain/integrity"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestObserveAllocation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAllocation(2024, nil, 3*time.Millisecond)
	m.ObserveAllocation(2024, nil, 5*time.Millisecond)
	m.ObserveAllocation(1987, nil, 5*time.Millisecond)
	m.ObserveAllocation(2024, apperror.NewTransientStorage("lock", errors.New("timeout")), time.Second)

	assert.Equal(t, 3.0, counterValue(t, m.allocations.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, counterValue(t, m.allocations.WithLabelValues(apperror.CodeTransientStorage)))

	ch := make(chan prometheus.Metric, 8)
	m.allocations.Collect(ch)
	close(ch)
	assert.Len(t, ch, 2, "one series per outcome, whatever the years")

	var h dto.Metric
	require.NoError(t, m.allocationDuration.Write(&h))
	assert.Equal(t, uint64(4), h.GetHistogram().GetSampleCount())
}

func TestObservePurge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePurge(core.Customer, integrity.StateCommitted, 5, nil)
	m.ObservePurge(core.Customer, integrity.StateRolledBack, 0, errors.New("boom"))
	m.ObservePurge(core.Customer, integrity.StateValidating, 0, apperror.NewConfirmationRequired("purge"))

	assert.Equal(t, 1.0, counterValue(t, m.purges.WithLabelValues("customer", "committed", OutcomeOK)))
	assert.Equal(t, 1.0, counterValue(t, m.purges.WithLabelValues("customer", "rolled_back", OutcomeError)))
	assert.Equal(t, 1.0, counterValue(t, m.purges.WithLabelValues("customer", "validating", apperror.CodeConfirmationRequired)))
	assert.Equal(t, 5.0, counterValue(t, m.purgedRows.WithLabelValues("customer")))
}

func TestObserveCheck(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCheck(core.Product, nil)
	m.ObserveCheck(core.Product, apperror.NewNotFound("prodotti", 1))

	assert.Equal(t, 1.0, counterValue(t, m.checks.WithLabelValues("product", OutcomeOK)))
	assert.Equal(t, 1.0, counterValue(t, m.checks.WithLabelValues("product", apperror.CodeNotFound)))
}

func TestNew_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := New(reg)
	second := New(reg)

	first.ObserveCheck(core.Supplier, nil)
	assert.Equal(t, 1.0, counterValue(t, second.checks.WithLabelValues("supplier", OutcomeOK)))
}
