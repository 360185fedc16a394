package integrity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workgenio/internal/core/apperror"
	core "workgenio/internal/core/integrity"
	"workgenio/internal/domain/integrity"
	"workgenio/internal/infrastructure/storage/memory"
)

func TestRegistry_WorkGenioDefinitionsCompile(t *testing.T) {
	registry, err := integrity.NewRegistry()
	require.NoError(t, err)

	assert.Equal(t, []core.EntityType{core.Customer, core.Product, core.Supplier}, registry.Types())

	customer, ok := registry.Plan(core.Customer)
	require.True(t, ok)
	var steps []string
	for _, s := range customer.Steps {
		steps = append(steps, s.Table)
	}
	assert.Equal(t, []string{
		integrity.TableOrderLines,
		integrity.TableOrders,
		integrity.TableInvoiceLines,
		integrity.TableInvoices,
	}, steps)
}

func TestGuard_ProductWithEveryDependent(t *testing.T) {
	e := newEnv(t)
	w := e.seed(t)

	report, err := e.guard.CheckDependents(context.Background(), core.Product, w.product)
	require.NoError(t, err)

	assert.Equal(t, core.Product, report.EntityType)
	assert.Equal(t, w.product, report.EntityID)
	assert.True(t, report.HasDependents())
	assert.Equal(t, map[string]bool{
		"order_lines":          true,
		"invoice_lines":        true,
		"supplier_order_lines": true,
		"price_list_entries":   true,
		"stock_movements":      true,
		"minimum_stock":        true,
	}, report.AsMap())
	for _, c := range report.Categories {
		assert.Equal(t, int64(1), c.Count, c.Category)
	}
}

func TestGuard_ProductWithoutDependents_PlainDeleteSucceeds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.insert(t, integrity.TableProducts, memory.Row{"codice": "LONELY"})

	report, err := e.guard.CheckDependents(ctx, core.Product, id)
	require.NoError(t, err)
	assert.False(t, report.HasDependents())
	assert.Len(t, report.Categories, 6)
	for category, has := range report.AsMap() {
		assert.False(t, has, category)
	}

	require.NoError(t, e.purger.Delete(ctx, core.Product, id))

	exists, err := e.store.Exists(ctx, integrity.TableProducts, id)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGuard_CustomerAndSupplierCategories(t *testing.T) {
	e := newEnv(t)
	w := e.seed(t)
	ctx := context.Background()

	customer, err := e.guard.CheckDependents(ctx, core.Customer, w.customer)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"orders": true, "invoices": true}, customer.AsMap())

	supplier, err := e.guard.CheckDependents(ctx, core.Supplier, w.supplier)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		"supplier_orders":         true,
		"price_list_entries":      true,
		"preferred_supplier_refs": true,
	}, supplier.AsMap())
}

func TestGuard_RepeatedCheckIsStable(t *testing.T) {
	e := newEnv(t)
	w := e.seed(t)
	ctx := context.Background()

	first, err := e.guard.CheckDependents(ctx, core.Customer, w.customer)
	require.NoError(t, err)
	second, err := e.guard.CheckDependents(ctx, core.Customer, w.customer)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, e.stats.checks)
}

func TestGuard_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.guard.CheckDependents(ctx, core.Product, 404)
	assert.True(t, apperror.IsNotFound(err))

	_, err = e.guard.CheckDependents(ctx, core.EntityType("warehouse"), 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = e.guard.CheckDependents(ctx, core.Customer, 0)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestDependencyReport_Has(t *testing.T) {
	r := &integrity.DependencyReport{Categories: []integrity.CategoryCount{
		{Category: "orders", Count: 0},
		{Category: "invoices", Count: 3},
	}}

	assert.False(t, r.Has("orders"))
	assert.True(t, r.Has("invoices"))
	assert.False(t, r.Has("unknown"))
	assert.True(t, r.HasDependents())
}
