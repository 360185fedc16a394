package integrity_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	core "workgenio/internal/core/integrity"
	"workgenio/internal/domain/integrity"
	"workgenio/internal/infrastructure/storage/memory"
)

type env struct {
	store  *memory.Store
	guard  *integrity.Guard
	purger *integrity.Purger
	stats  *recordingMetrics
}

func newEnv(t *testing.T) *env {
	t.Helper()

	registry, err := integrity.NewRegistry()
	require.NoError(t, err)

	store := memory.New(integrity.Schema())
	stats := &recordingMetrics{}
	return &env{
		store:  store,
		guard:  integrity.NewGuard(registry, store, store).WithMetrics(stats),
		purger: integrity.NewPurger(registry, store, store).WithMetrics(stats),
		stats:  stats,
	}
}

func (e *env) insert(t *testing.T, table string, row memory.Row) int64 {
	t.Helper()
	id, err := e.store.Insert(context.Background(), table, row)
	require.NoError(t, err)
	return id
}

// world is a small, fully linked data set.
type world struct {
	customer, otherCustomer int64
	product, otherProduct   int64
	supplier                int64
	order, otherOrder       int64
	invoice                 int64
	supplierOrder           int64
	minimumStock            int64
}

// seed links one row of every dependent table to customer, product and supplier.
func (e *env) seed(t *testing.T) world {
	t.Helper()
	var w world

	w.customer = e.insert(t, integrity.TableCustomers, memory.Row{"ragione_sociale": "Rossi Srl"})
	w.otherCustomer = e.insert(t, integrity.TableCustomers, memory.Row{"ragione_sociale": "Bianchi SpA"})
	w.product = e.insert(t, integrity.TableProducts, memory.Row{"codice": "P-001"})
	w.otherProduct = e.insert(t, integrity.TableProducts, memory.Row{"codice": "P-002"})
	w.supplier = e.insert(t, integrity.TableSuppliers, memory.Row{"ragione_sociale": "Forniture Verdi"})

	w.order = e.insert(t, integrity.TableOrders, memory.Row{"cliente_id": w.customer})
	e.insert(t, integrity.TableOrderLines, memory.Row{"ordine_id": w.order, "prodotto_id": w.product, "quantita": 2})
	w.otherOrder = e.insert(t, integrity.TableOrders, memory.Row{"cliente_id": w.otherCustomer})
	e.insert(t, integrity.TableOrderLines, memory.Row{"ordine_id": w.otherOrder, "prodotto_id": w.otherProduct, "quantita": 1})

	w.invoice = e.insert(t, integrity.TableInvoices, memory.Row{"cliente_id": w.customer, "numero": "2024/0001"})
	e.insert(t, integrity.TableInvoiceLines, memory.Row{"fattura_id": w.invoice, "prodotto_id": w.product})

	w.supplierOrder = e.insert(t, integrity.TableSupplierOrders, memory.Row{"fornitore_id": w.supplier})
	e.insert(t, integrity.TableSupplierOrderLines, memory.Row{"ordine_fornitore_id": w.supplierOrder, "prodotto_id": w.product})
	e.insert(t, integrity.TablePriceList, memory.Row{"fornitore_id": w.supplier, "prodotto_id": w.product})
	e.insert(t, integrity.TableStockMovements, memory.Row{"prodotto_id": w.product, "quantita": 10})
	w.minimumStock = e.insert(t, integrity.TableMinimumStock, memory.Row{
		"prodotto_id":                     w.otherProduct,
		integrity.ColumnPreferredSupplier: w.supplier,
	})
	e.insert(t, integrity.TableMinimumStock, memory.Row{"prodotto_id": w.product, integrity.ColumnPreferredSupplier: nil})

	return w
}

// dump captures every table for before/after comparisons.
func (e *env) dump() map[string][]memory.Row {
	ctx := context.Background()
	out := make(map[string][]memory.Row)
	for _, table := range []string{
		integrity.TableCustomers, integrity.TableProducts, integrity.TableSuppliers,
		integrity.TableOrders, integrity.TableOrderLines, integrity.TableInvoices,
		integrity.TableInvoiceLines, integrity.TableSupplierOrders, integrity.TableSupplierOrderLines,
		integrity.TablePriceList, integrity.TableStockMovements, integrity.TableMinimumStock,
	} {
		out[table] = e.store.Rows(ctx, table)
	}
	return out
}

type purgeEvent struct {
	entity core.EntityType
	state  integrity.State
	rows   int64
	err    error
}

type recordingMetrics struct {
	mu     sync.Mutex
	checks int
	purges []purgeEvent
}

func (m *recordingMetrics) ObserveCheck(core.EntityType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks++
}

func (m *recordingMetrics) ObservePurge(entity core.EntityType, state integrity.State, rows int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purges = append(m.purges, purgeEvent{entity: entity, state: state, rows: rows, err: err})
}
