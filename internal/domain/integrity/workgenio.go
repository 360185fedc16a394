package integrity

import (
	core "workgenio/internal/core/integrity"
)

// Tables of the WorkGenio schema touched by the consistency core.
const (
	TableCustomers          = "clienti"
	TableProducts           = "prodotti"
	TableSuppliers          = "fornitori"
	TableOrders             = "ordini"
	TableOrderLines         = "dettagli_ordine"
	TableInvoices           = "fatture"
	TableInvoiceLines       = "dettagli_fattura"
	TableSupplierOrders     = "ordini_fornitore"
	TableSupplierOrderLines = "dettagli_ordine_fornitore"
	TablePriceList          = "listino_prezzi_fornitore"
	TableStockMovements     = "movimenti_magazzino"
	TableMinimumStock       = "scorte_minime"
	TableInvoiceSequence    = "numerazione_fatture"
	ColumnPreferredSupplier = "fornitore_preferito_id"
)

// Schema returns the foreign keys of the WorkGenio database.
func Schema() core.Schema {
	return core.Schema{ForeignKeys: []core.ForeignKey{
		{Table: TableOrders, Column: "cliente_id", RefTable: TableCustomers},
		{Table: TableOrderLines, Column: "ordine_id", RefTable: TableOrders},
		{Table: TableOrderLines, Column: "prodotto_id", RefTable: TableProducts},
		{Table: TableInvoices, Column: "cliente_id", RefTable: TableCustomers},
		{Table: TableInvoiceLines, Column: "fattura_id", RefTable: TableInvoices},
		{Table: TableInvoiceLines, Column: "prodotto_id", RefTable: TableProducts},
		{Table: TableSupplierOrders, Column: "fornitore_id", RefTable: TableSuppliers},
		{Table: TableSupplierOrderLines, Column: "ordine_fornitore_id", RefTable: TableSupplierOrders},
		{Table: TableSupplierOrderLines, Column: "prodotto_id", RefTable: TableProducts},
		{Table: TablePriceList, Column: "fornitore_id", RefTable: TableSuppliers},
		{Table: TablePriceList, Column: "prodotto_id", RefTable: TableProducts},
		{Table: TableStockMovements, Column: "prodotto_id", RefTable: TableProducts},
		{Table: TableMinimumStock, Column: "prodotto_id", RefTable: TableProducts},
		{Table: TableMinimumStock, Column: ColumnPreferredSupplier, RefTable: TableSuppliers, Nullable: true},
	}}
}

// Definitions declares the dependents of customers, products and suppliers.
func Definitions() []core.Definition {
	return []core.Definition{
		{
			Type:  core.Customer,
			Table: TableCustomers,
			Links: []core.Link{
				{Category: "orders", Table: TableOrders, Column: "cliente_id", Parent: TableCustomers},
				{Category: "invoices", Table: TableInvoices, Column: "cliente_id", Parent: TableCustomers},
				{Table: TableOrderLines, Column: "ordine_id", Parent: TableOrders},
				{Table: TableInvoiceLines, Column: "fattura_id", Parent: TableInvoices},
			},
		},
		{
			Type:  core.Product,
			Table: TableProducts,
			Links: []core.Link{
				{Category: "order_lines", Table: TableOrderLines, Column: "prodotto_id", Parent: TableProducts},
				{Category: "invoice_lines", Table: TableInvoiceLines, Column: "prodotto_id", Parent: TableProducts},
				{Category: "supplier_order_lines", Table: TableSupplierOrderLines, Column: "prodotto_id", Parent: TableProducts},
				{Category: "price_list_entries", Table: TablePriceList, Column: "prodotto_id", Parent: TableProducts},
				{Category: "stock_movements", Table: TableStockMovements, Column: "prodotto_id", Parent: TableProducts},
				{Category: "minimum_stock", Table: TableMinimumStock, Column: "prodotto_id", Parent: TableProducts},
			},
		},
		{
			Type:  core.Supplier,
			Table: TableSuppliers,
			Links: []core.Link{
				{Category: "supplier_orders", Table: TableSupplierOrders, Column: "fornitore_id", Parent: TableSuppliers},
				{Category: "price_list_entries", Table: TablePriceList, Column: "fornitore_id", Parent: TableSuppliers},
				{
					Category: "preferred_supplier_refs",
					Table:    TableMinimumStock,
					Column:   ColumnPreferredSupplier,
					Parent:   TableSuppliers,
					Policy:   core.PolicyNullify,
				},
				{Table: TableSupplierOrderLines, Column: "ordine_fornitore_id", Parent: TableSupplierOrders},
			},
		},
	}
}

// NewRegistry compiles the WorkGenio definitions.
func NewRegistry() (*core.Registry, error) {
	return core.NewRegistry(Schema(), Definitions()...)
}
