package postgres

import (
	"context"
	"fmt"

	"workgenio/pkg/logger"
)

// schemaStatements creates the WorkGenio tables. Every statement is idempotent.
// Foreign keys carry no ON DELETE action: dependent rows are removed by the
// purge plan, never by the database behind its back.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS clienti (
		id              BIGSERIAL PRIMARY KEY,
		ragione_sociale TEXT NOT NULL,
		partita_iva     TEXT,
		email           TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS prodotti (
		id          BIGSERIAL PRIMARY KEY,
		codice      TEXT NOT NULL UNIQUE,
		descrizione TEXT,
		prezzo      NUMERIC(12,2) NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS fornitori (
		id              BIGSERIAL PRIMARY KEY,
		ragione_sociale TEXT NOT NULL,
		partita_iva     TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ordini (
		id         BIGSERIAL PRIMARY KEY,
		cliente_id BIGINT NOT NULL REFERENCES clienti(id),
		data       DATE NOT NULL DEFAULT CURRENT_DATE,
		stato      TEXT NOT NULL DEFAULT 'aperto'
	)`,
	`CREATE TABLE IF NOT EXISTS dettagli_ordine (
		id          BIGSERIAL PRIMARY KEY,
		ordine_id   BIGINT NOT NULL REFERENCES ordini(id),
		prodotto_id BIGINT NOT NULL REFERENCES prodotti(id),
		quantita    NUMERIC(12,3) NOT NULL DEFAULT 1,
		prezzo      NUMERIC(12,2) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS fatture (
		id         BIGSERIAL PRIMARY KEY,
		cliente_id BIGINT NOT NULL REFERENCES clienti(id),
		numero     TEXT NOT NULL UNIQUE,
		data       DATE NOT NULL DEFAULT CURRENT_DATE,
		totale     NUMERIC(12,2) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS dettagli_fattura (
		id          BIGSERIAL PRIMARY KEY,
		fattura_id  BIGINT NOT NULL REFERENCES fatture(id),
		prodotto_id BIGINT NOT NULL REFERENCES prodotti(id),
		quantita    NUMERIC(12,3) NOT NULL DEFAULT 1,
		prezzo      NUMERIC(12,2) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS ordini_fornitore (
		id           BIGSERIAL PRIMARY KEY,
		fornitore_id BIGINT NOT NULL REFERENCES fornitori(id),
		data         DATE NOT NULL DEFAULT CURRENT_DATE
	)`,
	`CREATE TABLE IF NOT EXISTS dettagli_ordine_fornitore (
		id                  BIGSERIAL PRIMARY KEY,
		ordine_fornitore_id BIGINT NOT NULL REFERENCES ordini_fornitore(id),
		prodotto_id         BIGINT NOT NULL REFERENCES prodotti(id),
		quantita            NUMERIC(12,3) NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS listino_prezzi_fornitore (
		id           BIGSERIAL PRIMARY KEY,
		fornitore_id BIGINT NOT NULL REFERENCES fornitori(id),
		prodotto_id  BIGINT NOT NULL REFERENCES prodotti(id),
		prezzo       NUMERIC(12,2) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS movimenti_magazzino (
		id          BIGSERIAL PRIMARY KEY,
		prodotto_id BIGINT NOT NULL REFERENCES prodotti(id),
		quantita    NUMERIC(12,3) NOT NULL,
		causale     TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS scorte_minime (
		id                     BIGSERIAL PRIMARY KEY,
		prodotto_id            BIGINT NOT NULL REFERENCES prodotti(id),
		fornitore_preferito_id BIGINT REFERENCES fornitori(id),
		quantita_minima        NUMERIC(12,3) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS numerazione_fatture (
		anno          INTEGER PRIMARY KEY CHECK (anno > 0),
		ultimo_numero BIGINT NOT NULL DEFAULT 0 CHECK (ultimo_numero >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ordini_cliente ON ordini (cliente_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dettagli_ordine_ordine ON dettagli_ordine (ordine_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dettagli_ordine_prodotto ON dettagli_ordine (prodotto_id)`,
	`CREATE INDEX IF NOT EXISTS idx_fatture_cliente ON fatture (cliente_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dettagli_fattura_fattura ON dettagli_fattura (fattura_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dettagli_fattura_prodotto ON dettagli_fattura (prodotto_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ordini_fornitore_fornitore ON ordini_fornitore (fornitore_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dettagli_of_ordine ON dettagli_ordine_fornitore (ordine_fornitore_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dettagli_of_prodotto ON dettagli_ordine_fornitore (prodotto_id)`,
	`CREATE INDEX IF NOT EXISTS idx_listino_fornitore ON listino_prezzi_fornitore (fornitore_id)`,
	`CREATE INDEX IF NOT EXISTS idx_listino_prodotto ON listino_prezzi_fornitore (prodotto_id)`,
	`CREATE INDEX IF NOT EXISTS idx_movimenti_prodotto ON movimenti_magazzino (prodotto_id)`,
	`CREATE INDEX IF NOT EXISTS idx_scorte_prodotto ON scorte_minime (prodotto_id)`,
	`CREATE INDEX IF NOT EXISTS idx_scorte_fornitore ON scorte_minime (fornitore_preferito_id)`,
}

// Migrate creates the schema inside one transaction.
func Migrate(ctx context.Context, txm *TxManager) error {
	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)
		for i, stmt := range schemaStatements {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return MapError(err, fmt.Sprintf("migration statement %d", i+1))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.For(ctx, "postgres").Infow("schema migrated", "statements", len(schemaStatements))
	return nil
}
