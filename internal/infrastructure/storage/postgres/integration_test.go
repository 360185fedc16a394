//go:build integration

package postgres_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workgenio/internal/core/apperror"
	core "workgenio/internal/core/integrity"
	"workgenio/internal/core/numerator"
	"workgenio/internal/domain/integrity"
	"workgenio/internal/domain/numbering"
	"workgenio/internal/infrastructure/storage/postgres"
	"workgenio/internal/infrastructure/storage/postgres/integrity_repo"
	"workgenio/internal/infrastructure/storage/postgres/sequence_repo"
)

// Run with: WORKGENIO_TEST_DSN=postgres://... go test -tags integration ./internal/infrastructure/storage/postgres/

func openTestDB(t *testing.T) *postgres.TxManager {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("WORKGENIO_TEST_DSN"))
	if dsn == "" {
		t.Skip("WORKGENIO_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	t.Cleanup(pool.Close)

	txm := postgres.NewTxManager(pool, postgres.DefaultTxOptions())
	require.NoError(t, postgres.Migrate(ctx, txm))

	_, err = txm.GetQuerier(ctx).Exec(ctx, `
		TRUNCATE TABLE
			scorte_minime, movimenti_magazzino, listino_prezzi_fornitore,
			dettagli_ordine_fornitore, ordini_fornitore, dettagli_fattura, fatture,
			dettagli_ordine, ordini, fornitori, prodotti, clienti, numerazione_fatture
		RESTART IDENTITY`)
	require.NoError(t, err)

	return txm
}

func insertRow(t *testing.T, ctx context.Context, txm *postgres.TxManager, sql string, args ...any) int64 {
	t.Helper()
	var id int64
	require.NoError(t, txm.GetQuerier(ctx).QueryRow(ctx, sql+" RETURNING id", args...).Scan(&id))
	return id
}

func TestNext_Postgres_ConcurrentFirstAllocations(t *testing.T) {
	txm := openTestDB(t)
	svc := numbering.NewService(sequence_repo.New(txm), txm)
	ctx := context.Background()

	const callers = 24
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]struct{}, callers)
		errs    []error
	)
	// The year's row does not exist yet, so every caller races to create it.
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := svc.Next(ctx, 2031)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[n] = struct{}{}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, numbers, callers)
	for i := int64(1); i <= callers; i++ {
		_, ok := numbers[numerator.Format(2031, i)]
		assert.True(t, ok, "missing %d", i)
	}

	c, err := svc.Current(ctx, 2031)
	require.NoError(t, err)
	assert.Equal(t, int64(callers), c.LastNumber)
}

func TestPurge_Postgres_WaitsForRowLockAndPurgesLateDependents(t *testing.T) {
	txm := openTestDB(t)
	registry, err := integrity.NewRegistry()
	require.NoError(t, err)
	repo := integrity_repo.New(txm)
	purger := integrity.NewPurger(registry, repo, txm)
	ctx := context.Background()

	customer := insertRow(t, ctx, txm, `INSERT INTO clienti (ragione_sociale) VALUES ($1)`, "Rossi")
	product := insertRow(t, ctx, txm, `INSERT INTO prodotti (codice) VALUES ($1)`, "P1")
	order := insertRow(t, ctx, txm, `INSERT INTO ordini (cliente_id) VALUES ($1)`, customer)
	insertRow(t, ctx, txm, `INSERT INTO dettagli_ordine (ordine_id, prodotto_id) VALUES ($1, $2)`, order, product)

	locked := make(chan struct{})
	release := make(chan struct{})
	holder := make(chan error, 1)
	go func() {
		holder <- txm.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := repo.Lock(ctx, integrity.TableCustomers, customer); err != nil {
				return err
			}
			close(locked)
			<-release
			// Lands while the purge is blocked on the customer row.
			var id int64
			return txm.GetQuerier(ctx).QueryRow(ctx,
				`INSERT INTO fatture (cliente_id, numero) VALUES ($1, $2) RETURNING id`,
				customer, "2031/0001").Scan(&id)
		})
	}()
	<-locked

	type outcome struct {
		result *integrity.PurgeResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := purger.Purge(ctx, core.Customer, customer, true)
		done <- outcome{r, err}
	}()

	select {
	case <-done:
		t.Fatal("purge finished while another transaction held the customer row")
	case <-time.After(300 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-holder)

	got := <-done
	require.NoError(t, got.err)
	// order line, order, the late invoice, the customer
	assert.Equal(t, int64(4), got.result.RowsAffected())

	var left int64
	require.NoError(t, txm.GetQuerier(ctx).QueryRow(ctx,
		`SELECT (SELECT count(*) FROM clienti) + (SELECT count(*) FROM ordini) + (SELECT count(*) FROM fatture)`).Scan(&left))
	assert.Zero(t, left)
}

func TestDelete_Postgres_ForeignKeyViolationIsIntegrityError(t *testing.T) {
	txm := openTestDB(t)
	repo := integrity_repo.New(txm)
	ctx := context.Background()

	customer := insertRow(t, ctx, txm, `INSERT INTO clienti (ragione_sociale) VALUES ($1)`, "Bianchi")
	insertRow(t, ctx, txm, `INSERT INTO ordini (cliente_id) VALUES ($1)`, customer)

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := repo.Delete(ctx, core.Selector{Table: integrity.TableCustomers, Column: "id", ID: customer})
		return err
	})
	assert.True(t, apperror.IsIntegrity(err), "got %v", err)
}
