// Package sequence_repo stores invoice counters in numerazione_fatture.
package sequence_repo

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"workgenio/internal/core/apperror"
	"workgenio/internal/core/numerator"
	"workgenio/internal/domain/numbering"
	"workgenio/internal/infrastructure/storage/postgres"
)

var _ numbering.CounterRepository = (*CounterRepo)(nil)

// QuerierProvider hands out the querier bound to ctx.
type QuerierProvider interface {
	GetQuerier(ctx context.Context) postgres.Querier
}

// CounterRepo is the PostgreSQL counter store. One row per year.
type CounterRepo struct {
	db QuerierProvider
}

// New creates a counter repository.
func New(db QuerierProvider) *CounterRepo {
	return &CounterRepo{db: db}
}

const (
	// The insert makes sure the row exists; the conflict branch does nothing,
	// so two first callers of a year both end up waiting on the same row lock.
	ensureCounterSQL = `INSERT INTO numerazione_fatture (anno, ultimo_numero) VALUES ($1, 0) ON CONFLICT (anno) DO NOTHING`
	lockCounterSQL   = `SELECT ultimo_numero FROM numerazione_fatture WHERE anno = $1 FOR UPDATE`
	saveCounterSQL   = `UPDATE numerazione_fatture SET ultimo_numero = $2 WHERE anno = $1`
	getCounterSQL    = `SELECT anno, ultimo_numero FROM numerazione_fatture WHERE anno = $1`
	listCountersSQL  = `SELECT anno, ultimo_numero FROM numerazione_fatture ORDER BY anno`
)

// LockCounter implements numbering.CounterRepository. It must run inside a
// transaction; the row lock is held until that transaction ends.
func (r *CounterRepo) LockCounter(ctx context.Context, year int) (int64, error) {
	q := r.db.GetQuerier(ctx)

	if _, err := q.Exec(ctx, ensureCounterSQL, year); err != nil {
		return 0, postgres.MapError(err, fmt.Sprintf("create counter %d", year))
	}

	var last int64
	if err := q.QueryRow(ctx, lockCounterSQL, year).Scan(&last); err != nil {
		return 0, postgres.MapError(err, fmt.Sprintf("lock counter %d", year))
	}
	return last, nil
}

// SaveCounter implements numbering.CounterRepository.
func (r *CounterRepo) SaveCounter(ctx context.Context, year int, last int64) error {
	tag, err := r.db.GetQuerier(ctx).Exec(ctx, saveCounterSQL, year, last)
	if err != nil {
		return postgres.MapError(err, fmt.Sprintf("save counter %d", year))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("invoice counter", year)
	}
	return nil
}

// GetCounter implements numbering.CounterRepository.
func (r *CounterRepo) GetCounter(ctx context.Context, year int) (numerator.Counter, bool, error) {
	var c numerator.Counter
	err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &c, getCounterSQL, year)
	if pgxscan.NotFound(err) {
		return numerator.Counter{}, false, nil
	}
	if err != nil {
		return numerator.Counter{}, false, postgres.MapError(err, fmt.Sprintf("get counter %d", year))
	}
	return c, true, nil
}

// ListCounters implements numbering.CounterRepository.
func (r *CounterRepo) ListCounters(ctx context.Context) ([]numerator.Counter, error) {
	var out []numerator.Counter
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &out, listCountersSQL); err != nil {
		return nil, postgres.MapError(err, "list counters")
	}
	if out == nil {
		out = []numerator.Counter{}
	}
	return out, nil
}
