package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"workgenio/internal/config"
	"workgenio/internal/domain/integrity"
	"workgenio/internal/domain/numbering"
	"workgenio/internal/infrastructure/metrics"
	"workgenio/internal/infrastructure/storage/memory"
	"workgenio/internal/infrastructure/storage/postgres"
	"workgenio/internal/infrastructure/storage/postgres/integrity_repo"
	"workgenio/internal/infrastructure/storage/postgres/sequence_repo"
	"workgenio/pkg/logger"
)

// app holds the wired services of one process.
type app struct {
	cfg *config.Config
	log *logger.Logger

	db interface {
		Ping(ctx context.Context) error
	}
	pool  *postgres.Pool
	txm   *postgres.TxManager
	store *memory.Store

	registry  *prometheus.Registry
	numbering *numbering.Service
	guard     *integrity.Guard
	purger    *integrity.Purger

	closed bool
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	deps, err := integrity.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("compile dependency graph: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &app{cfg: cfg, log: log, registry: reg}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		store := memory.New(integrity.Schema())
		a.store = store
		a.db = store
		a.numbering = numbering.NewService(store, store)
		a.guard = integrity.NewGuard(deps, store, store)
		a.purger = integrity.NewPurger(deps, store, store)

	default:
		pool, err := postgres.NewPool(ctx, cfg.Database.PoolConfig())
		if err != nil {
			return nil, err
		}
		txm := postgres.NewTxManager(pool, cfg.Database.TxOptions())
		repo := integrity_repo.New(txm)

		a.pool = pool
		a.txm = txm
		a.db = pool
		a.numbering = numbering.NewService(sequence_repo.New(txm), txm)
		a.guard = integrity.NewGuard(deps, repo, txm)
		a.purger = integrity.NewPurger(deps, repo, txm)
	}

	a.numbering.WithMetrics(m)
	a.guard.WithMetrics(m)
	a.purger.WithMetrics(m)

	log.Debugw("services ready", "driver", cfg.Database.Driver, "entity_types", deps.Types())
	return a, nil
}

func (a *app) Close() {
	if a.closed {
		return
	}
	a.closed = true
	if a.pool != nil {
		a.pool.LogStats(context.Background())
		a.pool.Close()
	}
	_ = a.log.Sync()
}
