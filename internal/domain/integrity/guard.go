package integrity

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"workgenio/internal/core/apperror"
	core "workgenio/internal/core/integrity"
	"workgenio/internal/core/tx"
)

var tracer = otel.Tracer("workgenio/integrity")

// CategoryCount is the number of dependent rows in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Table    string `json:"table"`
	Count    int64  `json:"count"`
}

// DependencyReport lists every registered dependent category of an entity.
type DependencyReport struct {
	EntityType core.EntityType `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	Categories []CategoryCount `json:"categories"`
}

// Has reports whether category has at least one row.
func (r *DependencyReport) Has(category string) bool {
	for _, c := range r.Categories {
		if c.Category == category {
			return c.Count > 0
		}
	}
	return false
}

// HasDependents reports whether any category has rows.
func (r *DependencyReport) HasDependents() bool {
	for _, c := range r.Categories {
		if c.Count > 0 {
			return true
		}
	}
	return false
}

// AsMap returns category -> has-at-least-one.
func (r *DependencyReport) AsMap() map[string]bool {
	m := make(map[string]bool, len(r.Categories))
	for _, c := range r.Categories {
		m[c.Category] = c.Count > 0
	}
	return m
}

// Guard checks dependents before a delete. It never writes.
type Guard struct {
	registry *core.Registry
	repo     Repository
	txm      tx.ReadOnlyManager
	metrics  Metrics
}

// NewGuard creates a dependency guard.
func NewGuard(registry *core.Registry, repo Repository, txm tx.ReadOnlyManager) *Guard {
	return &Guard{
		registry: registry,
		repo:     repo,
		txm:      txm,
		metrics:  nopMetrics{},
	}
}

// WithMetrics sets the metrics sink.
func (g *Guard) WithMetrics(m Metrics) *Guard {
	if m != nil {
		g.metrics = m
	}
	return g
}

// CheckDependents counts the dependent rows of entity id in every category
// registered for its type. All counts come from one read-only snapshot.
func (g *Guard) CheckDependents(ctx context.Context, t core.EntityType, id int64) (*DependencyReport, error) {
	ctx, span := tracer.Start(ctx, "integrity.check_dependents", trace.WithAttributes(
		attribute.String("entity.type", string(t)),
		attribute.Int64("entity.id", id),
	))
	defer span.End()

	plan, err := resolvePlan(g.registry, t, id)
	if err != nil {
		g.metrics.ObserveCheck(t, err)
		return nil, err
	}

	var report *DependencyReport
	err = g.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		report, err = scan(ctx, g.repo, plan, id)
		return err
	})
	g.metrics.ObserveCheck(t, err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return report, nil
}

// resolvePlan validates the request and returns the compiled plan.
func resolvePlan(registry *core.Registry, t core.EntityType, id int64) (*core.Plan, error) {
	plan, ok := registry.Plan(t)
	if !ok {
		return nil, apperror.NewValidation(fmt.Sprintf("unknown entity type %q", t)).
			WithDetail("entity_type", string(t))
	}
	if id <= 0 {
		return nil, apperror.NewValidation("entity id must be positive").
			WithDetail("entity_id", id)
	}
	return plan, nil
}

// scan builds the report on the transaction in ctx.
func scan(ctx context.Context, repo Repository, plan *core.Plan, id int64) (*DependencyReport, error) {
	exists, err := repo.Exists(ctx, plan.Table, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.NewNotFound(plan.Table, id)
	}

	report := &DependencyReport{
		EntityType: plan.Type,
		EntityID:   id,
		Categories: make([]CategoryCount, 0, len(plan.Reported)),
	}
	for _, l := range plan.Reported {
		n, err := repo.Count(ctx, plan.Selector(l, id))
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", l.Category, err)
		}
		report.Categories = append(report.Categories, CategoryCount{
			Category: l.Category,
			Table:    l.Table,
			Count:    n,
		})
	}

	return report, nil
}
