package integrity

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"workgenio/internal/core/apperror"
	core "workgenio/internal/core/integrity"
	"workgenio/internal/core/tx"
	"workgenio/pkg/logger"
)

// State tracks a purge call. Only Committed and RolledBack are ever visible
// outside the transaction.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateDeleting
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateDeleting:
		return "deleting"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StepResult is the effect of one purge step.
type StepResult struct {
	Table  string      `json:"table"`
	Column string      `json:"column"`
	Policy core.Policy `json:"policy"`
	Rows   int64       `json:"rows"`
}

// PurgeResult describes a committed purge.
type PurgeResult struct {
	EntityType core.EntityType `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	Steps      []StepResult    `json:"steps"`
}

// RowsAffected sums dependent rows touched plus the entity row.
func (r *PurgeResult) RowsAffected() int64 {
	total := int64(1)
	for _, s := range r.Steps {
		total += s.Rows
	}
	return total
}

// Purger deletes entities.
type Purger struct {
	registry *core.Registry
	repo     Repository
	txm      tx.Manager
	metrics  Metrics
}

// NewPurger creates a purger.
func NewPurger(registry *core.Registry, repo Repository, txm tx.Manager) *Purger {
	return &Purger{
		registry: registry,
		repo:     repo,
		txm:      txm,
		metrics:  nopMetrics{},
	}
}

// WithMetrics sets the metrics sink.
func (p *Purger) WithMetrics(m Metrics) *Purger {
	if m != nil {
		p.metrics = m
	}
	return p
}

// Purge removes entity id and every dependent row in one transaction.
//
// The entity row is locked first, then the compiled steps run in order and
// the entity row is deleted last. What to delete is derived inside the
// transaction, so rows added after an earlier CheckDependents are purged too.
// Any failure rolls back the whole call.
func (p *Purger) Purge(ctx context.Context, t core.EntityType, id int64, confirmed bool) (*PurgeResult, error) {
	ctx, span := tracer.Start(ctx, "integrity.purge", trace.WithAttributes(
		attribute.String("entity.type", string(t)),
		attribute.Int64("entity.id", id),
	))
	defer span.End()

	log := logger.For(ctx, "purge").With("entity_type", t, "entity_id", id)

	state := StateValidating
	plan, err := resolvePlan(p.registry, t, id)
	if err == nil && !confirmed {
		err = apperror.NewConfirmationRequired("purge").
			WithDetail("entity_type", string(t)).
			WithDetail("entity_id", id)
	}
	if err != nil {
		p.metrics.ObservePurge(t, state, 0, err)
		return nil, err
	}

	state = StateDeleting
	result := &PurgeResult{EntityType: t, EntityID: id}
	err = p.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		result.Steps = make([]StepResult, 0, len(plan.Steps))

		if err := p.repo.Lock(ctx, plan.Table, id); err != nil {
			return err
		}

		for i, step := range plan.Steps {
			sel := plan.Selector(step, id)

			var n int64
			var err error
			switch step.Policy {
			case core.PolicyNullify:
				n, err = p.repo.Nullify(ctx, sel)
			default:
				n, err = p.repo.Delete(ctx, sel)
			}
			if err != nil {
				return stepError(step, i+1, len(plan.Steps), err)
			}

			log.Debugw("purge step done", "step", i+1, "table", step.Table, "policy", step.Policy.String(), "rows", n)
			result.Steps = append(result.Steps, StepResult{
				Table:  step.Table,
				Column: step.Column,
				Policy: step.Policy,
				Rows:   n,
			})
		}

		n, err := p.repo.Delete(ctx, plan.Root(id))
		if err != nil {
			return classify(err, fmt.Sprintf("delete %s %d", plan.Table, id))
		}
		if n == 0 {
			return apperror.NewNotFound(plan.Table, id)
		}
		return nil
	})
	if err != nil {
		state = StateRolledBack
		span.RecordError(err)
		p.metrics.ObservePurge(t, state, 0, err)
		log.Warnw("purge rolled back", "state", state.String(), "error", err)
		return nil, err
	}

	state = StateCommitted
	p.metrics.ObservePurge(t, state, result.RowsAffected(), nil)
	log.Infow("purge committed", "state", state.String(), "rows", result.RowsAffected())

	return result, nil
}

// Delete removes entity id only if nothing references it. The check and the
// delete share one transaction with the entity row locked.
func (p *Purger) Delete(ctx context.Context, t core.EntityType, id int64) error {
	ctx, span := tracer.Start(ctx, "integrity.delete", trace.WithAttributes(
		attribute.String("entity.type", string(t)),
		attribute.Int64("entity.id", id),
	))
	defer span.End()

	plan, err := resolvePlan(p.registry, t, id)
	if err != nil {
		return err
	}

	err = p.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := p.repo.Lock(ctx, plan.Table, id); err != nil {
			return err
		}

		report, err := scan(ctx, p.repo, plan, id)
		if err != nil {
			return err
		}
		if report.HasDependents() {
			return apperror.NewHasDependents(plan.Table, id).
				WithDetail("dependents", report.AsMap())
		}

		n, err := p.repo.Delete(ctx, plan.Root(id))
		if err != nil {
			return classify(err, fmt.Sprintf("delete %s %d", plan.Table, id))
		}
		if n == 0 {
			return apperror.NewNotFound(plan.Table, id)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	logger.For(ctx, "purge").Infow("entity deleted", "entity_type", t, "entity_id", id)
	return nil
}

// stepError attaches the failing step to err.
func stepError(step core.Link, idx, total int, err error) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.
			WithDetail("step", idx).
			WithDetail("table", step.Table)
	}
	return apperror.NewIntegrity(fmt.Sprintf("purge step %d/%d on %s failed", idx, total, step.Table)).
		WithDetail("step", idx).
		WithDetail("table", step.Table).
		WithCause(err)
}

// classify keeps AppErrors and turns anything else into an IntegrityError.
func classify(err error, op string) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewIntegrity(op + " failed").WithCause(err)
}
