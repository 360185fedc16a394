// Package integrity guards deletion of entities that other records reference.
//
// Guard reports which dependent categories are populated; Purger removes an
// entity either plainly (refused when dependents exist) or together with all
// of its dependents in one transaction.
package integrity

import (
	"context"

	core "workgenio/internal/core/integrity"
)

// Repository is the storage contract used by Guard and Purger.
// Implementations run on the transaction carried by ctx, if any.
type Repository interface {
	// Exists reports whether table has a row with id.
	Exists(ctx context.Context, table string, id int64) (bool, error)

	// Lock takes a row lock on table.id for the rest of the transaction.
	// Returns a NotFound AppError when the row does not exist.
	Lock(ctx context.Context, table string, id int64) error

	// Count returns the number of rows matched by sel.
	Count(ctx context.Context, sel core.Selector) (int64, error)

	// Delete removes the rows matched by sel and returns how many were removed.
	Delete(ctx context.Context, sel core.Selector) (int64, error)

	// Nullify sets sel.Column to NULL on the rows matched by sel.
	Nullify(ctx context.Context, sel core.Selector) (int64, error)
}

// Metrics receives the outcome of guard and purge operations.
type Metrics interface {
	ObserveCheck(entity core.EntityType, err error)
	ObservePurge(entity core.EntityType, state State, rows int64, err error)
}

type nopMetrics struct{}

func (nopMetrics) ObserveCheck(core.EntityType, error)               {}
func (nopMetrics) ObservePurge(core.EntityType, State, int64, error) {}
