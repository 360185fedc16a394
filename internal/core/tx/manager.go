// Package tx provides transaction management abstractions.
// Domain services run every unit of work through Manager so that commit and
// rollback live in exactly one place.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back and the error is returned unchanged.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction whose reads share one snapshot.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
