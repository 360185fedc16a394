// Package memory provides an in-process transactional store implementing the
// same repositories as the PostgreSQL layer. Transactions are serialized by a
// single lock and rolled back by restoring a snapshot; foreign keys of the
// configured schema are enforced on insert, delete and nullify.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"workgenio/internal/core/apperror"
	core "workgenio/internal/core/integrity"
	"workgenio/internal/core/numerator"
	"workgenio/internal/core/tx"
	"workgenio/internal/domain/integrity"
	"workgenio/internal/domain/numbering"
)

// Compile-time contract assertions.
var (
	_ tx.ReadOnlyManager          = (*Store)(nil)
	_ integrity.Repository        = (*Store)(nil)
	_ numbering.CounterRepository = (*Store)(nil)
)

// ErrReadOnly is returned by writes inside a read-only transaction.
var ErrReadOnly = errors.New("memory: write in read-only transaction")

// Row is one record: column name to value. Reference columns hold int64 or nil.
type Row map[string]any

type state struct {
	tables   map[string]map[int64]Row
	nextID   map[string]int64
	counters map[int]int64
}

// Store is the in-memory database.
type Store struct {
	// mu is held for the whole of a transaction.
	mu     sync.Mutex
	schema core.Schema
	data   state
	faults map[string]error
}

type txKey struct{}

type txState struct {
	readOnly bool
}

// New creates an empty store enforcing schema's foreign keys.
func New(schema core.Schema) *Store {
	return &Store{
		schema: schema,
		data: state{
			tables:   make(map[string]map[int64]Row),
			nextID:   make(map[string]int64),
			counters: make(map[int]int64),
		},
		faults: make(map[string]error),
	}
}

// --- Transactions ---

// RunInTransaction runs fn with exclusive access to the store. Any error
// restores the state captured before fn started.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.run(ctx, false, fn)
}

// ReadOnly runs fn with exclusive access; writes inside fn fail with ErrReadOnly.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, &txState{readOnly: readOnly})); err != nil {
		s.data = snap
		return err
	}
	return nil
}

// do runs op on the caller's transaction, or under the lock when there is none.
func (s *Store) do(ctx context.Context, write bool, op func() error) error {
	if err := ctx.Err(); err != nil {
		return apperror.NewTransientStorage("memory store", err)
	}
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		if write && st.readOnly {
			return ErrReadOnly
		}
		return op()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return op()
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// --- Fault injection ---

// FailOn makes every Delete and Nullify on table return err until cleared.
func (s *Store) FailOn(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[table] = err
}

// ClearFaults removes every injected failure.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]error)
}

// --- Seeding and inspection ---

// Insert adds row to table and returns its id. Reference columns are checked
// against the schema.
func (s *Store) Insert(ctx context.Context, table string, row Row) (int64, error) {
	var id int64
	err := s.do(ctx, true, func() error {
		clean := make(Row, len(row)+1)
		for k, v := range row {
			clean[k] = normalize(v)
		}

		for _, fk := range s.schema.ForeignKeys {
			if fk.Table != table {
				continue
			}
			ref, ok := clean[fk.Column].(int64)
			if !ok {
				if !fk.Nullable {
					return apperror.NewIntegrity(fmt.Sprintf("%s.%s must not be null", table, fk.Column))
				}
				continue
			}
			if _, exists := s.data.tables[fk.RefTable][ref]; !exists {
				return apperror.NewIntegrity(fmt.Sprintf("%s violates foreign key %s", table, fk)).
					WithDetail("value", ref)
			}
		}

		s.data.nextID[table]++
		id = s.data.nextID[table]
		clean["id"] = id

		if s.data.tables[table] == nil {
			s.data.tables[table] = make(map[int64]Row)
		}
		s.data.tables[table][id] = clean
		return nil
	})
	return id, err
}

// Get returns a copy of table.id.
func (s *Store) Get(ctx context.Context, table string, id int64) (Row, bool) {
	var out Row
	_ = s.do(ctx, false, func() error {
		if row, ok := s.data.tables[table][id]; ok {
			out = row.clone()
		}
		return nil
	})
	return out, out != nil
}

// Rows returns copies of every row of table ordered by id.
func (s *Store) Rows(ctx context.Context, table string) []Row {
	var out []Row
	_ = s.do(ctx, false, func() error {
		ids := make([]int64, 0, len(s.data.tables[table]))
		for id := range s.data.tables[table] {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			out = append(out, s.data.tables[table][id].clone())
		}
		return nil
	})
	return out
}

// --- integrity.Repository ---

// Exists implements integrity.Repository.
func (s *Store) Exists(ctx context.Context, table string, id int64) (bool, error) {
	var found bool
	err := s.do(ctx, false, func() error {
		_, found = s.data.tables[table][id]
		return nil
	})
	return found, err
}

// Lock implements integrity.Repository. The store lock already serializes
// transactions, so this only checks existence.
func (s *Store) Lock(ctx context.Context, table string, id int64) error {
	return s.do(ctx, true, func() error {
		if _, ok := s.data.tables[table][id]; !ok {
			return apperror.NewNotFound(table, id)
		}
		return nil
	})
}

// Count implements integrity.Repository.
func (s *Store) Count(ctx context.Context, sel core.Selector) (int64, error) {
	var n int64
	err := s.do(ctx, false, func() error {
		n = int64(len(s.match(sel)))
		return nil
	})
	return n, err
}

// Delete implements integrity.Repository.
func (s *Store) Delete(ctx context.Context, sel core.Selector) (int64, error) {
	var n int64
	err := s.do(ctx, true, func() error {
		if err := s.faults[sel.Table]; err != nil {
			return err
		}

		ids := s.match(sel)
		for id := range ids {
			if fk, ok := s.referenced(sel.Table, id); ok {
				return apperror.NewIntegrity(fmt.Sprintf("%s %d is still referenced by %s", sel.Table, id, fk)).
					WithDetail("table", sel.Table).
					WithDetail("id", id)
			}
		}
		for id := range ids {
			delete(s.data.tables[sel.Table], id)
		}
		n = int64(len(ids))
		return nil
	})
	return n, err
}

// Nullify implements integrity.Repository.
func (s *Store) Nullify(ctx context.Context, sel core.Selector) (int64, error) {
	var n int64
	err := s.do(ctx, true, func() error {
		if err := s.faults[sel.Table]; err != nil {
			return err
		}
		if sel.IsRoot() {
			return fmt.Errorf("memory: cannot nullify the entity row of %s", sel.Table)
		}
		if fk, ok := s.schema.Find(sel.Table, sel.Column, sel.Parent.Table); ok && !fk.Nullable {
			return apperror.NewIntegrity(fmt.Sprintf("%s.%s must not be null", sel.Table, sel.Column))
		}

		for id := range s.match(sel) {
			s.data.tables[sel.Table][id][sel.Column] = nil
			n++
		}
		return nil
	})
	return n, err
}

// match returns the ids of sel.Table selected by sel.
func (s *Store) match(sel core.Selector) map[int64]bool {
	out := make(map[int64]bool)
	if sel.IsRoot() {
		if _, ok := s.data.tables[sel.Table][sel.ID]; ok {
			out[sel.ID] = true
		}
		return out
	}

	parents := s.match(*sel.Parent)
	for id, row := range s.data.tables[sel.Table] {
		if ref, ok := row[sel.Column].(int64); ok && parents[ref] {
			out[id] = true
		}
	}
	return out
}

// referenced finds a foreign key that still points at table.id.
func (s *Store) referenced(table string, id int64) (core.ForeignKey, bool) {
	for _, fk := range s.schema.ReferencesTo(table) {
		for _, row := range s.data.tables[fk.Table] {
			if ref, ok := row[fk.Column].(int64); ok && ref == id {
				return fk, true
			}
		}
	}
	return core.ForeignKey{}, false
}

// --- numbering.CounterRepository ---

// LockCounter implements numbering.CounterRepository.
func (s *Store) LockCounter(ctx context.Context, year int) (int64, error) {
	var last int64
	err := s.do(ctx, true, func() error {
		if _, ok := s.data.counters[year]; !ok {
			s.data.counters[year] = 0
		}
		last = s.data.counters[year]
		return nil
	})
	return last, err
}

// SaveCounter implements numbering.CounterRepository.
func (s *Store) SaveCounter(ctx context.Context, year int, last int64) error {
	return s.do(ctx, true, func() error {
		if err := s.faults[counterFault]; err != nil {
			return err
		}
		s.data.counters[year] = last
		return nil
	})
}

// GetCounter implements numbering.CounterRepository.
func (s *Store) GetCounter(ctx context.Context, year int) (numerator.Counter, bool, error) {
	var (
		c     numerator.Counter
		found bool
	)
	err := s.do(ctx, false, func() error {
		var last int64
		last, found = s.data.counters[year]
		c = numerator.Counter{Year: year, LastNumber: last}
		return nil
	})
	return c, found, err
}

// ListCounters implements numbering.CounterRepository.
func (s *Store) ListCounters(ctx context.Context) ([]numerator.Counter, error) {
	var out []numerator.Counter
	err := s.do(ctx, false, func() error {
		out = make([]numerator.Counter, 0, len(s.data.counters))
		for year, last := range s.data.counters {
			out = append(out, numerator.Counter{Year: year, LastNumber: last})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
		return nil
	})
	return out, err
}

// counterFault is the FailOn key that makes SaveCounter fail.
const counterFault = integrity.TableInvoiceSequence

// --- helpers ---

func (st state) clone() state {
	out := state{
		tables:   make(map[string]map[int64]Row, len(st.tables)),
		nextID:   make(map[string]int64, len(st.nextID)),
		counters: make(map[int]int64, len(st.counters)),
	}
	for name, rows := range st.tables {
		copied := make(map[int64]Row, len(rows))
		for id, row := range rows {
			copied[id] = row.clone()
		}
		out.tables[name] = copied
	}
	for k, v := range st.nextID {
		out.nextID[k] = v
	}
	for k, v := range st.counters {
		out.counters[k] = v
	}
	return out
}

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// normalize stores integer values as int64 so references compare equal.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	default:
		return v
	}
}
