// Package integrity_repo implements the dependency repository on PostgreSQL.
package integrity_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"workgenio/internal/core/apperror"
	core "workgenio/internal/core/integrity"
	"workgenio/internal/domain/integrity"
	"workgenio/internal/infrastructure/storage/postgres"
)

var _ integrity.Repository = (*Repository)(nil)

// QuerierProvider hands out the querier bound to ctx.
// *postgres.TxManager implements it.
type QuerierProvider interface {
	GetQuerier(ctx context.Context) postgres.Querier
}

// Repository runs selector based counts, deletes and updates.
type Repository struct {
	db QuerierProvider
}

// New creates a repository.
func New(db QuerierProvider) *Repository {
	return &Repository{db: db}
}

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Exists implements integrity.Repository.
func (r *Repository) Exists(ctx context.Context, table string, id int64) (bool, error) {
	query, args, err := existsQuery(table, id).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.db.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, postgres.MapError(err, "check "+table)
	}
	return exists, nil
}

// Lock implements integrity.Repository.
func (r *Repository) Lock(ctx context.Context, table string, id int64) error {
	query, args, err := lockQuery(table, id).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var locked int64
	err = r.db.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound(table, id)
	}
	if err != nil {
		return postgres.MapError(err, "lock "+table)
	}
	return nil
}

// Count implements integrity.Repository.
func (r *Repository) Count(ctx context.Context, sel core.Selector) (int64, error) {
	query, args, err := countQuery(sel).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var n int64
	if err := r.db.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, postgres.MapError(err, "count "+sel.Table)
	}
	return n, nil
}

// Delete implements integrity.Repository.
func (r *Repository) Delete(ctx context.Context, sel core.Selector) (int64, error) {
	query, args, err := deleteQuery(sel).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	tag, err := r.db.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, postgres.MapError(err, "delete from "+sel.Table)
	}
	return tag.RowsAffected(), nil
}

// Nullify implements integrity.Repository.
func (r *Repository) Nullify(ctx context.Context, sel core.Selector) (int64, error) {
	if sel.IsRoot() {
		return 0, fmt.Errorf("nullify needs a dependent selector, got %s", sel)
	}
	query, args, err := nullifyQuery(sel).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	tag, err := r.db.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, postgres.MapError(err, "nullify "+sel.Table+"."+sel.Column)
	}
	return tag.RowsAffected(), nil
}

// --- query builders ---

func existsQuery(table string, id int64) squirrel.SelectBuilder {
	return Builder().
		Select("1").
		From(ident(table)).
		Where(squirrel.Eq{"id": id}).
		Prefix("SELECT EXISTS (").
		Suffix(")")
}

func lockQuery(table string, id int64) squirrel.SelectBuilder {
	return Builder().
		Select("id").
		From(ident(table)).
		Where(squirrel.Eq{"id": id}).
		Suffix("FOR UPDATE")
}

func countQuery(sel core.Selector) squirrel.SelectBuilder {
	return Builder().
		Select("COUNT(*)").
		From(ident(sel.Table)).
		Where(where(sel))
}

func deleteQuery(sel core.Selector) squirrel.DeleteBuilder {
	return Builder().
		Delete(ident(sel.Table)).
		Where(where(sel))
}

func nullifyQuery(sel core.Selector) squirrel.UpdateBuilder {
	return Builder().
		Update(ident(sel.Table)).
		Set(ident(sel.Column), squirrel.Expr("NULL")).
		Where(where(sel))
}

// where renders sel as a predicate on sel.Table. Grandchildren are reached
// through nested sub-selects on their parents' ids:
//
//	ordine_id IN (SELECT id FROM ordini WHERE cliente_id = ?)
func where(sel core.Selector) squirrel.Sqlizer {
	sql, args := predicate(sel)
	return squirrel.Expr(sql, args...)
}

func predicate(sel core.Selector) (string, []any) {
	if sel.IsRoot() {
		return ident(sel.Column) + " = ?", []any{sel.ID}
	}
	parent := *sel.Parent
	if parent.IsRoot() {
		return ident(sel.Column) + " = ?", []any{parent.ID}
	}

	inner, args := predicate(parent)
	return fmt.Sprintf("%s IN (SELECT id FROM %s WHERE %s)", ident(sel.Column), ident(parent.Table), inner), args
}

// ident quotes a table or column name.
func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
