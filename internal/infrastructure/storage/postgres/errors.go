package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"workgenio/internal/core/apperror"
)

// SQLSTATE codes the layer reacts to.
const (
	pgForeignKeyViolation  = "23503"
	pgNotNullViolation     = "23502"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgAdminShutdown        = "57P01"
	pgCrashShutdown        = "57P02"
	pgCannotConnectNow     = "57P03"
)

// MapError turns a driver error into an AppError.
//
//   - integrity constraint violations (class 23) become IntegrityError;
//   - lock, serialization, timeout and connection failures become TransientStorageError;
//   - pgx.ErrNoRows becomes NotFound.
//
// Anything else is wrapped with op and returned as a plain error.
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound(op, nil)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperror.NewTransientStorage(op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return integrityError(pgErr, op)
		case isTransientCode(pgErr.Code):
			return apperror.NewTransientStorage(op, err).WithDetail("sqlstate", pgErr.Code)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return apperror.NewTransientStorage(op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func isTransientCode(code string) bool {
	switch code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled,
		pgAdminShutdown, pgCrashShutdown, pgCannotConnectNow:
		return true
	}
	// Class 08: connection exception.
	return strings.HasPrefix(code, "08")
}

func integrityError(pgErr *pgconn.PgError, op string) error {
	msg := fmt.Sprintf("%s violates a constraint", op)
	switch pgErr.Code {
	case pgForeignKeyViolation:
		msg = fmt.Sprintf("%s violates foreign key %s", op, pgErr.ConstraintName)
	case pgNotNullViolation:
		msg = fmt.Sprintf("%s: %s.%s must not be null", op, pgErr.TableName, pgErr.ColumnName)
	}

	appErr := apperror.NewIntegrity(msg).
		WithDetail("sqlstate", pgErr.Code).
		WithCause(pgErr)
	if pgErr.TableName != "" {
		appErr.WithDetail("table", pgErr.TableName)
	}
	if pgErr.ConstraintName != "" {
		appErr.WithDetail("constraint", pgErr.ConstraintName)
	}
	return appErr
}
