// Package numbering issues gap-free invoice numbers per calendar year.
package numbering

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"workgenio/internal/core/apperror"
	"workgenio/internal/core/numerator"
	"workgenio/internal/core/tx"
	"workgenio/pkg/logger"
)

var tracer = otel.Tracer("workgenio/numbering")

// CounterRepository persists one counter row per year.
// Implementations run on the transaction carried by ctx, if any.
type CounterRepository interface {
	// LockCounter locks the counter row of year, creating it with value 0 when
	// absent, and returns the last issued number. Concurrent callers for the
	// same year block until the holder's transaction ends.
	LockCounter(ctx context.Context, year int) (int64, error)

	// SaveCounter stores the last issued number of a locked counter.
	SaveCounter(ctx context.Context, year int, last int64) error

	// GetCounter reads a counter without locking it.
	GetCounter(ctx context.Context, year int) (numerator.Counter, bool, error)

	// ListCounters returns every counter ordered by year.
	ListCounters(ctx context.Context) ([]numerator.Counter, error)
}

// Metrics receives allocation outcomes.
type Metrics interface {
	ObserveAllocation(year int, err error, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ObserveAllocation(int, error, time.Duration) {}

// Service allocates invoice numbers.
type Service struct {
	repo    CounterRepository
	txm     tx.ReadOnlyManager
	metrics Metrics
}

// Ensure compile-time interface compliance.
var _ numerator.Allocator = (*Service)(nil)

// NewService creates a numbering service.
func NewService(repo CounterRepository, txm tx.ReadOnlyManager) *Service {
	return &Service{
		repo:    repo,
		txm:     txm,
		metrics: nopMetrics{},
	}
}

// WithMetrics sets the metrics sink.
func (s *Service) WithMetrics(m Metrics) *Service {
	if m != nil {
		s.metrics = m
	}
	return s
}

// Next reserves the next number of year and returns it as YEAR/NNNN.
// The read-increment-write runs under the counter row lock, so concurrent
// callers never share a number; a rolled back call leaves the counter as it was.
func (s *Service) Next(ctx context.Context, year int) (string, error) {
	ctx, span := tracer.Start(ctx, "numbering.next", trace.WithAttributes(
		attribute.Int("year", year),
	))
	defer span.End()

	if err := validateYear(year); err != nil {
		return "", err
	}

	start := time.Now()
	var num int64
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		last, err := s.repo.LockCounter(ctx, year)
		if err != nil {
			return fmt.Errorf("lock counter %d: %w", year, err)
		}

		num, err = numerator.Counter{Year: year, LastNumber: last}.Following()
		if err != nil {
			return err
		}
		if err := s.repo.SaveCounter(ctx, year, num); err != nil {
			return fmt.Errorf("save counter %d: %w", year, err)
		}
		return nil
	})
	s.metrics.ObserveAllocation(year, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		logger.For(ctx, "numbering").Warnw("invoice number allocation failed", "year", year, "error", err)
		return "", err
	}

	formatted := numerator.Format(year, num)
	logger.For(ctx, "numbering").Debugw("invoice number allocated", "year", year, "number", formatted)
	return formatted, nil
}

// Current returns the counter of year. A year with no allocations reports 0.
func (s *Service) Current(ctx context.Context, year int) (numerator.Counter, error) {
	if err := validateYear(year); err != nil {
		return numerator.Counter{}, err
	}

	counter := numerator.Counter{Year: year}
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		c, found, err := s.repo.GetCounter(ctx, year)
		if err != nil {
			return err
		}
		if found {
			counter = c
		}
		return nil
	})
	if err != nil {
		return numerator.Counter{}, err
	}

	return counter, nil
}

// Peek returns the number Next would issue now, without reserving it.
func (s *Service) Peek(ctx context.Context, year int) (string, error) {
	c, err := s.Current(ctx, year)
	if err != nil {
		return "", err
	}
	n, err := c.Following()
	if err != nil {
		return "", err
	}
	return numerator.Format(year, n), nil
}

// List returns all counters.
func (s *Service) List(ctx context.Context) ([]numerator.Counter, error) {
	var counters []numerator.Counter
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		counters, err = s.repo.ListCounters(ctx)
		return err
	})
	return counters, err
}

// SetLast moves the counter of year forward to last, e.g. when importing the
// invoices of an existing numbering. Lowering a counter is refused.
func (s *Service) SetLast(ctx context.Context, year int, last int64) error {
	if err := validateYear(year); err != nil {
		return err
	}
	if last < 0 {
		return apperror.NewValidation("last number must not be negative").WithDetail("last_number", last)
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.LockCounter(ctx, year)
		if err != nil {
			return fmt.Errorf("lock counter %d: %w", year, err)
		}
		if last < current {
			return apperror.NewConflict("counter cannot go backwards").
				WithDetail("year", year).
				WithDetail("current", current).
				WithDetail("requested", last)
		}
		return s.repo.SaveCounter(ctx, year, last)
	})
	if err != nil {
		return err
	}

	logger.For(ctx, "numbering").Infow("invoice counter moved", "year", year, "last_number", last)
	return nil
}

// Import moves the counter of a year up to an invoice number issued outside
// this service, given as printed ("2024/0137").
func (s *Service) Import(ctx context.Context, lastIssued string) (numerator.Counter, error) {
	year, num, err := numerator.Parse(lastIssued)
	if err != nil {
		return numerator.Counter{}, apperror.NewValidation(err.Error()).WithDetail("number", lastIssued)
	}
	if err := s.SetLast(ctx, year, num); err != nil {
		return numerator.Counter{}, err
	}
	return numerator.Counter{Year: year, LastNumber: num}, nil
}

func validateYear(year int) error {
	if year <= 0 {
		return apperror.NewValidation("year must be a positive integer").WithDetail("year", year)
	}
	return nil
}
