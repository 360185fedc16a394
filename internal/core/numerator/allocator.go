// Package numerator provides domain contracts for invoice auto-numbering.
// Implementations live in the domain/numbering package.
package numerator

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"workgenio/internal/core/apperror"
)

// PadWidth is the minimum width of the numeric part ("2024/0001").
const PadWidth = 4

// Allocator issues gap-free per-year document numbers.
type Allocator interface {
	// Next reserves and returns the next number for year, formatted as YEAR/NNNN.
	// A failed call issues no number.
	Next(ctx context.Context, year int) (string, error)
}

// Counter is the persisted state of one year's sequence.
type Counter struct {
	Year       int   `db:"anno" json:"year"`
	LastNumber int64 `db:"ultimo_numero" json:"last_number"`
}

// Following returns the number after LastNumber. A counter at the int64
// limit has nothing left to issue and yields a CONFLICT.
func (c Counter) Following() (int64, error) {
	if c.LastNumber >= math.MaxInt64 {
		return 0, apperror.NewConflict("invoice sequence exhausted").WithDetail("year", c.Year)
	}
	return c.LastNumber + 1, nil
}

// NextNumber is the formatted number the counter issues next, or "" when
// the sequence is exhausted.
func (c Counter) NextNumber() string {
	n, err := c.Following()
	if err != nil {
		return ""
	}
	return Format(c.Year, n)
}

// Format renders a document number.
// Numbers wider than PadWidth are printed in full.
func Format(year int, num int64) string {
	return fmt.Sprintf("%d/%0*d", year, PadWidth, num)
}

// Parse splits a formatted number into year and sequence value.
func Parse(formatted string) (year int, num int64, err error) {
	yearPart, numPart, ok := strings.Cut(strings.TrimSpace(formatted), "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid document number %q: missing separator", formatted)
	}

	year, err = strconv.Atoi(yearPart)
	if err != nil || year <= 0 {
		return 0, 0, fmt.Errorf("invalid document number %q: bad year", formatted)
	}

	num, err = strconv.ParseInt(numPart, 10, 64)
	if err != nil || num <= 0 {
		return 0, 0, fmt.Errorf("invalid document number %q: bad sequence", formatted)
	}

	return year, num, nil
}
