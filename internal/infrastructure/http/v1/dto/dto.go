// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"workgenio/internal/core/numerator"
	"workgenio/internal/domain/integrity"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// --- Invoice numbering ---

// InvoiceNumberResponse carries a freshly allocated number.
type InvoiceNumberResponse struct {
	Year   int    `json:"year"`
	Number string `json:"number"`
}

// CounterResponse describes the counter of one year. Next is empty once the
// sequence is exhausted.
type CounterResponse struct {
	Year       int    `json:"year"`
	LastNumber int64  `json:"last_number"`
	Next       string `json:"next"`
}

// FromCounter builds a CounterResponse.
func FromCounter(c numerator.Counter) CounterResponse {
	return CounterResponse{
		Year:       c.Year,
		LastNumber: c.LastNumber,
		Next:       c.NextNumber(),
	}
}

// SetCounterRequest moves a counter forward.
type SetCounterRequest struct {
	LastNumber *int64 `json:"last_number" binding:"required"`
}

// CounterListResponse lists every counter.
type CounterListResponse struct {
	Items []CounterResponse `json:"items"`
}

// --- Referential integrity ---

// DependentsResponse is a dependency report. Dependents maps each category
// to whether rows exist; Counts holds the row counts.
type DependentsResponse struct {
	EntityType    string           `json:"entity_type"`
	EntityID      int64            `json:"entity_id"`
	HasDependents bool             `json:"has_dependents"`
	Dependents    map[string]bool  `json:"dependents"`
	Counts        map[string]int64 `json:"counts"`
}

// FromReport builds a DependentsResponse.
func FromReport(r *integrity.DependencyReport) DependentsResponse {
	counts := make(map[string]int64, len(r.Categories))
	for _, c := range r.Categories {
		counts[c.Category] = c.Count
	}
	return DependentsResponse{
		EntityType:    string(r.EntityType),
		EntityID:      r.EntityID,
		HasDependents: r.HasDependents(),
		Dependents:    r.AsMap(),
		Counts:        counts,
	}
}

// PurgeRequest confirms a cascading delete.
type PurgeRequest struct {
	Confirmed bool `json:"confirmed"`
}

// PurgeResponse reports a committed purge.
type PurgeResponse struct {
	EntityType   string                 `json:"entity_type"`
	EntityID     int64                  `json:"entity_id"`
	RowsAffected int64                  `json:"rows_affected"`
	Steps        []integrity.StepResult `json:"steps"`
}

// FromPurge builds a PurgeResponse.
func FromPurge(r *integrity.PurgeResult) PurgeResponse {
	return PurgeResponse{
		EntityType:   string(r.EntityType),
		EntityID:     r.EntityID,
		RowsAffected: r.RowsAffected(),
		Steps:        r.Steps,
	}
}
