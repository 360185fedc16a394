package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"workgenio/internal/core/numerator"
	"workgenio/internal/infrastructure/http/v1/dto"
)

// InvoiceNumbering is the numbering service as seen by HTTP.
type InvoiceNumbering interface {
	Next(ctx context.Context, year int) (string, error)
	Peek(ctx context.Context, year int) (string, error)
	Current(ctx context.Context, year int) (numerator.Counter, error)
	List(ctx context.Context) ([]numerator.Counter, error)
	SetLast(ctx context.Context, year int, last int64) error
}

// SequenceHandler exposes invoice counters.
type SequenceHandler struct {
	*BaseHandler
	service InvoiceNumbering
}

// NewSequenceHandler creates a sequence handler.
func NewSequenceHandler(base *BaseHandler, service InvoiceNumbering) *SequenceHandler {
	return &SequenceHandler{BaseHandler: base, service: service}
}

// Next allocates the next invoice number of a year.
// POST /api/v1/sequences/invoices/:year/next
func (h *SequenceHandler) Next(c *gin.Context) {
	year, ok := h.ParseYear(c)
	if !ok {
		return
	}

	number, err := h.service.Next(c.Request.Context(), year)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.InvoiceNumberResponse{Year: year, Number: number})
}

// Preview returns the number Next would issue now. Nothing is reserved.
// GET /api/v1/sequences/invoices/:year/next
func (h *SequenceHandler) Preview(c *gin.Context) {
	year, ok := h.ParseYear(c)
	if !ok {
		return
	}

	number, err := h.service.Peek(c.Request.Context(), year)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.OK(c, dto.InvoiceNumberResponse{Year: year, Number: number})
}

// Get returns the counter of a year.
// GET /api/v1/sequences/invoices/:year
func (h *SequenceHandler) Get(c *gin.Context) {
	year, ok := h.ParseYear(c)
	if !ok {
		return
	}

	counter, err := h.service.Current(c.Request.Context(), year)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.OK(c, dto.FromCounter(counter))
}

// Set moves a counter forward.
// PUT /api/v1/sequences/invoices/:year
func (h *SequenceHandler) Set(c *gin.Context) {
	year, ok := h.ParseYear(c)
	if !ok {
		return
	}
	var req dto.SetCounterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if err := h.service.SetLast(ctx, year, *req.LastNumber); err != nil {
		h.HandleError(c, err)
		return
	}

	counter, err := h.service.Current(ctx, year)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromCounter(counter))
}

// List returns every counter.
// GET /api/v1/sequences/invoices
func (h *SequenceHandler) List(c *gin.Context) {
	counters, err := h.service.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]dto.CounterResponse, 0, len(counters))
	for _, counter := range counters {
		items = append(items, dto.FromCounter(counter))
	}
	h.OK(c, dto.CounterListResponse{Items: items})
}
