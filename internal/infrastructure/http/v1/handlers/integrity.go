package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	core "workgenio/internal/core/integrity"
	"workgenio/internal/domain/integrity"
	"workgenio/internal/infrastructure/http/v1/dto"
)

// DependencyChecker reports dependents of an entity.
type DependencyChecker interface {
	CheckDependents(ctx context.Context, t core.EntityType, id int64) (*integrity.DependencyReport, error)
}

// EntityRemover deletes entities.
type EntityRemover interface {
	Delete(ctx context.Context, t core.EntityType, id int64) error
	Purge(ctx context.Context, t core.EntityType, id int64, confirmed bool) (*integrity.PurgeResult, error)
}

// EntityHandler exposes dependency checks and deletes of customers, products
// and suppliers.
type EntityHandler struct {
	*BaseHandler
	guard  DependencyChecker
	purger EntityRemover
}

// NewEntityHandler creates an entity handler.
func NewEntityHandler(base *BaseHandler, guard DependencyChecker, purger EntityRemover) *EntityHandler {
	return &EntityHandler{BaseHandler: base, guard: guard, purger: purger}
}

// Dependents reports which kinds of dependent rows exist.
// GET /api/v1/entities/:type/:id/dependents
func (h *EntityHandler) Dependents(c *gin.Context) {
	t, id, ok := h.ParseEntity(c)
	if !ok {
		return
	}

	report, err := h.guard.CheckDependents(c.Request.Context(), t, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.OK(c, dto.FromReport(report))
}

// Delete removes an entity that nothing references.
// DELETE /api/v1/entities/:type/:id
func (h *EntityHandler) Delete(c *gin.Context) {
	t, id, ok := h.ParseEntity(c)
	if !ok {
		return
	}

	if err := h.purger.Delete(c.Request.Context(), t, id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Purge removes an entity with all its dependents. The body must confirm it.
// POST /api/v1/entities/:type/:id/purge
func (h *EntityHandler) Purge(c *gin.Context) {
	t, id, ok := h.ParseEntity(c)
	if !ok {
		return
	}
	// An empty body is an unconfirmed request.
	var req dto.PurgeRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	result, err := h.purger.Purge(c.Request.Context(), t, id, req.Confirmed)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.OK(c, dto.FromPurge(result))
}
