package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"workgenio/internal/core/apperror"
	core "workgenio/internal/core/integrity"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.HandleError(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// HandleError registers err on the Gin context and aborts the request.
// The JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseYear reads the :year path parameter.
func (h *BaseHandler) ParseYear(c *gin.Context) (int, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year <= 0 {
		h.HandleError(c, apperror.NewValidation("year must be a positive integer").WithDetail("year", c.Param("year")))
		return 0, false
	}
	return year, true
}

// ParseEntity reads the :type and :id path parameters.
func (h *BaseHandler) ParseEntity(c *gin.Context) (core.EntityType, int64, bool) {
	t, err := core.ParseEntityType(c.Param("type"))
	if err != nil {
		h.HandleError(c, apperror.NewValidation(err.Error()).WithDetail("type", c.Param("type")))
		return "", 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.HandleError(c, apperror.NewValidation("id must be a positive integer").WithDetail("id", c.Param("id")))
		return "", 0, false
	}
	return t, id, true
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
