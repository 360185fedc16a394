// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"workgenio/internal/infrastructure/http/v1/handlers"
	"workgenio/internal/infrastructure/http/v1/middleware"
	"workgenio/pkg/logger"
)

// RouterConfig holds the services behind the API.
type RouterConfig struct {
	Logger *logger.Logger

	// DB answers readiness probes.
	DB     handlers.Pinger
	Driver string

	Numbering handlers.InvoiceNumbering
	Guard     handlers.DependencyChecker
	Purger    handlers.EntityRemover

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// ErrorHandler wraps Recovery so a recovered panic is still rendered.
	router.Use(middleware.Trace(cfg.Logger))
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "message": "route not found"})
	})

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Driver)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	base := handlers.NewBaseHandler()
	v1 := router.Group("/api/v1")
	{
		registerSequenceRoutes(v1.Group("/sequences/invoices"), handlers.NewSequenceHandler(base, cfg.Numbering))
		registerEntityRoutes(v1.Group("/entities"), handlers.NewEntityHandler(base, cfg.Guard, cfg.Purger))
	}

	return router
}

func registerSequenceRoutes(group *gin.RouterGroup, h *handlers.SequenceHandler) {
	group.GET("", h.List)
	group.GET("/:year", h.Get)
	group.PUT("/:year", h.Set)
	group.GET("/:year/next", h.Preview)
	group.POST("/:year/next", h.Next)
}

func registerEntityRoutes(group *gin.RouterGroup, h *handlers.EntityHandler) {
	group.GET("/:type/:id/dependents", h.Dependents)
	group.DELETE("/:type/:id", h.Delete)
	group.POST("/:type/:id/purge", h.Purge)
}
