// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"docflow/internal/domain/catalogs/client"
	"docflow/internal/domain/catalogs/project"
	"docflow/internal/infrastructure/http/v1/handlers"
	"docflow/internal/infrastructure/http/v1/middleware"
	"docflow/pkg/logger"
)

// RouterConfig holds the services behind the API.
type RouterConfig struct {
	Logger *logger.Logger

	Documents handlers.DocumentService
	Delivery  handlers.DeliveryService
	Billing   handlers.BillingService
	Clients   handlers.CatalogService[*client.Client]
	Projects  handlers.CatalogService[*project.Project]

	// History is optional; nil leaves /documents/:id/history unregistered.
	History handlers.HistoryReader

	// Idempotency is optional; nil disables X-Idempotency-Key handling.
	Idempotency middleware.IdempotencyStore

	// HealthChecks are run by /health/ready.
	HealthChecks map[string]handlers.HealthCheck

	Production bool
}

// NewRouter creates and configures the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Actor())
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerDocumentRoutes(v1.Group("/documents"), base, cfg)
	registerCatalogRoutes(v1, base, cfg)

	return router
}

func registerDocumentRoutes(docs *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Documents != nil {
		RegisterDocumentRoutes(docs, handlers.NewDocumentHandler(base, cfg.Documents))
	}
	if cfg.Delivery != nil {
		h := handlers.NewDeliveryHandler(base, cfg.Delivery)
		docs.POST("/:id/partial-delivery", h.Create)
		docs.GET("/:id/partial-delivery", h.Status)
	}
	if cfg.Billing != nil {
		RegisterBillingRoutes(docs, handlers.NewBillingHandler(base, cfg.Billing))
	}
	if cfg.History != nil {
		h := handlers.NewHistoryHandler(base, cfg.History)
		docs.GET("/:id/history", h.Document)
	}
}

func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Clients != nil {
		h := handlers.NewClientHandler(base, cfg.Clients)
		clients := rg.Group("/clients")
		clients.POST("", h.Create)
		clients.GET("", h.List)
		clients.GET("/:id", h.Get)
	}
	if cfg.Projects != nil {
		h := handlers.NewProjectHandler(base, cfg.Projects)
		projects := rg.Group("/projects")
		projects.POST("", h.Create)
		projects.GET("/:id", h.Get)
	}
}
