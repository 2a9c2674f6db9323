package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig holds what the router needs.
type RouterConfig struct {
	// Service runs the workflows.
	Service Service

	// BaseConfig supplies the configuration each request overlays.
	BaseConfig BaseConfig

	// Logger is used for request logging. Nil disables it.
	Logger *zap.Logger

	// Registry receives the HTTP metrics and is served on /metrics.
	// Nil uses a fresh registry.
	Registry *prometheus.Registry
}

// SetupRouter creates the gin engine with every route and middleware.
func SetupRouter(cfg *RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(newHTTPMetrics(registry).middleware())
	router.Use(RequestLogger(logger))

	h := &handler{service: cfg.Service, base: cfg.BaseConfig}

	router.GET("/healthz", healthz)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	deploy := router.Group("/deploy")
	{
		deploy.POST("/head-node", h.deployHead)
		deploy.POST("/worker-nodes", h.deployWorkers)
	}
	router.POST("/cluster-info", h.clusterInfo)
	router.POST("/teardown", h.teardown)

	return router
}
