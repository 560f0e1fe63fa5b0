package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/pageclip/adapter"
	"github.com/use-agent/pageclip/api/handler"
	"github.com/use-agent/pageclip/api/middleware"
	"github.com/use-agent/pageclip/config"
	"github.com/use-agent/pageclip/orchestrator"
)

// Deps are the services the router exposes.
type Deps struct {
	Config    *config.Config
	Sessions  *orchestrator.Sessions
	Registry  *adapter.Registry
	Overrides []orchestrator.Override
	Settings  config.SettingsStore
	Snapshots handler.Snapshotter
	BrowserUp bool
	Gatherer  prometheus.Gatherer
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health, metrics and the stamp script stay outside auth so probes and
// operator pages can always reach them.
func NewRouter(ctx context.Context, d Deps) *gin.Engine {
	gin.SetMode(d.Config.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d.Sessions, d.BrowserUp, d.StartTime))
	v1.GET("/stamp.js", handler.StampJS())

	protected := v1.Group("")
	if d.Config.Auth.Enabled {
		protected.Use(middleware.Auth(d.Config.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, d.Config.RateLimit))

	protected.GET("/adapters", handler.Adapters(d.Registry, d.Overrides))
	protected.POST("/capture", handler.Capture(d.Sessions, d.Snapshots))
	protected.POST("/capture/selection", handler.CaptureSelection(d.Sessions))
	protected.GET("/settings", handler.GetSettings(d.Settings))
	protected.PUT("/settings", handler.PutSettings(d.Settings))

	return r
}
