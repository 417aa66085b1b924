package api

import (
	"context"
	"time"

	"github.com/13g7895123/stock.warrant/api/handler"
	"github.com/13g7895123/stock.warrant/api/middleware"
	"github.com/13g7895123/stock.warrant/config"
	"github.com/13g7895123/stock.warrant/linebot"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the components the router serves.
type Deps struct {
	Config    *config.Config
	Queries   handler.QueryRunner
	Sessions  handler.ActiveCounter
	MaxCrawls int
	Jobs      *handler.Jobs
	Bot       *linebot.Bot // nil when LINE credentials are absent
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health, metrics and the LINE callback stay outside API auth: probes must
// always work and LINE authenticates with its own signature.
func NewRouter(ctx context.Context, d Deps) *gin.Engine {
	cfg := d.Config
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/", linebot.Home())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if d.Bot != nil {
		r.POST("/callback", d.Bot.Callback())
	}

	v1 := r.Group("/api/v1")

	// Health, no auth.
	v1.GET("/health", handler.Health(d.Sessions, cfg.Browser.Engine, d.MaxCrawls, d.StartTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.GET("/warrants/:code", handler.GetWarrants(d.Queries))
	protected.POST("/jobs", handler.PostJob(d.Jobs, d.Queries))
	protected.GET("/jobs/:id", handler.GetJob(d.Jobs))

	return r
}
