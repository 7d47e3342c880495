package router

import (
	"net/http"

	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Webhook routes, relative to /api/v1
const (
	WebhookPrefix   = "/webhooks"
	InboundPath     = "/inbound"
	InboundTestPath = "/inbound/test"
)

// EngineConfig holds what the HTTP engine is built from
type EngineConfig struct {
	Logger         *zap.Logger
	TrustedProxies []string
	// MaxBodySize caps every request body
	MaxBodySize int64
	// WebhookBodySize caps webhook bodies; zero keeps MaxBodySize
	WebhookBodySize int64
	Tracing         middleware.TracingConfig
	MeterProvider   *telemetry.MeterProvider

	Webhooks *handler.WebhookHandler
	System   *handler.SystemHandler
}

// NewEngine builds the gin engine with the middleware stack and all routes
func NewEngine(cfg EngineConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Tracing - Server span, tagged with the request ID
	// 3. Metrics - Request count and latency per route
	// 4. Recovery - Catch panics
	// 5. Logger - Log requests
	// 6. Security - Add security headers
	// 7. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(cfg.Tracing)...)
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: cfg.MeterProvider,
		Enabled:       true,
	}))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.MaxBodySize))

	var base handler.BaseHandler
	engine.NoRoute(base.NotFound)
	engine.NoMethod(base.MethodNotAllowed)

	api := NewAPI("v1")

	if cfg.System != nil {
		// Health check stays outside API versioning
		engine.GET("/health", cfg.System.Health)

		api.Add(NewGroup("system", "/system").
			GET("/info", cfg.System.GetSystemInfo).
			GET("/ping", cfg.System.Ping))
	}

	if cfg.Webhooks != nil {
		// Called by third-party systems; authenticated by the token query parameter
		webhooks := NewGroup("webhooks", WebhookPrefix)
		if cfg.WebhookBodySize > 0 {
			webhooks.Use(middleware.BodyLimit(cfg.WebhookBodySize))
		}
		for _, p := range []string{InboundPath, InboundTestPath} {
			webhooks.Handle(p, cfg.Webhooks.Receive, http.MethodPost, http.MethodPut)
		}
		api.Add(webhooks)
	}

	api.Mount(engine)
	return engine
}
