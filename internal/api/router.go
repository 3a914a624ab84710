package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/volforecast/internal/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouterOptions tune the global middleware chain.
type RouterOptions struct {
	// RequestTimeout bounds each request's context. Zero disables it.
	RequestTimeout time.Duration
	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit int
	// Metrics receives request metrics and, when MetricsHandler is set, is
	// exposed at /metrics.
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler
}

// NewRouter creates a Gin engine with the model routes, Swagger docs and
// optional /metrics. Health and readiness probes are registered by
// app.InitializeApp.
func NewRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	router := gin.New()

	// ─── Middlewares ───────────────────────────────
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RecoveryMiddleware(),
		middleware.ErrorHandler,
		middleware.RateLimiter(opts.RateLimit, time.Minute),
	)
	if opts.Metrics != nil {
		router.Use(middleware.Metrics(opts.Metrics))
	}

	// ─── Timeout ──────────────────────────────────
	if opts.RequestTimeout > 0 {
		router.Use(func(c *gin.Context) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), opts.RequestTimeout)
			defer cancel()
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}

	// ─── Swagger ──────────────────────────────────
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// ─── Metrics ──────────────────────────────────
	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	// ─── Models ───────────────────────────────────
	router.POST("/fit", handler.Fit)
	router.POST("/predict", handler.Predict)

	return router
}
