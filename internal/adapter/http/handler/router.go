package handler

import (
	"net/http"

	"clearway-webhooks/internal/adapter/http/middleware"
	"clearway-webhooks/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds inbound and management request bodies.
const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WebhookSvc     ports.WebhookService
	InboundSvc     ports.InboundService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Metrics        http.Handler // nil = no /metrics route
	Mode           string       // gin mode; defaults to release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Partner webhooks (signature verified by the inbound service) ---
	inboundHandler := NewInboundHandler(deps.InboundSvc)
	inbound := r.Group("/webhooks")
	{
		inbound.POST("/:partner", rl(middleware.GroupInbound), inboundHandler.Receive)
		inbound.GET("/:partner", inboundHandler.Challenge)
	}

	// --- Management API (JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	webhookHandler := NewWebhookHandler(deps.WebhookSvc)
	webhooks := r.Group("/api/v1/webhooks", jwtAuth)
	{
		webhooks.POST("/events", rl(middleware.GroupWebhooksMgmt), webhookHandler.TriggerEvent)
		webhooks.POST("/endpoints/:id/test", rl(middleware.GroupWebhooksTest), webhookHandler.TestEndpoint)
		webhooks.GET("/endpoints/:id/stats", rl(middleware.GroupWebhooksMgmt), webhookHandler.GetStats)
		webhooks.POST("/deliveries/:id/retry", rl(middleware.GroupWebhooksMgmt), webhookHandler.RetryDelivery)
	}

	return r
}
