package handler

import (
	"intent-payment-gateway/internal/adapter/http/middleware"
	redisStore "intent-payment-gateway/internal/adapter/storage/redis"
	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc     ports.PaymentService
	ReconcileSvc   ports.ReconcileService
	Auth           ports.Authenticator
	SigSvc         ports.SignatureService
	WebhookRepo    ports.WebhookEventRepository
	IdemCache      ports.IdempotencyCache
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	WebhookSecret  string
	RateLimitRules map[string][]middleware.RateLimitRule // nil = defaults
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := deps.RateLimitRules
	if rules == nil {
		rules = middleware.DefaultRateLimitRules()
	}

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		groupRules, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, groupRules, deps.Logger)
	}

	v1 := r.Group("/v1")

	// --- Provider webhooks (HMAC over raw body, no API key) ---
	webhookHandler := NewWebhookHandler(deps.ReconcileSvc, deps.SigSvc, deps.WebhookRepo, deps.WebhookSecret, deps.Logger)
	v1.POST("/webhooks/intents", rl("webhooks"), webhookHandler.HandleIntentWebhook)

	// --- Merchant API (API key + request HMAC) ---
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)

	writeAuth := middleware.APIKeyAuth(deps.Auth, deps.Logger, domain.ScopePaymentsWrite)
	readAuth := middleware.APIKeyAuth(deps.Auth, deps.Logger, domain.ScopePaymentsRead)
	idem := middleware.Idempotency(deps.IdemCache, deps.Logger)

	payments := v1.Group("/payments")
	{
		payments.POST("/prepare", rl("payments_write"), writeAuth, idem, paymentHandler.Prepare)
		payments.POST("/submit", rl("payments_write"), writeAuth, idem, paymentHandler.Submit)
		payments.GET("", rl("payments_read"), readAuth, paymentHandler.List)
		payments.GET("/:id", rl("payments_read"), readAuth, paymentHandler.Get)
	}

	return r
}
