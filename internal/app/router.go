package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"payledger/internal/handler"
	"payledger/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	PaymentHandler *handler.PaymentHandler
	WebhookHandler *handler.WebhookHandler
	PayoutHandler  *handler.PayoutHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
	ServiceName    string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(otelgin.Middleware(deps.ServiceName))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Gateway callbacks authenticate by signature, not by principal.
		v1.POST("/payments/webhooks/:gateway", deps.WebhookHandler.HandleWebhook)

		api := v1.Group("",
			middleware.PrincipalMiddleware(),
			middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger),
		)

		// Payment routes.
		payments := api.Group("/payments")
		{
			payments.POST("", deps.PaymentHandler.CreatePayment)
			payments.GET("/:id", deps.PaymentHandler.GetPayment)
			// The first segment is the gateway name. gin allows one
			// wildcard name per segment, so it shares :id with the route above.
			payments.GET("/:id/:externalRef/status", deps.PaymentHandler.GetPaymentStatus)
		}

		// Payout routes.
		payouts := api.Group("/payouts")
		{
			payouts.POST("", deps.PayoutHandler.CreatePayout)
			payouts.GET("/:externalRef/status", deps.PayoutHandler.GetPayoutStatus)
		}
	}

	return router
}
