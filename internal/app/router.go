package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	OrderHandler        *handler.OrderHandler
	DriverHandler       *handler.DriverHandler
	PaymentHandler      *handler.PaymentHandler
	CancellationHandler *handler.CancellationHandler
	RedisClient         *redis.Client
	NewRelicApp         *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.Idempotency(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Order routes.
		orders := v1.Group("/orders")
		{
			orders.POST("", deps.OrderHandler.CreateOrder)
			orders.GET("", deps.OrderHandler.GetAll)
			orders.GET("/track/:token", deps.OrderHandler.TrackOrder)
			orders.GET("/:id", deps.OrderHandler.GetOrder)
			orders.POST("/:id/cancel", deps.OrderHandler.CancelOrder)
			orders.POST("/:id/viewed", deps.OrderHandler.MarkViewed)
			orders.GET("/:id/cancellation-requests", deps.CancellationHandler.ListForOrder)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("", deps.DriverHandler.Register)
			drivers.GET("/:id", deps.DriverHandler.GetDriver)
			drivers.PUT("/:id/status", deps.DriverHandler.SetStatus)
			drivers.POST("/:id/heartbeat", deps.DriverHandler.Heartbeat)
			drivers.PUT("/:id/token", deps.DriverHandler.UpdateToken)
			drivers.POST("/:id/orders/:orderID/accept", deps.DriverHandler.AcceptOrder)
			drivers.POST("/:id/orders/:orderID/start", deps.DriverHandler.StartDelivery)
			drivers.POST("/:id/orders/:orderID/complete", deps.DriverHandler.CompleteDelivery)
		}

		// Payment provider callbacks.
		payments := v1.Group("/payments")
		{
			payments.POST("/events", deps.PaymentHandler.HandleEvent)
		}

		// Cancellation workflow.
		cancellations := v1.Group("/cancellation-requests")
		{
			cancellations.POST("", deps.CancellationHandler.Create)
			cancellations.POST("/:id/resolve", deps.CancellationHandler.Resolve)
		}
	}

	return router
}
