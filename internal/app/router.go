package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"courier/internal/handler"
	"courier/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	DeliveryHandler *handler.DeliveryHandler
	CourierHandler  *handler.CourierHandler
	MissionHandler  *handler.MissionHandler
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
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

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus metrics.
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Delivery routes.
		deliveries := v1.Group("/deliveries")
		{
			deliveries.POST("", deps.DeliveryHandler.CreateDelivery)
			deliveries.GET("", deps.DeliveryHandler.GetAll)
			deliveries.GET("/:id", deps.DeliveryHandler.GetDelivery)
			deliveries.POST("/:id/status", deps.DeliveryHandler.UpdateStatus)
			deliveries.POST("/:id/cancel", deps.DeliveryHandler.CancelDelivery)
		}

		// Courier routes.
		couriers := v1.Group("/couriers")
		{
			couriers.POST("/register", deps.CourierHandler.Register)
			couriers.GET("", deps.CourierHandler.GetAll)
			couriers.POST("/:id/location", deps.CourierHandler.UpdateLocation)
			couriers.POST("/:id/offline", deps.CourierHandler.GoOffline)
		}

		// Mission routes.
		missions := v1.Group("/missions")
		{
			missions.POST("", deps.MissionHandler.CreateMission)
			missions.GET("", deps.MissionHandler.GetAll)
			missions.GET("/:id", deps.MissionHandler.GetMission)
			missions.POST("/:id/advance", deps.MissionHandler.AdvanceMission)
		}
	}

	return router
}
