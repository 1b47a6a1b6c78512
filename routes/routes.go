package routes

import (
	"github.com/gin-gonic/gin"

	"goodturn-api/controllers"
	"goodturn-api/middleware"
	"goodturn-api/services"
)

func SetupRoutes(r *gin.Engine, cache *services.CacheService) {
	discoveryController := controllers.NewDiscoveryController(cache)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})

	// API version 1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.SecurityHeaders())

	events := v1.Group("/events")
	// Scrape fan-outs are expensive; throttle harder than a plain CRUD API.
	events.Use(middleware.RateLimit(30, 5))
	{
		events.GET("/search", discoveryController.SearchEvents)
		events.GET("/tonight", discoveryController.TonightEvents)
	}
}

// SetupCORS configures cross-origin access for the public API
func SetupCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
