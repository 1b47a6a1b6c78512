package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"goodturn-api/config"
	"goodturn-api/database"
	"goodturn-api/jobs"
	"goodturn-api/repositories"
	"goodturn-api/routes"
	"goodturn-api/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Load the scraper source registry
	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Fatal("Failed to load sources:", err)
	}
	log.Printf("Loaded %d enabled event sources", len(sources))

	// Wire the aggregation pipeline
	generator := services.NewHybridTextGenerator(cfg)
	extraction := services.NewExtractionService(generator, cfg.PageTextMaxChars)
	orchestrator, err := services.NewSourceOrchestrator(cfg, sources, extraction)
	if err != nil {
		log.Fatal("Failed to build source orchestrator:", err)
	}

	eventRepo := repositories.NewEventRepository(db)
	geocoder := services.NewNominatimGeocoder(cfg)
	alerts := services.NewAlertService(cfg)
	cache := services.NewCacheService(eventRepo, geocoder, orchestrator, alerts, cfg)

	// Background housekeeping for long-expired cache rows
	cleanupJob := jobs.NewCacheCleanupJob(db, cfg.CleanupInterval, cfg.CleanupRetention)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	// Set Gin mode based on environment
	if cfg.Port == "8080" { // Development
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	router := gin.Default()

	// Setup CORS middleware
	router.Use(routes.SetupCORS())

	// Recovery middleware
	router.Use(gin.Recovery())

	// Setup routes
	routes.SetupRoutes(router, cache)

	// Start server
	log.Printf("Starting GoodTurn API server on port %s", cfg.Port)
	log.Printf("Health check available at: http://localhost:%s/ping", cfg.Port)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
