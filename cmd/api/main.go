package main

import (
	"fmt"
	"net/http"
	"os"

	"horizon/internal/config"
	"horizon/internal/database"
	"horizon/internal/handlers"
	"horizon/internal/logger"
	"horizon/internal/middleware"
	"horizon/internal/services"
	"horizon/internal/validator"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register request validators
	validator.Register()

	// Initialize services
	db := dbManager.DB()
	flowService := services.NewFlowService(db)
	eventService := services.NewEventService(db)
	projectionService := services.NewProjectionService(db)
	goalService := services.NewGoalService(db)
	solverService := services.NewSolverService(db, projectionService, appConfig.SolverMaxIterations)
	refreshService := services.NewRefreshService(db, flowService, eventService,
		projectionService, goalService, appConfig.RefreshSoftTimeout, appConfig.RefreshHardTimeout)

	// Initialize handlers
	eventHandler := handlers.NewEventHandler(eventService)
	projectionHandler := handlers.NewProjectionHandler(projectionService)
	scenarioHandler := handlers.NewScenarioHandler(projectionService)
	goalHandler := handlers.NewGoalHandler(goalService, solverService)
	pipelineHandler := handlers.NewPipelineHandler(refreshService, eventService,
		appConfig.DrainBatchSize, appConfig.EventRetention)

	// Background schedule: drain the event queue continuously, purge
	// terminal events once a day.
	scheduler := services.NewScheduler(refreshService, eventService,
		appConfig.DrainInterval, appConfig.DrainBatchSize, appConfig.EventRetention)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Event routes
	v1.POST("/events", eventHandler.EmitEvent)

	// Household projection routes
	households := v1.Group("/households")
	households.GET("/:id/projections", projectionHandler.GetProjections)
	households.GET("/:id/metrics/current", projectionHandler.GetCurrentMetrics)
	households.POST("/:id/goals/evaluate", goalHandler.EvaluateGoals)
	households.POST("/:id/goals/:gid/solve", goalHandler.SolveGoal)

	// Scenario routes
	scenarios := v1.Group("/scenarios")
	scenarios.POST("/:id/extend-horizon", scenarioHandler.ExtendHorizon)
	scenarios.POST("/:id/pin", scenarioHandler.PinBaseline)

	// Pipeline routes, gated by the pipeline API key
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(appConfig.PipelineAPIKey))
	pipeline.POST("/drain", pipelineHandler.Drain)
	pipeline.POST("/purge", pipelineHandler.Purge)

	log.Infof("Starting Horizon backend server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
