package main

import (
	"log"

	"testdesk/config"
	"testdesk/handlers"
	"testdesk/middleware"
	"testdesk/models"
	"testdesk/routes"
	"testdesk/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Initialize services
	catalogService := services.NewCatalogService(db, redisClient, cfg.TreeCacheTTL)
	locker := services.NewRedisLocker(redisClient, cfg.SubmitLockTTL, cfg.SubmitLockWait)
	attemptService := services.NewAttemptService(db, catalogService, locker, hub)
	answerService := services.NewAnswerService(db, hub)
	questionService := services.NewQuestionService(db)
	reportService := services.NewReportService(db, hub)

	// Setup Gin router
	router := gin.Default()
	router.Use(middleware.CORS(cfg.CORSOrigins))

	routes.SetupRoutes(router, routes.Handlers{
		Attempt:  handlers.NewAttemptHandler(attemptService, answerService),
		Question: handlers.NewQuestionHandler(questionService),
		Test:     handlers.NewTestHandler(catalogService),
		Report:   handlers.NewReportHandler(reportService),
	}, hub, cfg.JWTSecret)

	// Start server
	addr := cfg.BindAddress + ":" + cfg.Port
	log.Printf("Server starting on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
