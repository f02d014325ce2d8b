package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safety-prediction-api/config"
	"safety-prediction-api/handlers"
	"safety-prediction-api/middleware"
	"safety-prediction-api/models"
	"safety-prediction-api/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql db handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Incident{},
		&models.FeedbackEvent{},
		&models.SynthesizedRecord{},
		&models.ModelSnapshotRow{},
		&models.User{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Redis cache (assessment cache, alert pub/sub, feedback bus)
	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Printf("Redis unavailable, running without cache: %v", err)
	}

	// Build grid snapshot from historical incidents
	var incidents []models.Incident
	if err := db.Order("id").Find(&incidents).Error; err != nil {
		log.Fatalf("Failed to load incidents: %v", err)
	}
	grid := services.NewGridIndex(cfg.Grid, cfg.Risk)
	gridSnap := grid.Rebuild(incidents)
	summary := gridSnap.Summary()
	log.Printf("grid built: %d cells (%d high, %d medium, %d low) from %d incidents",
		summary.TotalCells, summary.HighCells, summary.MediumCells, summary.LowCells, len(incidents))

	// Load or bootstrap the classifier snapshot
	modelStore := services.NewModelStore(db, cache)
	if err := modelStore.LoadLatest(ctx); err != nil {
		if !errors.Is(err, services.ErrNoSnapshot) {
			log.Fatalf("Failed to load classifier snapshot: %v", err)
		}
		bootstrapModel(ctx, modelStore, incidents, cfg.Retrain)
	}

	engine := services.NewRiskEngine(grid, modelStore, cfg.Risk)
	tracker := services.NewJourneyTracker(engine)
	updater := services.NewModelUpdater(db, modelStore, cfg.Retrain)
	ingestor := services.NewFeedbackIngestor(db, modelStore, updater, cfg.Retrain)
	ingestor.Start(ctx)
	ingestor.SubscribeBus(ctx, cache)

	authService := services.NewAuthService(cfg.JWT)

	assessHandler := handlers.NewAssessHandler(engine, tracker, cache)
	gridHandler := handlers.NewGridHandler(grid, cache, cfg.Grid.NearbyRadiusKm)
	feedbackHandler := handlers.NewFeedbackHandler(ingestor, updater)
	incidentsHandler := handlers.NewIncidentsHandler(db, cache)
	modelHandler := handlers.NewModelHandler(modelStore)
	authHandler := handlers.NewAuthHandler(db, authService)

	// Initialize Gin router
	router := gin.Default()
	router.Use(middleware.SetupCORS(cfg.CORS))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":       "UP",
			"message":      "Safety Prediction API is running",
			"model_loaded": modelStore.Active() != nil,
			"grid_cells":   grid.Snapshot().Summary().TotalCells,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/predict", assessHandler.Predict)
		api.POST("/journey", assessHandler.Journey)
		api.POST("/grid/zone", gridHandler.CheckZone)
		api.POST("/grid/nearby", gridHandler.Nearby)
		api.GET("/grid/summary", gridHandler.Summary)
		api.GET("/incidents", incidentsHandler.GetIncidents)
		api.GET("/model", modelHandler.GetInfo)

		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/logout", authHandler.Logout)

		authed := api.Group("", middleware.RequireAuth(authService))
		authed.POST("/feedback", feedbackHandler.Submit)
		authed.POST("/retrain", feedbackHandler.Retrain)
	}

	router.GET("/ws/alerts", handlers.LiveWebSocket(cache, authService))

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if cache != nil {
		cache.Close()
	}
}

// bootstrapModel trains an initial snapshot from the incident table when
// none is persisted yet. With too little data the API starts in degraded
// grid-only mode instead.
func bootstrapModel(ctx context.Context, store *services.ModelStore, incidents []models.Incident, cfg config.RetrainConfig) {
	if len(incidents) < cfg.MinRecords {
		log.Printf("no snapshot and only %d incidents (< %d), starting in degraded grid-only mode",
			len(incidents), cfg.MinRecords)
		return
	}

	corpus := make([]services.TrainingRecord, 0, len(incidents))
	for _, inc := range incidents {
		corpus = append(corpus, services.TrainingRecordFromIncident(inc))
	}

	snap, err := services.TrainSnapshot(ctx, corpus, cfg)
	if err != nil {
		log.Printf("bootstrap training failed, starting degraded: %v", err)
		return
	}
	if err := store.Publish(ctx, snap); err != nil {
		log.Printf("bootstrap snapshot publish failed, starting degraded: %v", err)
		return
	}
	log.Printf("bootstrap snapshot v%d trained (accuracy %.3f)", snap.Version, snap.Accuracy)
}
