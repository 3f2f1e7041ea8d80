package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"catalog-sync-service/internal/clients/feed"
	"catalog-sync-service/internal/clients/openai"
	"catalog-sync-service/internal/config"
	"catalog-sync-service/internal/database"
	"catalog-sync-service/internal/encryption"
	"catalog-sync-service/internal/handlers"
	"catalog-sync-service/internal/middleware"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/secrets"
	"catalog-sync-service/internal/services"
	"catalog-sync-service/internal/vectorstore"
	"gorm.io/gorm"
)

func main() {
	// Load .env if present (local development)
	_ = godotenv.Load()

	setupLogging()

	// Load configuration
	cfg := config.Load()

	// Resolve gcp-secret:// references before anything uses credentials
	if err := resolveSecrets(cfg); err != nil {
		log.Fatalf("Failed to resolve secrets: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate models
	if err := db.AutoMigrate(
		&models.Product{},
		&models.SyncRun{},
		&models.SyncLog{},
		&models.Feedback{},
		&models.OutfitCache{},
	); err != nil {
		log.Printf("Warning: Auto-migration failed: %v", err)
	}
	log.Println("Database models migrated")

	// Redis is optional; reads fall back to the database without it
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: invalid REDIS_URL, caching disabled: %v", err)
		} else {
			redisClient = redis.NewClient(opts)
			if err := redisClient.Ping(context.Background()).Err(); err != nil {
				log.Printf("Warning: Redis unreachable, caching disabled: %v", err)
				redisClient = nil
			} else {
				log.Println("Redis connected")
			}
		}
	}

	// Vector index
	vectorStore, err := vectorstore.New(cfg.VectorStorePath, cfg.VectorCollection)
	if err != nil {
		log.Fatalf("Failed to open vector store: %v", err)
	}

	// External clients
	feedClient := feed.NewClient(feed.Config{
		BaseURL:   cfg.FeedBaseURL,
		AppID:     cfg.FeedAppID,
		APIKey:    cfg.FeedAPIKey,
		PageSize:  cfg.SyncPageSize,
		RateLimit: cfg.FeedRateLimit,
	})
	openaiClient := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)

	// Initialize repositories
	productRepo := repository.NewProductRepository(db, redisClient)
	syncRepo := repository.NewSyncRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	// Initialize services
	enrichmentService := services.NewEnrichmentService(openaiClient, cfg.EmbeddingModel, cfg.EmbeddingFallbackModel)
	syncService := services.NewSyncService(feedClient, productRepo, syncRepo, vectorStore, enrichmentService, services.SyncConfig{
		FeedSource:        cfg.FeedSource,
		DefaultCurrency:   cfg.DefaultCurrency,
		EnrichConcurrency: cfg.EnrichConcurrency,
	})
	searchService := services.NewSearchService(productRepo, enrichmentService, vectorStore)
	outfitService := services.NewOutfitService(openaiClient, productRepo, feedbackRepo, cfg.CompletionModel, cfg.CompletionFallbackModel)
	// Feedback comments are encrypted at rest when a key is configured
	var encryptor *encryption.Encryptor
	if cfg.FeedbackEncryptionKey != "" {
		encryptor, err = encryption.NewEncryptor(encryption.DeriveKey(cfg.FeedbackEncryptionKey))
		if err != nil {
			log.Fatalf("Failed to initialize comment encryption: %v", err)
		}
	}
	feedbackService := services.NewFeedbackService(feedbackRepo, enrichmentService, encryptor)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	syncHandler := handlers.NewSyncHandler(syncService)
	productsHandler := handlers.NewProductsHandler(productRepo)
	searchHandler := handlers.NewSearchHandler(searchService)
	outfitsHandler := handlers.NewOutfitsHandler(outfitService)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackService)

	// Optional scheduled sync
	if cfg.SyncInterval > 0 {
		go syncService.RunScheduler(context.Background(), cfg.SyncInterval)
		log.Printf("Scheduled sync enabled every %s", cfg.SyncInterval)
	}

	// Setup router
	router := setupRouter(cfg, db, healthHandler, syncHandler, productsHandler, searchHandler, outfitsHandler, feedbackHandler)

	// Start server
	log.Printf("Catalog Sync Service starting on port %s (env: %s)", cfg.Port, cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// resolveSecrets replaces Secret Manager references in credential
// fields with their stored values. Plain values pass through untouched.
func resolveSecrets(cfg *config.Config) error {
	refs := []*string{&cfg.SyncSecret, &cfg.FeedAPIKey, &cfg.OpenAIAPIKey, &cfg.DatabaseURL, &cfg.RedisURL}

	needed := false
	for _, ref := range refs {
		if secrets.IsRef(*ref) {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	ctx := context.Background()
	manager, err := secrets.NewManager(ctx, cfg.GCPProjectID)
	if err != nil {
		return err
	}
	defer manager.Close()

	for _, ref := range refs {
		resolved, err := manager.Resolve(ctx, *ref)
		if err != nil {
			return err
		}
		*ref = resolved
	}
	log.Println("Resolved credentials from Secret Manager")
	return nil
}

// setupLogging configures structured JSON logging
func setupLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// setupRouter configures the HTTP router
func setupRouter(
	cfg *config.Config,
	db *gorm.DB,
	healthHandler *handlers.HealthHandler,
	syncHandler *handlers.SyncHandler,
	productsHandler *handlers.ProductsHandler,
	searchHandler *handlers.SearchHandler,
	outfitsHandler *handlers.OutfitsHandler,
	feedbackHandler *handlers.FeedbackHandler,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Security headers middleware
	router.Use(middleware.SecurityHeaders())

	// CORS middleware
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health check
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		// Sync endpoints are secret-gated
		syncGroup := v1.Group("/sync")
		syncGroup.Use(middleware.RequireSyncSecret(cfg.SyncSecret))
		{
			syncGroup.POST("", syncHandler.TriggerSync)
			syncGroup.GET("/runs", syncHandler.ListRuns)
			syncGroup.GET("/runs/:id", syncHandler.GetRun)
			syncGroup.GET("/runs/:id/logs", syncHandler.GetRunLogs)
			syncGroup.GET("/stats", syncHandler.GetStats)
		}

		// Products
		products := v1.Group("/products")
		{
			products.GET("", productsHandler.List)
			products.GET("/latest", productsHandler.Latest)
			products.GET("/:productId", productsHandler.Get)
		}

		// Search
		v1.GET("/search", searchHandler.Search)
		v1.GET("/search/semantic", searchHandler.SemanticSearch)

		// Outfits
		v1.POST("/outfits", outfitsHandler.Generate)

		// Feedback
		v1.POST("/feedback", feedbackHandler.Submit)
		v1.GET("/feedback/:userId", feedbackHandler.ListByUser)
	}

	return router
}
