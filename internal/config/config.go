package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the catalog sync service
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Product feed
	FeedBaseURL   string
	FeedAppID     string
	FeedAPIKey    string
	FeedSource    string
	FeedRateLimit float64

	// Sync
	SyncSecret        string
	SyncPageSize      int
	SyncInterval      time.Duration
	EnrichConcurrency int

	// OpenAI
	OpenAIAPIKey  string
	OpenAIBaseURL string

	EmbeddingModel          string
	EmbeddingFallbackModel  string
	CompletionModel         string
	CompletionFallbackModel string

	// Vector index
	VectorStorePath  string
	VectorCollection string

	// Catalog defaults
	DefaultCurrency string

	// Secret Manager (for gcp-secret:// config references)
	GCPProjectID string

	// At-rest encryption of feedback comments (optional)
	FeedbackEncryptionKey string

	// CORS
	AllowedOrigins []string
}

// Load loads configuration from environment variables
func Load() *Config {
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := getEnv("DB_PASSWORD", "postgres")
		dbName := getEnv("DB_NAME", "catalog_sync")
		dbSSLMode := getEnv("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DatabaseURL: databaseURL,

		RedisURL: getEnv("REDIS_URL", ""),

		FeedBaseURL:   getEnv("FEED_BASE_URL", ""),
		FeedAppID:     getEnv("FEED_APP_ID", ""),
		FeedAPIKey:    getEnv("FEED_API_KEY", ""),
		FeedSource:    getEnv("FEED_SOURCE", "affiliate-feed"),
		FeedRateLimit: getEnvAsFloat("FEED_RATE_LIMIT", 2),

		SyncSecret:        getEnv("SYNC_SECRET", ""),
		SyncPageSize:      getEnvAsInt("SYNC_PAGE_SIZE", 100),
		SyncInterval:      getEnvAsDuration("SYNC_INTERVAL", 0),
		EnrichConcurrency: getEnvAsInt("ENRICH_CONCURRENCY", 1),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		EmbeddingModel:          getEnv("EMBEDDING_MODEL", "text-embedding-3-large"),
		EmbeddingFallbackModel:  getEnv("EMBEDDING_FALLBACK_MODEL", "text-embedding-3-small"),
		CompletionModel:         getEnv("COMPLETION_MODEL", "gpt-4o"),
		CompletionFallbackModel: getEnv("COMPLETION_FALLBACK_MODEL", "gpt-4o-mini"),

		VectorStorePath:  getEnv("VECTOR_STORE_PATH", "./data/vectors"),
		VectorCollection: getEnv("VECTOR_COLLECTION", "products"),

		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "USD"),

		GCPProjectID: getEnv("GCP_PROJECT_ID", ""),

		FeedbackEncryptionKey: getEnv("FEEDBACK_ENCRYPTION_KEY", ""),

		AllowedOrigins: []string{getEnv("ALLOWED_ORIGIN", "http://localhost:3000")},
	}

	// Validate required fields
	if config.SyncSecret == "" {
		log.Fatal("SYNC_SECRET is required")
	}
	if config.FeedBaseURL == "" {
		log.Fatal("FEED_BASE_URL is required")
	}
	if config.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, embeddings and outfit generation will be disabled")
	}

	return config
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
