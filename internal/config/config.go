package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Market data provider
	MarketDataBaseURL string
	MarketDataAPIKey  string
	QuoteCacheTTL     time.Duration
	QuoteRequestDelay time.Duration

	// Ops
	OpsAPIKey         string
	ReconcileSchedule string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		MarketDataBaseURL: getEnv("MARKET_DATA_BASE_URL", "https://finnhub.io/api/v1"),
		MarketDataAPIKey:  getEnv("MARKET_DATA_API_KEY", ""),
		QuoteCacheTTL:     getDurationEnv("QUOTE_CACHE_TTL", 45*time.Second),
		QuoteRequestDelay: getDurationEnv("QUOTE_REQUEST_DELAY", 350*time.Millisecond),

		OpsAPIKey:         getEnv("OPS_API_KEY", ""),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "0 6 * * *"),
	}

	expStr := getEnv("JWT_EXPIRES_IN", "24h")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 24h\n", expStr)
		expDur = 24 * time.Hour
	}
	config.JWTExpirationDur = expDur

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
