package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath      string
	FMPBaseURL        string
	FMPAPIKey         string
	LogLevel          string
	Port              int
	DevMode           bool
	PortfolioCacheTTL time.Duration
	QuoteCacheTTL     time.Duration
	ListingsSchedule  string // cron expression for the listings refresh job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnvAsInt("PORT", 8002),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		DatabasePath:      getEnv("DATABASE_PATH", "./data/brokerage.db"),
		FMPBaseURL:        getEnv("FMP_BASE_URL", "https://financialmodelingprep.com/api/v3"),
		FMPAPIKey:         getEnv("FMP_API_KEY", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		PortfolioCacheTTL: getEnvAsDuration("PORTFOLIO_CACHE_TTL", 5*time.Minute),
		QuoteCacheTTL:     getEnvAsDuration("QUOTE_CACHE_TTL", time.Minute),
		ListingsSchedule:  getEnv("LISTINGS_REFRESH_SCHEDULE", "@daily"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}

	if c.FMPAPIKey == "" {
		return fmt.Errorf("FMP_API_KEY is required")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
