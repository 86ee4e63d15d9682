package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	APIKey       string
	Shard        string // storage shard / PUBG platform, e.g. "steam"
	ClanID       string

	APIRequestsPerMinute int
	MaxRetries           int

	SyncInterval time.Duration
	LockTTL      time.Duration

	Port     int
	LogLevel string
	DevMode  bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:         getEnv("DB_PATH", "./data/killboard.db"),
		APIKey:               cleanAPIKey(getEnv("PUBG_API_KEY", "")),
		Shard:                getEnv("PUBG_SHARD", "steam"),
		ClanID:               getEnv("CLAN_ID", "shaded_steam"),
		APIRequestsPerMinute: getEnvAsInt("API_RPM", 10),
		MaxRetries:           getEnvAsInt("MAX_RETRIES", 3),
		SyncInterval:         getEnvAsDuration("SYNC_INTERVAL", 10*time.Minute),
		LockTTL:              getEnvAsDuration("LOCK_TTL", 15*time.Minute),
		Port:                 getEnvAsInt("PORT", 8080),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DevMode:              getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.Shard == "" {
		return fmt.Errorf("PUBG_SHARD is required")
	}
	if c.APIRequestsPerMinute <= 0 {
		return fmt.Errorf("API_RPM must be positive")
	}
	// API key is validated at sync time, not load time, so the read-only
	// server can run without upstream credentials.
	return nil
}

// cleanAPIKey strips a pasted "Bearer " prefix and surrounding quotes.
func cleanAPIKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "Bearer ")
	key = strings.Trim(key, `"'`)
	return strings.TrimSpace(key)
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
