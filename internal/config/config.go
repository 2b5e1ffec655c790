// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// AI scenario generation (optional, disabled without an API key)
	AIProvider string // "openai" or "anthropic"
	AIAPIKey   string
	AIBaseURL  string // Override for self-hosted/compatible endpoints

	// S3 snapshot archival (optional, disabled without a bucket)
	SnapshotBucket string
	SnapshotPrefix string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STRESSLAB_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory %q: %w", dataDir, err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %q: %w", absDataDir, err)
	}

	port, err := strconv.Atoi(getEnv("STRESSLAB_PORT", "8090"))
	if err != nil {
		return nil, fmt.Errorf("invalid STRESSLAB_PORT: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		LogLevel:       getEnv("STRESSLAB_LOG_LEVEL", "info"),
		Port:           port,
		DevMode:        getEnvBool("STRESSLAB_DEV_MODE", false),
		AIProvider:     getEnv("STRESSLAB_AI_PROVIDER", "openai"),
		AIAPIKey:       getEnv("STRESSLAB_AI_API_KEY", ""),
		AIBaseURL:      getEnv("STRESSLAB_AI_BASE_URL", ""),
		SnapshotBucket: getEnv("STRESSLAB_SNAPSHOT_BUCKET", ""),
		SnapshotPrefix: getEnv("STRESSLAB_SNAPSHOT_PREFIX", "stresslab"),
	}

	return cfg, nil
}

// DatabasePath returns the absolute path for a named database file.
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
