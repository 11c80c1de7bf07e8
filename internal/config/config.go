// Package config provides environment configuration for the chat client.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the client.
type Config struct {
	// Backend
	BaseURL     string
	HTTPTimeout time.Duration

	// Auth
	DefaultAuthMode string

	// Local state
	StateDir string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() *Config {
	godotenv.Load()

	return &Config{
		BaseURL:     getEnv("CHATKIT_BASE_URL", "http://localhost:8000/api"),
		HTTPTimeout: getDurationEnv("CHATKIT_HTTP_TIMEOUT", 30*time.Second),

		DefaultAuthMode: getEnv("CHATKIT_AUTH_MODE", "session"),

		StateDir: getEnv("CHATKIT_STATE_DIR", defaultStateDir()),

		LogLevel: getEnv("CHATKIT_LOG_LEVEL", "info"),

		TracingEndpoint: getEnv("CHATKIT_TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("CHATKIT_TRACING_ENABLED", false),
	}
}

func defaultStateDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "chatkit")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "chatkit")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "1", "true", "TRUE", "True", "yes":
			return true
		case "0", "false", "FALSE", "False", "no":
			return false
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
