// Package config provides configuration for the chat server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the chat server configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Storage. "memory" selects the in-memory store; anything else is a
	// SQLite DSN.
	DatabaseURL string

	// AI responder settings
	AIBaseURL string
	AIAPIKey  string
	AIModel   string
	AITimeout time.Duration

	// Session lifecycle
	SweepInterval     time.Duration
	InactivityTimeout time.Duration
	DefaultSessionTTL time.Duration // zero means sessions get no TTL

	// WebSocket settings
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:          getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:       getEnv("DATABASE_URL", "memory"),
		AIBaseURL:         getEnv("AI_BASE_URL", ""),
		AIAPIKey:          getEnv("AI_API_KEY", ""),
		AIModel:           getEnv("AI_MODEL", "claude-sonnet"),
		AITimeout:         getEnvDuration("AI_TIMEOUT_MS", 30000),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL_MS", 60000),
		InactivityTimeout: getEnvDuration("INACTIVITY_TIMEOUT_MS", 1800000),
		DefaultSessionTTL: getEnvDuration("DEFAULT_SESSION_TTL_MS", 0),
		ReadTimeout:       getEnvDuration("WS_READ_TIMEOUT_MS", 60000),
		WriteTimeout:      getEnvDuration("WS_WRITE_TIMEOUT_MS", 10000),
		PingInterval:      getEnvDuration("WS_PING_INTERVAL_MS", 30000),
		MaxMessageSize:    int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
