package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Backend endpoints
	APIBaseURL string
	WSURL      string

	// SSE display surface
	ListenAddr string

	// Redis configuration (persisted client-side state)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Timings
	SessionCheckInterval time.Duration
	ReconnectDelay       time.Duration
	JobPollInterval      time.Duration
	TOTPDebounce         time.Duration

	// JobMaxPollAttempts bounds the per-job polling loop. 0 means unlimited.
	JobMaxPollAttempts int

	// MessageLimit is the initial bulk-load size for announcements. 0 means unlimited.
	MessageLimit int

	// ScheduledTaskName is the server-driven recurring task tracked by the banner.
	ScheduledTaskName string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		APIBaseURL: getEnvOrDefault("DASHBOARD_API_URL", "http://localhost:8000"),
		WSURL:      getEnvOrDefault("DASHBOARD_WS_URL", "ws://localhost:8000/ws"),
		ListenAddr: getEnvOrDefault("DASHBOARD_LISTEN_ADDR", ":8090"),

		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		SessionCheckInterval: getEnvDuration("SESSION_CHECK_INTERVAL", 5*time.Minute),
		ReconnectDelay:       getEnvDuration("WS_RECONNECT_DELAY", 3*time.Second),
		JobPollInterval:      getEnvDuration("JOB_POLL_INTERVAL", 5*time.Second),
		TOTPDebounce:         getEnvDuration("TOTP_DEBOUNCE", 500*time.Millisecond),

		// 360 attempts at the default 5s interval bounds a job to ~30 minutes.
		JobMaxPollAttempts: getEnvInt("JOB_MAX_POLL_ATTEMPTS", 360),

		MessageLimit: getEnvInt("MESSAGE_LIMIT", 0),

		ScheduledTaskName: getEnvOrDefault("SCHEDULED_TASK_NAME", "fetch_quotes"),
	}
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvDuration gets environment variable as a duration or returns default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
