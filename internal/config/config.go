package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// MongoDB Configuration
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration

	// Node identity, used as the master-lock holder name. Defaults to the
	// container/host name so a StatefulSet or fixed-hostname deployment
	// gets a stable identity for free.
	NodeName string

	// Admin API HTTP Server Configuration
	HTTPPort         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	// Sample task configuration: the endpoint checker registered at
	// startup to exercise the scheduling engine end to end.
	SampleTaskEnabled    bool
	SampleTaskCron       string
	SampleTaskTargetURL  string
	SampleTaskTimeout    time.Duration
	SampleTaskWorkers    int
	SampleTaskWebhookURL string

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// CORS Configuration
	CORSAllowedOrigins   string
	CORSAllowedMethods   string
	CORSAllowedHeaders   string
	CORSAllowCredentials bool
	CORSMaxAge           int

	// Retention Configuration, applied per task after every run.
	RetentionMaxAgeDays int
	RetentionMaxCount   int
	RetentionDeleteLogs bool
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// MongoDB
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/taskkeeper?authSource=admin"),
		MongoDatabase: getEnv("MONGO_DATABASE", "taskkeeper"),
		MongoTimeout:  getDurationSecEnv("MONGO_TIMEOUT_SEC", 10),

		NodeName: getEnv("NODE_NAME", hostnameOrDefault()),

		// Admin API HTTP Server
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		HTTPReadTimeout:  getDurationSecEnv("HTTP_READ_TIMEOUT_SEC", 30),
		HTTPWriteTimeout: getDurationSecEnv("HTTP_WRITE_TIMEOUT_SEC", 30),

		// Sample task, off by default since it needs a real webhook
		// destination configured before it can deliver alerts.
		SampleTaskEnabled:    getBoolEnv("SAMPLE_TASK_ENABLED", false),
		SampleTaskCron:       getEnv("SAMPLE_TASK_CRON", "*/5 * * * *"),
		SampleTaskTargetURL:  getEnv("SAMPLE_TASK_TARGET_URL", "https://example.com/health"),
		SampleTaskTimeout:    getDurationSecEnv("SAMPLE_TASK_TIMEOUT_SEC", 10),
		SampleTaskWorkers:    getIntEnv("SAMPLE_TASK_WORKERS", 2),
		SampleTaskWebhookURL: getEnv("SAMPLE_TASK_WEBHOOK_URL", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// CORS
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowedMethods:   getEnv("CORS_ALLOWED_METHODS", "GET, POST, PUT, DELETE, OPTIONS, PATCH"),
		CORSAllowedHeaders:   getEnv("CORS_ALLOWED_HEADERS", "*"),
		CORSAllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAge:           getIntEnv("CORS_MAX_AGE", 3600),

		// Retention
		RetentionMaxAgeDays: getIntEnv("RETENTION_MAX_AGE_DAYS", 30),
		RetentionMaxCount:   getIntEnv("RETENTION_MAX_COUNT", 500),
		RetentionDeleteLogs: getBoolEnv("RETENTION_DELETE_LOGS", true),
	}
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown-node"
	}
	return h
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getDurationSecEnv(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal) * time.Second
		}
		log.Printf("Warning: Invalid duration value for %s, using default %d", key, defaultSeconds)
	}
	return time.Duration(defaultSeconds) * time.Second
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}
