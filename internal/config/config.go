package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string
	AppURL      string

	// Database
	DatabaseURL string

	// JWT
	JWTSecret          string
	JWTExpirationHours int

	// Storage (payment receipts)
	StoragePath string

	// Background Workers
	WorkerCount int

	// Reminders
	ReminderCron      string
	ReminderDaysAhead int
	Timezone          string

	// CORS
	AllowedOrigins []string

	// Email (Resend)
	ResendAPIKey             string
	FromEmail                string
	EnableEmailNotifications bool

	// Sentry
	SentryDSN string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		Environment:              getEnv("ENVIRONMENT", "development"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		AppURL:                   getEnv("APP_URL", "https://kredim.app"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		JWTExpirationHours:       getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		StoragePath:              getEnv("STORAGE_PATH", "./storage"),
		WorkerCount:              getEnvAsInt("WORKER_COUNT", 5),
		ReminderCron:             getEnv("REMINDER_CRON", "0 9 * * *"),
		ReminderDaysAhead:        getEnvAsInt("REMINDER_DAYS_AHEAD", 3),
		Timezone:                 getEnv("TIMEZONE", "Europe/Istanbul"),
		AllowedOrigins:           getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		ResendAPIKey:             getEnv("RESEND_API_KEY", ""),
		FromEmail:                getEnv("FROM_EMAIL", "bildirim@kredim.app"),
		EnableEmailNotifications: getEnvAsBool("ENABLE_EMAIL_NOTIFICATIONS", true),
		SentryDSN:                getEnv("SENTRY_DSN", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	if cfg.ReminderDaysAhead < 1 {
		return nil, fmt.Errorf("REMINDER_DAYS_AHEAD must be at least 1, got %d", cfg.ReminderDaysAhead)
	}

	return cfg, nil
}

// EmailEnabled reports whether transactional email can be sent
func (c *Config) EmailEnabled() bool {
	return c.EnableEmailNotifications && c.ResendAPIKey != "" && c.FromEmail != ""
}

// Location returns the configured time zone, falling back to a fixed UTC+3 offset when
// the zoneinfo database is missing from the image.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.FixedZone("TRT", 3*60*60)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
