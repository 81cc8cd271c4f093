// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort           = "5000"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultMetricsAddr    = ":9090"
	DefaultSigningSecret  = "secureflow-dev-secret"
	DefaultInitialBalance = 50000
	DefaultUserName       = "Arjun Kumar"
	DefaultUserUPI        = "arjun@upi"
	DefaultTrusted        = "mom@upi,dad@upi,priya.sharma@upi"
	DefaultUTCOffset      = "+05:30"
	DefaultRateLimitRPS   = 20
	DefaultRateLimitBurst = 40
	DefaultStatsCacheTTL  = 5 * time.Second
	DefaultAlertWorkers   = 2
	DefaultCORSOrigins    = "*"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Env         string
	LogLevel    string
	LogFormat   string
	MetricsAddr string

	// Storage. An empty path keeps history in memory.
	DatabasePath string

	SigningSecret string

	// Seeded sender profile
	InitialBalance  float64
	UserName        string
	UserUPI         string
	TrustedContacts []string

	// LocalOffset is the "+HH:MM" offset used for local-hour rules.
	LocalOffset string
	Location    *time.Location

	RateLimitRPS   float64
	RateLimitBurst int
	StatsCacheTTL  time.Duration
	AlertWorkers   int
	CORSOrigins    []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", DefaultLogLevel)),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", DefaultLogFormat)),
		MetricsAddr:     getEnv("METRICS_ADDR", DefaultMetricsAddr),
		DatabasePath:    os.Getenv("DATABASE_PATH"),
		SigningSecret:   getEnv("SIGNING_SECRET", DefaultSigningSecret),
		InitialBalance:  getEnvFloat("INITIAL_BALANCE", DefaultInitialBalance),
		UserName:        getEnv("USER_NAME", DefaultUserName),
		UserUPI:         getEnv("USER_UPI", DefaultUserUPI),
		TrustedContacts: splitList(getEnv("TRUSTED_CONTACTS", DefaultTrusted)),
		LocalOffset:     getEnv("LOCAL_UTC_OFFSET", DefaultUTCOffset),
		RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", DefaultRateLimitRPS),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", DefaultRateLimitBurst),
		StatsCacheTTL:   getEnvDuration("STATS_CACHE_TTL", DefaultStatsCacheTTL),
		AlertWorkers:    getEnvInt("ALERT_WORKERS", DefaultAlertWorkers),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", DefaultCORSOrigins)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values and resolves the local zone.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}

	if c.SigningSecret == "" {
		return fmt.Errorf("SIGNING_SECRET is required")
	}
	if c.InitialBalance < 0 {
		return fmt.Errorf("INITIAL_BALANCE must not be negative")
	}
	if !strings.Contains(c.UserUPI, "@") {
		return fmt.Errorf("USER_UPI must look like handle@provider")
	}

	loc, err := ParseOffset(c.LocalOffset)
	if err != nil {
		return fmt.Errorf("LOCAL_UTC_OFFSET: %w", err)
	}
	c.Location = loc

	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.StatsCacheTTL < 0 {
		return fmt.Errorf("STATS_CACHE_TTL must not be negative")
	}
	if c.AlertWorkers < 1 {
		return fmt.Errorf("ALERT_WORKERS must be at least 1")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ParseOffset turns "+05:30", "-04:00" or "Z" into a fixed zone.
func ParseOffset(offset string) (*time.Location, error) {
	if offset == "Z" || offset == "+00:00" {
		return time.UTC, nil
	}
	t, err := time.Parse("-07:00", offset)
	if err != nil {
		return nil, fmt.Errorf("invalid offset %q: want ±HH:MM", offset)
	}
	_, seconds := t.Zone()
	return time.FixedZone("UTC"+offset, seconds), nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
