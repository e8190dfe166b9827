// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/devpulse/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	DBDriver        string // "sqlite" or "postgres"
	DBPath          string
	DatabaseURL     string
	ActivityQuantum time.Duration
	TxnMaxAttempts  int
	StatsTimezone   string
	CORSOrigins     []string
	Auth            AuthConfig
	Retention       RetentionConfig
	Kafka           KafkaConfig
}

// AuthConfig controls bearer-token verification.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// RetentionConfig controls the activity retention sweep.
type RetentionConfig struct {
	Enabled   bool
	Window    time.Duration
	BatchSize int
	Interval  time.Duration
}

// KafkaConfig controls the change-trigger consumer. It is disabled when
// Brokers is empty.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	Concurrency int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBDriver:        strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:          getEnv("DB_PATH", "./data/devpulse.db"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		ActivityQuantum: getEnvDuration("ACTIVITY_QUANTUM", time.Minute),
		TxnMaxAttempts:  getEnvInt("TXN_MAX_ATTEMPTS", 5),
		StatsTimezone:   getEnv("STATS_TIMEZONE", "UTC"),
		CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"*"}),
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTIssuer: getEnv("JWT_ISSUER", "devpulse"),
		},
		Retention: RetentionConfig{
			Enabled:   getEnvBool("RETENTION_ENABLED", true),
			Window:    getEnvDuration("RETENTION_WINDOW", 30*24*time.Hour),
			BatchSize: getEnvInt("RETENTION_BATCH_SIZE", 500),
			Interval:  getEnvDuration("RETENTION_INTERVAL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvList("KAFKA_BROKERS", nil),
			Topic:       getEnv("KAFKA_TOPIC", "activities"),
			GroupID:     getEnv("KAFKA_GROUP_ID", "devpulse-trigger"),
			Concurrency: getEnvInt("TRIGGER_CONCURRENCY", 8),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.ActivityQuantum <= 0 {
		return fmt.Errorf("ACTIVITY_QUANTUM must be > 0")
	}
	if c.TxnMaxAttempts < 1 {
		return fmt.Errorf("TXN_MAX_ATTEMPTS must be >= 1")
	}
	if _, err := time.LoadLocation(c.StatsTimezone); err != nil {
		return fmt.Errorf("STATS_TIMEZONE: %w", err)
	}
	// pulsectl cleanup sweeps even when the background worker is off.
	if c.Retention.Window <= 0 {
		return fmt.Errorf("RETENTION_WINDOW must be > 0")
	}
	if c.Retention.BatchSize <= 0 {
		return fmt.Errorf("RETENTION_BATCH_SIZE must be > 0")
	}
	if c.Retention.Enabled && c.Retention.Interval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be > 0")
	}
	if c.KafkaEnabled() {
		if c.Kafka.Topic == "" {
			return fmt.Errorf("KAFKA_TOPIC cannot be empty")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("KAFKA_GROUP_ID cannot be empty")
		}
		if c.Kafka.Concurrency <= 0 {
			return fmt.Errorf("TRIGGER_CONCURRENCY must be > 0")
		}
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}

// Location returns the time zone used for daily statistics keys.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.StatsTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RetryPolicy returns the optimistic transaction retry policy.
func (c *Config) RetryPolicy() store.RetryPolicy {
	p := store.DefaultRetryPolicy()
	p.MaxAttempts = c.TxnMaxAttempts
	return p
}

// KafkaEnabled reports whether the Kafka change trigger should run.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// AuthEnabled reports whether bearer tokens are required for identity.
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
