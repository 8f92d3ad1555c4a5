// Package config loads gatewatch's runtime configuration from environment
// variables and an optional .env file, following the same load pattern as
// the gateway this module grew out of.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the detection core and its adapters.
type Config struct {
	// Server
	Addr            string
	Env             string
	GracefulTimeout time.Duration

	// State store
	ShardCount       int
	RetentionWindow  time.Duration
	BucketRetention  time.Duration
	HousekeepingTick time.Duration

	// Action gate
	AlertCooldown time.Duration

	// Fusion thresholds
	MediumThreshold   float64
	HighThreshold     float64
	CriticalThreshold float64

	// Cluster takedown
	TakedownMinClusterSize int

	// Redis (checkpoint adapter)
	RedisURL string

	// Kafka (enforcement output adapter)
	KafkaBrokers []string
	KafkaTopic   string

	// Cross-provider feed
	FeedSigningKey string
	FeedProviderID string

	// Console API
	OperatorToken      string
	ConsoleRateLimitRPM   int
	ConsoleRateLimitBurst int

	// Ingest / sink adapters
	IngestPath string
	SinkDir    string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables, falling back to
// production-sane defaults. A .env file in the working directory is loaded
// first if present.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("GATEWATCH_GRACEFUL_TIMEOUT_SEC", 15)

	return &Config{
		Addr:            getEnv("GATEWATCH_ADDR", ":8090"),
		Env:             getEnv("ENV", "development"),
		GracefulTimeout: time.Duration(gracefulSec) * time.Second,

		ShardCount:       getEnvInt("GATEWATCH_SHARD_COUNT", 32),
		RetentionWindow:  time.Duration(getEnvInt("GATEWATCH_RETENTION_HOURS", 24)) * time.Hour,
		BucketRetention:  time.Duration(getEnvInt("GATEWATCH_BUCKET_RETENTION_MIN", 10)) * time.Minute,
		HousekeepingTick: time.Duration(getEnvInt("GATEWATCH_HOUSEKEEPING_MIN", 5)) * time.Minute,

		AlertCooldown: time.Duration(getEnvInt("GATEWATCH_ALERT_COOLDOWN_SEC", 600)) * time.Second,

		MediumThreshold:   getEnvFloat("GATEWATCH_MEDIUM_THRESHOLD", 0.35),
		HighThreshold:     getEnvFloat("GATEWATCH_HIGH_THRESHOLD", 0.55),
		CriticalThreshold: getEnvFloat("GATEWATCH_CRITICAL_THRESHOLD", 0.72),

		TakedownMinClusterSize: getEnvInt("GATEWATCH_TAKEDOWN_MIN_CLUSTER", 3),

		RedisURL: getEnv("REDIS_URL", "redis://redis:6379"),

		KafkaBrokers: splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "gatewatch.enforcement"),

		FeedSigningKey: getEnv("GATEWATCH_FEED_SIGNING_KEY", ""),
		FeedProviderID: getEnv("GATEWATCH_FEED_PROVIDER_ID", "gatewatch"),

		OperatorToken:         getEnv("GATEWATCH_OPERATOR_TOKEN", ""),
		ConsoleRateLimitRPM:   getEnvInt("GATEWATCH_CONSOLE_RATE_LIMIT_RPM", 600),
		ConsoleRateLimitBurst: getEnvInt("GATEWATCH_CONSOLE_RATE_LIMIT_BURST", 100),

		IngestPath: getEnv("GATEWATCH_INGEST_PATH", ""),
		SinkDir:    getEnv("GATEWATCH_SINK_DIR", "./data/out"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
