package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ChannelConfig holds per-channel delivery settings.
type ChannelConfig struct {
	Enabled       bool
	Timeout       time.Duration
	RetryAttempts int
}

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker         string
		AlertsTopic    string
		GroupID        string
		PublishedTopic string
		FailedTopic    string
	}
	DB struct {
		DSN string // optional; empty means in-memory tracking store
	}
	API struct {
		Port string
	}
	Publisher struct {
		QueueSize     int
		MaxWorkers    int
		MaxRetries    int
		RetryCronSpec string
	}
	CellBroadcast ChannelConfig
	Fcm           ChannelConfig
	Logging       struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.AlertsTopic = os.Getenv("KAFKA_TOPIC_ALERTS")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")
	cfg.Kafka.PublishedTopic = os.Getenv("KAFKA_TOPIC_PUBLISHED")
	cfg.Kafka.FailedTopic = os.Getenv("KAFKA_TOPIC_FAILED")

	cfg.DB.DSN = os.Getenv("DB_DSN")
	cfg.API.Port = os.Getenv("API_PORT")

	cfg.Publisher.QueueSize = envInt("QUEUE_SIZE", 0)
	cfg.Publisher.MaxWorkers = envInt("MAX_WORKERS", 0)
	cfg.Publisher.MaxRetries = envInt("MAX_RETRIES", 0)
	cfg.Publisher.RetryCronSpec = os.Getenv("RETRY_CRON_SPEC")

	cfg.CellBroadcast = loadChannel("CELL_BROADCAST")
	cfg.Fcm = loadChannel("FCM")

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.Kafka.Broker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.AlertsTopic == "" {
		cfg.Kafka.AlertsTopic = "alerts"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "alert-publisher"
	}
	if cfg.Kafka.PublishedTopic == "" {
		cfg.Kafka.PublishedTopic = "alerts.published"
	}
	if cfg.Kafka.FailedTopic == "" {
		cfg.Kafka.FailedTopic = "alerts.failed"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.Publisher.QueueSize == 0 {
		cfg.Publisher.QueueSize = 500
	}
	if cfg.Publisher.MaxWorkers == 0 {
		cfg.Publisher.MaxWorkers = 10
	}
	if cfg.Publisher.MaxRetries == 0 {
		cfg.Publisher.MaxRetries = 3
	}
	if cfg.Publisher.RetryCronSpec == "" {
		cfg.Publisher.RetryCronSpec = "@every 5m"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

// loadChannel reads per-channel settings from <prefix>_ENABLED,
// <prefix>_TIMEOUT_SECONDS, and <prefix>_RETRY_ATTEMPTS.
func loadChannel(prefix string) ChannelConfig {
	ch := ChannelConfig{
		Enabled:       true,
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
	}
	if v := os.Getenv(prefix + "_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			ch.Enabled = b
		}
	}
	if secs := envInt(prefix+"_TIMEOUT_SECONDS", 0); secs > 0 {
		ch.Timeout = time.Duration(secs) * time.Second
	}
	if n := envInt(prefix+"_RETRY_ATTEMPTS", 0); n > 0 {
		ch.RetryAttempts = n
	}
	return ch
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
