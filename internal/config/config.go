package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config lists the tunable parameters for the ingest service.
type Config struct {
	HTTPPort string

	BrokerURL   string
	ClientID    string
	MQTTUser    string
	MQTTPass    string
	Topics      []string
	QoS         byte
	KeepAlive   time.Duration
	MaxAttempts int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CachePrefix   string
	DeviceTTL     time.Duration

	RateLimitEnabled bool
	RateMinDelay     time.Duration
	RateMaxPerMin    int64

	ArchiveEnabled bool

	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

const (
	defaultHTTPPort    = "8081"
	defaultBrokerURL   = "tcp://mqtt:1883"
	defaultClientID    = "telemetry-ingest"
	defaultTopic       = "devices/telemetry"
	defaultRedisAddr   = "redis:6379"
	defaultCachePrefix = "ingest"
	defaultLogLevel    = "info"
)

// Load reads .env (when present) and derives configuration values
// from environment variables, falling back to defaults.
func Load() (Config, error) {
	// A missing .env file is fine; containers inject real env vars.
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:         envOr("HTTP_PORT", defaultHTTPPort),
		BrokerURL:        envOr("MQTT_BROKER_URL", defaultBrokerURL),
		ClientID:         envOr("MQTT_CLIENT_ID", defaultClientID),
		MQTTUser:         os.Getenv("MQTT_USERNAME"),
		MQTTPass:         os.Getenv("MQTT_PASSWORD"),
		Topics:           []string{envOr("MQTT_TOPIC", defaultTopic)},
		QoS:              1,
		KeepAlive:        30 * time.Second,
		MaxAttempts:      10,
		RedisAddr:        envOr("REDIS_ADDR", defaultRedisAddr),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		CachePrefix:      envOr("CACHE_PREFIX", defaultCachePrefix),
		DeviceTTL:        24 * time.Hour,
		RateLimitEnabled: true,
		RateMinDelay:     100 * time.Millisecond,
		RateMaxPerMin:    60,
		LogLevel:         envOr("LOG_LEVEL", defaultLogLevel),
		LogFormat:        envOr("LOG_FORMAT", "text"),
		LogFile:          os.Getenv("LOG_FILE"),
		LogMaxSizeMB:     100,
		LogMaxBackups:    5,
		LogMaxAgeDays:    30,
	}

	if v := os.Getenv("MQTT_QOS"); v != "" {
		qos, err := strconv.Atoi(v)
		if err != nil || qos < 0 || qos > 2 {
			return Config{}, fmt.Errorf("invalid MQTT_QOS: %q", v)
		}
		cfg.QoS = byte(qos)
	}

	if v := os.Getenv("MQTT_MAX_RECONNECT_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid MQTT_MAX_RECONNECT_ATTEMPTS: %q", v)
		}
		cfg.MaxAttempts = n
	}

	if v := os.Getenv("MQTT_KEEPALIVE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MQTT_KEEPALIVE: %w", err)
		}
		cfg.KeepAlive = d
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}

	if v := os.Getenv("DEVICE_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEVICE_CACHE_TTL: %w", err)
		}
		cfg.DeviceTTL = d
	}

	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_ENABLED: %w", err)
		}
		cfg.RateLimitEnabled = enabled
	}

	if v := os.Getenv("RATE_LIMIT_MIN_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_MIN_DELAY: %w", err)
		}
		cfg.RateMinDelay = d
	}

	if v := os.Getenv("RATE_LIMIT_MAX_PER_MINUTE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_MAX_PER_MINUTE: %q", v)
		}
		cfg.RateMaxPerMin = n
	}

	if v := os.Getenv("ARCHIVE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ARCHIVE_ENABLED: %w", err)
		}
		cfg.ArchiveEnabled = enabled
	}

	if v := os.Getenv("LOG_MAX_SIZE_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_MAX_SIZE_MB: %w", err)
		}
		cfg.LogMaxSizeMB = n
	}

	if v := os.Getenv("LOG_MAX_BACKUPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_MAX_BACKUPS: %w", err)
		}
		cfg.LogMaxBackups = n
	}

	if v := os.Getenv("LOG_MAX_AGE_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_MAX_AGE_DAYS: %w", err)
		}
		cfg.LogMaxAgeDays = n
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
