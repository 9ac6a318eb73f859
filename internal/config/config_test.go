package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_PORT", "MQTT_BROKER_URL", "MQTT_QOS", "MQTT_KEEPALIVE",
		"REDIS_DB", "DEVICE_CACHE_TTL", "RATE_LIMIT_ENABLED",
		"RATE_LIMIT_MAX_PER_MINUTE", "ARCHIVE_ENABLED", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "tcp://mqtt:1883", cfg.BrokerURL)
	assert.Equal(t, []string{"devices/telemetry"}, cfg.Topics)
	assert.Equal(t, byte(1), cfg.QoS)
	assert.Equal(t, 10, cfg.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.DeviceTTL)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 100*time.Millisecond, cfg.RateMinDelay)
	assert.Equal(t, int64(60), cfg.RateMaxPerMin)
	assert.False(t, cfg.ArchiveEnabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("MQTT_QOS", "2")
	t.Setenv("MQTT_KEEPALIVE", "1m")
	t.Setenv("DEVICE_CACHE_TTL", "5m")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_MAX_PER_MINUTE", "120")
	t.Setenv("ARCHIVE_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, byte(2), cfg.QoS)
	assert.Equal(t, time.Minute, cfg.KeepAlive)
	assert.Equal(t, 5*time.Minute, cfg.DeviceTTL)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, int64(120), cfg.RateMaxPerMin)
	assert.True(t, cfg.ArchiveEnabled)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"MQTT_QOS":                  "7",
		"MQTT_KEEPALIVE":            "soon",
		"REDIS_DB":                  "one",
		"DEVICE_CACHE_TTL":          "never",
		"RATE_LIMIT_ENABLED":        "maybe",
		"RATE_LIMIT_MAX_PER_MINUTE": "0",
		"LOG_MAX_SIZE_MB":           "big",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
