package server

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig verifies the defaults a preview server starts with.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, uint16(8080), cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.ForceIPv4)
	assert.Equal(t, DefaultInterfaceName(), cfg.InterfaceName)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultInterfaceName(t *testing.T) {
	switch runtime.GOOS {
	case "darwin", "ios":
		assert.Equal(t, "en0", DefaultInterfaceName())
	default:
		assert.Empty(t, DefaultInterfaceName())
	}
}

// TestConfigValidate verifies that unusable settings are rejected.
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"negative message size", func(c *Config) { c.MaxMessageSize = -1 }, true},
		{"negative read timeout", func(c *Config) { c.ReadTimeout = -time.Second }, true},
		{"negative shutdown timeout", func(c *Config) { c.ShutdownTimeout = -time.Second }, true},
		{"zero timeouts are sanitised later", func(c *Config) { c.ReadTimeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestSanitizeFillsDefaults verifies zero values are replaced and slices copied.
func TestSanitizeFillsDefaults(t *testing.T) {
	origins := []string{"http://localhost:8080"}
	cfg := Config{Port: 9000, AllowedOrigins: origins}.sanitize()

	assert.Equal(t, uint16(9000), cfg.Port)
	assert.Equal(t, defaultMaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, defaultRateBurst, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)

	origins[0] = "mutated"
	assert.Equal(t, "http://localhost:8080", cfg.AllowedOrigins[0])

	assert.Equal(t, []string{"*"}, Config{Port: 1}.sanitize().AllowedOrigins)
}

// TestNewConfigFromEnv verifies PREVIEW_* variables override defaults.
func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("PREVIEW_PORT", "9191")
	t.Setenv("PREVIEW_INTERFACE", "wlan0")
	t.Setenv("PREVIEW_FORCE_IPV4", "true")
	t.Setenv("PREVIEW_ALLOWED_ORIGINS", "http://a.local, http://b.local")
	t.Setenv("PREVIEW_MAX_MESSAGE_SIZE", "2048")
	t.Setenv("PREVIEW_RATE_LIMIT_BURST", "7")
	t.Setenv("PREVIEW_RATE_LIMIT_REFILL_INTERVAL", "500ms")

	cfg := NewConfigFromEnv()

	assert.Equal(t, uint16(9191), cfg.Port)
	assert.Equal(t, "wlan0", cfg.InterfaceName)
	assert.True(t, cfg.ForceIPv4)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.MaxMessageSize)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimit.RefillInterval)
}

// TestNewConfigFromEnvInvalidValues verifies garbage falls back to defaults.
func TestNewConfigFromEnvInvalidValues(t *testing.T) {
	t.Setenv("PREVIEW_PORT", "99999")
	t.Setenv("PREVIEW_MAX_MESSAGE_SIZE", "-3")
	t.Setenv("PREVIEW_RATE_LIMIT_BURST", "many")
	t.Setenv("PREVIEW_RATE_LIMIT_REFILL_INTERVAL", "3")

	cfg := NewConfigFromEnv()
	def := DefaultConfig()

	assert.Equal(t, def.Port, cfg.Port)
	assert.Equal(t, def.MaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, def.RateLimit.Burst, cfg.RateLimit.Burst)
	require.Equal(t, 3*time.Second, cfg.RateLimit.RefillInterval)
}
