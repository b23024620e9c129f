// Package server provides configuration helpers that define runtime defaults,
// validation, and per-session limits for the preview server.
package server

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-session inbound message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the settings of one Server instance.
type Config struct {
	// Port is the TCP port bound on all local addresses.
	Port uint16
	// InterfaceName is the LAN interface queried for LAN URLs. Empty selects the
	// first interface that is up, not a loopback and has an IPv4 address.
	InterfaceName string
	// ForceIPv4 restricts the listener to IPv4 instead of dual-stack.
	ForceIPv4 bool

	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

const (
	defaultPort            uint16 = 8080
	defaultMaxMessageSize  int64  = 1 << 20
	defaultRateBurst              = 20
	defaultRefillInterval         = time.Second
	defaultReadTimeout            = 15 * time.Second
	defaultWriteTimeout           = 15 * time.Second
	defaultIdleTimeout            = 60 * time.Second
	defaultShutdownTimeout        = 5 * time.Second
)

// DefaultInterfaceName returns the conventional primary LAN interface for the
// running platform. Only Apple platforms have a stable name; elsewhere the
// resolver picks the first usable interface.
func DefaultInterfaceName() string {
	switch runtime.GOOS {
	case "darwin", "ios":
		return "en0"
	default:
		return ""
	}
}

// DefaultConfig returns a Config populated with default values for all settings.
func DefaultConfig() Config {
	return Config{
		Port:           defaultPort,
		InterfaceName:  DefaultInterfaceName(),
		AllowedOrigins: []string{"*"},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultRateBurst,
			RefillInterval: defaultRefillInterval,
		},
		ReadTimeout:     defaultReadTimeout,
		WriteTimeout:    defaultWriteTimeout,
		IdleTimeout:     defaultIdleTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// Validate reports settings that cannot be sanitised into something usable.
func (c Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("invalid max message size: %d", c.MaxMessageSize)
	}
	for name, d := range map[string]time.Duration{
		"read timeout":     c.ReadTimeout,
		"write timeout":    c.WriteTimeout,
		"idle timeout":     c.IdleTimeout,
		"shutdown timeout": c.ShutdownTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("invalid %s: %s", name, d)
		}
	}
	return nil
}

// sanitize replaces zero values with defaults and copies slices so the caller
// cannot mutate a running server's configuration.
func (c Config) sanitize() Config {
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateBurst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = defaultRefillInterval
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = []string{"*"}
	} else {
		c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	}
	return c
}

// NewConfigFromEnv creates a Config from PREVIEW_* environment variables.
// Unset or unparsable variables fall back to the defaults.
func NewConfigFromEnv() Config {
	cfg := DefaultConfig()

	if port := os.Getenv("PREVIEW_PORT"); port != "" {
		cfg.Port = parsePort(port, cfg.Port)
	}

	if name, ok := os.LookupEnv("PREVIEW_INTERFACE"); ok {
		cfg.InterfaceName = strings.TrimSpace(name)
	}

	if v := os.Getenv("PREVIEW_FORCE_IPV4"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ForceIPv4 = b
		}
	}

	if origins := os.Getenv("PREVIEW_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("PREVIEW_MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("PREVIEW_RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("PREVIEW_RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.RateLimit.RefillInterval)
	}

	return cfg
}

func parsePort(value string, defaultValue uint16) uint16 {
	if p, err := strconv.ParseUint(strings.TrimPrefix(value, ":"), 10, 16); err == nil && p > 0 {
		return uint16(p)
	}
	return defaultValue
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseRefillInterval accepts a Go duration ("500ms") or a whole number of seconds.
func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
