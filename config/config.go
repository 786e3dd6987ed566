// Package config loads the relay server's TOML configuration file and
// applies defaults and validation.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the relay server's process configuration.
type Config struct {
	// ListenAddr is the "host:port" the relay accepts clients on.
	ListenAddr string `toml:"listen_addr"`
	// MaxClients caps concurrent sessions; 0 means unlimited.
	MaxClients int `toml:"max_clients"`
	// ReconnectWindow is how long disconnected-session state stays
	// reclaimable for reconnection.
	ReconnectWindow duration `toml:"reconnect_window"`
	// WriteTimeout bounds each outbound socket write; 0 disables deadlines.
	WriteTimeout duration `toml:"write_timeout"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// MetricsAddr serves Prometheus metrics over HTTP when non-empty.
	MetricsAddr string `toml:"metrics_addr"`

	RateLimit RateLimitConfig `toml:"rate_limit"`
	Redis     RedisConfig     `toml:"redis"`
}

// RateLimitConfig bounds inbound frame rates per connection.
type RateLimitConfig struct {
	Enabled         bool    `toml:"enabled"`
	FramesPerSecond float64 `toml:"frames_per_second"`
	Burst           int     `toml:"burst"`
}

// RedisConfig enables the Redis retention backend when Addr is non-empty;
// otherwise the in-memory backend is used.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// duration wraps time.Duration so TOML values like "30s" parse directly.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = duration(parsed)
	return nil
}

// Duration returns the wrapped time.Duration.
func (d duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when a field is absent from the
// config file.
func Default() Config {
	return Config{
		ListenAddr:      ":7777",
		MaxClients:      64,
		ReconnectWindow: duration(5 * time.Minute),
		WriteTimeout:    duration(10 * time.Second),
		LogLevel:        "info",
		RateLimit: RateLimitConfig{
			Enabled:         false,
			FramesPerSecond: 120,
			Burst:           240,
		},
	}
}

// Load reads and validates the TOML config file at path, starting from
// Default values.
//
// Parameters:
//   - path: Path to the TOML configuration file
//
// Returns:
//   - The merged configuration, or an error if the file cannot be parsed
//     or a value is invalid
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to load %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}

	if c.MaxClients < 0 {
		return fmt.Errorf("config: max_clients must not be negative")
	}

	if c.RateLimit.Enabled && c.RateLimit.FramesPerSecond <= 0 {
		return fmt.Errorf("config: rate_limit.frames_per_second must be positive when enabled")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}

	return nil
}
