package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.crewchat/config.toml.
type Config struct {
	DefaultSession string          `toml:"default_session"`
	Log            LogConfig       `toml:"log"`
	Feed           FeedConfig      `toml:"feed"`
	Messaging      MessagingConfig `toml:"messaging"`
	Presence       PresenceConfig  `toml:"presence"`
	Gateway        GatewayConfig   `toml:"gateway"`
}

// LogConfig controls daemon logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// FeedConfig holds the message feed grouping thresholds.
type FeedConfig struct {
	GroupGap     Duration `toml:"group_gap"`
	SeparatorGap Duration `toml:"separator_gap"`
}

// MessagingConfig tunes message delivery.
type MessagingConfig struct {
	DeliveryTimeout Duration `toml:"delivery_timeout"`
	MaxInFlight     int64    `toml:"max_in_flight"`
	HistoryLimit    int      `toml:"history_limit"`
}

// PresenceConfig selects and configures the presence backend.
type PresenceConfig struct {
	Backend       string   `toml:"backend"` // sqlite or redis
	StaleAfter    Duration `toml:"stale_after"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
}

// GatewayConfig configures the HTTP/WebSocket gateway.
type GatewayConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	JWTSecret   string   `toml:"jwt_secret"`
	TokenTTL    Duration `toml:"token_ttl"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Presence backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Defaults returns the configuration used when no file exists.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Feed: FeedConfig{
			GroupGap:     Duration{5 * time.Minute},
			SeparatorGap: Duration{15 * time.Minute},
		},
		Messaging: MessagingConfig{
			DeliveryTimeout: Duration{15 * time.Second},
			MaxInFlight:     8,
			HistoryLimit:    200,
		},
		Presence: PresenceConfig{
			Backend:    BackendSQLite,
			StaleAfter: Duration{2 * time.Minute},
			RedisAddr:  "127.0.0.1:6379",
		},
		Gateway: GatewayConfig{
			Enabled:  true,
			Addr:     "127.0.0.1:8420",
			TokenTTL: Duration{24 * time.Hour},
		},
	}
}

// Load reads config from the given path on top of Defaults. Returns error if
// the file is missing or invalid.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault reads config from path, falling back to Defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Defaults(), nil
	}
	return Load(path)
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Presence.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("presence.backend must be %q or %q, got %q", BackendSQLite, BackendRedis, c.Presence.Backend)
	}
	if c.Feed.GroupGap.Duration <= 0 || c.Feed.SeparatorGap.Duration <= 0 {
		return fmt.Errorf("feed gaps must be positive")
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Duration is a time.Duration written as a string such as "5m" in TOML.
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}
