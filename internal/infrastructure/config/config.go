package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration.
type Config struct {
	Client     ClientConfig     `yaml:"client"`
	Transport  TransportConfig  `yaml:"transport"`
	Navigation NavigationConfig `yaml:"navigation"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Logging    LogConfig        `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ClientConfig holds the page being driven and the paint frame cadence.
type ClientConfig struct {
	URL           string        `envconfig:"REACTOR_URL" yaml:"url"`
	FrameInterval time.Duration `envconfig:"REACTOR_FRAME_INTERVAL" yaml:"frame_interval"`
}

// TransportConfig holds duplex channel configuration.
type TransportConfig struct {
	Path             string        `envconfig:"REACTOR_PATH" yaml:"path"`
	ReconnectMin     time.Duration `envconfig:"REACTOR_RECONNECT_MIN" yaml:"reconnect_min"`
	ReconnectMax     time.Duration `envconfig:"REACTOR_RECONNECT_MAX" yaml:"reconnect_max"`
	HandshakeTimeout time.Duration `envconfig:"REACTOR_HANDSHAKE_TIMEOUT" yaml:"handshake_timeout"`
}

// NavigationConfig holds history cache configuration.
type NavigationConfig struct {
	CacheSize int  `envconfig:"REACTOR_CACHE_SIZE" yaml:"cache_size"`
	Boost     bool `envconfig:"REACTOR_BOOST" yaml:"boost"`
}

// FetchConfig holds page fetch configuration.
type FetchConfig struct {
	Timeout   time.Duration `envconfig:"REACTOR_FETCH_TIMEOUT" yaml:"timeout"`
	Retries   int           `envconfig:"REACTOR_FETCH_RETRIES" yaml:"retries"`
	RPS       float64       `envconfig:"REACTOR_FETCH_RPS" yaml:"rps"`
	UserAgent string        `envconfig:"REACTOR_USER_AGENT" yaml:"user_agent"`
	TripAfter uint32        `envconfig:"REACTOR_FETCH_TRIP_AFTER" yaml:"trip_after"`
	CoolDown  time.Duration `envconfig:"REACTOR_FETCH_COOLDOWN" yaml:"cooldown"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// MetricsConfig holds metrics exposition configuration.
type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR" yaml:"addr"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			FrameInterval: 16 * time.Millisecond,
		},
		Transport: TransportConfig{
			Path:             "__reactor__",
			ReconnectMin:     time.Second,
			ReconnectMax:     30 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Navigation: NavigationConfig{
			CacheSize: 10,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			Retries:   3,
			UserAgent: "reactor-client/1.0",
			TripAfter: 5,
			CoolDown:  30 * time.Second,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Load applies environment variables over the defaults.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile applies a YAML file over the defaults, then environment variables
// over the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values the runtime cannot work with.
func (c *Config) Validate() error {
	if c.Navigation.CacheSize < 1 {
		return fmt.Errorf("cache size must be positive, got %d", c.Navigation.CacheSize)
	}
	if c.Client.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive, got %s", c.Client.FrameInterval)
	}
	if c.Transport.ReconnectMin <= 0 || c.Transport.ReconnectMax < c.Transport.ReconnectMin {
		return fmt.Errorf("invalid reconnect window %s..%s", c.Transport.ReconnectMin, c.Transport.ReconnectMax)
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("fetch retries must not be negative, got %d", c.Fetch.Retries)
	}
	return nil
}
