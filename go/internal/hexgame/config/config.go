// Package config loads client settings from defaults, an optional YAML file
// and environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the variable holding the optional YAML file path.
const ConfigPathEnv = "HEXFORT_CONFIG"

const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

// NATSConfig holds the NATS transport settings.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Config holds everything the client binary needs.
type Config struct {
	AuthorityURL   string        `yaml:"authority_url"`
	SocketPath     string        `yaml:"socket_path"`
	Transport      string        `yaml:"transport"`
	NATS           NATSConfig    `yaml:"nats"`
	ViewAddr       string        `yaml:"view_addr"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogLevel       string        `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		AuthorityURL: "http://127.0.0.1:5000",
		SocketPath:   "/ws",
		Transport:    TransportWebSocket,
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "hexfort.games",
		},
		ViewAddr:       "127.0.0.1:8090",
		TickInterval:   time.Second,
		RequestTimeout: 10 * time.Second,
		LogLevel:       "info",
	}
}

// Load builds the configuration. path may be empty, in which case
// HEXFORT_CONFIG is consulted; a missing variable means no file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.AuthorityURL = getEnv("HEXFORT_AUTHORITY_URL", c.AuthorityURL)
	c.SocketPath = getEnv("HEXFORT_SOCKET_PATH", c.SocketPath)
	c.Transport = getEnv("HEXFORT_TRANSPORT", c.Transport)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("HEXFORT_NATS_PREFIX", c.NATS.SubjectPrefix)
	c.ViewAddr = getEnv("HEXFORT_VIEW_ADDR", c.ViewAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	var err error
	if c.TickInterval, err = getEnvAsDuration("HEXFORT_TICK_INTERVAL", c.TickInterval); err != nil {
		return err
	}
	if c.RequestTimeout, err = getEnvAsDuration("HEXFORT_REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.AuthorityURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid authority URL %q", c.AuthorityURL)
	}
	switch c.Transport {
	case TransportWebSocket:
	case TransportNATS:
		if c.NATS.URL == "" || c.NATS.SubjectPrefix == "" {
			return errors.New("nats transport requires a URL and subject prefix")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
