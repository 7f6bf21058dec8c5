// Package config loads the tracker configuration from YAML, .env and the
// process environment, in that order of precedence (environment wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pricetracker/pricing"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracking TrackingConfig `yaml:"tracking"`
}

type ServerConfig struct {
	Port         string `yaml:"port"`
	AllowOrigins string `yaml:"allow_origins"`
	// ReadLimit and TrackLimit are requests per minute per client.
	ReadLimit  int `yaml:"read_limit"`
	TrackLimit int `yaml:"track_limit"`
}

type DatabaseConfig struct {
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	AdminUsername string        `yaml:"admin_username"`
	AdminPassword string        `yaml:"admin_password"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type TrackingConfig struct {
	Workers  int                `yaml:"workers"`
	Epsilon  string             `yaml:"epsilon"`
	Interval time.Duration      `yaml:"interval"`
	Schedule bool               `yaml:"schedule"`
	Source   string             `yaml:"source"`
	Seed     int64              `yaml:"seed"`
	Bounds   pricing.Bounds     `yaml:"bounds"`
	Feed     pricing.FeedConfig `yaml:"feed"`
}

const (
	SourceSimulated = "simulated"
	SourceFeed      = "feed"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:         "8081",
			AllowOrigins: "*",
			ReadLimit:    60,
			TrackLimit:   10,
		},
		Database: DatabaseConfig{AutoMigrate: true},
		Auth: AuthConfig{
			JWTSecret:     "default-secret",
			TokenTTL:      24 * time.Hour,
			AdminUsername: "admin",
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Tracking: TrackingConfig{
			Workers:  4,
			Epsilon:  "0.01",
			Interval: time.Hour,
			Source:   SourceSimulated,
			Bounds:   pricing.DefaultBounds,
			Feed:     pricing.FeedConfig{Timeout: 10 * time.Second, RPS: 5, Burst: 1},
		},
	}
}

// Load reads path (optional when empty or missing), a .env file in the
// working directory if one exists, then applies environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("PORT", &c.Server.Port)
	setString("ALLOW_ORIGINS", &c.Server.AllowOrigins)
	setString("DB_DSN", &c.Database.DSN)
	setString("JWT_SECRET", &c.Auth.JWTSecret)
	setString("ADMIN_USERNAME", &c.Auth.AdminUsername)
	setString("ADMIN_PASSWORD", &c.Auth.AdminPassword)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FORMAT", &c.Logging.Format)
	setString("LOG_OUTPUT", &c.Logging.Output)
	setString("PRICE_SOURCE", &c.Tracking.Source)
	setString("PRICE_FEED_URL", &c.Tracking.Feed.BaseURL)

	if v := os.Getenv("TRACK_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRACK_WORKERS %q: %w", v, err)
		}
		c.Tracking.Workers = n
	}
	if v := os.Getenv("TRACK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TRACK_INTERVAL %q: %w", v, err)
		}
		c.Tracking.Interval = d
	}
	if v := os.Getenv("TRACK_SCHEDULE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRACK_SCHEDULE %q: %w", v, err)
		}
		c.Tracking.Schedule = b
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Tracking.Workers < 1 {
		return fmt.Errorf("tracking.workers must be at least 1, got %d", c.Tracking.Workers)
	}
	if c.Tracking.Schedule && c.Tracking.Interval <= 0 {
		return fmt.Errorf("tracking.interval must be positive when scheduling is enabled")
	}
	if _, err := c.EpsilonValue(); err != nil {
		return err
	}
	switch c.Tracking.Source {
	case SourceSimulated:
		if err := c.Tracking.Bounds.Validate(); err != nil {
			return fmt.Errorf("tracking.bounds: %w", err)
		}
	case SourceFeed:
		if c.Tracking.Feed.BaseURL == "" {
			return fmt.Errorf("tracking.feed.base_url is required for the feed source")
		}
	default:
		return fmt.Errorf("unknown tracking.source %q", c.Tracking.Source)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	return nil
}
