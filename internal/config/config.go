package config

import (
	"errors"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	PublicURL         string        `mapstructure:"public_url" yaml:"public_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret       string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer       string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience     string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL          time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	RequireVerified bool          `mapstructure:"require_verified" yaml:"require_verified"`

	MaxMessageBytes      int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	EventBuffer          int           `mapstructure:"event_buffer" yaml:"event_buffer"`
	PingInterval         time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	WSRateLimitPerMinute int           `mapstructure:"ws_rate_limit_per_minute" yaml:"ws_rate_limit_per_minute"`
	AllowedOrigins       []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	HTTPRateLimit  int           `mapstructure:"http_rate_limit" yaml:"http_rate_limit"`
	HTTPRateWindow time.Duration `mapstructure:"http_rate_window" yaml:"http_rate_window"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                 ":8080",
		PublicURL:            "http://localhost:8080",
		ReadHeaderTimeout:    5 * time.Second,
		ShutdownTimeout:      5 * time.Second,
		LogLevel:             "info",
		DatabasePath:         "parley.db",
		JWTSecret:            "change-me",
		JWTIssuer:            "parley",
		JWTAudience:          "parley-clients",
		JWTTTL:               24 * time.Hour,
		RequireVerified:      true,
		MaxMessageBytes:      1 << 16,
		EventBuffer:          64,
		PingInterval:         30 * time.Second,
		WSRateLimitPerMinute: 120,
		HTTPRateLimit:        100,
		HTTPRateWindow:       15 * time.Minute,
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr is required")
	case c.DatabasePath == "":
		return errors.New("database_path is required")
	case c.JWTSecret == "":
		return errors.New("jwt_secret is required")
	case c.JWTTTL <= 0:
		return errors.New("jwt_ttl must be positive")
	case c.MaxMessageBytes <= 0:
		return errors.New("max_message_bytes must be positive")
	}
	return nil
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}
