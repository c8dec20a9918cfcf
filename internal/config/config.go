package config

import (
	"fmt"
	"time"
)

// Config holds server configuration values.
type Config struct {
	// Addr is the TCP listen address, host optional.
	Addr string `mapstructure:"addr" yaml:"addr"`

	// IOTimeout bounds a single stalled read or write while a frame is in
	// transfer. Idle connections are not subject to it.
	IOTimeout time.Duration `mapstructure:"io_timeout" yaml:"io_timeout"`

	// MaxFrameBytes rejects inbound frames declaring a larger payload.
	MaxFrameBytes int `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`

	// ShutdownTimeout bounds draining connected clients at shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// DatabasePath locates the SQLite session journal. Empty disables
	// session recording entirely.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// StatsInterval is how often runtime stats are logged. Zero disables
	// the stats loop.
	StatsInterval time.Duration `mapstructure:"stats_interval" yaml:"stats_interval"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:            ":5555",
		IOTimeout:       5 * time.Second,
		MaxFrameBytes:   1 << 20,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		LogFormat:       "console",
		DatabasePath:    "streamchat.db",
		StatsInterval:   time.Minute,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.IOTimeout != 0 {
		c.IOTimeout = other.IOTimeout
	}
	if other.MaxFrameBytes != 0 {
		c.MaxFrameBytes = other.MaxFrameBytes
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.StatsInterval != 0 {
		c.StatsInterval = other.StatsInterval
	}
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.IOTimeout <= 0 {
		return fmt.Errorf("io_timeout must be positive, got %v", c.IOTimeout)
	}
	if c.MaxFrameBytes < 0 {
		return fmt.Errorf("max_frame_bytes must not be negative, got %d", c.MaxFrameBytes)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", c.ShutdownTimeout)
	}
	if c.StatsInterval < 0 {
		return fmt.Errorf("stats_interval must not be negative, got %v", c.StatsInterval)
	}
	return nil
}
