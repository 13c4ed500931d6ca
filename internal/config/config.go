// Package config holds the settings shared by the session library and the
// webvisor-server executable.
package config

import (
	"fmt"
	"time"
)

// Default configuration values
const (
	DefaultHost          = "127.0.0.1"
	DefaultServerCommand = "webvisor-server"
	DefaultReadyTimeout  = 10 * time.Second
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultCacheBytes    = 64 << 20
	DefaultReadTimeout   = 30 * time.Second
	DefaultWriteTimeout  = 30 * time.Second
	DefaultTimeFormat    = "iso8601"
)

// Config holds all configuration for webvisor
type Config struct {
	// Session settings
	Host          string        `mapstructure:"host" toml:"host" yaml:"host"`
	ServerCommand string        `mapstructure:"server_command" toml:"server_command" yaml:"server_command"`
	ReadyTimeout  time.Duration `mapstructure:"ready_timeout" toml:"ready_timeout" yaml:"ready_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval" toml:"poll_interval" yaml:"poll_interval"`

	// File server settings
	CacheBytes   int64         `mapstructure:"cache_bytes" toml:"cache_bytes" yaml:"cache_bytes"`
	DisableCORS  bool          `mapstructure:"disable_cors" toml:"disable_cors" yaml:"disable_cors"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" toml:"write_timeout" yaml:"write_timeout"`

	// Logging
	DisableLogs    bool   `mapstructure:"disable_logs" toml:"disable_logs" yaml:"disable_logs"`
	ColorLogs      bool   `mapstructure:"color_logs" toml:"color_logs" yaml:"color_logs"`
	TimeFormatLogs string `mapstructure:"log_time_format" toml:"log_time_format" yaml:"log_time_format"`
}

// DefaultConfig returns a configuration with all defaults applied
func DefaultConfig() *Config {
	return &Config{
		Host:           DefaultHost,
		ServerCommand:  DefaultServerCommand,
		ReadyTimeout:   DefaultReadyTimeout,
		PollInterval:   DefaultPollInterval,
		CacheBytes:     DefaultCacheBytes,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		TimeFormatLogs: DefaultTimeFormat,
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.ServerCommand == "" {
		return fmt.Errorf("server_command must not be empty")
	}
	if c.ReadyTimeout <= 0 {
		return fmt.Errorf("ready_timeout must be positive, got %v", c.ReadyTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.PollInterval >= c.ReadyTimeout {
		return fmt.Errorf("poll_interval %v must be shorter than ready_timeout %v",
			c.PollInterval, c.ReadyTimeout)
	}
	if c.CacheBytes < 0 {
		return fmt.Errorf("cache_bytes must not be negative, got %d", c.CacheBytes)
	}
	return nil
}
