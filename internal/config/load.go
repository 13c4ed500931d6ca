package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load builds a Config from defaults, an optional config file (TOML or
// YAML, chosen by extension), and WEBVISOR_* environment variables, in
// increasing order of precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("host", defaults.Host)
	v.SetDefault("server_command", defaults.ServerCommand)
	v.SetDefault("ready_timeout", defaults.ReadyTimeout)
	v.SetDefault("poll_interval", defaults.PollInterval)
	v.SetDefault("cache_bytes", defaults.CacheBytes)
	v.SetDefault("disable_cors", defaults.DisableCORS)
	v.SetDefault("read_timeout", defaults.ReadTimeout)
	v.SetDefault("write_timeout", defaults.WriteTimeout)
	v.SetDefault("disable_logs", defaults.DisableLogs)
	v.SetDefault("color_logs", defaults.ColorLogs)
	v.SetDefault("log_time_format", defaults.TimeFormatLogs)

	v.SetEnvPrefix("webvisor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
