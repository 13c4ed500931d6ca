package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Export serializes the configuration as a template in the given format
// ("toml" or "yaml"), suitable for writing next to a test suite and editing
// by hand.
func (c *Config) Export(format string) ([]byte, error) {
	switch format {
	case "toml":
		data, err := toml.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal toml: %w", err)
		}
		return data, nil
	case "yaml", "yml":
		data, err := yaml.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal yaml: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}
}
