package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TomlGroup represents one tracked group from TOML. Role endpoints may point
// at the same physical feed; empty comment/counter/profile endpoints fall
// back to the main endpoint.
type TomlGroup struct {
	ID              string `toml:"id"`
	Name            string `toml:"name"`
	MainEndpoint    string `toml:"main"`
	CommentEndpoint string `toml:"comment,omitempty"`
	CounterEndpoint string `toml:"counter,omitempty"`
	ProfileEndpoint string `toml:"profile,omitempty"`
}

// TomlNode holds chain node connection settings.
type TomlNode struct {
	APIBase    string `toml:"api_base"`
	WakeSocket string `toml:"wake_socket,omitempty"`
	Compress   bool   `toml:"compress,omitempty"`
}

// TomlConfig represents the top-level configuration.
type TomlConfig struct {
	Node   TomlNode    `toml:"node"`
	Groups []TomlGroup `toml:"groups"`
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config TomlConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(config *TomlConfig) error {
	if config.Node.APIBase == "" {
		return fmt.Errorf("node.api_base is required")
	}
	if len(config.Groups) == 0 {
		return fmt.Errorf("at least one group must be configured")
	}

	seen := map[string]bool{}
	for i := range config.Groups {
		group := &config.Groups[i]
		if group.ID == "" {
			return fmt.Errorf("group %d is missing an id", i)
		}
		if seen[group.ID] {
			return fmt.Errorf("duplicate group id %q", group.ID)
		}
		seen[group.ID] = true
		if group.MainEndpoint == "" {
			return fmt.Errorf("group %q is missing a main endpoint", group.ID)
		}
		// Roles without a dedicated endpoint share the main feed.
		if group.CommentEndpoint == "" {
			group.CommentEndpoint = group.MainEndpoint
		}
		if group.CounterEndpoint == "" {
			group.CounterEndpoint = group.MainEndpoint
		}
		if group.ProfileEndpoint == "" {
			group.ProfileEndpoint = group.MainEndpoint
		}
	}

	return nil
}
