package routeruse

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config mirrors the JSON configuration shape: a router section and a map of
// named server entries.
type Config struct {
	Router  *RouterConfig           `json:"mcpRouter,omitempty"`
	Servers map[string]ServerConfig `json:"mcpServers,omitempty"`
}

// RouterConfig is the router section of the configuration.
type RouterConfig struct {
	RouterURL string            `json:"router_url"`
	AuthToken string            `json:"auth_token,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// ServerConfig is one raw server entry. Command-based entries carry a launch
// spec; URL-based entries point at an already-running server and cannot be
// registered. ServerID is the cached remote identity the reconciler verifies
// against the router.
type ServerConfig struct {
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	URL       string            `json:"url,omitempty"`
	AuthToken string            `json:"auth_token,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	ServerID  string            `json:"server_id,omitempty"`
}

// LoadConfig reads a JSON configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routeruse: read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("routeruse: parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("routeruse: encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("routeruse: write config: %w", err)
	}
	return nil
}
