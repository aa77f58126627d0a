package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides holds settings read from the process environment
type EnvOverrides struct {
	ConfigFile    string `env:"CACHE_CONFIG_FILE" envDefault:"/app/cache_config.yaml"`
	PoliciesFile  string `env:"CACHE_POLICIES_FILE"`
	ListenAddr    string `env:"LISTEN_ADDR"`
	KeyDBURL      string `env:"KEYDB_URL"`
	KeyDBURLFile  string `env:"CACHE_KEYDB_URL_FILE" envDefault:"/app/.keydb-url"`
	UpstreamURL   string `env:"UPSTREAM_URL"`
	EdgeURL       string `env:"EDGE_URL"`
	OfflineDBPath string `env:"OFFLINE_DB_PATH"`
}

// ParseEnv loads overrides from environment variables
func ParseEnv() (EnvOverrides, error) {
	var overrides EnvOverrides
	if err := env.Parse(&overrides); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
	}
	return overrides, nil
}

// ApplyEnv overlays non-empty environment overrides onto the configuration
func (c *Config) ApplyEnv(o EnvOverrides) {
	if o.ListenAddr != "" {
		c.Server.ListenAddr = o.ListenAddr
	}
	if o.UpstreamURL != "" {
		c.Upstream.BaseURL = o.UpstreamURL
	}
	if o.EdgeURL != "" {
		c.Client.BaseURL = o.EdgeURL
	}
	if o.OfflineDBPath != "" {
		c.Offline.DBPath = o.OfflineDBPath
	}
}
