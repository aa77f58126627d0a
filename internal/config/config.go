package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"go-stats-cache/internal/models"
)

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	L1         L1Config         `yaml:"l1"`
	L2         L2Config         `yaml:"l2"`
	MultiCache MultiCacheConfig `yaml:"multi_cache"`
	Client     ClientConfig     `yaml:"client"`
	Network    NetworkConfig    `yaml:"network"`
	Offline    OfflineConfig    `yaml:"offline"`
	Refresh    RefreshConfig    `yaml:"refresh"`
}

// ServerConfig configures the edge HTTP listener
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// UpstreamConfig configures the statistics backend data source
type UpstreamConfig struct {
	BaseURL      string        `yaml:"base_url" validate:"required,url"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxIdleConns int           `yaml:"max_idle_conns" validate:"gte=0"`
}

// L1Config configures the in-process BigCache tier
type L1Config struct {
	Enabled bool `yaml:"enabled"`
	// Size is the hard cap in MB
	Size          int           `yaml:"size" validate:"gte=0"`
	MaxEntrySize  int           `yaml:"max_entry_size" validate:"gte=0"`
	StatsInterval time.Duration `yaml:"stats_interval" validate:"gte=0"`
}

// ConnectionConfig holds KeyDB timeouts in milliseconds
type ConnectionConfig struct {
	ConnectTimeout int `yaml:"connect_timeout" validate:"gte=0"`
	SendTimeout    int `yaml:"send_timeout" validate:"gte=0"`
	ReadTimeout    int `yaml:"read_timeout" validate:"gte=0"`
}

// KeepaliveConfig holds KeyDB pool settings, timeouts in milliseconds
type KeepaliveConfig struct {
	PoolSize       int `yaml:"pool_size" validate:"gte=0"`
	MaxIdleTimeout int `yaml:"max_idle_timeout" validate:"gte=0"`
}

// CacheConfig holds L2 TTL bounds in seconds
type CacheConfig struct {
	DefaultTTL int `yaml:"default_ttl" validate:"gte=0"`
	MaxTTL     int `yaml:"max_ttl" validate:"gte=0"`
}

// L2Config configures the KeyDB tier
type L2Config struct {
	Enabled    bool             `yaml:"enabled"`
	Connection ConnectionConfig `yaml:"connection"`
	Keepalive  KeepaliveConfig  `yaml:"keepalive"`
	Cache      CacheConfig      `yaml:"cache"`
}

// MultiCacheConfig configures tier coordination
type MultiCacheConfig struct {
	EnablePropagation bool `yaml:"enable_propagation"`
}

// WatchConfig is one data set the dashboard keeps subscribed
type WatchConfig struct {
	Endpoint string         `yaml:"endpoint" validate:"required,startswith=/"`
	Params   map[string]any `yaml:"params"`
}

// ClientConfig configures the client-side data cache
type ClientConfig struct {
	// BaseURL is the edge server the dashboard talks to
	BaseURL      string        `yaml:"base_url" validate:"required,url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
	MaxEntries   int           `yaml:"max_entries" validate:"gt=0"`
	Watch        []WatchConfig `yaml:"watch" validate:"dive"`
}

// NetworkConfig configures connectivity probing
type NetworkConfig struct {
	// ProbeURL defaults to the client base URL health endpoint
	ProbeURL      string        `yaml:"probe_url" validate:"omitempty,url"`
	ProbeInterval time.Duration `yaml:"probe_interval" validate:"gt=0"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout" validate:"gt=0"`
}

// OfflineConfig configures the persisted offline store
type OfflineConfig struct {
	Enabled    bool   `yaml:"enabled"`
	DBPath     string `yaml:"db_path" validate:"required_if=Enabled true"`
	Generation string `yaml:"generation" validate:"required_if=Enabled true"`
	// Manifest lists shell resources precached at startup
	Manifest []string `yaml:"manifest" validate:"dive,required"`
}

// RefreshConfig configures the pull-to-refresh gesture
type RefreshConfig struct {
	MaxDistance     float64           `yaml:"max_distance" validate:"gt=0"`
	TriggerFraction float64           `yaml:"trigger_fraction" validate:"gt=0,lte=1"`
	Resistance      float64           `yaml:"resistance" validate:"gt=0,lte=1"`
	Throttle        time.Duration     `yaml:"throttle" validate:"gte=0"`
	MinVisible      time.Duration     `yaml:"min_visible" validate:"gte=0"`
	Categories      []models.Category `yaml:"categories"`
}

var validate = validator.New()

// LoadConfig loads configuration from file path
func LoadConfig(configPath string, logger *zap.Logger) (*Config, error) {
	logger.Info("Loading configuration", zap.String("path", configPath))

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var config Config
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode YAML config: %w", err)
	}

	// Apply defaults
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "http://localhost:3001"
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 10 * time.Second
	}
	if c.Upstream.MaxIdleConns == 0 {
		c.Upstream.MaxIdleConns = 100
	}

	if c.L1.Size == 0 {
		c.L1.Size = 100
	}
	if c.L1.MaxEntrySize == 0 {
		c.L1.MaxEntrySize = 1024 * 1024
	}
	if c.L1.StatsInterval == 0 {
		c.L1.StatsInterval = 30 * time.Second
	}

	if c.L2.Connection.ConnectTimeout == 0 {
		c.L2.Connection.ConnectTimeout = 1000
	}
	if c.L2.Connection.SendTimeout == 0 {
		c.L2.Connection.SendTimeout = 1000
	}
	if c.L2.Connection.ReadTimeout == 0 {
		c.L2.Connection.ReadTimeout = 1000
	}
	if c.L2.Keepalive.PoolSize == 0 {
		c.L2.Keepalive.PoolSize = 10
	}
	if c.L2.Keepalive.MaxIdleTimeout == 0 {
		c.L2.Keepalive.MaxIdleTimeout = 10000
	}
	if c.L2.Cache.DefaultTTL == 0 {
		c.L2.Cache.DefaultTTL = 3600
	}
	if c.L2.Cache.MaxTTL == 0 {
		c.L2.Cache.MaxTTL = 86400 * 30
	}

	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:8080"
	}
	if c.Client.FetchTimeout == 0 {
		c.Client.FetchTimeout = 10 * time.Second
	}
	if c.Client.MaxEntries == 0 {
		c.Client.MaxEntries = 500
	}

	if c.Network.ProbeInterval == 0 {
		c.Network.ProbeInterval = 5 * time.Second
	}
	if c.Network.ProbeTimeout == 0 {
		c.Network.ProbeTimeout = 2 * time.Second
	}

	if c.Offline.DBPath == "" {
		c.Offline.DBPath = "offline-cache.db"
	}
	if c.Offline.Generation == "" {
		c.Offline.Generation = "stats-dashboard-v1"
	}

	if c.Refresh.MaxDistance == 0 {
		c.Refresh.MaxDistance = 180
	}
	if c.Refresh.TriggerFraction == 0 {
		c.Refresh.TriggerFraction = 2.0 / 3.0
	}
	if c.Refresh.Resistance == 0 {
		c.Refresh.Resistance = 0.8
	}
	if c.Refresh.Throttle == 0 {
		c.Refresh.Throttle = time.Second
	}
	if c.Refresh.MinVisible == 0 {
		c.Refresh.MinVisible = 500 * time.Millisecond
	}
	if len(c.Refresh.Categories) == 0 {
		c.Refresh.Categories = []models.Category{models.CategoryDynamic, models.CategoryRealTime}
	}
}

// GetConnectTimeout returns connect timeout as time.Duration
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.L2.Connection.ConnectTimeout) * time.Millisecond
}

// GetSendTimeout returns send timeout as time.Duration
func (c *Config) GetSendTimeout() time.Duration {
	return time.Duration(c.L2.Connection.SendTimeout) * time.Millisecond
}

// GetReadTimeout returns read timeout as time.Duration
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.L2.Connection.ReadTimeout) * time.Millisecond
}

// GetMaxIdleTimeout returns max idle timeout as time.Duration
func (c *Config) GetMaxIdleTimeout() time.Duration {
	return time.Duration(c.L2.Keepalive.MaxIdleTimeout) * time.Millisecond
}

// GetDefaultTTL returns default TTL as time.Duration
func (c *Config) GetDefaultTTL() time.Duration {
	return time.Duration(c.L2.Cache.DefaultTTL) * time.Second
}

// GetMaxTTL returns max TTL as time.Duration
func (c *Config) GetMaxTTL() time.Duration {
	return time.Duration(c.L2.Cache.MaxTTL) * time.Second
}

// GetProbeURL returns the connectivity probe target
func (c *Config) GetProbeURL() string {
	if c.Network.ProbeURL != "" {
		return c.Network.ProbeURL
	}
	return c.Client.BaseURL + "/health"
}
