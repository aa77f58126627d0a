package main

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"go-stats-cache/internal/cache"
	"go-stats-cache/internal/cache/l1"
	"go-stats-cache/internal/cache/l2"
	"go-stats-cache/internal/cache/noop"
	"go-stats-cache/internal/cache/service"
	"go-stats-cache/internal/config"
	"go-stats-cache/internal/httpserver"
	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/policy"
	"go-stats-cache/internal/revalidation"
	"go-stats-cache/internal/upstream"
)

// CompositionRoot holds every dependency of the edge server and owns their cleanup.
//
// Initialization order:
// 1. Logger
// 2. Environment overrides and configuration
// 3. Cache policies
// 4. Cache tiers (L1, L2) and the key codec
// 5. Upstream client, cache service and revalidation gateway
// 6. HTTP server
type CompositionRoot struct {
	// Configuration
	Config   *config.Config
	Env      config.EnvOverrides
	Logger   *zap.Logger
	Policies *policy.Registry

	// Cache components
	L1Cache  interfaces.Cache
	L2Cache  interfaces.Cache
	KeyCodec interfaces.KeyCodec

	// Services
	Upstream     *upstream.Client
	CacheService *service.CacheService
	Gateway      *revalidation.Gateway
	HTTPServer   *httpserver.Server
}

// NewCompositionRoot creates and wires all edge server dependencies
func NewCompositionRoot() (*CompositionRoot, error) {
	root := &CompositionRoot{}

	if err := root.initLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := root.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := root.loadPolicies(); err != nil {
		return nil, fmt.Errorf("failed to load cache policies: %w", err)
	}

	if err := root.initCacheComponents(); err != nil {
		return nil, fmt.Errorf("failed to initialize cache components: %w", err)
	}

	root.initServices()
	root.initHTTPServer()

	return root, nil
}

// initLogger initializes the application logger
func (r *CompositionRoot) initLogger() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	r.Logger = logger
	return nil
}

// loadConfig reads environment overrides, then the YAML configuration they point to
func (r *CompositionRoot) loadConfig() error {
	env, err := config.ParseEnv()
	if err != nil {
		return err
	}
	r.Env = env

	cfg, err := config.LoadConfig(env.ConfigFile, r.Logger)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(env)
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.Config = cfg
	return nil
}

// loadPolicies merges the optional policies file over the built-in table
func (r *CompositionRoot) loadPolicies() error {
	registry, err := policy.LoadRegistry(r.Env.PoliciesFile, r.Logger)
	if err != nil {
		return err
	}
	r.Policies = registry
	return nil
}

// initCacheComponents initializes all cache-related components
func (r *CompositionRoot) initCacheComponents() error {
	if err := r.initL1Cache(); err != nil {
		return fmt.Errorf("failed to initialize L1 cache: %w", err)
	}

	r.initL2Cache()
	r.KeyCodec = cache.NewKeyCodec()
	return nil
}

// initL1Cache initializes the L1 cache (BigCache)
func (r *CompositionRoot) initL1Cache() error {
	if r.Config.L1.Enabled {
		l1Cache, err := l1.NewBigCache(&r.Config.L1, r.Logger)
		if err != nil {
			return err
		}
		r.L1Cache = l1Cache
		r.Logger.Info("BigCache (L1) initialized", zap.Int("size_mb", r.Config.L1.Size))
	} else {
		r.L1Cache = noop.NewNoOpCache()
		r.Logger.Info("BigCache (L1) disabled")
	}
	return nil
}

// initL2Cache initializes the L2 cache (KeyDB), falling back to no L2 when unreachable
func (r *CompositionRoot) initL2Cache() {
	if !r.Config.L2.Enabled {
		r.L2Cache = noop.NewNoOpCache()
		r.Logger.Info("KeyDB (L2) disabled")
		return
	}

	keydbURL := GetKeyDBURL(r.Env, r.Logger)
	keydbClient, err := l2.NewRedisKeyDbClient(r.Config, keydbURL, r.Logger)
	if err != nil {
		r.Logger.Warn("Failed to connect to KeyDB, falling back to no L2 cache",
			zap.String("keydb_url", keydbURL),
			zap.Error(err))
		r.L2Cache = noop.NewNoOpCache()
		return
	}

	r.L2Cache = l2.NewKeyDBCache(r.Config, keydbClient, r.Logger)
	r.Logger.Info("KeyDB (L2) initialized", zap.String("keydb_url", keydbURL))
}

// initServices initializes the upstream client, cache service and revalidation gateway
func (r *CompositionRoot) initServices() {
	httpClient := &http.Client{
		Timeout: r.Config.Upstream.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        r.Config.Upstream.MaxIdleConns,
			MaxIdleConnsPerHost: r.Config.Upstream.MaxIdleConns,
		},
	}
	r.Upstream = upstream.NewClient(r.Config.Upstream.BaseURL, httpClient, r.KeyCodec, r.Policies, r.Logger)

	r.CacheService = service.NewCacheService(
		[]interfaces.Cache{r.L1Cache, r.L2Cache},
		r.Policies,
		r.KeyCodec,
		r.Upstream,
		r.Config.MultiCache.EnablePropagation,
		r.Logger,
	)

	r.Gateway = revalidation.NewGateway(r.Policies, r.CacheService, nil, r.Logger)
}

// initHTTPServer initializes the HTTP server
func (r *CompositionRoot) initHTTPServer() {
	r.HTTPServer = httpserver.NewServer(r.CacheService, r.Gateway, r.Config.Server, r.Logger)
}

// Cleanup performs cleanup of all resources and returns the first failure
func (r *CompositionRoot) Cleanup() error {
	var errors []error

	// Close L1 cache
	if l1BigCache, ok := r.L1Cache.(*l1.BigCache); ok {
		if err := l1BigCache.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close L1 cache: %w", err))
		}
	}

	// Close L2 cache
	if l2KeyDBCache, ok := r.L2Cache.(*l2.KeyDBCache); ok {
		if err := l2KeyDBCache.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close L2 cache: %w", err))
		}
	}

	// Sync logger
	if r.Logger != nil {
		if err := r.Logger.Sync(); err != nil {
			errors = append(errors, fmt.Errorf("failed to sync logger: %w", err))
		}
	}

	if len(errors) > 0 {
		return errors[0]
	}
	return nil
}
