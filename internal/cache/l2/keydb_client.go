package l2

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"go-stats-cache/internal/config"
	"go-stats-cache/internal/interfaces"
)

// Ensure RedisKeyDbClient implements interfaces.KeyDbClient
var _ interfaces.KeyDbClient = (*RedisKeyDbClient)(nil)

// RedisKeyDbClient wraps redis.Client to implement KeyDbClient interface
type RedisKeyDbClient struct {
	client *redis.Client
	logger *zap.Logger
}

// ParseKeyDBURL builds client options from a redis:// URL and the L2 timeouts
func ParseKeyDBURL(keydbURL string, cfg *config.Config) (*redis.Options, error) {
	parsedURL, err := url.Parse(keydbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse KeyDB URL: %w", err)
	}
	if parsedURL.Scheme != "redis" && parsedURL.Scheme != "keydb" {
		return nil, fmt.Errorf("unsupported KeyDB URL scheme '%s'", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	if host == "" {
		return nil, fmt.Errorf("KeyDB URL has no host")
	}
	port := parsedURL.Port()
	if port == "" {
		port = "6379" // Default Redis port
	}

	opts := &redis.Options{
		Addr:         host + ":" + port,
		DialTimeout:  cfg.GetConnectTimeout(),
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetSendTimeout(),
		PoolSize:     cfg.L2.Keepalive.PoolSize,
		IdleTimeout:  cfg.GetMaxIdleTimeout(),
	}

	if parsedURL.User != nil {
		if password, ok := parsedURL.User.Password(); ok {
			opts.Password = password
		}
	}

	// Database number from the URL path, e.g. redis://host:6379/2
	if dbPath := strings.TrimPrefix(parsedURL.Path, "/"); dbPath != "" {
		db, err := strconv.Atoi(dbPath)
		if err != nil {
			return nil, fmt.Errorf("invalid KeyDB database '%s': %w", dbPath, err)
		}
		opts.DB = db
	}

	return opts, nil
}

// NewRedisKeyDbClient connects to KeyDB and verifies the connection with a ping
func NewRedisKeyDbClient(cfg *config.Config, keydbURL string, logger *zap.Logger) (interfaces.KeyDbClient, error) {
	opts, err := ParseKeyDBURL(keydbURL, cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetConnectTimeout())
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to KeyDB at %s: %w", opts.Addr, err)
	}

	logger.Info("Connected to KeyDB",
		zap.String("address", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Duration("connect_timeout", cfg.GetConnectTimeout()),
		zap.Int("pool_size", opts.PoolSize))

	return &RedisKeyDbClient{
		client: client,
		logger: logger,
	}, nil
}

// Get retrieves a value by key
func (r *RedisKeyDbClient) Get(ctx context.Context, key string) *redis.StringCmd {
	return r.client.Get(ctx, key)
}

// Set stores a value with expiration
func (r *RedisKeyDbClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return r.client.Set(ctx, key, value, expiration)
}

// Del deletes one or more keys
func (r *RedisKeyDbClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return r.client.Del(ctx, keys...)
}

// SAdd adds members to a set
func (r *RedisKeyDbClient) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	return r.client.SAdd(ctx, key, members...)
}

// SMembers lists the members of a set
func (r *RedisKeyDbClient) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	return r.client.SMembers(ctx, key)
}

// Expire sets a timeout on a key
func (r *RedisKeyDbClient) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return r.client.Expire(ctx, key, expiration)
}

// Ping tests connectivity
func (r *RedisKeyDbClient) Ping(ctx context.Context) *redis.StatusCmd {
	return r.client.Ping(ctx)
}

// Close closes the client connection
func (r *RedisKeyDbClient) Close() error {
	return r.client.Close()
}
