package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"go-stats-cache/internal/cache/multi"
	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/metrics"
	"go-stats-cache/internal/models"
	"go-stats-cache/internal/upstream"
)

const defaultContentType = "application/json"

// Ensure CacheService can back the revalidation gateway
var _ interfaces.TagPurger = (*CacheService)(nil)

// CacheService serves data requests through the edge tiers and the upstream backend
type CacheService struct {
	multiCache interfaces.LevelAwareCache
	registry   interfaces.PolicyRegistry
	codec      interfaces.KeyCodec
	fetcher    interfaces.Fetcher
	logger     *zap.Logger
	tracer     trace.Tracer
	flight     singleflight.Group
}

// NewCacheService creates a new cache service over the given tiers, L1 first
func NewCacheService(
	caches []interfaces.Cache,
	registry interfaces.PolicyRegistry,
	codec interfaces.KeyCodec,
	fetcher interfaces.Fetcher,
	enablePropagation bool,
	logger *zap.Logger,
) *CacheService {
	return &CacheService{
		multiCache: multi.NewMultiCache(caches, logger, enablePropagation),
		registry:   registry,
		codec:      codec,
		fetcher:    fetcher,
		logger:     logger,
		tracer:     otel.Tracer("go-stats-cache/edge"),
	}
}

// Response is the result of serving one data request
type Response struct {
	Key         models.CacheKey
	Category    models.Category
	Policy      models.CachePolicy
	Body        []byte
	ContentType string
	Status      models.CacheStatus
	Level       models.CacheLevel
}

// Serve resolves a GET of endpoint with query.
// Fresh tier hits are returned as is; misses go upstream once per key and are stored
// in every tier. When upstream fails a stale tier copy is served if one is left.
func (s *CacheService) Serve(ctx context.Context, endpoint string, query url.Values) (*Response, error) {
	category, err := s.registry.CategoryFor(endpoint)
	if err != nil {
		return nil, err
	}

	policy, err := s.registry.PolicyFor(category)
	if err != nil {
		return nil, err
	}

	key, err := s.codec.Encode(endpoint, upstream.ParamsFromQuery(query))
	if err != nil {
		return nil, fmt.Errorf("failed to build cache key: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "edge.serve", trace.WithAttributes(
		attribute.String("cache.key", string(key)),
		attribute.String("cache.category", string(category)),
	))
	defer span.End()

	metrics.RecordCacheRequest(string(category))
	resp := &Response{
		Key:         key,
		Category:    category,
		Policy:      policy,
		ContentType: defaultContentType,
		Level:       models.CacheLevelMiss,
	}

	// Zero staleness is never served from the tiers while upstream is reachable
	if policy.MaxStaleness > 0 {
		timer := metrics.TimeCacheOperation("get", "multi")
		result := s.multiCache.GetWithLevel(string(key))
		timer()

		if result.Found && result.Entry != nil {
			metrics.RecordCacheHit(string(category), levelLabel(result.Level))
			resp.Body = result.Entry.Data
			resp.Status = models.CacheStatusHit
			resp.Level = result.Level
			span.SetAttributes(attribute.String("cache.status", string(resp.Status)))
			return resp, nil
		}
		metrics.RecordCacheMiss(string(category))
	}

	body, err := s.fetch(ctx, key, policy)
	if err != nil {
		stale := s.multiCache.GetStaleWithLevel(string(key))
		if !stale.Found || stale.Entry == nil {
			span.RecordError(err)
			return nil, err
		}

		s.logger.Warn("Serving stale edge entry after upstream failure",
			zap.String("key", string(key)),
			zap.String("level", string(stale.Level)),
			zap.Error(err))
		metrics.RecordStaleServed(string(category))
		resp.Body = stale.Entry.Data
		resp.Status = models.CacheStatusStale
		resp.Level = stale.Level
		span.SetAttributes(attribute.String("cache.status", string(resp.Status)))
		return resp, nil
	}

	resp.Body = body
	resp.Status = models.CacheStatusMiss
	if policy.MaxStaleness <= 0 {
		resp.Status = models.CacheStatusBypass
	}
	span.SetAttributes(attribute.String("cache.status", string(resp.Status)))
	return resp, nil
}

// fetch performs at most one upstream request per key at a time and stores the result
func (s *CacheService) fetch(ctx context.Context, key models.CacheKey, policy models.CachePolicy) ([]byte, error) {
	v, err, shared := s.flight.Do(string(key), func() (interface{}, error) {
		result, err := s.fetcher.Fetch(ctx, key)
		if err != nil {
			return nil, err
		}

		ttl := models.TTL{Fresh: policy.MaxStaleness, Stale: policy.StaleWhileRevalidate}
		if ttl.Fresh+ttl.Stale > 0 {
			s.multiCache.Set(string(key), result.Body, ttl, policy.InvalidationTags)
		}
		return result.Body, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("Shared upstream fetch", zap.String("key", string(key)))
	}
	return v.([]byte), nil
}

// PurgeTags removes every edge entry carrying one of the tags from all tiers
func (s *CacheService) PurgeTags(ctx context.Context, tags []string) (int, error) {
	_, span := s.tracer.Start(ctx, "edge.purge", trace.WithAttributes(
		attribute.StringSlice("cache.tags", tags),
	))
	defer span.End()

	total := 0
	var errs []error
	for _, tag := range tags {
		n, err := s.multiCache.PurgeTags([]string{tag})
		total += n
		metrics.RecordPurgedKeys(tag, n)
		if err != nil {
			errs = append(errs, fmt.Errorf("tag '%s': %w", tag, err))
		}
	}

	s.logger.Info("Purged edge cache by tags",
		zap.Strings("tags", tags),
		zap.Int("removed", total))

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		return total, err
	}
	return total, nil
}

func levelLabel(level models.CacheLevel) string {
	switch level {
	case models.CacheLevelL1:
		return "l1"
	case models.CacheLevelL2:
		return "l2"
	default:
		return "unknown"
	}
}
