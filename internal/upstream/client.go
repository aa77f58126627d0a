package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/metrics"
	"go-stats-cache/internal/models"
	"go-stats-cache/internal/utils"
)

const (
	tracerName = "go-stats-cache/upstream"

	// maxBodyBytes bounds a single response read
	maxBodyBytes = 16 << 20
)

// Ensure Client implements interfaces.Fetcher
var _ interfaces.Fetcher = (*Client)(nil)

// Client fetches cache keys from an HTTP data source speaking the {success, data} envelope
type Client struct {
	baseURL    string
	httpClient *http.Client
	codec      interfaces.KeyCodec
	registry   interfaces.PolicyRegistry
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewClient creates a data source client for baseURL.
// registry is optional and only labels metrics with the data category.
func NewClient(baseURL string, httpClient *http.Client, codec interfaces.KeyCodec, registry interfaces.PolicyRegistry, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		codec:      codec,
		registry:   registry,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// URLFor returns the request URL of a cache key
func (c *Client) URLFor(key models.CacheKey) (string, error) {
	endpoint, params, err := c.codec.Decode(key)
	if err != nil {
		return "", err
	}

	query, err := EncodeQuery(params)
	if err != nil {
		return "", err
	}

	target := c.baseURL + endpoint
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return target, nil
}

// RequestFor returns the offline identity of the request Fetch issues for key
func (c *Client) RequestFor(key models.CacheKey) (models.OfflineRequest, error) {
	target, err := c.URLFor(key)
	if err != nil {
		return models.OfflineRequest{}, err
	}
	return models.NewOfflineRequest(http.MethodGet, target), nil
}

// Fetch performs GET <base><endpoint>?<query> and unwraps the response envelope.
// Every failure is returned as *models.FetchError.
func (c *Client) Fetch(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
	req, err := c.RequestFor(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	category := c.categoryOf(key)
	ctx, span := c.tracer.Start(ctx, "upstream.fetch", trace.WithAttributes(
		attribute.String("http.url", req.URL),
		attribute.String("cache.category", category),
	))
	defer span.End()

	start := time.Now()
	result, status, err := c.do(ctx, req)
	metrics.RecordUpstreamDuration(category, status, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("Upstream fetch failed",
			zap.String("url", req.URL),
			zap.String("status", status),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, req models.OfflineRequest) (*models.FetchResult, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, nil)
	if err != nil {
		return nil, "error", &models.FetchError{URL: req.URL, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return nil, "error", &models.FetchError{URL: req.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	status := strconv.Itoa(resp.StatusCode)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, status, &models.FetchError{URL: req.URL, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, status, &models.FetchError{URL: req.URL, StatusCode: resp.StatusCode, Err: errors.New("unexpected response status")}
	}

	data, err := utils.ParseEnvelope(body)
	if err != nil {
		return nil, status, &models.FetchError{URL: req.URL, StatusCode: resp.StatusCode, Err: err}
	}

	return &models.FetchResult{
		Request:     req,
		Body:        body,
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, status, nil
}

func (c *Client) categoryOf(key models.CacheKey) string {
	if c.registry == nil {
		return "unknown"
	}
	endpoint, _, ok := strings.Cut(string(key), ":")
	if !ok {
		return "unknown"
	}
	category, err := c.registry.CategoryFor(endpoint)
	if err != nil {
		return "unknown"
	}
	return string(category)
}
