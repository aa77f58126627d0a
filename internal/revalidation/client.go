package revalidation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"go-stats-cache/internal/models"
)

// LocalInvalidator is the client cache side of an invalidation
type LocalInvalidator interface {
	Invalidate(tags []string)
}

// Client asks the edge server to revalidate tags and then invalidates the local cache
type Client struct {
	endpoint   string
	httpClient *http.Client
	local      LocalInvalidator
	logger     *zap.Logger
}

// NewClient creates a client posting to baseURL + "/api/revalidate"
func NewClient(baseURL string, httpClient *http.Client, local LocalInvalidator, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/revalidate",
		httpClient: httpClient,
		local:      local,
		logger:     logger,
	}
}

// Invalidate revalidates tags on the server, then locally.
// The local cache is invalidated even when the server call fails.
func (c *Client) Invalidate(ctx context.Context, tags []string) (*models.InvalidationResult, error) {
	result, err := c.post(ctx, tags)
	if c.local != nil {
		c.local.Invalidate(tags)
	}
	if err != nil {
		c.logger.Warn("Server revalidation failed", zap.Strings("tags", tags), zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, tags []string) (*models.InvalidationResult, error) {
	payload, err := json.Marshal(models.InvalidationRequest{Tags: tags})
	if err != nil {
		return nil, fmt.Errorf("failed to encode revalidation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build revalidation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call revalidation endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read revalidation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &failure)
		if failure.Error == "" {
			failure.Error = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("revalidation rejected with status %d: %s", resp.StatusCode, failure.Error)
	}

	var result models.InvalidationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode revalidation response: %w", err)
	}
	return &result, nil
}
