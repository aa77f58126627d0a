package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go-stats-cache/internal/models"
	"go-stats-cache/internal/offline"
)

// maxShellSize bounds a precached shell resource
const maxShellSize = 8 << 20

// networkFetch adapts an http.Client to offline.FetchFunc
func networkFetch(httpClient *http.Client) offline.FetchFunc {
	return func(ctx context.Context, req models.OfflineRequest) (*models.OfflineResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxShellSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		return &models.OfflineResponse{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
		}, nil
	}
}

// absoluteManifest resolves manifest paths against the edge base URL
func absoluteManifest(baseURL string, manifest []string) []string {
	base := strings.TrimRight(baseURL, "/")
	out := make([]string, len(manifest))
	for i, entry := range manifest {
		if strings.HasPrefix(entry, "http://") || strings.HasPrefix(entry, "https://") {
			out[i] = entry
			continue
		}
		out[i] = base + "/" + strings.TrimLeft(entry, "/")
	}
	return out
}
