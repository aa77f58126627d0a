package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go-stats-cache/internal/client"
	"go-stats-cache/internal/utils"
)

const preferencesEndpoint = "/api/user/preferences"

// Preferences is the user preferences document
type Preferences map[string]any

// PreferencesWriter saves preferences optimistically: the dashboard shows the new values
// at once and rolls back when the backend rejects them
type PreferencesWriter struct {
	source     *client.DataSource[Preferences]
	backendURL string
	httpClient *http.Client
}

// NewPreferencesWriter creates a writer committing to the backend at backendURL
func NewPreferencesWriter(source *client.DataSource[Preferences], backendURL string, httpClient *http.Client) *PreferencesWriter {
	return &PreferencesWriter{
		source:     source,
		backendURL: strings.TrimRight(backendURL, "/"),
		httpClient: httpClient,
	}
}

// Set merges updates into the current preferences
func (p *PreferencesWriter) Set(ctx context.Context, updates Preferences) error {
	current, _, err := p.source.Load(ctx, nil)
	if err != nil && current == nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	merged := make(Preferences, len(current)+len(updates))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}

	_, err = p.source.Mutate(ctx, nil, merged, func(ctx context.Context) ([]byte, error) {
		return p.commit(ctx, merged)
	})
	return err
}

func (p *PreferencesWriter) commit(ctx context.Context, prefs Preferences) ([]byte, error) {
	payload, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.backendURL+preferencesEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("save preferences rejected with status %d", resp.StatusCode)
	}
	return utils.ParseEnvelope(body)
}

// parsePreference splits a name=value flag, decoding JSON values when possible
func parsePreference(flag string) (string, any, error) {
	name, raw, ok := strings.Cut(flag, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid preference '%s', expected name=value", flag)
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}
	return name, value, nil
}
