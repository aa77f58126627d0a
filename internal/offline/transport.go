package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go-stats-cache/internal/models"
)

// Classifier assigns a ResourceClass to an outgoing request
type Classifier func(req *http.Request) ResourceClass

// ManifestClassifier treats manifest URLs as shell resources and bypasses everything else
func ManifestClassifier(manifest []string) Classifier {
	shell := make(map[string]struct{}, len(manifest))
	for _, url := range manifest {
		shell[url] = struct{}{}
	}
	return func(req *http.Request) ResourceClass {
		if req.Method != http.MethodGet {
			return ClassBypass
		}
		if _, ok := shell[req.URL.String()]; ok {
			return ClassShell
		}
		return ClassBypass
	}
}

// Transport is an http.RoundTripper serving requests through a Layer
type Transport struct {
	layer    *Layer
	base     http.RoundTripper
	classify Classifier
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(layer *Layer, base http.RoundTripper, classify Classifier) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if classify == nil {
		classify = func(*http.Request) ResourceClass { return ClassBypass }
	}
	return &Transport{layer: layer, base: base, classify: classify}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	class := t.classify(req)
	if class == ClassBypass {
		return t.base.RoundTrip(req)
	}

	// The live response of the network call, returned untouched when the network answered
	var live *http.Response
	network := func(ctx context.Context, r models.OfflineRequest) (*models.OfflineResponse, error) {
		resp, err := t.base.RoundTrip(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		live = resp
		return &models.OfflineResponse{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
		}, nil
	}

	offlineReq := models.NewOfflineRequest(req.Method, req.URL.String())
	stored, err := t.layer.Intercept(req.Context(), offlineReq, class, network)
	if err != nil {
		return nil, err
	}

	if live != nil {
		live.Body = io.NopCloser(bytes.NewReader(stored.Body))
		return live, nil
	}
	return toHTTPResponse(req, stored), nil
}

func toHTTPResponse(req *http.Request, stored *models.OfflineResponse) *http.Response {
	header := make(http.Header)
	if stored.ContentType != "" {
		header.Set("Content-Type", stored.ContentType)
	}
	header.Set("X-Offline-Cache", "HIT")
	header.Set("Content-Length", strconv.Itoa(len(stored.Body)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", stored.Status, http.StatusText(stored.Status)),
		StatusCode:    stored.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(stored.Body)),
		ContentLength: int64(len(stored.Body)),
		Request:       req,
	}
}
