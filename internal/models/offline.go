package models

import (
	"net/http"
	"strings"
	"time"
)

// OfflineRequest identifies a persisted response
type OfflineRequest struct {
	Method string
	URL    string
}

// NewOfflineRequest builds a request identity, defaulting the method to GET
func NewOfflineRequest(method, url string) OfflineRequest {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	return OfflineRequest{Method: method, URL: strings.TrimSpace(url)}
}

// Key returns the content address of the request
func (r OfflineRequest) Key() string {
	return r.Method + " " + r.URL
}

// OfflineResponse is a persisted response body
type OfflineResponse struct {
	Status      int
	ContentType string
	Body        []byte
	StoredAt    time.Time
}

// OfflineEntryInfo summarizes one persisted entry
type OfflineEntryInfo struct {
	Key        string
	SizeBytes  int64
	Generation string
	StoredAt   time.Time
}
