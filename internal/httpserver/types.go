package httpserver

import "encoding/json"

// revalidateRequest keeps tags raw so that a missing or malformed list can be told apart
type revalidateRequest struct {
	Tags json.RawMessage `json:"tags"`
}

// errorResponse is the body of a rejected revalidation
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// Response headers describing how a data request was served
const (
	HeaderCacheStatus = "X-Cache-Status"
	HeaderCacheLevel  = "X-Cache-Level"
	HeaderRequestID   = "X-Request-ID"
)
