package utils

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the {success, data} body shape of every data endpoint
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ParseEnvelope parses a raw response body and returns its data payload.
// A body reporting success=false is an error carrying the reported message.
func ParseEnvelope(body []byte) (json.RawMessage, error) {
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response envelope: %w", err)
	}

	if !env.Success {
		if env.Error != "" {
			return nil, fmt.Errorf("upstream reported failure: %s", env.Error)
		}
		return nil, errors.New("upstream reported failure")
	}

	if len(env.Data) == 0 {
		return json.RawMessage("null"), nil
	}
	return env.Data, nil
}

// ErrorEnvelope builds a failure body with message
func ErrorEnvelope(message string) []byte {
	body, _ := json.Marshal(Envelope{Success: false, Error: message})
	return body
}
