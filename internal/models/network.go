package models

import "time"

// NetworkState is the process-wide connectivity snapshot
type NetworkState struct {
	Online         bool      `json:"online"`
	TransitionedAt time.Time `json:"transitioned_at"`
	// LastOutageDuration is set on reconnect and cleared when going offline
	LastOutageDuration *time.Duration `json:"last_outage_duration,omitempty"`
}

// LastOutageMs returns the last outage duration in milliseconds, if any
func (s NetworkState) LastOutageMs() (int64, bool) {
	if s.LastOutageDuration == nil {
		return 0, false
	}
	return s.LastOutageDuration.Milliseconds(), true
}
