package models

import "time"

// EntryState is the lifecycle state of a client cache entry
type EntryState string

const (
	EntryStateEmpty        EntryState = "empty"
	EntryStateFresh        EntryState = "fresh"
	EntryStateStale        EntryState = "stale"
	EntryStateRevalidating EntryState = "revalidating"
	EntryStateError        EntryState = "error"
)

// Entry is a snapshot of what the client currently believes a key holds.
// Value is retained across failures; Err carries the last fetch error.
type Entry struct {
	Key             CacheKey
	Category        Category
	Value           []byte
	FetchedAt       time.Time
	State           EntryState
	Err             error
	SubscriberCount int
	// Speculative is set while Value holds an unconfirmed optimistic write
	Speculative bool
}

// HasValue reports whether any value, even a stale one, is available
func (e Entry) HasValue() bool {
	return e.Value != nil
}

// Degraded reports whether a value is being served alongside an error
func (e Entry) Degraded() bool {
	return e.Err != nil && e.Value != nil
}

// Outcome of a cache resolution
type Outcome string

const (
	OutcomeHit  Outcome = "hit"
	OutcomeMiss Outcome = "miss"
)

// FetchResult is a successful response from the data-fetch boundary
type FetchResult struct {
	Request OfflineRequest
	// Body is the raw response body as received
	Body []byte
	// Data is the payload extracted from the {success, data} envelope
	Data []byte
	// ContentType of the response body
	ContentType string
}
