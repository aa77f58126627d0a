package models

// InvalidationRequest asks the edge tier to purge every entry carrying one of the tags
type InvalidationRequest struct {
	Tags []string `json:"tags"`
}

// InvalidationResult reports which tags were purged
type InvalidationResult struct {
	Revalidated bool     `json:"revalidated"`
	Timestamp   int64    `json:"timestamp"`
	Tags        []string `json:"tags"`
}
