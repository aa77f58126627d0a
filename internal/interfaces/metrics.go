package interfaces

import (
	"time"

	"go-stats-cache/internal/models"
)

// MetricsRecorder observes client cache resolutions
type MetricsRecorder interface {
	RecordOutcome(category models.Category, outcome models.Outcome, latency time.Duration)
	RecordInvalidation(category models.Category)
	RecordSize(category models.Category, bytes int64)
}
