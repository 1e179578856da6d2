package domain

import "time"

// ReembedJobStatus is the lifecycle of a bulk re-embed job.
type ReembedJobStatus string

const (
	ReembedPending   ReembedJobStatus = "pending"
	ReembedRunning   ReembedJobStatus = "running"
	ReembedCompleted ReembedJobStatus = "completed"
	ReembedFailed    ReembedJobStatus = "failed"
)

// ReembedJob checkpoints a bulk re-embed by last-processed item id so the
// operation can resume after interruption.
type ReembedJob struct {
	ID         string
	Provider   string
	Model      string
	Dims       int
	Status     ReembedJobStatus
	LastItemID string
	Processed  int64
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
