package domain

// JobStatus is the lifecycle of a bulk extraction run as persisted to the job
// status store and reported to callers.
type JobStatus string

const (
	JobIdle       JobStatus = "idle"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status ends a run.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobCancelled, JobFailed:
		return true
	default:
		return false
	}
}

// BulkJobState is a snapshot of a bulk extraction run.
// Invariants: 0 <= ProcessedCount <= TotalPages, SucceededCount <= ProcessedCount.
type BulkJobState struct {
	DocumentID     string    `json:"document_id"`
	TotalPages     int       `json:"total_pages"`
	ProcessedCount int       `json:"processed_count"`
	SucceededCount int       `json:"succeeded_count"`
	Status         JobStatus `json:"status"`
}
