package jobqueue

import "time"

// JobStatus is where a cleanup job is in its life. Completed jobs are removed
// from Redis, so there is no completed status.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusRetrying   JobStatus = "retrying"
	JobStatusDead       JobStatus = "dead"
)

// Job deletes the storage objects a listing no longer references. The
// listing row may already be gone when the job runs.
type Job struct {
	ID          string     `json:"id"`
	ListingID   string     `json:"listing_id"`
	Keys        []string   `json:"keys"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

// Stats is a point-in-time view of the cleanup queue.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Retrying   int64 `json:"retrying"`
	Dead       int64 `json:"dead"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

func (j *Job) start(now time.Time) {
	j.Status = JobStatusProcessing
	j.Attempts++
	j.UpdatedAt = now
	j.StartedAt = &now
}

// fail records err and reports whether another attempt is allowed.
func (j *Job) fail(now time.Time, err error) bool {
	j.LastError = err.Error()
	j.UpdatedAt = now
	if j.Attempts < j.MaxAttempts {
		j.Status = JobStatusRetrying
		return true
	}
	j.Status = JobStatusDead
	return false
}

// stale reports whether a job sitting in the processing list has gone
// untouched for longer than maxAge, which means the worker that took it is gone.
func (j *Job) stale(now time.Time, maxAge time.Duration) bool {
	touched := j.UpdatedAt
	if j.Status == JobStatusProcessing && j.StartedAt != nil {
		touched = *j.StartedAt
	}
	return now.Sub(touched) > maxAge
}
