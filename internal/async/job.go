// Package async implements the background job queue that keeps the index
// fresh without blocking tool calls: a single FIFO worker, retried on
// transient storage contention, cancellable on shutdown.
package async

import (
	"context"
	"time"
)

// Status is a Job's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TaskFunc is the unit of work a Job executes. The background indexer
// itself doesn't know what a reindex is; callers (the engine layer) close
// over a store/indexer pair and hand in the resulting func.
type TaskFunc func(ctx context.Context) (any, error)

// Job tracks one submitted task through queued -> running -> completed|failed.
// All mutation happens under the owning BackgroundIndexer's mutex; GetJob
// and GetAllJobs return copies so callers never race the worker.
type Job struct {
	ID          string
	Label       string
	Status      Status
	Result      any
	Err         error
	Retries     int
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	task TaskFunc
}

// snapshot returns a copy safe to hand to a caller outside the lock.
func (j *Job) snapshot() *Job {
	cp := *j
	cp.task = nil
	return &cp
}

// ElapsedSeconds derives the job's running duration: CompletedAt-StartedAt
// once finished, StartedAt-to-now while running, zero before it starts.
func (j *Job) ElapsedSeconds() float64 {
	switch {
	case !j.StartedAt.IsZero() && !j.CompletedAt.IsZero():
		return j.CompletedAt.Sub(j.StartedAt).Seconds()
	case !j.StartedAt.IsZero():
		return time.Since(j.StartedAt).Seconds()
	default:
		return 0
	}
}

// ToDict renders the job the way the tool surface reports it.
func (j *Job) ToDict() map[string]any {
	errMsg := ""
	if j.Err != nil {
		errMsg = j.Err.Error()
	}
	return map[string]any{
		"id":               j.ID,
		"label":            j.Label,
		"status":           string(j.Status),
		"retries":          j.Retries,
		"error":            errMsg,
		"created_at":       j.CreatedAt,
		"started_at":       j.StartedAt,
		"completed_at":     j.CompletedAt,
		"elapsed_seconds":  j.ElapsedSeconds(),
	}
}
