package async

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	rifterrors "github.com/riftindex/riftindex/internal/errors"
)

// BackgroundIndexer is a single-worker FIFO job queue. The worker goroutine
// exits when the queue drains and is respawned on the next Submit, so an
// idle indexer holds no goroutine.
type BackgroundIndexer struct {
	mu        sync.Mutex
	cond      *sync.Cond
	jobs      map[string]*Job
	history   []string // insertion order, for GetAllJobs
	queue     []string // FIFO of not-yet-started job ids
	running   bool
	shutdown  bool
	shutdownC chan struct{}
	retryCfg  rifterrors.RetryConfig
}

// NewBackgroundIndexer creates an indexer using the given retry policy for
// transient storage errors. Pass rifterrors.DefaultRetryConfig() for the
// spec default (3 retries, 1.0s initial backoff, doubling).
func NewBackgroundIndexer(retryCfg rifterrors.RetryConfig) *BackgroundIndexer {
	bi := &BackgroundIndexer{
		jobs:      make(map[string]*Job),
		shutdownC: make(chan struct{}),
		retryCfg:  retryCfg,
	}
	bi.cond = sync.NewCond(&bi.mu)
	return bi
}

// Submit enqueues a task and spawns the worker if it's idle. It rejects
// once Shutdown has been called.
func (bi *BackgroundIndexer) Submit(label string, task TaskFunc) (*Job, error) {
	bi.mu.Lock()
	defer bi.mu.Unlock()

	if bi.shutdown {
		return nil, fmt.Errorf("background indexer is shut down: submission rejected")
	}

	job := &Job{
		ID:        uuid.NewString(),
		Label:     label,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		task:      task,
	}
	bi.jobs[job.ID] = job
	bi.history = append(bi.history, job.ID)
	bi.queue = append(bi.queue, job.ID)

	if !bi.running {
		bi.running = true
		go bi.runWorker()
	}

	return job.snapshot(), nil
}

// GetJob returns a snapshot of the job, or ok=false if unknown.
func (bi *BackgroundIndexer) GetJob(id string) (*Job, bool) {
	bi.mu.Lock()
	defer bi.mu.Unlock()
	j, ok := bi.jobs[id]
	if !ok {
		return nil, false
	}
	return j.snapshot(), true
}

// GetAllJobs returns a snapshot of every job ever submitted, oldest first.
func (bi *BackgroundIndexer) GetAllJobs() []*Job {
	bi.mu.Lock()
	defer bi.mu.Unlock()
	out := make([]*Job, 0, len(bi.history))
	for _, id := range bi.history {
		out = append(out, bi.jobs[id].snapshot())
	}
	return out
}

// Drain blocks until no job is queued or running, or timeout elapses.
func (bi *BackgroundIndexer) Drain(timeout time.Duration) error {
	return bi.waitQuiescent(timeout)
}

// Shutdown marks the indexer closed, fails every still-queued job with a
// reason containing "shutdown", and waits (bounded by timeout) for any
// in-flight job to finish. Idempotent: safe to call from a process-exit
// hook more than once.
func (bi *BackgroundIndexer) Shutdown(timeout time.Duration) error {
	bi.mu.Lock()
	if !bi.shutdown {
		bi.shutdown = true
		close(bi.shutdownC)

		now := time.Now()
		for _, id := range bi.queue {
			job := bi.jobs[id]
			job.Status = StatusFailed
			job.Err = fmt.Errorf("cancelled: server shutdown")
			job.CompletedAt = now
		}
		bi.queue = nil
		bi.cond.Broadcast()
	}
	bi.mu.Unlock()

	return bi.waitQuiescent(timeout)
}

func (bi *BackgroundIndexer) waitQuiescent(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		bi.mu.Lock()
		for bi.running || len(bi.queue) > 0 {
			bi.cond.Wait()
		}
		bi.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s waiting for background indexer to quiesce", timeout)
	}
}

// runWorker processes jobs FIFO until the queue is empty, then exits.
func (bi *BackgroundIndexer) runWorker() {
	for {
		bi.mu.Lock()
		if len(bi.queue) == 0 {
			bi.running = false
			bi.cond.Broadcast()
			bi.mu.Unlock()
			return
		}
		id := bi.queue[0]
		bi.queue = bi.queue[1:]
		job := bi.jobs[id]
		job.Status = StatusRunning
		job.StartedAt = time.Now()
		bi.mu.Unlock()

		result, retries, err := bi.runWithRetry(job)

		bi.mu.Lock()
		job.CompletedAt = time.Now()
		job.Retries = retries
		if err != nil {
			job.Status = StatusFailed
			job.Err = err
		} else {
			job.Status = StatusCompleted
			job.Result = result
		}
		bi.cond.Broadcast()
		bi.mu.Unlock()
	}
}

// runWithRetry executes job.task, retrying on transient storage errors with
// exponential backoff up to bi.retryCfg.MaxRetries. The backoff wait is
// interruptible by Shutdown.
func (bi *BackgroundIndexer) runWithRetry(job *Job) (result any, retries int, err error) {
	delay := bi.retryCfg.InitialDelay

	for attempt := 0; ; attempt++ {
		select {
		case <-bi.shutdownC:
			return nil, attempt, fmt.Errorf("cancelled: server shutdown")
		default:
		}

		result, err = job.task(context.Background())
		if err == nil {
			return result, attempt, nil
		}

		if !isTransientStorageError(err) {
			return nil, 0, err
		}

		if attempt >= bi.retryCfg.MaxRetries {
			return nil, attempt, err
		}

		select {
		case <-time.After(delay):
		case <-bi.shutdownC:
			return nil, attempt, fmt.Errorf("cancelled: server shutdown")
		}

		delay = time.Duration(float64(delay) * bi.retryCfg.Multiplier)
		if delay > bi.retryCfg.MaxDelay {
			delay = bi.retryCfg.MaxDelay
		}
	}
}

// isTransientStorageError matches the spec's "locked"/"busy" contract: a
// RiftError with Retryable set, or any error whose message mentions either
// word (the engine's operational-error type surfaces this way too).
func isTransientStorageError(err error) bool {
	if err == nil {
		return false
	}
	if rifterrors.IsRetryable(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}
