package watcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftindex/riftindex/internal/async"
)

// fakeSubmitter is an in-memory Submitter that records every submitted
// job and lets tests hold a job "running" until released, so coalescing
// (a reindex already queued/running suppresses further submissions) can
// be exercised without a real background indexer or filesystem.
type fakeSubmitter struct {
	mu       sync.Mutex
	jobs     map[string]*async.Job
	submits  int32
	holdNext chan struct{} // when non-nil, the next submitted job blocks until this closes
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{jobs: make(map[string]*async.Job)}
}

func (f *fakeSubmitter) Submit(label string, task async.TaskFunc) (*async.Job, error) {
	atomic.AddInt32(&f.submits, 1)

	id := fmt.Sprintf("job-%d", f.submits)
	job := &async.Job{ID: id, Label: label, Status: async.StatusRunning}

	f.mu.Lock()
	f.jobs[id] = job
	hold := f.holdNext
	f.holdNext = nil
	f.mu.Unlock()

	go func() {
		if hold != nil {
			<-hold
		}
		_, _ = task(context.Background())
		f.mu.Lock()
		job.Status = async.StatusCompleted
		f.mu.Unlock()
	}()

	return job, nil
}

func (f *fakeSubmitter) GetJob(id string) (*async.Job, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	return j, ok
}

func (f *fakeSubmitter) submitCount() int32 {
	return atomic.LoadInt32(&f.submits)
}

func TestFileWatcher_CoalescesWhileJobPending(t *testing.T) {
	// Given: a watcher whose last submitted job is held "running"
	sub := newFakeSubmitter()
	hold := make(chan struct{})
	sub.holdNext = hold

	noop := func(ctx context.Context) (any, error) { return nil, nil }
	w := New([]string{"."}, nil, nil, 50*time.Millisecond, 5, sub, "watcher-reindex", noop)

	// When: three rapid event batches arrive while the job is still pending
	w.submitReindex()
	require.Equal(t, int32(1), sub.submitCount())
	w.submitReindex()
	w.submitReindex()

	// Then: no additional job was queued for the same watcher
	assert.Equal(t, int32(1), sub.submitCount(), "coalescing should suppress submissions while a job is queued/running")

	close(hold)
	time.Sleep(20 * time.Millisecond)

	// And: once the prior job completes, a new batch submits again
	w.submitReindex()
	assert.Equal(t, int32(2), sub.submitCount())
}

func TestFileWatcher_BatchSurvivesFilter(t *testing.T) {
	// Given: a watcher scoped to *.md with node_modules excluded
	w := &FileWatcher{
		roots:        []string{"/repo"},
		includeGlobs: []string{"**/*.md"},
		excludeGlobs: []string{"**/node_modules/**"},
	}

	cases := []struct {
		name   string
		batch  []FileEvent
		expect bool
	}{
		{"matching markdown file", []FileEvent{{Path: "/repo/docs/guide.md"}}, true},
		{"excluded node_modules path", []FileEvent{{Path: "/repo/node_modules/pkg/readme.md"}}, false},
		{"non-markdown file", []FileEvent{{Path: "/repo/src/main.go"}}, false},
		{"mixed batch with one survivor", []FileEvent{
			{Path: "/repo/src/main.go"},
			{Path: "/repo/docs/other.md"},
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, w.batchSurvivesFilter(tc.batch))
		})
	}
}

func TestDebouncer_CoalescesRapidEventsIntoOneBatch(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	// When: several events for two distinct paths arrive faster than the window
	d.Add(FileEvent{Path: "a.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "a.md", Operation: OpModify})
	d.Add(FileEvent{Path: "b.md", Operation: OpModify})

	// Then: exactly one coalesced batch is emitted, with one entry per path
	select {
	case batch := <-d.Output():
		assert.Len(t, batch, 2)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced batch")
	}
}

func TestDebouncer_CreateThenDeleteCancelsOut(t *testing.T) {
	// Given: a debouncer that sees a file created then deleted within the window
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "ephemeral.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "ephemeral.md", Operation: OpDelete})

	// When: a second, unrelated path keeps the debouncer's timer alive
	d.Add(FileEvent{Path: "other.md", Operation: OpModify})

	// Then: only the surviving path is in the flushed batch
	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, "other.md", batch[0].Path)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced batch")
	}
}
