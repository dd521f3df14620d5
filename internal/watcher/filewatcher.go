package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/riftindex/riftindex/internal/async"
	"github.com/riftindex/riftindex/internal/pathmatch"
)

// Submitter is the slice of BackgroundIndexer the watcher needs: enough to
// submit a reindex job and check whether a previously submitted one is
// still in flight, without depending on the async package's full surface.
type Submitter interface {
	Submit(label string, task async.TaskFunc) (*async.Job, error)
	GetJob(id string) (*async.Job, bool)
}

// FileWatcher watches a set of roots and submits coalesced reindex jobs to
// a Submitter whenever a surviving event batch arrives. It prefers
// fsnotify; if the OS backend can't be initialized, it falls back to
// polling for that run. A crash of the underlying watch loop triggers a
// bounded, backing-off restart.
type FileWatcher struct {
	roots        []string
	includeGlobs []string
	excludeGlobs []string
	opts         Options
	maxRestarts  int
	baseBackoff  time.Duration

	submitter Submitter
	task      async.TaskFunc
	jobLabel  string

	mu        sync.Mutex
	lastJobID string

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a FileWatcher. task is the closure the watcher submits on
// every surviving event batch (typically an Orchestrator.Run call with
// force=false, prune_missing=true over roots). debounce of zero takes
// Options' default; the polling fallback's interval is also sourced from
// Options rather than hardcoded.
func New(roots, includeGlobs, excludeGlobs []string, debounce time.Duration, maxRestarts int, submitter Submitter, jobLabel string, task async.TaskFunc) *FileWatcher {
	if maxRestarts <= 0 {
		maxRestarts = 5
	}
	opts := Options{DebounceWindow: debounce}.WithDefaults()
	return &FileWatcher{
		roots:        roots,
		includeGlobs: includeGlobs,
		excludeGlobs: excludeGlobs,
		opts:         opts,
		maxRestarts:  maxRestarts,
		baseBackoff:  time.Second,
		submitter:    submitter,
		task:         task,
		jobLabel:     jobLabel,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start launches the watch loop in a background goroutine.
func (w *FileWatcher) Start(ctx context.Context) {
	go w.runWithRestart(ctx)
}

// Stop signals the watch loop and waits up to timeout for it to exit.
func (w *FileWatcher) Stop(timeout time.Duration) error {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}

	select {
	case <-w.doneCh:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s waiting for file watcher to stop", timeout)
	}
}

// runWithRestart runs the watch loop, restarting with exponential backoff
// on failure, up to maxRestarts times. The crash counter is never reset,
// not even after a successful event batch, so maxRestarts bounds the
// restarts over the watcher's whole lifetime.
func (w *FileWatcher) runWithRestart(ctx context.Context) {
	defer close(w.doneCh)

	crashes := 0
	for {
		err := w.runOnce(ctx)
		if err == nil {
			return // clean stop
		}

		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		crashes++
		if crashes > w.maxRestarts {
			slog.Error("file watcher exceeded crash-restart budget, terminating",
				slog.Int("max_restarts", w.maxRestarts),
				slog.String("error", err.Error()),
			)
			return
		}

		backoff := w.baseBackoff * time.Duration(1<<uint(crashes-1))
		slog.Warn("file watcher crashed, restarting",
			slog.Int("attempt", crashes),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		select {
		case <-time.After(backoff):
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runOnce watches until the stop signal, context cancellation, or a
// backend error. A nil return means a clean stop; non-nil triggers a
// crash-restart.
func (w *FileWatcher) runOnce(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return w.runPolling(ctx)
	}
	defer fsw.Close()

	for _, root := range w.roots {
		if err := addRecursive(fsw, root); err != nil {
			return fmt.Errorf("watch root %s: %w", root, err)
		}
	}

	debouncer := NewDebouncer(w.opts.DebounceWindow)
	defer debouncer.Stop()

	go w.pumpBatches(debouncer.Output())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("fsnotify event channel closed")
			}
			debouncer.Add(toFileEvent(ev))
		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("fsnotify error channel closed")
			}
			return fmt.Errorf("fsnotify backend error: %w", err)
		}
	}
}

// runPolling is the fallback path when fsnotify itself can't initialize
// (e.g. inotify instance limits exhausted).
func (w *FileWatcher) runPolling(ctx context.Context) error {
	pollers := make([]Watcher, 0, len(w.roots))
	merged := make(chan FileEvent, 100)
	mergedErrs := make(chan error, 10)

	var wg sync.WaitGroup
	for _, root := range w.roots {
		p := NewPollingWatcher(w.opts.PollInterval)
		pollers = append(pollers, p)
		wg.Add(1)
		go func(root string) {
			defer wg.Done()
			if err := p.Start(ctx, root); err != nil && ctx.Err() == nil {
				select {
				case mergedErrs <- err:
				default:
				}
			}
		}(root)
		go fanIn(p.Events(), merged)
		go fanInErr(p.Errors(), mergedErrs)
	}
	defer func() {
		for _, p := range pollers {
			_ = p.Stop()
		}
	}()

	debouncer := NewDebouncer(w.opts.DebounceWindow)
	defer debouncer.Stop()
	go w.pumpBatches(debouncer.Output())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case ev, ok := <-merged:
			if !ok {
				return fmt.Errorf("polling event channel closed")
			}
			debouncer.Add(ev)
		case err := <-mergedErrs:
			return fmt.Errorf("polling backend error: %w", err)
		}
	}
}

func fanIn(src <-chan FileEvent, dst chan<- FileEvent) {
	for ev := range src {
		select {
		case dst <- ev:
		default:
		}
	}
}

func fanInErr(src <-chan error, dst chan<- error) {
	for err := range src {
		select {
		case dst <- err:
		default:
		}
	}
}

// pumpBatches filters every coalesced batch against the watcher's globs
// and submits a reindex whenever at least one event survives.
func (w *FileWatcher) pumpBatches(batches <-chan []FileEvent) {
	for batch := range batches {
		if w.batchSurvivesFilter(batch) {
			w.submitReindex()
		}
	}
}

func (w *FileWatcher) batchSurvivesFilter(batch []FileEvent) bool {
	for _, ev := range batch {
		candidates := pathmatch.Candidates(ev.Path, w.roots)
		if pathmatch.MatchCandidates(candidates, w.excludeGlobs) {
			continue
		}
		if len(w.includeGlobs) == 0 || pathmatch.MatchCandidates(candidates, w.includeGlobs) {
			return true
		}
	}
	return false
}

// submitReindex enforces coalescing: if the last job this watcher
// submitted is still queued or running, a new event batch is dropped
// rather than piling up redundant reindex work.
func (w *FileWatcher) submitReindex() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.lastJobID != "" {
		if job, ok := w.submitter.GetJob(w.lastJobID); ok {
			if job.Status == async.StatusQueued || job.Status == async.StatusRunning {
				return
			}
		}
	}

	job, err := w.submitter.Submit(w.jobLabel, w.task)
	if err != nil {
		slog.Warn("file watcher failed to submit reindex job", slog.String("error", err.Error()))
		return
	}
	w.lastJobID = job.ID
}

// addRecursive adds root and every subdirectory beneath it to fsw, the way
// fsnotify requires for recursive watching (it has no native recursive
// mode).
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func toFileEvent(ev fsnotify.Event) FileEvent {
	op := OpModify
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	}
	return FileEvent{
		Path:      ev.Name,
		Operation: op,
		Timestamp: time.Now(),
	}
}
