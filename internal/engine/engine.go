// Package engine is the request-scoped orchestration layer behind the MCP
// tool surface: it resolves a cached runtime (config + embedder) per
// database path, opens a short-lived store connection for each call, and
// dispatches to the indexer/search/async/watcher packages underneath.
// Every cache here — runtimes, the background indexer singleton, and the
// auto-reindex throttle timestamps — is a field of this struct rather than
// a package-level global, so tests can build a fresh Engine per case.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riftindex/riftindex/internal/async"
	"github.com/riftindex/riftindex/internal/chunk"
	"github.com/riftindex/riftindex/internal/config"
	"github.com/riftindex/riftindex/internal/embed"
	rifterrors "github.com/riftindex/riftindex/internal/errors"
	"github.com/riftindex/riftindex/internal/index"
	"github.com/riftindex/riftindex/internal/pathmatch"
	"github.com/riftindex/riftindex/internal/search"
	"github.com/riftindex/riftindex/internal/store"
	"github.com/riftindex/riftindex/internal/watcher"
)

// Runtime bundles the per-database-path collaborators a tool call needs:
// the resolved embedder (expensive to re-resolve, e.g. a learned-model
// ping) and the chunker/search options derived from config.
type Runtime struct {
	DBPath   string
	Config   *config.Config
	Embedder embed.Embedder
	Chunker  chunk.Chunker
}

// Engine owns every cache the tool surface needs across calls: resolved
// runtimes keyed by db path, the single background-indexer worker shared
// by every path, and the last-auto-reindex timestamp per path used to
// throttle the search tool's opportunistic reindex.
type Engine struct {
	baseConfig *config.Config

	mu              sync.Mutex
	runtimes        map[string]*Runtime
	lastAutoReindex map[string]time.Time

	background *async.BackgroundIndexer
	watcher    *watcher.FileWatcher

	// globCache memoizes include/exclude decisions across repeated
	// reindex passes over the same tree (see internal/pathmatch.Cache).
	// A construction failure just means indexing runs uncached, not a
	// fatal error, so New ignores NewCache's error.
	globCache *pathmatch.Cache
}

// New builds an Engine from a base configuration. baseConfig's db_path is
// the default target when a tool call doesn't override one.
func New(baseConfig *config.Config) *Engine {
	if baseConfig == nil {
		baseConfig = config.NewConfig()
	}
	globCache, _ := pathmatch.NewCache(pathmatch.DefaultCacheSize)
	return &Engine{
		baseConfig:      baseConfig,
		runtimes:        make(map[string]*Runtime),
		lastAutoReindex: make(map[string]time.Time),
		background:      async.NewBackgroundIndexer(rifterrors.DefaultRetryConfig()),
		globCache:       globCache,
	}
}

// BaseConfig returns the engine's base configuration (for CLI callers that
// want the resolved defaults, e.g. to print include/exclude globs).
func (e *Engine) BaseConfig() *config.Config {
	return e.baseConfig
}

// Background returns the shared background indexer, so a process can wire
// a shutdown hook and the file watcher against the same singleton.
func (e *Engine) Background() *async.BackgroundIndexer {
	return e.background
}

// resolveDBPath returns override if non-empty, else the base config's path.
func (e *Engine) resolveDBPath(override string) string {
	if override != "" {
		return override
	}
	return e.baseConfig.DBPath
}

// getRuntime resolves the Runtime for dbPath, building and caching it on
// first use under double-checked locking. The embedder resolution (a
// learned-model ping, for "auto"/"onnx" backends) only happens once per
// path for the life of the Engine.
func (e *Engine) getRuntime(ctx context.Context, dbPath string) (*Runtime, error) {
	e.mu.Lock()
	if rt, ok := e.runtimes[dbPath]; ok {
		e.mu.Unlock()
		return rt, nil
	}
	e.mu.Unlock()

	embedder, err := embed.New(ctx, e.baseConfig.EmbeddingBackend, e.baseConfig.EmbeddingURL, e.baseConfig.EmbeddingModel, e.baseConfig.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("resolve embedder for %s: %w", dbPath, err)
	}
	chunker := chunk.NewMarkdownChunkerWithOptions(chunk.Options{
		MaxChunkChars: e.baseConfig.MaxChunkChars,
		MinChunkChars: e.baseConfig.MinChunkChars,
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if rt, ok := e.runtimes[dbPath]; ok {
		_ = embedder.Close()
		return rt, nil
	}
	rt := &Runtime{DBPath: dbPath, Config: e.baseConfig, Embedder: embedder, Chunker: chunker}
	e.runtimes[dbPath] = rt
	return rt, nil
}

// openStore opens a short-lived connection to dbPath. Schema DDL
// (`CREATE TABLE IF NOT EXISTS ...`) runs on every Open, but is cheap and
// idempotent; the cost this avoids across calls is re-resolving the
// embedder, not re-running DDL (see getRuntime).
func (e *Engine) openStore(dbPath string) (store.Store, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, wrapStorageError(err, dbPath)
	}
	return st, nil
}

// wrapStorageError re-raises a storage-engine failure as a domain error
// carrying a rebuild command for dbPath. The
// background indexer's own retry boundary (internal/async) checks the
// underlying message for "locked"/"busy" before this wrapping happens, so
// transient errors there never reach this path.
func wrapStorageError(err error, dbPath string) *rifterrors.RiftError {
	if err == nil {
		return nil
	}
	wrapped := rifterrors.New(rifterrors.ErrCodeInternal, err.Error(), err)
	return rifterrors.WithRebuildHint(wrapped, dbPath)
}

// Shutdown stops the background indexer (cancelling queued jobs, bounded
// wait for any running one) and the file watcher, if one was started.
func (e *Engine) Shutdown(timeout time.Duration) error {
	var errs []error
	if err := e.background.Shutdown(timeout); err != nil {
		errs = append(errs, err)
	}
	e.mu.Lock()
	w := e.watcher
	e.mu.Unlock()
	if w != nil {
		if err := w.Stop(timeout); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %v", errs)
	}
	return nil
}

// StartWatcher builds and starts a FileWatcher over the engine's base
// config (file_watcher_paths/debounce) submitting reindex jobs against the
// base db path through the shared background indexer. It is a no-op if a
// watcher is already running.
func (e *Engine) StartWatcher(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.watcher != nil {
		return
	}
	cfg := e.baseConfig
	roots := cfg.FileWatcherPaths
	if len(roots) == 0 {
		roots = []string{"."}
	}
	dbPath := cfg.DBPath
	debounce := time.Duration(cfg.FileWatcherDebounceMS) * time.Millisecond

	task := func(ctx context.Context) (any, error) {
		return e.runReindexTask(ctx, dbPath, index.MultiRootRequest{
			Roots:              roots,
			Force:              false,
			PruneMissing:       true,
			IncludeGlobs:       cfg.IndexIncludeGlobs,
			ExcludeGlobs:       cfg.IndexExcludeGlobs,
			GitFingerprintRoot: roots[0],
		})
	}

	w := watcher.New(roots, cfg.IndexIncludeGlobs, cfg.IndexExcludeGlobs, debounce, 5, e.background, "watcher-reindex", task)
	w.Start(ctx)
	e.watcher = w
}

// runReindexTask opens dbPath's store, runs an Orchestrator pass, and
// closes the connection on every exit path. Shared by the background-job
// closures built by Reindex and StartWatcher. A cross-process WriteLock
// guards the write for the whole call, extending the single-writer
// invariant (spec.md §5) past the in-process background-worker
// serialization to any other riftindex process sharing dbPath.
func (e *Engine) runReindexTask(ctx context.Context, dbPath string, req index.MultiRootRequest) (*index.MultiRootResult, error) {
	rt, err := e.getRuntime(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	lock := store.NewWriteLock(dbPath)
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire write lock for %s: %w", dbPath, err)
	}
	defer lock.Unlock()

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	orch := index.NewOrchestrator(index.NewIndexerWithCache(st, rt.Chunker, rt.Embedder, e.globCache), st)
	return orch.Run(ctx, req)
}

// searchService builds a search.Service bound to an already-open store and
// the runtime's embedder/rrf_k.
func (e *Engine) searchService(st store.Store, rt *Runtime) *search.Service {
	return search.NewService(st, rt.Embedder, rt.Config.RRFK)
}
