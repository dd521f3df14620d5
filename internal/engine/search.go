package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/riftindex/riftindex/internal/index"
	"github.com/riftindex/riftindex/internal/search"
)

// SearchRequest is the validated input to Search. DBPath overrides the
// base config's db_path; TopK and Mode are expected to already be
// range/enum-checked by the caller (the tool surface rejects programmer
// errors before Search ever runs).
type SearchRequest struct {
	DBPath string
	Query  string
	TopK   int
	Mode   search.Mode
}

// AutoReindexInfo reports whether a search call opportunistically enqueued
// a background reindex, and the resulting job id if so. It is nil in a
// SearchResponse when auto-reindex is disabled.
type AutoReindexInfo struct {
	Executed string // "background" or "throttled"
	JobID    string
}

// SearchResponse is the shape the search tool returns.
type SearchResponse struct {
	Query          string
	Mode           search.Mode
	Count          int
	EmbeddingModel string
	AutoReindex    *AutoReindexInfo
	Results        []*search.Result
}

// Search resolves req's runtime, opens a store connection, runs the
// requested mode, and opportunistically submits a throttled background
// reindex first when auto_reindex_on_search is enabled.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	dbPath := e.resolveDBPath(req.DBPath)
	rt, err := e.getRuntime(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	var autoInfo *AutoReindexInfo
	if rt.Config.AutoReindexOnSearch {
		autoInfo = e.maybeAutoReindex(dbPath, rt)
	}

	st, err := e.openStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	svc := e.searchService(st, rt)
	results, err := svc.Search(ctx, req.Query, req.Mode, req.TopK)
	if err != nil {
		return nil, wrapStorageError(err, dbPath)
	}

	return &SearchResponse{
		Query:          req.Query,
		Mode:           req.Mode,
		Count:          len(results),
		EmbeddingModel: rt.Embedder.ModelName(),
		AutoReindex:    autoInfo,
		Results:        results,
	}, nil
}

// maybeAutoReindex atomically claims the auto-reindex slot for dbPath (so
// parallel searches don't stampede the background queue) and, if the
// minimum interval has elapsed, submits a reindex job over the configured
// auto_reindex_paths.
func (e *Engine) maybeAutoReindex(dbPath string, rt *Runtime) *AutoReindexInfo {
	minInterval := time.Duration(rt.Config.AutoReindexMinIntervalSeconds) * time.Second

	e.mu.Lock()
	last, ok := e.lastAutoReindex[dbPath]
	if ok && time.Since(last) < minInterval {
		e.mu.Unlock()
		return &AutoReindexInfo{Executed: "throttled"}
	}
	e.lastAutoReindex[dbPath] = time.Now() // claim the slot before submitting
	e.mu.Unlock()

	roots := rt.Config.AutoReindexPaths
	if len(roots) == 0 {
		roots = []string{"."}
	}

	job, err := e.background.Submit("auto-reindex", func(ctx context.Context) (any, error) {
		return e.runReindexTask(ctx, dbPath, index.MultiRootRequest{
			Roots:              roots,
			Force:              false,
			PruneMissing:       true,
			IncludeGlobs:       rt.Config.IndexIncludeGlobs,
			ExcludeGlobs:       rt.Config.IndexExcludeGlobs,
			GitFingerprintRoot: roots[0],
		})
	})
	if err != nil {
		return &AutoReindexInfo{Executed: "throttled"}
	}
	return &AutoReindexInfo{Executed: "background", JobID: job.ID}
}

// GetChunk fetches a single chunk by id.
func (e *Engine) GetChunk(ctx context.Context, dbPathOverride, chunkID string) (*ChunkResponse, error) {
	dbPath := e.resolveDBPath(dbPathOverride)
	st, err := e.openStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	rec, err := st.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, wrapStorageError(err, dbPath)
	}
	if rec == nil {
		return nil, fmt.Errorf("chunk not found: %s", chunkID)
	}
	return &ChunkResponse{Chunk: rec}, nil
}

// GetFile fetches a file and its chunks, ordered by chunk_index.
func (e *Engine) GetFile(ctx context.Context, dbPathOverride, path string) (*FileResponse, error) {
	dbPath := e.resolveDBPath(dbPathOverride)
	st, err := e.openStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	detail, err := st.GetFile(ctx, path)
	if err != nil {
		return nil, wrapStorageError(err, dbPath)
	}
	if detail == nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return &FileResponse{File: detail}, nil
}
