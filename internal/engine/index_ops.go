package engine

import (
	"context"
	"encoding/json"

	"github.com/riftindex/riftindex/internal/async"
	"github.com/riftindex/riftindex/internal/index"
	"github.com/riftindex/riftindex/internal/store"
)

// IndexStatus reports row counts, the active embedding backend/model, the
// configured include/exclude globs, the persisted git fingerprint (if
// any), and the background job history.
func (e *Engine) IndexStatus(ctx context.Context, dbPathOverride string) (*StatusResponse, error) {
	dbPath := e.resolveDBPath(dbPathOverride)
	rt, err := e.getRuntime(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	st, err := e.openStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	counts, err := st.IndexStatus(ctx)
	if err != nil {
		return nil, wrapStorageError(err, dbPath)
	}

	var fp *store.GitFingerprint
	if raw, ok, err := st.GetMetadata(ctx, store.IndexMetadataGitFingerprintKey); err == nil && ok {
		fp = &store.GitFingerprint{}
		if jsonErr := json.Unmarshal([]byte(raw), fp); jsonErr != nil {
			fp = nil
		}
	}

	jobs := e.background.GetAllJobs()
	jobInfos := make([]*BackgroundJobInfo, len(jobs))
	for i, j := range jobs {
		jobInfos[i] = toJobInfo(j)
	}

	return &StatusResponse{
		Counts:             counts,
		DBPath:             dbPath,
		EmbeddingBackend:   rt.Config.EmbeddingBackend,
		EmbeddingModel:     rt.Embedder.ModelName(),
		IncludeGlobs:       rt.Config.IndexIncludeGlobs,
		ExcludeGlobs:       rt.Config.IndexExcludeGlobs,
		GitFingerprint:     fp,
		BackgroundJobs:     jobInfos,
		FileWatcherEnabled: rt.Config.FileWatcherEnabled,
	}, nil
}

func toJobInfo(j *async.Job) *BackgroundJobInfo {
	errMsg := ""
	if j.Err != nil {
		errMsg = j.Err.Error()
	}
	return &BackgroundJobInfo{
		ID:             j.ID,
		Label:          j.Label,
		Status:         string(j.Status),
		Retries:        j.Retries,
		Error:          errMsg,
		ElapsedSeconds: j.ElapsedSeconds(),
	}
}

// Reindex runs (or enqueues) a multi-root reindex pass. Background=false
// runs inline and returns counts; Background=true submits to the shared
// background indexer and returns immediately with a job id.
func (e *Engine) Reindex(ctx context.Context, req ReindexRequest) (*ReindexResponse, error) {
	dbPath := e.resolveDBPath(req.DBPath)
	rt, err := e.getRuntime(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	roots := req.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}
	mrReq := index.MultiRootRequest{
		Roots:              roots,
		Force:              req.Force,
		PruneMissing:       req.PruneMissing,
		IncludeGlobs:       rt.Config.IndexIncludeGlobs,
		ExcludeGlobs:       rt.Config.IndexExcludeGlobs,
		GitFingerprintRoot: roots[0],
	}

	if req.Background {
		job, err := e.background.Submit("reindex", func(ctx context.Context) (any, error) {
			return e.runReindexTask(ctx, dbPath, mrReq)
		})
		if err != nil {
			return nil, err
		}
		return &ReindexResponse{JobID: job.ID, Status: string(async.StatusQueued)}, nil
	}

	result, err := e.runReindexTask(ctx, dbPath, mrReq)
	if err != nil {
		return nil, wrapStorageError(err, dbPath)
	}
	return &ReindexResponse{
		IndexedFiles: result.IndexedFiles,
		SkippedFiles: result.SkippedFiles,
		ErroredFiles: result.ErroredFiles,
		DeletedFiles: result.DeletedFiles,
		SeenPaths:    result.SeenPaths,
	}, nil
}
