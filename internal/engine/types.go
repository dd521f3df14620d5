package engine

import "github.com/riftindex/riftindex/internal/store"

// ChunkResponse is the get_chunk tool's result shape.
type ChunkResponse struct {
	Chunk *store.ChunkRecord
}

// FileResponse is the get_file tool's result shape.
type FileResponse struct {
	File *store.FileDetail
}

// StatusResponse is the index_status tool's result shape.
type StatusResponse struct {
	Counts             *store.StatusCounts   `json:"counts"`
	DBPath             string                `json:"db_path"`
	EmbeddingBackend   string                `json:"embedding_backend"`
	EmbeddingModel     string                `json:"embedding_model"`
	IncludeGlobs       []string              `json:"include_globs"`
	ExcludeGlobs       []string              `json:"exclude_globs"`
	GitFingerprint     *store.GitFingerprint `json:"git_fingerprint,omitempty"`
	BackgroundJobs     []*BackgroundJobInfo  `json:"background_jobs"`
	FileWatcherEnabled bool                  `json:"file_watcher_enabled"`
}

// BackgroundJobInfo is a flattened snapshot of one async.Job for reporting.
type BackgroundJobInfo struct {
	ID             string  `json:"id"`
	Label          string  `json:"label"`
	Status         string  `json:"status"`
	Retries        int     `json:"retries"`
	Error          string  `json:"error,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// ReindexRequest is the validated input to Reindex.
type ReindexRequest struct {
	DBPath       string
	Roots        []string
	Force        bool
	PruneMissing bool
	Background   bool
}

// ReindexResponse is the reindex tool's result shape. For a background
// request, only JobID/Status are populated; for an inline request, the
// count/path fields are populated and JobID is empty.
type ReindexResponse struct {
	IndexedFiles int
	SkippedFiles int
	ErroredFiles int
	DeletedFiles int
	SeenPaths    []string
	JobID        string
	Status       string
}
