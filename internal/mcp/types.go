package mcp

import (
	"github.com/riftindex/riftindex/internal/engine"
	"github.com/riftindex/riftindex/internal/search"
	"github.com/riftindex/riftindex/internal/store"
)

// SearchInput is the search tool's argument schema.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query text"`
	TopK   int    `json:"top_k,omitempty" jsonschema:"number of results to return, 1-100, default 10"`
	Mode   string `json:"mode,omitempty" jsonschema:"retrieval mode: lexical, semantic, or hybrid (default)"`
	DBPath string `json:"db_path,omitempty" jsonschema:"override the configured database path"`
}

// ScoreBreakdownOutput mirrors search.ScoreBreakdown for JSON output.
type ScoreBreakdownOutput struct {
	BM25         *float64 `json:"bm25,omitempty"`
	Cosine       *float64 `json:"cosine,omitempty"`
	RRF          *float64 `json:"rrf,omitempty"`
	LexicalRank  *int     `json:"lexical_rank,omitempty"`
	SemanticRank *int     `json:"semantic_rank,omitempty"`
}

// SearchResultOutput is one result row in the search tool's response.
type SearchResultOutput struct {
	ChunkID        string               `json:"chunk_id"`
	Path           string               `json:"path"`
	ChunkIndex     int                  `json:"chunk_index"`
	HeadingPath    string               `json:"heading_path"`
	Content        string               `json:"content"`
	TokenCount     int                  `json:"token_count"`
	ScoreBreakdown ScoreBreakdownOutput `json:"score_breakdown"`
}

// AutoReindexOutput mirrors engine.AutoReindexInfo.
type AutoReindexOutput struct {
	Executed string `json:"executed,omitempty"`
	JobID    string `json:"job_id,omitempty"`
}

// SearchOutput is the search tool's result schema.
type SearchOutput struct {
	Query          string               `json:"query"`
	Mode           string               `json:"mode"`
	Count          int                  `json:"count"`
	EmbeddingModel string               `json:"embedding_model"`
	AutoReindex    *AutoReindexOutput   `json:"auto_reindex,omitempty"`
	Results        []SearchResultOutput `json:"results"`
}

func toSearchOutput(query string, mode search.Mode, resp *engine.SearchResponse) SearchOutput {
	out := SearchOutput{
		Query:          query,
		Mode:           string(mode),
		Count:          resp.Count,
		EmbeddingModel: resp.EmbeddingModel,
		Results:        make([]SearchResultOutput, 0, len(resp.Results)),
	}
	if resp.AutoReindex != nil {
		out.AutoReindex = &AutoReindexOutput{Executed: resp.AutoReindex.Executed, JobID: resp.AutoReindex.JobID}
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, SearchResultOutput{
			ChunkID:     r.ChunkID,
			Path:        r.FilePath,
			ChunkIndex:  r.ChunkIndex,
			HeadingPath: r.HeadingPath,
			Content:     r.Content,
			TokenCount:  r.TokenCount,
			ScoreBreakdown: ScoreBreakdownOutput{
				BM25:         r.ScoreBreakdown.BM25,
				Cosine:       r.ScoreBreakdown.Cosine,
				RRF:          r.ScoreBreakdown.RRF,
				LexicalRank:  r.ScoreBreakdown.LexicalRank,
				SemanticRank: r.ScoreBreakdown.SemanticRank,
			},
		})
	}
	return out
}

// GetChunkInput is the get_chunk tool's argument schema.
type GetChunkInput struct {
	ChunkID string `json:"chunk_id" jsonschema:"the chunk id to fetch"`
	DBPath  string `json:"db_path,omitempty" jsonschema:"override the configured database path"`
}

// ChunkOutput is one chunk row in tool output.
type ChunkOutput struct {
	ChunkID     string `json:"chunk_id"`
	Path        string `json:"path"`
	ChunkIndex  int    `json:"chunk_index"`
	HeadingPath string `json:"heading_path"`
	Content     string `json:"content"`
	TokenCount  int    `json:"token_count"`
}

// GetChunkOutput is the get_chunk tool's result schema.
type GetChunkOutput struct {
	Chunk ChunkOutput `json:"chunk"`
}

func toChunkOutput(rec *store.ChunkRecord) ChunkOutput {
	return ChunkOutput{
		ChunkID:     rec.ChunkID,
		Path:        rec.FilePath,
		ChunkIndex:  rec.ChunkIndex,
		HeadingPath: rec.HeadingPath,
		Content:     rec.Content,
		TokenCount:  rec.TokenCount,
	}
}

// GetFileInput is the get_file tool's argument schema.
type GetFileInput struct {
	Path   string `json:"path" jsonschema:"the file path to fetch, relative to the index root"`
	DBPath string `json:"db_path,omitempty" jsonschema:"override the configured database path"`
}

// FileOutput is a file and its chunks, in chunk_index order.
type FileOutput struct {
	Path   string        `json:"path"`
	Chunks []ChunkOutput `json:"chunks"`
}

// GetFileOutput is the get_file tool's result schema.
type GetFileOutput struct {
	File FileOutput `json:"file"`
}

func toFileOutput(detail *store.FileDetail) FileOutput {
	out := FileOutput{Path: detail.Path, Chunks: make([]ChunkOutput, 0, len(detail.Chunks))}
	for _, c := range detail.Chunks {
		out.Chunks = append(out.Chunks, toChunkOutput(c))
	}
	return out
}

// IndexStatusInput is the index_status tool's (empty) argument schema.
type IndexStatusInput struct {
	DBPath string `json:"db_path,omitempty" jsonschema:"override the configured database path"`
}

// GitFingerprintOutput mirrors store.GitFingerprint.
type GitFingerprintOutput struct {
	Worktree string `json:"worktree"`
	Head     string `json:"head"`
	Branch   string `json:"branch"`
	Dirty    bool   `json:"dirty"`
}

// BackgroundJobOutput is one job's snapshot in index_status output.
type BackgroundJobOutput struct {
	ID             string  `json:"id"`
	Label          string  `json:"label"`
	Status         string  `json:"status"`
	Retries        int     `json:"retries"`
	Error          string  `json:"error,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// IndexStatusOutput is the index_status tool's result schema.
type IndexStatusOutput struct {
	DBPath            string                `json:"db_path"`
	Files             int                   `json:"files"`
	Chunks            int                   `json:"chunks"`
	Embeddings        int                   `json:"embeddings"`
	EmbeddingBackend  string                `json:"embedding_backend"`
	EmbeddingModel    string                `json:"embedding_model"`
	IncludeGlobs      []string              `json:"include_globs"`
	ExcludeGlobs      []string              `json:"exclude_globs"`
	GitFingerprint    *GitFingerprintOutput `json:"git_fingerprint,omitempty"`
	BackgroundJobs    []BackgroundJobOutput `json:"background_jobs"`
	FileWatcherActive bool                  `json:"file_watcher_active"`
}

func toIndexStatusOutput(resp *engine.StatusResponse) *IndexStatusOutput {
	out := &IndexStatusOutput{
		DBPath:            resp.DBPath,
		EmbeddingBackend:  resp.EmbeddingBackend,
		EmbeddingModel:    resp.EmbeddingModel,
		IncludeGlobs:      resp.IncludeGlobs,
		ExcludeGlobs:      resp.ExcludeGlobs,
		BackgroundJobs:    make([]BackgroundJobOutput, 0, len(resp.BackgroundJobs)),
		FileWatcherActive: resp.FileWatcherEnabled,
	}
	if resp.Counts != nil {
		out.Files = resp.Counts.Files
		out.Chunks = resp.Counts.Chunks
		out.Embeddings = resp.Counts.Embeddings
	}
	if resp.GitFingerprint != nil {
		out.GitFingerprint = &GitFingerprintOutput{
			Worktree: resp.GitFingerprint.Worktree,
			Head:     resp.GitFingerprint.Head,
			Branch:   resp.GitFingerprint.Branch,
			Dirty:    resp.GitFingerprint.Dirty,
		}
	}
	for _, j := range resp.BackgroundJobs {
		out.BackgroundJobs = append(out.BackgroundJobs, BackgroundJobOutput{
			ID: j.ID, Label: j.Label, Status: j.Status, Retries: j.Retries,
			Error: j.Error, ElapsedSeconds: j.ElapsedSeconds,
		})
	}
	return out
}

// ReindexInput is the reindex tool's argument schema.
type ReindexInput struct {
	Path         string   `json:"path,omitempty" jsonschema:"a single root to reindex"`
	Paths        []string `json:"paths,omitempty" jsonschema:"multiple roots to reindex in one pass"`
	Force        bool     `json:"force,omitempty" jsonschema:"re-chunk and re-embed every file regardless of stat/hash match"`
	PruneMissing bool     `json:"prune_missing,omitempty" jsonschema:"delete files no longer present under any root"`
	Background   bool     `json:"background,omitempty" jsonschema:"submit to the background queue instead of running inline"`
	DBPath       string   `json:"db_path,omitempty" jsonschema:"override the configured database path"`
}

// ReindexOutput is the reindex tool's result schema. A background request
// populates JobID/Status only; an inline request populates the counts.
type ReindexOutput struct {
	IndexedFiles int      `json:"indexed_files,omitempty"`
	SkippedFiles int      `json:"skipped_files,omitempty"`
	ErroredFiles int      `json:"errored_files,omitempty"`
	DeletedFiles int      `json:"deleted_files,omitempty"`
	SeenPaths    []string `json:"seen_paths,omitempty"`
	JobID        string   `json:"job_id,omitempty"`
	Status       string   `json:"status,omitempty"`
}

func toReindexOutput(resp *engine.ReindexResponse) ReindexOutput {
	return ReindexOutput{
		IndexedFiles: resp.IndexedFiles,
		SkippedFiles: resp.SkippedFiles,
		ErroredFiles: resp.ErroredFiles,
		DeletedFiles: resp.DeletedFiles,
		SeenPaths:    resp.SeenPaths,
		JobID:        resp.JobID,
		Status:       resp.Status,
	}
}
