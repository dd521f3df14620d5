// Package store is the persistence layer for riftindex: a single SQLite
// file holding files, heading-scoped chunks, their embeddings, an FTS5
// mirror for BM25 lexical search, and a small metadata KV table.
package store

import (
	"context"
	"time"
)

// FileMeta is the (mtime_ns, size_bytes, sha256) triple the indexer's
// stat/hash fast-path gate compares against.
type FileMeta struct {
	MTimeNS int64
	Size    int64
	SHA256  string
}

// File mirrors the files table row.
type File struct {
	ID        int64
	Path      string
	MTimeNS   int64
	SizeBytes int64
	SHA256    string
}

// ChunkRecord mirrors the chunks table row, joined with its parent file's
// path for convenience at the read boundary.
type ChunkRecord struct {
	ChunkID     string
	FilePath    string
	ChunkIndex  int
	HeadingPath string
	Content     string
	TokenCount  int
}

// EmbeddingRow is one row of a brute-force semantic scan: a chunk's full
// content plus its packed embedding vector.
type EmbeddingRow struct {
	ChunkID     string
	FilePath    string
	ChunkIndex  int
	HeadingPath string
	Content     string
	TokenCount  int
	Model       string
	Dim         int
	Vector      []float32
}

// LexicalHit is one row of a BM25 match, score already normalized so that
// higher is better (see Store.LexicalSearch).
type LexicalHit struct {
	ChunkID     string
	FilePath    string
	ChunkIndex  int
	HeadingPath string
	Content     string
	TokenCount  int
	Score       float64
}

// FileDetail is a file and its chunks in chunk_index order.
type FileDetail struct {
	Path   string
	Chunks []*ChunkRecord
}

// StatusCounts is the row-count summary index_status reports.
type StatusCounts struct {
	Files      int `json:"files"`
	Chunks     int `json:"chunks"`
	Embeddings int `json:"embeddings"`
}

// NewChunk is one chunker-produced chunk as passed to
// InsertChunksWithEmbeddings and ReplaceFileChunks. Its embedding vector is
// passed alongside it in a parallel slice, so a store inserts both rows in
// one call and indexers never have a chunk without its embedding
// mid-transaction.
type NewChunk struct {
	ChunkID     string
	ChunkIndex  int
	HeadingPath string
	Content     string
	TokenCount  int
}

// Store is the full persistence contract backing the indexer, the search
// service, and the MCP tool surface. Every method opens no connection of
// its own; callers own the Store's
// lifecycle (open on tool-call entry, close on every exit path).
type Store interface {
	// UpsertFile inserts or updates a file's stat/hash metadata and returns
	// its stable row id.
	UpsertFile(ctx context.Context, path string, mtimeNS int64, size int64, sha256 string) (int64, error)

	// DeleteChunksForFile removes all chunks (and cascades their
	// embeddings) belonging to fileID.
	DeleteChunksForFile(ctx context.Context, fileID int64) error

	// InsertChunksWithEmbeddings writes chunk rows and their embeddings for
	// fileID. Used inside a single reindex transaction so the FTS mirror,
	// chunk rows, and embedding rows never diverge.
	InsertChunksWithEmbeddings(ctx context.Context, fileID int64, chunks []NewChunk, model string, vectors [][]float32) error

	// ReplaceFileChunks upserts the file's stat/hash row, deletes its
	// existing chunks, and inserts the new chunks and embeddings, all in
	// one transaction: the indexer's single atomic write per changed file.
	ReplaceFileChunks(ctx context.Context, path string, mtimeNS, size int64, sha256 string, chunks []NewChunk, model string, vectors [][]float32) (fileID int64, err error)

	// GetAllFileMeta bulk-loads every known file's stat/hash metadata,
	// keyed by normalized path, for the indexer's fast-path skip.
	GetAllFileMeta(ctx context.Context) (map[string]FileMeta, error)

	// LexicalSearch runs a BM25 query over the FTS mirror and returns up to
	// topK hits ordered by descending Score (higher is better).
	LexicalSearch(ctx context.Context, query string, topK int) ([]*LexicalHit, error)

	// AllEmbeddings streams every chunk's embedding for brute-force cosine
	// scoring. The corpus is assumed to fit comfortably in memory.
	AllEmbeddings(ctx context.Context) ([]*EmbeddingRow, error)

	// GetChunk fetches a single chunk by its stable chunk id.
	GetChunk(ctx context.Context, chunkID string) (*ChunkRecord, error)

	// GetFile fetches a file and its chunks, ordered by chunk_index.
	GetFile(ctx context.Context, path string) (*FileDetail, error)

	// SetMetadata upserts an index_metadata row.
	SetMetadata(ctx context.Context, key, value string) error

	// GetMetadata reads an index_metadata row; ok is false if absent.
	GetMetadata(ctx context.Context, key string) (value string, ok bool, err error)

	// DeleteMetadata removes an index_metadata row if present.
	DeleteMetadata(ctx context.Context, key string) error

	// DeleteFilesExcept removes every file (cascading its chunks) whose
	// path is not in keep, returning the number of files deleted.
	DeleteFilesExcept(ctx context.Context, keep []string) (int, error)

	// IndexStatus returns row counts across files, chunks, and embeddings.
	IndexStatus(ctx context.Context) (*StatusCounts, error)

	// Close releases the underlying connection.
	Close() error
}

// GitFingerprint is the JSON shape persisted under metadata key
// IndexMetadataGitFingerprintKey.
type GitFingerprint struct {
	Worktree string `json:"worktree"`
	Head     string `json:"head"`
	Branch   string `json:"branch"`
	Dirty    bool   `json:"dirty"`
}

// IndexMetadataGitFingerprintKey is the index_metadata key under which the
// indexer persists the source tree's VCS fingerprint.
const IndexMetadataGitFingerprintKey = "git_fingerprint"

// nowUTC is exposed so tests can't accidentally depend on wall-clock
// formatting details; it's just time.Now().UTC() in production.
func nowUTC() time.Time { return time.Now().UTC() }
