package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO

	rifterrors "github.com/riftindex/riftindex/internal/errors"
)

// SQLiteStore is the single-file relational store backing riftindex. It
// enables a concurrent journal mode, relaxed synchronous writes, a 30s
// busy timeout, and foreign keys.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex // serializes writers; readers use the pool freely
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if necessary) the SQLite file at path and runs
// schema DDL. Callers are expected to call this once per tool invocation
// and Close it on every exit path; schema init is idempotent (CREATE IF
// NOT EXISTS) and runs on every Open, including each of the engine's
// per-call opens (see internal/engine); it is not cached per db path.
func Open(path string) (*SQLiteStore, error) {
	if path != "" && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline; modernc.org/sqlite is not multi-conn safe for WAL writers
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	mtime_ns INTEGER NOT NULL,
	size_bytes INTEGER NOT NULL,
	sha256 TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id TEXT NOT NULL UNIQUE,
	file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	heading_path TEXT NOT NULL,
	content TEXT NOT NULL,
	token_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_file_id ON chunks(file_id);

CREATE TABLE IF NOT EXISTS embeddings (
	chunk_id TEXT PRIMARY KEY REFERENCES chunks(chunk_id) ON DELETE CASCADE,
	model TEXT NOT NULL,
	dim INTEGER NOT NULL,
	vec BLOB NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS index_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
	content,
	content='chunks',
	content_rowid='id',
	tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
	INSERT INTO fts_chunks(rowid, content) VALUES (new.id, new.content);
END;
CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
	INSERT INTO fts_chunks(fts_chunks, rowid, content) VALUES('delete', old.id, old.content);
END;
CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
	INSERT INTO fts_chunks(fts_chunks, rowid, content) VALUES('delete', old.id, old.content);
	INSERT INTO fts_chunks(rowid, content) VALUES (new.id, new.content);
END;
`

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return rifterrors.New(rifterrors.ErrCodeCorruptIndex, "initialize schema", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) UpsertFile(ctx context.Context, path string, mtimeNS int64, size int64, sha256 string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertFile(ctx, s.db, path, mtimeNS, size, sha256)
}

func upsertFile(ctx context.Context, q queryer, path string, mtimeNS, size int64, sha256 string) (int64, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO files(path, mtime_ns, size_bytes, sha256) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET mtime_ns=excluded.mtime_ns, size_bytes=excluded.size_bytes, sha256=excluded.sha256
	`, path, mtimeNS, size, sha256)
	if err != nil {
		return 0, fmt.Errorf("upsert file %s: %w", path, err)
	}
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, fmt.Errorf("read back file id for %s: %w", path, err)
	}
	return id, nil
}

func (s *SQLiteStore) DeleteChunksForFile(ctx context.Context, fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID)
	return err
}

func (s *SQLiteStore) InsertChunksWithEmbeddings(ctx context.Context, fileID int64, chunks []NewChunk, model string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowUTC().Format("2006-01-02T15:04:05Z07:00")
	for i, c := range chunks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks(chunk_id, file_id, chunk_index, heading_path, content, token_count)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.ChunkID, fileID, c.ChunkIndex, c.HeadingPath, c.Content, c.TokenCount); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ChunkID, err)
		}

		dim := len(vectors[i])
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings(chunk_id, model, dim, vec, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(chunk_id) DO UPDATE SET model=excluded.model, dim=excluded.dim, vec=excluded.vec, updated_at=excluded.updated_at
		`, c.ChunkID, model, dim, EncodeVector(vectors[i]), now); err != nil {
			return fmt.Errorf("insert embedding for chunk %s: %w", c.ChunkID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) ReplaceFileChunks(ctx context.Context, path string, mtimeNS, size int64, sha256 string, chunks []NewChunk, model string, vectors [][]float32) (int64, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	fileID, err := upsertFile(ctx, tx, path, mtimeNS, size, sha256)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return 0, fmt.Errorf("delete stale chunks for %s: %w", path, err)
	}

	now := nowUTC().Format("2006-01-02T15:04:05Z07:00")
	for i, c := range chunks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks(chunk_id, file_id, chunk_index, heading_path, content, token_count)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.ChunkID, fileID, c.ChunkIndex, c.HeadingPath, c.Content, c.TokenCount); err != nil {
			return 0, fmt.Errorf("insert chunk %s: %w", c.ChunkID, err)
		}

		dim := len(vectors[i])
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings(chunk_id, model, dim, vec, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(chunk_id) DO UPDATE SET model=excluded.model, dim=excluded.dim, vec=excluded.vec, updated_at=excluded.updated_at
		`, c.ChunkID, model, dim, EncodeVector(vectors[i]), now); err != nil {
			return 0, fmt.Errorf("insert embedding for chunk %s: %w", c.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reindex transaction for %s: %w", path, err)
	}
	return fileID, nil
}

func (s *SQLiteStore) GetAllFileMeta(ctx context.Context) (map[string]FileMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, mtime_ns, size_bytes, sha256 FROM files`)
	if err != nil {
		return nil, fmt.Errorf("query file meta: %w", err)
	}
	defer rows.Close()

	out := make(map[string]FileMeta)
	for rows.Next() {
		var path, sha256 string
		var mtime, size int64
		if err := rows.Scan(&path, &mtime, &size, &sha256); err != nil {
			return nil, fmt.Errorf("scan file meta: %w", err)
		}
		out[path] = FileMeta{MTimeNS: mtime, Size: size, SHA256: sha256}
	}
	return out, rows.Err()
}

// wordPattern extracts the term list a raw query is split on.
var wordPattern = regexp.MustCompile(`\w+`)

// ftsSyntaxErrorSubstrings mark an FTS5 error as a query-syntax problem the
// fallback should absorb, rather than a genuine operational failure.
var ftsSyntaxErrorSubstrings = []string{
	"fts5: syntax error",
	"unterminated string",
	"malformed MATCH",
	"no such column",
	"fts5:",
}

func isFTSSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range ftsSyntaxErrorSubstrings {
		if strings.Contains(msg, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// compileFTSQuery splits raw into its term list and builds the primary
// (quoted-OR) and fallback (bare-terms) MATCH expressions.
func compileFTSQuery(raw string) (terms []string, primary string, bare string) {
	terms = wordPattern.FindAllString(raw, -1)
	if len(terms) == 0 {
		return nil, "", ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return terms, strings.Join(quoted, " OR "), strings.Join(terms, " ")
}

func (s *SQLiteStore) LexicalSearch(ctx context.Context, query string, topK int) ([]*LexicalHit, error) {
	terms, primary, bare := compileFTSQuery(query)
	if len(terms) == 0 {
		return nil, nil
	}

	hits, err := s.runFTSQuery(ctx, primary, topK)
	if err == nil {
		return hits, nil
	}
	if !isFTSSyntaxError(err) {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	hits, err = s.runFTSQuery(ctx, bare, topK)
	if err == nil {
		return hits, nil
	}
	if isFTSSyntaxError(err) {
		return nil, nil
	}
	return nil, fmt.Errorf("lexical search fallback: %w", err)
}

// runFTSQuery executes one MATCH expression. FTS5's bm25() returns a score
// where smaller (often negative) values are better matches; we negate it so
// Score is "higher is better" at this package's boundary.
func (s *SQLiteStore) runFTSQuery(ctx context.Context, matchExpr string, topK int) ([]*LexicalHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, f.path, c.chunk_index, c.heading_path, c.content, c.token_count, bm25(fts_chunks) AS raw_score
		FROM fts_chunks
		JOIN chunks c ON c.id = fts_chunks.rowid
		JOIN files f ON f.id = c.file_id
		WHERE fts_chunks MATCH ?
		ORDER BY raw_score ASC
		LIMIT ?
	`, matchExpr, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []*LexicalHit
	for rows.Next() {
		h := &LexicalHit{}
		var raw float64
		if err := rows.Scan(&h.ChunkID, &h.FilePath, &h.ChunkIndex, &h.HeadingPath, &h.Content, &h.TokenCount, &raw); err != nil {
			return nil, err
		}
		h.Score = -raw
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *SQLiteStore) AllEmbeddings(ctx context.Context) ([]*EmbeddingRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, f.path, c.chunk_index, c.heading_path, c.content, c.token_count, e.model, e.dim, e.vec
		FROM embeddings e
		JOIN chunks c ON c.chunk_id = e.chunk_id
		JOIN files f ON f.id = c.file_id
	`)
	if err != nil {
		return nil, fmt.Errorf("stream embeddings: %w", err)
	}
	defer rows.Close()

	var out []*EmbeddingRow
	for rows.Next() {
		r := &EmbeddingRow{}
		var blob []byte
		if err := rows.Scan(&r.ChunkID, &r.FilePath, &r.ChunkIndex, &r.HeadingPath, &r.Content, &r.TokenCount, &r.Model, &r.Dim, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		r.Vector = DecodeVector(blob)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetChunk(ctx context.Context, chunkID string) (*ChunkRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.chunk_id, f.path, c.chunk_index, c.heading_path, c.content, c.token_count
		FROM chunks c JOIN files f ON f.id = c.file_id
		WHERE c.chunk_id = ?
	`, chunkID)

	rec := &ChunkRecord{}
	err := row.Scan(&rec.ChunkID, &rec.FilePath, &rec.ChunkIndex, &rec.HeadingPath, &rec.Content, &rec.TokenCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk %s: %w", chunkID, err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetFile(ctx context.Context, path string) (*FileDetail, error) {
	var fileID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, path).Scan(&fileID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", path, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, chunk_index, heading_path, content, token_count
		FROM chunks WHERE file_id = ? ORDER BY chunk_index ASC
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("list chunks for %s: %w", path, err)
	}
	defer rows.Close()

	detail := &FileDetail{Path: path}
	for rows.Next() {
		c := &ChunkRecord{FilePath: path}
		if err := rows.Scan(&c.ChunkID, &c.ChunkIndex, &c.HeadingPath, &c.Content, &c.TokenCount); err != nil {
			return nil, fmt.Errorf("scan chunk for %s: %w", path, err)
		}
		detail.Chunks = append(detail.Chunks, c)
	}
	return detail, rows.Err()
}

func (s *SQLiteStore) SetMetadata(ctx context.Context, key, value string) error {
	now := nowUTC().Format("2006-01-02T15:04:05Z07:00")
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_metadata(key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
	`, key, value, now)
	return err
}

func (s *SQLiteStore) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) DeleteMetadata(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM index_metadata WHERE key = ?`, key)
	return err
}

func (s *SQLiteStore) DeleteFilesExcept(ctx context.Context, keep []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepSet := make(map[string]struct{}, len(keep))
	for _, p := range keep {
		keepSet[p] = struct{}{}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, path FROM files`)
	if err != nil {
		return 0, fmt.Errorf("list files for prune: %w", err)
	}
	var toDelete []int64
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan file for prune: %w", err)
		}
		if _, ok := keepSet[path]; !ok {
			toDelete = append(toDelete, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range toDelete {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("delete file id %d: %w", id, err)
		}
	}
	return len(toDelete), nil
}

func (s *SQLiteStore) IndexStatus(ctx context.Context) (*StatusCounts, error) {
	counts := &StatusCounts{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&counts.Files); err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&counts.Chunks); err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&counts.Embeddings); err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}
	return counts, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EncodeVector packs a float32 vector as little-endian bytes for the
// embeddings.vec blob column.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) []float32 {
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
