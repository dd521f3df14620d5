package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftindex/riftindex/internal/config"
	"github.com/riftindex/riftindex/internal/search"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "index.db")
	cfg.MinChunkChars = 1 // fixture documents are shorter than the default minimum
	e := New(cfg)
	t.Cleanup(func() { _ = e.Shutdown(time.Second) })
	return e, cfg.DBPath
}

func writeDoc(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestEngine_ReindexThenSearchRoundTrip(t *testing.T) {
	// Given: a root with one Markdown file, an Engine over a fresh db
	root := t.TempDir()
	writeDoc(t, root, "doc.md", "# Title\n\nRedis cache eviction policy and ttl handling.\n")
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// When: reindexing the root inline
	reindexResp, err := e.Reindex(ctx, ReindexRequest{Roots: []string{root}})
	require.NoError(t, err)
	assert.Equal(t, 1, reindexResp.IndexedFiles)
	assert.Empty(t, reindexResp.JobID)

	// Then: a hybrid search over the indexed content finds it
	searchResp, err := e.Search(ctx, SearchRequest{Query: "cache ttl", TopK: 5, Mode: search.ModeHybrid})
	require.NoError(t, err)
	require.NotEmpty(t, searchResp.Results)
	assert.Equal(t, "hash-v1", searchResp.EmbeddingModel)
}

func TestEngine_ReindexIsIdempotentOnUnchangedRoot(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "doc.md", "# Title\n\nSome content about queues.\n")
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Reindex(ctx, ReindexRequest{Roots: []string{root}})
	require.NoError(t, err)
	assert.Equal(t, 1, first.IndexedFiles)

	second, err := e.Reindex(ctx, ReindexRequest{Roots: []string{root}})
	require.NoError(t, err)
	assert.Equal(t, 0, second.IndexedFiles)
}

func TestEngine_ReindexBackgroundReturnsJobID(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "doc.md", "# Title\n\nBackground job content.\n")
	e, _ := newTestEngine(t)
	ctx := context.Background()

	resp, err := e.Reindex(ctx, ReindexRequest{Roots: []string{root}, Background: true})
	require.NoError(t, err)
	require.NotEmpty(t, resp.JobID)
	assert.Equal(t, "queued", resp.Status)

	require.Eventually(t, func() bool {
		job, ok := e.background.GetJob(resp.JobID)
		return ok && job.Status == "completed"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_GetChunkAndGetFile(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "doc.md", "# Title\n\nContent for chunk lookup.\n")
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Reindex(ctx, ReindexRequest{Roots: []string{root}})
	require.NoError(t, err)

	searchResp, err := e.Search(ctx, SearchRequest{Query: "chunk lookup", TopK: 1, Mode: search.ModeLexical})
	require.NoError(t, err)
	require.NotEmpty(t, searchResp.Results)
	chunkID := searchResp.Results[0].ChunkID

	chunkResp, err := e.GetChunk(ctx, "", chunkID)
	require.NoError(t, err)
	assert.Equal(t, chunkID, chunkResp.Chunk.ChunkID)

	fileResp, err := e.GetFile(ctx, "", searchResp.Results[0].FilePath)
	require.NoError(t, err)
	assert.NotEmpty(t, fileResp.File.Chunks)
}

func TestEngine_GetChunkNotFoundReturnsError(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.GetChunk(context.Background(), "", "does-not-exist")
	require.Error(t, err)
}

func TestEngine_IndexStatusReportsCountsAndBackend(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "doc.md", "# Title\n\nStatus reporting content.\n")
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Reindex(ctx, ReindexRequest{Roots: []string{root}})
	require.NoError(t, err)

	status, err := e.IndexStatus(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Counts.Files)
	assert.Equal(t, "hash-v1", status.EmbeddingModel)
	assert.NotNil(t, status.BackgroundJobs)
}

func TestEngine_GetRuntimeCachesAcrossCalls(t *testing.T) {
	e, dbPath := newTestEngine(t)
	ctx := context.Background()

	rt1, err := e.getRuntime(ctx, dbPath)
	require.NoError(t, err)
	rt2, err := e.getRuntime(ctx, dbPath)
	require.NoError(t, err)

	assert.Same(t, rt1, rt2, "runtime should be cached per db path, not rebuilt each call")
}
