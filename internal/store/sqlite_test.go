package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestEncodeDecodeVector_RoundTrips(t *testing.T) {
	v := []float32{0.1, -0.2, 0.3, 1.0}
	assert.Equal(t, v, DecodeVector(EncodeVector(v)))
}

func TestReplaceFileChunks_InsertsChunksAndEmbeddings(t *testing.T) {
	// Given: an empty store
	st := openTestStore(t)
	ctx := context.Background()

	// When: replacing a file's chunks atomically
	chunks := []NewChunk{
		{ChunkID: "c1", ChunkIndex: 0, HeadingPath: "Intro", Content: "hello world", TokenCount: 2},
		{ChunkID: "c2", ChunkIndex: 1, HeadingPath: "Intro > Detail", Content: "more content here", TokenCount: 3},
	}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	fileID, err := st.ReplaceFileChunks(ctx, "a.md", 100, 200, "sha1", chunks, "hash-v1", vectors)
	require.NoError(t, err)
	assert.NotZero(t, fileID)

	// Then: status counts reflect the write, and the file round-trips
	status, err := st.IndexStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Files)
	assert.Equal(t, 2, status.Chunks)
	assert.Equal(t, 2, status.Embeddings)

	detail, err := st.GetFile(ctx, "a.md")
	require.NoError(t, err)
	require.NotNil(t, detail)
	require.Len(t, detail.Chunks, 2)
	assert.Equal(t, "c1", detail.Chunks[0].ChunkID)
	assert.Equal(t, "c2", detail.Chunks[1].ChunkID)
}

func TestReplaceFileChunks_ReplacesExistingChunks(t *testing.T) {
	// Given: a file indexed once
	st := openTestStore(t)
	ctx := context.Background()
	_, err := st.ReplaceFileChunks(ctx, "a.md", 1, 1, "sha1",
		[]NewChunk{{ChunkID: "old", ChunkIndex: 0, Content: "old content"}},
		"hash-v1", [][]float32{{0.1}})
	require.NoError(t, err)

	// When: reindexing with different content
	_, err = st.ReplaceFileChunks(ctx, "a.md", 2, 2, "sha2",
		[]NewChunk{{ChunkID: "new", ChunkIndex: 0, Content: "new content"}},
		"hash-v1", [][]float32{{0.2}})
	require.NoError(t, err)

	// Then: the old chunk is gone, only the new one remains
	detail, err := st.GetFile(ctx, "a.md")
	require.NoError(t, err)
	require.Len(t, detail.Chunks, 1)
	assert.Equal(t, "new", detail.Chunks[0].ChunkID)

	_, ok, err := st.GetMetadata(ctx, "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteFilesExcept_PrunesVanishedFiles(t *testing.T) {
	// Given: two indexed files
	st := openTestStore(t)
	ctx := context.Background()
	_, err := st.ReplaceFileChunks(ctx, "a.md", 1, 1, "sha1", []NewChunk{{ChunkID: "a0", Content: "a"}}, "hash-v1", [][]float32{{0.1}})
	require.NoError(t, err)
	_, err = st.ReplaceFileChunks(ctx, "b.md", 1, 1, "sha2", []NewChunk{{ChunkID: "b0", Content: "b"}}, "hash-v1", [][]float32{{0.2}})
	require.NoError(t, err)

	// When: pruning everything except a.md
	deleted, err := st.DeleteFilesExcept(ctx, []string{"a.md"})
	require.NoError(t, err)

	// Then: exactly one file was deleted and its chunks cascade
	assert.Equal(t, 1, deleted)
	status, err := st.IndexStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Files)
	assert.Equal(t, 1, status.Chunks)
}

func TestLexicalSearch_FallsBackOnSyntaxError(t *testing.T) {
	// Given: a store with one chunk
	st := openTestStore(t)
	ctx := context.Background()
	_, err := st.ReplaceFileChunks(ctx, "a.md", 1, 1, "sha1",
		[]NewChunk{{ChunkID: "a0", Content: "streamable http server setup"}},
		"hash-v1", [][]float32{{0.1}})
	require.NoError(t, err)

	// When/Then: a battery of odd queries never raises
	for _, q := range []string{`"streamable-http"`, `'"streamable-http`, `"server setup, tools"`, `.,:()"`} {
		_, err := st.LexicalSearch(ctx, q, 10)
		assert.NoError(t, err)
	}
}

func TestLexicalSearch_EmptyQueryReturnsNoResults(t *testing.T) {
	st := openTestStore(t)
	hits, err := st.LexicalSearch(context.Background(), ".,:()\"", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
