// Package index walks source roots, decides which files need
// (re)chunking and (re)embedding via a stat/hash skip-gate, and writes the
// result to the store in one transaction per changed file.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/riftindex/riftindex/internal/chunk"
	"github.com/riftindex/riftindex/internal/embed"
	"github.com/riftindex/riftindex/internal/pathmatch"
	"github.com/riftindex/riftindex/internal/store"
)

// Options configures one IndexRoot call.
type Options struct {
	IncludeGlobs []string
	ExcludeGlobs []string
	Force        bool
}

// Result summarizes one IndexRoot call.
type Result struct {
	IndexedFiles int
	SkippedFiles int
	ErroredFiles int
	SeenPaths    []string
}

// Indexer walks a root and synchronizes it into a Store using a Chunker
// and Embedder.
type Indexer struct {
	store     store.Store
	chunker   chunk.Chunker
	embedder  embed.Embedder
	globCache *pathmatch.Cache
}

// NewIndexer builds an Indexer over the given collaborators, with no
// include/exclude decision cache. None of the collaborators are owned by
// the Indexer; callers close the store themselves.
func NewIndexer(st store.Store, chunker chunk.Chunker, embedder embed.Embedder) *Indexer {
	return &Indexer{store: st, chunker: chunker, embedder: embedder}
}

// NewIndexerWithCache is NewIndexer plus a bounded LRU cache of
// include/exclude decisions, shared across reindex passes so a stable
// tree's glob matching isn't recomputed path-by-path on every run. cache
// may be nil, in which case this behaves exactly like NewIndexer.
func NewIndexerWithCache(st store.Store, chunker chunk.Chunker, embedder embed.Embedder, cache *pathmatch.Cache) *Indexer {
	return &Indexer{store: st, chunker: chunker, embedder: embedder, globCache: cache}
}

// IndexRoot walks root (a file or a directory) and reconciles every
// matching file against the store per the stat/hash skip-gate.
func (ix *Indexer) IndexRoot(ctx context.Context, root string, opts Options) (*Result, error) {
	fileMeta, err := ix.store.GetAllFileMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("load file metadata: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", root, err)
	}

	result := &Result{}

	visit := func(absPath string, base string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(base, absPath)
		if err != nil {
			return nil // unreachable: absPath always descends from base
		}
		normPath := pathmatch.Normalize(relPath)

		if !hasChunkerExtension(ix.chunker, normPath) {
			return nil
		}
		if !pathmatch.IncludeExcludeCached(ix.globCache, normPath, opts.IncludeGlobs, opts.ExcludeGlobs) {
			return nil
		}

		indexed, err := ix.indexFile(ctx, absPath, normPath, fileMeta, opts.Force)
		if err != nil {
			// Per spec.md §7: a filesystem/IO error on one file is logged
			// and that file is skipped; it must never abort the walk for
			// the rest of the tree.
			slog.Error("skipping file after indexing error",
				slog.String("path", normPath),
				slog.String("error", err.Error()),
			)
			result.ErroredFiles++
			return nil
		}

		result.SeenPaths = append(result.SeenPaths, normPath)
		if indexed {
			result.IndexedFiles++
		} else {
			result.SkippedFiles++
		}
		return nil
	}

	if info.IsDir() {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			return visit(path, root)
		})
	} else {
		err = visit(root, filepath.Dir(root))
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

// hasChunkerExtension reports whether path's extension is one the chunker
// declares support for.
func hasChunkerExtension(chunker chunk.Chunker, path string) bool {
	ext := filepath.Ext(path)
	for _, supported := range chunker.SupportedExtensions() {
		if ext == supported {
			return true
		}
	}
	return false
}

// indexFile applies the skip-gate for a single file: stat fast-path, then
// hash fallback, then full rechunk-and-embed. Returns true if the file was
// (re)indexed, false if it was skipped untouched.
func (ix *Indexer) indexFile(ctx context.Context, absPath, normPath string, fileMeta map[string]store.FileMeta, force bool) (bool, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat: %w", err)
	}
	mtimeNS := info.ModTime().UnixNano()
	size := info.Size()

	prev, known := fileMeta[normPath]
	if !force && known && prev.MTimeNS == mtimeNS && prev.Size == size {
		return false, nil // stat fast-path: unchanged, skip without reading bytes
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return false, fmt.Errorf("read: %w", err)
	}
	sum := sha256.Sum256(content)
	sha := hex.EncodeToString(sum[:])

	if known && prev.SHA256 == sha {
		// Content unchanged despite a stat mismatch (e.g. touch); just
		// refresh the stat row, skip re-chunking.
		if _, err := ix.store.UpsertFile(ctx, normPath, mtimeNS, size, sha); err != nil {
			return false, fmt.Errorf("refresh file stat: %w", err)
		}
		return false, nil
	}

	chunks, err := ix.chunker.Chunk(ctx, &chunk.FileInput{Path: normPath, Content: content})
	if err != nil {
		return false, fmt.Errorf("chunk: %w", err)
	}

	texts := make([]string, len(chunks))
	newChunks := make([]store.NewChunk, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
		newChunks[i] = store.NewChunk{
			ChunkID:     c.ChunkID,
			ChunkIndex:  c.ChunkIndex,
			HeadingPath: c.HeadingPath,
			Content:     c.Content,
			TokenCount:  c.TokenCount,
		}
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return false, fmt.Errorf("embed: %w", err)
	}

	if _, err := ix.store.ReplaceFileChunks(ctx, normPath, mtimeNS, size, sha, newChunks, ix.embedder.ModelName(), vectors); err != nil {
		return false, fmt.Errorf("replace file chunks: %w", err)
	}

	return true, nil
}
