package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/riftindex/riftindex/internal/store"
)

// MultiRootRequest spans the indexer across several source paths in one
// pass, the shape the reindex tool and the watcher both submit.
type MultiRootRequest struct {
	Roots              []string
	Force              bool
	PruneMissing       bool
	IncludeGlobs       []string
	ExcludeGlobs       []string
	GitFingerprintRoot string // usually the first root; empty skips fingerprinting
}

// MultiRootResult aggregates counts across every root in one request.
type MultiRootResult struct {
	IndexedFiles int
	SkippedFiles int
	ErroredFiles int
	DeletedFiles int
	SeenPaths    []string
}

// Orchestrator drives IndexRoot across multiple paths, writes the git
// fingerprint of the request's GitFingerprintRoot, and optionally prunes
// files no longer present in any root's scan set. Only that one root is
// fingerprinted; the worktrees of the other roots are not recorded.
type Orchestrator struct {
	indexer *Indexer
	store   store.Store
}

// NewOrchestrator builds an Orchestrator over the given Indexer and Store.
// The store is also needed directly for fingerprinting and pruning, which
// aren't per-file operations.
func NewOrchestrator(indexer *Indexer, st store.Store) *Orchestrator {
	return &Orchestrator{indexer: indexer, store: st}
}

// Run indexes every root in req, aggregates the counts, writes (or
// deletes) the git fingerprint of req.GitFingerprintRoot alone, and prunes
// vanished files when requested.
func (o *Orchestrator) Run(ctx context.Context, req MultiRootRequest) (*MultiRootResult, error) {
	result := &MultiRootResult{}
	opts := Options{IncludeGlobs: req.IncludeGlobs, ExcludeGlobs: req.ExcludeGlobs, Force: req.Force}

	for _, root := range req.Roots {
		rootResult, err := o.indexer.IndexRoot(ctx, root, opts)
		if err != nil {
			return nil, fmt.Errorf("index root %s: %w", root, err)
		}
		result.IndexedFiles += rootResult.IndexedFiles
		result.SkippedFiles += rootResult.SkippedFiles
		result.ErroredFiles += rootResult.ErroredFiles
		result.SeenPaths = append(result.SeenPaths, rootResult.SeenPaths...)
	}

	if err := o.writeGitFingerprint(ctx, req.GitFingerprintRoot); err != nil {
		return nil, fmt.Errorf("write git fingerprint: %w", err)
	}

	if req.PruneMissing {
		deleted, err := o.store.DeleteFilesExcept(ctx, result.SeenPaths)
		if err != nil {
			return nil, fmt.Errorf("prune missing files: %w", err)
		}
		result.DeletedFiles = deleted
	}

	return result, nil
}

// writeGitFingerprint persists the fingerprint of the nearest git worktree
// above fingerprintRoot, or deletes the metadata key if fingerprintRoot is
// empty or not inside a worktree.
func (o *Orchestrator) writeGitFingerprint(ctx context.Context, fingerprintRoot string) error {
	if fingerprintRoot == "" {
		return o.store.DeleteMetadata(ctx, store.IndexMetadataGitFingerprintKey)
	}

	fp, ok := GitFingerprint(fingerprintRoot)
	if !ok {
		return o.store.DeleteMetadata(ctx, store.IndexMetadataGitFingerprintKey)
	}

	encoded, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("encode git fingerprint: %w", err)
	}
	return o.store.SetMetadata(ctx, store.IndexMetadataGitFingerprintKey, string(encoded))
}
