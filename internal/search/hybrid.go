package search

import (
	"context"
	"sort"

	"github.com/riftindex/riftindex/internal/embed"
	"github.com/riftindex/riftindex/internal/store"
)

// DefaultRRFK is the smoothing constant used when a caller doesn't
// override it.
const DefaultRRFK = 60

// Hybrid runs both lexical and semantic search at depth 2*topK, fuses
// their chunk_id orderings via Reciprocal Rank Fusion, and returns the
// top-k by descending fused score. A chunk absent from one list
// contributes no term for that list rather than a synthetic rank.
func Hybrid(ctx context.Context, st store.Store, embedder embed.Embedder, query string, topK, rrfK int) ([]*Result, error) {
	depth := 2 * topK

	lexical, err := Lexical(ctx, st, query, depth)
	if err != nil {
		return nil, err
	}
	semantic, err := Semantic(ctx, st, embedder, query, depth)
	if err != nil {
		return nil, err
	}

	return Fuse(lexical, semantic, topK, rrfK), nil
}

// fused accumulates one chunk's fusion bookkeeping: its RRF score, the
// 1-based ranks it held in each list (if any), and the row to prefer when
// emitting the final Result (semantic wins for content, per spec).
type fused struct {
	score        float64
	lexicalRank  *int
	semanticRank *int
	lexicalRow   *Result
	semanticRow  *Result
	order        int // first-seen insertion order, the tie-break
}

// Fuse applies RRF to two already-ranked result lists and returns the
// top-k fused results. Ties break by the order chunks were first
// encountered walking lexical then semantic (itself the storage engine's
// row insertion order within each list).
func Fuse(lexical, semantic []*Result, topK, rrfK int) []*Result {
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}

	acc := make(map[string]*fused)
	order := 0

	get := func(chunkID string) *fused {
		f, ok := acc[chunkID]
		if !ok {
			f = &fused{order: order}
			order++
			acc[chunkID] = f
		}
		return f
	}

	for i, r := range lexical {
		rank := i + 1
		f := get(r.ChunkID)
		f.score += 1.0 / float64(rrfK+rank)
		f.lexicalRank = &rank
		f.lexicalRow = r
	}
	for i, r := range semantic {
		rank := i + 1
		f := get(r.ChunkID)
		f.score += 1.0 / float64(rrfK+rank)
		f.semanticRank = &rank
		f.semanticRow = r
	}

	ids := make([]string, 0, len(acc))
	for id := range acc {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		fi, fj := acc[ids[i]], acc[ids[j]]
		if fi.score != fj.score {
			return fi.score > fj.score
		}
		return fi.order < fj.order
	})

	if topK > 0 && len(ids) > topK {
		ids = ids[:topK]
	}

	out := make([]*Result, 0, len(ids))
	for _, id := range ids {
		f := acc[id]
		base := f.semanticRow
		if base == nil {
			base = f.lexicalRow
		}
		score := f.score
		out = append(out, &Result{
			ChunkID:     base.ChunkID,
			FilePath:    base.FilePath,
			ChunkIndex:  base.ChunkIndex,
			HeadingPath: base.HeadingPath,
			Content:     base.Content,
			TokenCount:  base.TokenCount,
			ScoreBreakdown: ScoreBreakdown{
				RRF:          &score,
				LexicalRank:  f.lexicalRank,
				SemanticRank: f.semanticRank,
			},
		})
	}
	return out
}
