package search

import (
	"context"
	"fmt"

	"github.com/riftindex/riftindex/internal/store"
)

// Lexical runs a BM25 query over the store's full-text mirror and returns
// up to topK hits. Score is the store's bm25 value as-is: SQLiteStore
// already negates the engine's raw ascending score so higher means better
// throughout this package (see the BM25 sign convention under DESIGN.md's
// Open Question resolutions).
func Lexical(ctx context.Context, st store.Store, query string, topK int) ([]*Result, error) {
	hits, err := st.LexicalSearch(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	out := make([]*Result, len(hits))
	for i, h := range hits {
		score := h.Score
		out[i] = &Result{
			ChunkID:     h.ChunkID,
			FilePath:    h.FilePath,
			ChunkIndex:  h.ChunkIndex,
			HeadingPath: h.HeadingPath,
			Content:     h.Content,
			TokenCount:  h.TokenCount,
			ScoreBreakdown: ScoreBreakdown{
				BM25: &score,
			},
		}
	}
	return out, nil
}
