package search

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/riftindex/riftindex/internal/embed"
	"github.com/riftindex/riftindex/internal/store"
)

// Semantic embeds the query, scores every stored embedding by cosine
// similarity, and returns the top-k descending. The corpus is assumed to
// fit in memory; there's no ANN index behind this — a brute-force scan
// sets the latency ceiling by design.
func Semantic(ctx context.Context, st store.Store, embedder embed.Embedder, query string, topK int) ([]*Result, error) {
	queryVec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := st.AllEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}

	type scored struct {
		row   *store.EmbeddingRow
		score float64
	}
	ranked := make([]scored, 0, len(rows))
	for _, r := range rows {
		ranked = append(ranked, scored{row: r, score: cosineSimilarity(queryVec, r.Vector)})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]*Result, len(ranked))
	for i, s := range ranked {
		score := s.score
		out[i] = &Result{
			ChunkID:     s.row.ChunkID,
			FilePath:    s.row.FilePath,
			ChunkIndex:  s.row.ChunkIndex,
			HeadingPath: s.row.HeadingPath,
			Content:     s.row.Content,
			TokenCount:  s.row.TokenCount,
			ScoreBreakdown: ScoreBreakdown{
				Cosine: &score,
			},
		}
	}
	return out, nil
}

// cosineSimilarity is the dot product divided by the product of norms; 0
// when either vector has zero norm (rather than dividing by zero).
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
	}
	for _, v := range b {
		normB += float64(v) * float64(v)
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
