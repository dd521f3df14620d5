// Package embed provides the text -> fixed-dimension L2-normalized vector
// capability riftindex embeds chunks with: a deterministic hash-based
// fallback that needs no external service, and a pluggable HTTP-backed
// learned model.
package embed

import (
	"context"
	"math"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension D.
	Dimensions() int

	// ModelName returns the model label persisted alongside each embedding.
	ModelName() string

	// Close releases any resources (HTTP clients, file handles).
	Close() error
}

// normalizeVector L2-normalizes v in place conceptually, returning a new
// slice. A zero vector is returned unchanged (zero norm has no direction).
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// resizeVector truncates or zero-pads v to length d, for the learned
// embedder's dimension-normalization step.
func resizeVector(v []float32, d int) []float32 {
	if len(v) == d {
		return v
	}
	out := make([]float32, d)
	copy(out, v)
	return out
}
