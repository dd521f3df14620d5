package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// HashEmbedder is the always-available, deterministic embedder: no network
// call, no model download. Vectors are reproducible across runs given the
// same text and dimension, which is what makes chunk_id-keyed caching and
// the norm-invariant test property possible.
type HashEmbedder struct {
	mu     sync.RWMutex
	dim    int
	closed bool
}

// hashTokenPattern is the tokenizer: runs of word characters, dots,
// slashes, and dashes, the shape of identifiers and file paths alike.
var hashTokenPattern = regexp.MustCompile(`[A-Za-z0-9_./-]+`)

// NewHashEmbedder creates a hash embedder producing vectors of length dim.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim}
}

// Embed tokenizes text, hashes each token into a slot, sign, and weight,
// accumulates, and L2-normalizes. Empty (or all-whitespace) text yields the
// zero vector rather than an error.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("hash embedder is closed")
	}

	vec := make([]float32, e.dim)

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vec, nil
	}

	for _, tok := range hashTokenPattern.FindAllString(trimmed, -1) {
		lower := strings.ToLower(tok)
		sum := sha256.Sum256([]byte(lower))

		index := int(binary.BigEndian.Uint32(sum[0:4]) % uint32(e.dim))
		sign := float32(1)
		if sum[4]&1 == 1 {
			sign = -1
		}
		weight := 1.0 + float32(sum[5])/255.0 // in [1.0, 2.0]

		vec[index] += sign * weight
	}

	return normalizeVector(vec), nil
}

// EmbedBatch embeds each text independently, in order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the configured vector length.
func (e *HashEmbedder) Dimensions() int { return e.dim }

// ModelName is the model label persisted with every embedding produced by
// this embedder.
func (e *HashEmbedder) ModelName() string { return "hash-v1" }

// Close marks the embedder unusable; it holds no resources to release.
func (e *HashEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
