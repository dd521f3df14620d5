package embed

import (
	"context"
	"fmt"
	"time"
)

// Backend names accepted by config EmbeddingBackend.
const (
	BackendAuto = "auto"
	BackendHash = "hash"
	BackendOnnx = "onnx"
)

// New resolves a backend selector to a concrete Embedder:
//   - "hash": always the deterministic hash embedder.
//   - "onnx": the learned HTTP embedder, falling back to hash if the
//     service is unreachable at resolution time.
//   - "auto": prefer the learned embedder, falling back to hash.
func New(ctx context.Context, backend, url, model string, dim int) (Embedder, error) {
	switch backend {
	case BackendHash, "":
		return NewHashEmbedder(dim), nil

	case BackendOnnx:
		learned := NewLearnedEmbedder(url, model, dim)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := learned.Ping(pingCtx); err != nil {
			_ = learned.Close()
			return NewHashEmbedder(dim), nil
		}
		return learned, nil

	case BackendAuto:
		learned := NewLearnedEmbedder(url, model, dim)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := learned.Ping(pingCtx); err != nil {
			_ = learned.Close()
			return NewHashEmbedder(dim), nil
		}
		return learned, nil

	default:
		return nil, fmt.Errorf("unknown embedding backend %q", backend)
	}
}
