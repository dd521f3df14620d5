package search

import (
	"context"
	"fmt"

	"github.com/riftindex/riftindex/internal/embed"
	"github.com/riftindex/riftindex/internal/store"
)

// Service dispatches a search call to the right retrieval mode.
type Service struct {
	store    store.Store
	embedder embed.Embedder
	rrfK     int
}

// NewService builds a Service. rrfK is the default hybrid smoothing
// constant (0 resolves to DefaultRRFK at call time).
func NewService(st store.Store, embedder embed.Embedder, rrfK int) *Service {
	return &Service{store: st, embedder: embedder, rrfK: rrfK}
}

// Search runs query in mode and returns up to topK results.
func (s *Service) Search(ctx context.Context, query string, mode Mode, topK int) ([]*Result, error) {
	switch mode {
	case ModeLexical:
		return Lexical(ctx, s.store, query, topK)
	case ModeSemantic:
		return Semantic(ctx, s.store, s.embedder, query, topK)
	case ModeHybrid, "":
		return Hybrid(ctx, s.store, s.embedder, query, topK, s.rrfK)
	default:
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}
}
