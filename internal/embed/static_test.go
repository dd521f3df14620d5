package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_NonEmptyTextIsUnitNorm(t *testing.T) {
	// Given: a hash embedder of dimension 64
	e := NewHashEmbedder(64)

	// When: embedding non-empty text
	v, err := e.Embed(context.Background(), "redis cache ttl policy")
	require.NoError(t, err)

	// Then: its L2 norm is 1.0 within 1e-6
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-6)
}

func TestHashEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewHashEmbedder(64)
	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	for _, x := range v {
		assert.Equal(t, float32(0), x)
	}
}

func TestHashEmbedder_IsDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	a, err := e.Embed(context.Background(), "same text every time")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "same text every time")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashEmbedder_DimensionsMatchesConfigured(t *testing.T) {
	e := NewHashEmbedder(128)
	v, err := e.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, v, 128)
	assert.Equal(t, 128, e.Dimensions())
}
