package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity_IdenticalVectorsScoreOne(t *testing.T) {
	v := []float32{0.6, 0.8}
	assert.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-6)
}

func TestCosineSimilarity_OrthogonalVectorsScoreZero(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, cosineSimilarity(a, b), 1e-6)
}

func TestCosineSimilarity_ZeroVectorScoresZero(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{1, 1}
	assert.Equal(t, 0.0, cosineSimilarity(a, b))
}
