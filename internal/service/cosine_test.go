package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{0.5, -0.2, 0.8}
	require.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-6)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	require.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
}

func TestCosineSimilarityOpposite(t *testing.T) {
	require.InDelta(t, -1.0, cosineSimilarity([]float32{1, 2}, []float32{-1, -2}), 1e-6)
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float32{0.3, 0.7, 0.1}
	b := []float32{0.9, 0.2, 0.4}
	require.InDelta(t, float64(cosineSimilarity(a, b)), float64(cosineSimilarity(b, a)), 1e-6)
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	require.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
	require.Equal(t, float32(0), cosineSimilarity([]float32{1, 2}, []float32{0, 0}))
}

func TestCosineSimilarityLengthMismatch(t *testing.T) {
	require.Equal(t, float32(0), cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2}))
}
