package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		vec1     []float32
		vec2     []float32
		expected float64
	}{
		{
			name:     "identical direction",
			vec1:     []float32{1, 2, 3},
			vec2:     []float32{2, 4, 6},
			expected: 1.0,
		},
		{
			name:     "orthogonal",
			vec1:     []float32{1, 0},
			vec2:     []float32{0, 1},
			expected: 0.0,
		},
		{
			name:     "opposite direction",
			vec1:     []float32{1, 0},
			vec2:     []float32{-1, 0},
			expected: -1.0,
		},
		{
			name:     "zero vector scores zero",
			vec1:     []float32{0, 0, 0},
			vec2:     []float32{1, 2, 3},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := CosineSimilarity(tt.vec1, tt.vec2)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, sim, 1e-6)
		})
	}
}

func TestCosineSimilarityErrors(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.Error(t, err, "dimension mismatch must be an error")

	_, err = CosineSimilarity(nil, []float32{1})
	assert.Error(t, err, "empty vector must be an error")
}

func TestZeroVector(t *testing.T) {
	vec := ZeroVector(384)
	require.Len(t, vec, 384)
	for _, v := range vec {
		require.Zero(t, v)
	}
}
