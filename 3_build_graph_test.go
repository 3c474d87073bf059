package jawbone

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// murderGardenPages is the synthetic corpus of two cleanly separated
// narrative threads: pages 0 and 1 share one vocabulary, pages 2 and 3
// another, with no overlap.
func murderGardenPages() []Page {
	return []Page{
		{ID: 0, Tokens: []string{"murder", "knife"}},
		{ID: 1, Tokens: []string{"murder", "knife", "murder", "knife"}},
		{ID: 2, Tokens: []string{"garden", "rose"}},
		{ID: 3, Tokens: []string{"garden", "rose", "garden", "rose"}},
	}
}

func murderGardenGraph(t *testing.T) *mat.SymDense {
	t.Helper()
	pages := murderGardenPages()
	vectors, _, err := CountVectors(pages, BuildVocabulary(pages))
	require.NoError(t, err)
	return BuildSimilarityGraph(vectors)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"scaled", []float64{1, 2, 0}, []float64{2, 4, 0}, 1},
		{"orthogonal", []float64{1, 0, 0}, []float64{0, 1, 0}, 0},
		{"zero vector", []float64{0, 0, 0}, []float64{1, 2, 3}, 0},
		{"both zero", []float64{0, 0, 0}, []float64{0, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-12)
		})
	}
}

func TestBuildSimilarityGraphProperties(t *testing.T) {
	// Random count vectors; every weight must land in [0, 1] and the
	// matrix must be exactly symmetric with a zero diagonal.
	rng := rand.New(rand.NewSource(42))
	vectors := make([][]float64, 20)
	for i := range vectors {
		vectors[i] = make([]float64, 30)
		for j := range vectors[i] {
			vectors[i][j] = float64(rng.Intn(5))
		}
	}

	w := BuildSimilarityGraph(vectors)
	n := w.SymmetricDim()
	require.Equal(t, len(vectors), n)

	for i := 0; i < n; i++ {
		assert.Zero(t, w.At(i, i))
		for j := 0; j < n; j++ {
			assert.Equal(t, w.At(i, j), w.At(j, i))
			assert.GreaterOrEqual(t, w.At(i, j), 0.0)
			assert.LessOrEqual(t, w.At(i, j), 1.0)
		}
	}
}

func TestBuildSimilarityGraphBlocks(t *testing.T) {
	w := murderGardenGraph(t)

	// Within a thread the vectors are proportional, across threads
	// disjoint.
	assert.InDelta(t, 1, w.At(0, 1), 1e-12)
	assert.InDelta(t, 1, w.At(2, 3), 1e-12)
	for _, pair := range [][2]int{{0, 2}, {0, 3}, {1, 2}, {1, 3}} {
		assert.Zero(t, w.At(pair[0], pair[1]))
	}
}

func TestWeightedDegrees(t *testing.T) {
	w := murderGardenGraph(t)
	degrees := WeightedDegrees(w)

	for _, d := range degrees {
		assert.InDelta(t, 1, d, 1e-12)
	}
}

func TestNearestNeighbors(t *testing.T) {
	w := murderGardenGraph(t)

	neighbors := nearestNeighbors(w, 0, 1)
	require.Equal(t, []int{1}, neighbors)

	all := nearestNeighbors(w, 2, 10)
	require.Len(t, all, 3)
	assert.Equal(t, 3, all[0])
}
