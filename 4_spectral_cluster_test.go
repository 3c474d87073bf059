package jawbone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// sameSplit reports whether the partition separates pages {0,1} from {2,3},
// regardless of which labels the clusters got.
func sameSplit(p Partition) bool {
	return p.Labels[0] == p.Labels[1] &&
		p.Labels[2] == p.Labels[3] &&
		p.Labels[0] != p.Labels[2]
}

func TestBuildLaplacianEigenvalues(t *testing.T) {
	w := murderGardenGraph(t)
	l, clamped := BuildLaplacian(w)
	assert.False(t, clamped)

	var eig mat.EigenSym
	require.True(t, eig.Factorize(l, false))

	values := eig.Values(nil)
	// All eigenvalues non-negative within tolerance, smallest ~0.
	for _, v := range values {
		assert.GreaterOrEqual(t, v, -1e-10)
	}
	assert.InDelta(t, 0, values[0], 1e-10)
}

func TestBuildLaplacianClampsIsolatedNode(t *testing.T) {
	// A page with a zero vector has no edge weight at all; its degree is
	// clamped instead of failing the run.
	w := mat.NewSymDense(3, nil)
	w.SetSym(0, 1, 1)

	l, clamped := BuildLaplacian(w)
	assert.True(t, clamped)
	assert.Equal(t, 1.0, l.At(2, 2))
}

func TestSpectralPartitionSeparatesThreads(t *testing.T) {
	w := murderGardenGraph(t)

	result, err := SpectralPartition(w, SpectralOptions{K: 2, Restarts: 10, MaxIterations: 100, Seed: 7})
	require.NoError(t, err)

	require.NoError(t, result.Partition.Validate())
	assert.Equal(t, 2, result.Partition.NumClusters)
	assert.True(t, result.FixedK)
	assert.True(t, sameSplit(result.Partition), "labels: %v", result.Partition.Labels)
	assert.False(t, result.HasWarning(WarnNumericInstability))
}

func TestSpectralPartitionKOne(t *testing.T) {
	w := murderGardenGraph(t)

	result, err := SpectralPartition(w, SpectralOptions{K: 1, Restarts: 3, MaxIterations: 50, Seed: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Partition.NumClusters)
	assert.Equal(t, []int{0, 0, 0, 0}, result.Partition.Labels)
}

func TestSpectralPartitionInvalidK(t *testing.T) {
	w := murderGardenGraph(t)
	_, err := SpectralPartition(w, SpectralOptions{K: 0, Seed: 1})
	assert.ErrorIs(t, err, ErrInvalidClusterCount)
}

func TestSpectralPartitionIdenticalPagesFlagged(t *testing.T) {
	// All pages identical: every pairwise similarity is 1 and any split is
	// arbitrary. The run must be flagged, not silently returned.
	pages := make([]Page, 6)
	for i := range pages {
		pages[i] = Page{ID: i, Tokens: []string{"murder", "knife"}}
	}
	vectors, _, err := CountVectors(pages, BuildVocabulary(pages))
	require.NoError(t, err)
	w := BuildSimilarityGraph(vectors)

	result, err := SpectralPartition(w, SpectralOptions{K: 2, Restarts: 5, MaxIterations: 50, Seed: 3})
	require.NoError(t, err)

	assert.True(t, result.HasWarning(WarnNumericInstability))
	require.NoError(t, result.Partition.Validate())
	assert.Len(t, result.Partition.Labels, len(pages))
}

func TestSpectralPartitionIterationCapFlagged(t *testing.T) {
	w := murderGardenGraph(t)

	// A single Lloyd iteration can assign points but never confirm
	// convergence, so the cap is always hit; the best-effort partition is
	// still a total assignment.
	result, err := SpectralPartition(w, SpectralOptions{K: 2, Restarts: 3, MaxIterations: 1, Seed: 7})
	require.NoError(t, err)

	assert.True(t, result.HasWarning(WarnNonConvergence))
	require.NoError(t, result.Partition.Validate())
	assert.Len(t, result.Partition.Labels, 4)
}

func TestSpectralPartitionTotalAssignment(t *testing.T) {
	w := murderGardenGraph(t)

	for k := 1; k <= 4; k++ {
		result, err := SpectralPartition(w, SpectralOptions{K: k, Restarts: 5, MaxIterations: 50, Seed: 11})
		require.NoError(t, err)
		require.NoError(t, result.Partition.Validate())
		assert.Len(t, result.Partition.Labels, 4)
	}
}

func TestCompactPartition(t *testing.T) {
	p := compactPartition([]int{5, 2, 5, 9})
	assert.Equal(t, []int{0, 1, 0, 2}, p.Labels)
	assert.Equal(t, 3, p.NumClusters)
}
