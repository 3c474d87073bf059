package jawbone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreCoherenceLabelInvariance(t *testing.T) {
	pages := murderGardenPages()

	original := ScoreCoherence(pages, Partition{Labels: []int{0, 0, 1, 1}, NumClusters: 2})
	relabeled := ScoreCoherence(pages, Partition{Labels: []int{1, 1, 0, 0}, NumClusters: 2})

	assert.Equal(t, original.Aggregate, relabeled.Aggregate)

	// Per-cluster scores survive the permutation as a set.
	scores := func(report CoherenceReport) map[float64]int {
		counts := make(map[float64]int)
		for _, cc := range report.Clusters {
			counts[cc.Score]++
		}
		return counts
	}
	assert.Equal(t, scores(original), scores(relabeled))
}

func TestScoreCoherencePrefersTrueThreads(t *testing.T) {
	pages := murderGardenPages()

	good := ScoreCoherence(pages, Partition{Labels: []int{0, 0, 1, 1}, NumClusters: 2})
	bad := ScoreCoherence(pages, Partition{Labels: []int{0, 1, 1, 0}, NumClusters: 2})

	assert.Greater(t, good.Aggregate, bad.Aggregate)

	// In the true threads every top-term pair co-occurs on every page.
	for _, cc := range good.Clusters {
		assert.InDelta(t, 1, cc.Score, 1e-12)
	}
}

func TestScoreCoherenceSingletonCluster(t *testing.T) {
	pages := murderGardenPages()

	report := ScoreCoherence(pages, Partition{Labels: []int{0, 1, 1, 1}, NumClusters: 2})
	require.Len(t, report.Clusters, 2)

	// A single-page cluster has no co-occurrence signal.
	assert.Zero(t, report.Clusters[0].Score)
	assert.Equal(t, 1, report.Clusters[0].Pages)
}

func TestNPMI(t *testing.T) {
	tests := []struct {
		name         string
		pa, pb, pab  float64
		want         float64
		wantPositive bool
	}{
		{name: "never co-occur", pa: 0.5, pb: 0.5, pab: 0, want: -1},
		{name: "always co-occur", pa: 1, pb: 1, pab: 1, want: 1},
		{name: "independent", pa: 0.5, pb: 0.5, pab: 0.25, want: 0},
		{name: "associated", pa: 0.5, pb: 0.5, pab: 0.5, wantPositive: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := npmi(tt.pa, tt.pb, tt.pab)
			if tt.wantPositive {
				assert.Greater(t, got, 0.0)
				assert.LessOrEqual(t, got, 1.0)
				return
			}
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestTopTerms(t *testing.T) {
	frequency := map[string]int{"rose": 3, "garden": 3, "petal": 1, "thorn": 2}

	assert.Equal(t, []string{"garden", "rose", "thorn"}, topTerms(frequency, 3))
	assert.Equal(t, []string{"garden", "rose", "thorn", "petal"}, topTerms(frequency, 10))
}
