package jawbone

import (
	"errors"
	"fmt"
)

// Method identifies which partitioner produced a result.
type Method string

const (
	// MethodSpectral is normalized spectral clustering with a fixed k.
	MethodSpectral Method = "spectral"
	// MethodModularity is greedy Louvain community detection; it discovers
	// its own cluster count.
	MethodModularity Method = "modularity"
)

// Warning kinds attached to partition results. None of these abort a run;
// they flag results that need a closer look downstream.
const (
	WarnNumericInstability   = "NumericInstabilityWarning"
	WarnNonConvergence       = "NonConvergenceWarning"
	WarnClusterCountMismatch = "ClusterCountMismatch"
)

var (
	// ErrEmptyCorpus is returned when the corpus contains no usable tokens
	// at all. Individual empty pages are tolerated (they get similarity 0
	// to everything), but an entirely empty corpus has nothing to cluster.
	ErrEmptyCorpus = errors.New("corpus has no usable tokens")

	// ErrInvalidClusterCount is returned for a non-positive target k.
	ErrInvalidClusterCount = errors.New("cluster count must be positive")
)

// Partition assigns every page id to exactly one cluster label in
// [0, NumClusters). Labels carry no meaning beyond identity within a single
// partition; comparisons across runs must be label-invariant.
type Partition struct {
	Labels      []int `json:"labels"`
	NumClusters int   `json:"num_clusters"`
}

// Clusters groups page ids by label. Every page appears in exactly one group.
func (p Partition) Clusters() [][]int {
	groups := make([][]int, p.NumClusters)
	for id, label := range p.Labels {
		groups[label] = append(groups[label], id)
	}
	return groups
}

// Validate checks that the partition is a total, exhaustive assignment.
func (p Partition) Validate() error {
	if p.NumClusters < 1 {
		return ErrInvalidClusterCount
	}
	seen := make([]bool, p.NumClusters)
	for id, label := range p.Labels {
		if label < 0 || label >= p.NumClusters {
			return fmt.Errorf("page %d has label %d outside [0, %d)", id, label, p.NumClusters)
		}
		seen[label] = true
	}
	for label, ok := range seen {
		if !ok {
			return fmt.Errorf("cluster %d is empty", label)
		}
	}
	return nil
}

// PartitionResult is the outcome of a single partitioner run. FixedK
// distinguishes the spectral result (k requested up front) from the
// modularity result (k discovered by the algorithm); the comparator treats
// both uniformly without assuming cluster-count parity.
type PartitionResult struct {
	Method     Method    `json:"method"`
	FixedK     bool      `json:"fixed_k"`
	Partition  Partition `json:"partition"`
	Seed       int64     `json:"seed"`
	Modularity float64   `json:"modularity,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// HasWarning reports whether the run was flagged with the given warning kind.
func (r PartitionResult) HasWarning(kind string) bool {
	for _, w := range r.Warnings {
		if w == kind {
			return true
		}
	}
	return false
}
