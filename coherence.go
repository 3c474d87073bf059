package jawbone

import (
	"math"
	"sort"
)

// topTermCount is how many of a cluster's most frequent tokens feed the
// coherence measure.
const topTermCount = 10

// ClusterCoherence is the topical quality of one cluster.
type ClusterCoherence struct {
	Cluster  int      `json:"cluster"`
	Pages    int      `json:"pages"`
	TopTerms []string `json:"top_terms"`
	Score    float64  `json:"score"`
}

// CoherenceReport carries the per-cluster scores and their unweighted mean.
type CoherenceReport struct {
	Clusters  []ClusterCoherence `json:"clusters"`
	Aggregate float64            `json:"aggregate"`
}

// ScoreCoherence evaluates a partition by pairwise NPMI over each cluster's
// top frequent terms, with occurrence probabilities estimated over the
// cluster's own pages. The score is high when a cluster's dominant terms
// genuinely co-occur on its pages and negative when they never do. The
// measure depends only on cluster membership, so it is invariant under
// relabeling, and it never mutates the partition.
func ScoreCoherence(pages []Page, p Partition) CoherenceReport {
	report := CoherenceReport{}

	for cluster, members := range p.Clusters() {
		cc := scoreCluster(pages, members)
		cc.Cluster = cluster
		report.Clusters = append(report.Clusters, cc)
		report.Aggregate += cc.Score
	}

	if len(report.Clusters) > 0 {
		report.Aggregate /= float64(len(report.Clusters))
	}
	return report
}

func scoreCluster(pages []Page, members []int) ClusterCoherence {
	cc := ClusterCoherence{Pages: len(members)}

	// Term frequencies and page-level document frequencies within the
	// cluster.
	frequency := make(map[string]int)
	pageSets := make([]map[string]bool, len(members))
	for m, id := range members {
		pageSets[m] = make(map[string]bool)
		for _, token := range pages[id].Tokens {
			frequency[token]++
			pageSets[m][token] = true
		}
	}

	cc.TopTerms = topTerms(frequency, topTermCount)
	if len(members) < 2 || len(cc.TopTerms) < 2 {
		// Not enough pages or terms for co-occurrence to mean anything.
		return cc
	}

	n := float64(len(members))
	docFreq := func(term string) float64 {
		count := 0
		for _, set := range pageSets {
			if set[term] {
				count++
			}
		}
		return float64(count) / n
	}
	jointFreq := func(a, b string) float64 {
		count := 0
		for _, set := range pageSets {
			if set[a] && set[b] {
				count++
			}
		}
		return float64(count) / n
	}

	total := 0.0
	pairs := 0
	for i := 0; i < len(cc.TopTerms); i++ {
		for j := i + 1; j < len(cc.TopTerms); j++ {
			total += npmi(docFreq(cc.TopTerms[i]), docFreq(cc.TopTerms[j]), jointFreq(cc.TopTerms[i], cc.TopTerms[j]))
			pairs++
		}
	}
	cc.Score = total / float64(pairs)
	return cc
}

// npmi is normalized pointwise mutual information on page-occurrence
// probabilities: log(p(a,b)/(p(a)p(b))) / -log(p(a,b)). A pair that never
// co-occurs scores -1; a pair present on every page scores 1 (the 0/0
// limit of the formula).
func npmi(pa, pb, pab float64) float64 {
	if pab == 0 {
		return -1
	}
	if pab == 1 {
		return 1
	}
	return math.Log(pab/(pa*pb)) / -math.Log(pab)
}

// topTerms returns the k most frequent terms, ties broken lexicographically
// so the selection is deterministic.
func topTerms(frequency map[string]int, k int) []string {
	terms := make([]string, 0, len(frequency))
	for term := range frequency {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if frequency[terms[i]] != frequency[terms[j]] {
			return frequency[terms[i]] > frequency[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if k > len(terms) {
		k = len(terms)
	}
	return terms[:k]
}
