package jawbone

import (
	"log"
	"math/rand"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

// minModularityGain is the improvement threshold below which a Louvain
// level is considered converged.
const minModularityGain = 1e-7

// ModularityOptions configures one Louvain run. K is advisory only: the
// algorithm discovers its own cluster count, and a mismatch with K is
// surfaced as a warning, never forced.
type ModularityOptions struct {
	K         int
	MaxSweeps int
	Seed      int64
}

var modularityOpts = ModularityOptions{K: 6, MaxSweeps: 100}

var ModularityClusterCmd = &cobra.Command{
	Use:   "modularity-cluster",
	Short: "Partition the similarity graph by greedy modularity optimization",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSinglePartition(MethodModularity); err != nil {
			log.Printf("Failed to run modularity clustering: %v", err)
			return
		}
		log.Println("Modularity clustering complete.")
	},
}

func init() {
	ModularityClusterCmd.Flags().IntVar(&modularityOpts.K, "k", 6, "advisory cluster count, mismatches are flagged")
	ModularityClusterCmd.Flags().IntVar(&modularityOpts.MaxSweeps, "max-sweeps", 100, "local phase sweep cap per level")
	ModularityClusterCmd.Flags().Int64Var(&modularityOpts.Seed, "seed", 0, "random seed")
}

// louvainGraph is a weighted graph in the dense form Louvain works on.
// weights[i][j] holds the edge weight for i != j (stored in both entries)
// and weights[i][i] holds the self-loop mass, i.e. twice the internal
// weight accumulated by aggregation. degree[i] includes the self-loop, so
// total == Σ degree == 2m.
type louvainGraph struct {
	weights [][]float64
	degree  []float64
	total   float64
}

func newLouvainGraph(w *mat.SymDense) *louvainGraph {
	n := w.SymmetricDim()
	g := &louvainGraph{
		weights: make([][]float64, n),
		degree:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		g.weights[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			g.weights[i][j] = w.At(i, j)
			g.degree[i] += w.At(i, j)
		}
		g.total += g.degree[i]
	}
	return g
}

func (g *louvainGraph) size() int {
	return len(g.weights)
}

// modularity computes Q for the given community assignment.
func (g *louvainGraph) modularity(community []int) float64 {
	if g.total == 0 {
		return 0
	}

	numComms := 0
	for _, c := range community {
		if c+1 > numComms {
			numComms = c + 1
		}
	}

	internal := make([]float64, numComms) // both directions plus self-loops
	commDegree := make([]float64, numComms)
	for i := range g.weights {
		commDegree[community[i]] += g.degree[i]
		internal[community[i]] += g.weights[i][i]
		for j := range g.weights {
			if i != j && community[i] == community[j] {
				internal[community[i]] += g.weights[i][j]
			}
		}
	}

	q := 0.0
	for c := 0; c < numComms; c++ {
		share := commDegree[c] / g.total
		q += internal[c]/g.total - share*share
	}
	return q
}

// localPhase greedily moves nodes between communities until no move
// improves modularity or the sweep cap is reached. Node visitation order is
// a fresh seeded shuffle per sweep; with a fixed seed the phase is fully
// deterministic. Ties keep the node where it is, then prefer the lowest
// community id.
func (g *louvainGraph) localPhase(rng *rand.Rand, maxSweeps int) (community []int, hitCap bool) {
	n := g.size()
	community = make([]int, n)
	commDegree := make([]float64, n)
	for i := 0; i < n; i++ {
		community[i] = i
		commDegree[i] = g.degree[i]
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	neighWeight := make([]float64, n) // indexed by community id
	for sweep := 0; ; sweep++ {
		if sweep >= maxSweeps {
			return community, true
		}

		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		moved := false
		for _, node := range order {
			current := community[node]

			var touched []int
			for j, weight := range g.weights[node] {
				if j == node || weight == 0 {
					continue
				}
				c := community[j]
				if neighWeight[c] == 0 {
					touched = append(touched, c)
				}
				neighWeight[c] += weight
			}

			// Remove the node before comparing destinations so its own
			// degree does not bias the gain towards its current community.
			commDegree[current] -= g.degree[node]

			best := current
			bestGain := neighWeight[current] - commDegree[current]*g.degree[node]/g.total
			for _, c := range touched {
				gain := neighWeight[c] - commDegree[c]*g.degree[node]/g.total
				if gain > bestGain+minModularityGain || (gain > bestGain-minModularityGain && c < best && best != current) {
					bestGain = gain
					best = c
				}
			}

			commDegree[best] += g.degree[node]
			if best != current {
				community[node] = best
				moved = true
			}

			for _, c := range touched {
				neighWeight[c] = 0
			}
			neighWeight[current] = 0
		}

		if !moved {
			return community, false
		}
	}
}

// aggregate builds the coarser graph whose nodes are the given communities.
// Inter-community weights are summed; each super-node's self-loop collects
// the internal weight in both directions, plus any self-loops carried in.
func (g *louvainGraph) aggregate(community []int) (*louvainGraph, []int) {
	compact := make(map[int]int)
	mapping := make([]int, len(community))
	for i, c := range community {
		id, ok := compact[c]
		if !ok {
			id = len(compact)
			compact[c] = id
		}
		mapping[i] = id
	}

	m := len(compact)
	coarse := &louvainGraph{
		weights: make([][]float64, m),
		degree:  make([]float64, m),
		total:   g.total,
	}
	for c := 0; c < m; c++ {
		coarse.weights[c] = make([]float64, m)
	}

	for i := range g.weights {
		ci := mapping[i]
		coarse.weights[ci][ci] += g.weights[i][i]
		for j := range g.weights {
			if i != j {
				coarse.weights[ci][mapping[j]] += g.weights[i][j]
			}
		}
	}
	for c := 0; c < m; c++ {
		// Off-diagonal entries got both (i,j) and (j,i); within a community
		// they landed on the diagonal, which therefore already holds twice
		// the internal weight.
		coarse.degree[c] = coarse.weights[c][c]
		for d := 0; d < m; d++ {
			if d != c {
				coarse.degree[c] += coarse.weights[c][d]
			}
		}
	}

	return coarse, mapping
}

// LouvainPartition runs greedy multi-level modularity optimization on the
// weighted graph. The number of clusters is discovered, not imposed; if it
// differs from the advisory opts.K the result carries a
// ClusterCountMismatch warning. A fixed seed yields an identical partition
// on identical input.
func LouvainPartition(w *mat.SymDense, opts ModularityOptions) (PartitionResult, error) {
	n := w.SymmetricDim()
	result := PartitionResult{
		Method: MethodModularity,
		Seed:   opts.Seed,
	}

	g := newLouvainGraph(w)
	if g.total == 0 {
		// No edge weight anywhere; modularity is undefined, so report one
		// cluster and flag it.
		result.Partition = Partition{Labels: make([]int, n), NumClusters: 1}
		result.Warnings = append(result.Warnings, WarnNumericInstability)
		if opts.K > 0 && opts.K != 1 {
			result.Warnings = append(result.Warnings, WarnClusterCountMismatch)
		}
		return result, nil
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	maxSweeps := opts.MaxSweeps
	if maxSweeps < 1 {
		maxSweeps = 1
	}

	// assignment[i] is page i's community in the current coarse graph.
	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = i
	}

	bestQ := g.modularity(assignment)
	for {
		community, hitCap := g.localPhase(rng, maxSweeps)
		if hitCap && !result.HasWarning(WarnNonConvergence) {
			result.Warnings = append(result.Warnings, WarnNonConvergence)
		}

		coarse, mapping := g.aggregate(community)

		// Unfold one level: pages follow their coarse node into its
		// community. mapping is indexed by node id and already composes
		// the community lookup with the compaction.
		for i := range assignment {
			assignment[i] = mapping[assignment[i]]
		}

		q := coarse.modularity(identity(coarse.size()))
		if q-bestQ < minModularityGain || coarse.size() == 1 {
			bestQ = q
			break
		}
		bestQ = q
		g = coarse
	}

	result.Modularity = bestQ
	result.Partition = compactPartition(assignment)
	if opts.K > 0 && result.Partition.NumClusters != opts.K {
		result.Warnings = append(result.Warnings, WarnClusterCountMismatch)
	}

	return result, nil
}

func identity(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}
