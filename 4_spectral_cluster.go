package jawbone

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// degreeEpsilon replaces a zero weighted degree so D^{-1/2} stays
	// finite. A fully connected similarity graph should never hit this;
	// an all-zero vector page can.
	degreeEpsilon = 1e-12

	// eigengapTolerance flags a degenerate eigenspace: when the gap between
	// the k-th and (k+1)-th smallest eigenvalue is below this, the spectral
	// embedding is only determined up to a rotation and the split is
	// arbitrary.
	eigengapTolerance = 1e-9
)

// SpectralOptions configures one spectral clustering run. All parameters
// are explicit; the seed fully determines the k-means initialization.
type SpectralOptions struct {
	K             int
	Restarts      int
	MaxIterations int
	Seed          int64
}

var spectralOpts = SpectralOptions{K: 6, Restarts: 10, MaxIterations: 100}

var SpectralClusterCmd = &cobra.Command{
	Use:   "spectral-cluster",
	Short: "Partition the similarity graph by normalized spectral clustering",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSinglePartition(MethodSpectral); err != nil {
			log.Printf("Failed to run spectral clustering: %v", err)
			return
		}
		log.Println("Spectral clustering complete.")
	},
}

func init() {
	SpectralClusterCmd.Flags().IntVar(&spectralOpts.K, "k", 6, "number of clusters")
	SpectralClusterCmd.Flags().IntVar(&spectralOpts.Restarts, "restarts", 10, "k-means restarts")
	SpectralClusterCmd.Flags().IntVar(&spectralOpts.MaxIterations, "max-iterations", 100, "k-means iteration cap")
	SpectralClusterCmd.Flags().Int64Var(&spectralOpts.Seed, "seed", 0, "random seed")
}

// SpectralPartition clusters the weighted graph into exactly opts.K groups:
// normalized Laplacian, k smallest eigenvectors as the embedding, unit-norm
// rows, seeded k-means. The result always assigns every page; numerical
// trouble is reported through warnings instead of failing the run.
func SpectralPartition(w *mat.SymDense, opts SpectralOptions) (PartitionResult, error) {
	n := w.SymmetricDim()
	if opts.K < 1 {
		return PartitionResult{}, ErrInvalidClusterCount
	}
	if n == 0 {
		return PartitionResult{}, fmt.Errorf("empty graph")
	}

	result := PartitionResult{
		Method: MethodSpectral,
		FixedK: true,
		Seed:   opts.Seed,
	}

	k := opts.K
	if k > n {
		k = n
	}
	if k == 1 {
		result.Partition = Partition{Labels: make([]int, n), NumClusters: 1}
		return result, nil
	}

	l, degenerate := BuildLaplacian(w)
	if degenerate {
		result.Warnings = append(result.Warnings, WarnNumericInstability)
	}

	var eig mat.EigenSym
	if !eig.Factorize(l, true) {
		// No eigenvectors to embed with; this is the one spectral failure
		// that cannot produce a best-effort partition.
		return PartitionResult{}, fmt.Errorf("eigendecomposition of the normalized Laplacian failed")
	}

	values := eig.Values(nil) // ascending
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	if k < n && values[k]-values[k-1] < eigengapTolerance && !result.HasWarning(WarnNumericInstability) {
		// Degenerate eigenspace at the cut: the embedding is determined
		// only up to rotation, so the split below is arbitrary.
		result.Warnings = append(result.Warnings, WarnNumericInstability)
	}

	embedding := spectralEmbedding(&vectors, n, k)

	rng := rand.New(rand.NewSource(opts.Seed))
	labels, converged := bestKMeans(embedding, k, opts.Restarts, opts.MaxIterations, rng)
	if !converged {
		result.Warnings = append(result.Warnings, WarnNonConvergence)
	}

	result.Partition = compactPartition(labels)
	return result, nil
}

// BuildLaplacian computes L = I - D^{-1/2} W D^{-1/2}. The boolean reports
// whether any weighted degree was zero and clamped to epsilon.
func BuildLaplacian(w *mat.SymDense) (*mat.SymDense, bool) {
	n := w.SymmetricDim()
	degrees := WeightedDegrees(w)

	clamped := false
	invSqrt := make([]float64, n)
	for i, d := range degrees {
		if d <= 0 {
			d = degreeEpsilon
			clamped = true
		}
		invSqrt[i] = 1 / math.Sqrt(d)
	}

	l := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		l.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			l.SetSym(i, j, -invSqrt[i]*w.At(i, j)*invSqrt[j])
		}
	}
	return l, clamped
}

// spectralEmbedding stacks the k smallest eigenvectors into an n×k matrix
// and normalizes each row to unit norm. Zero-norm rows are left as-is; they
// only occur for disconnected or degenerate inputs.
func spectralEmbedding(vectors *mat.Dense, n, k int) *mat.Dense {
	embedding := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			embedding.Set(i, j, vectors.At(i, j))
		}
	}
	for i := 0; i < n; i++ {
		row := embedding.RawRowView(i)
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
	}
	return embedding
}

// bestKMeans runs k-means with several restarts and keeps the assignment
// with the lowest within-cluster sum of squares.
func bestKMeans(data *mat.Dense, k, restarts, maxIterations int, rng *rand.Rand) ([]int, bool) {
	if restarts < 1 {
		restarts = 1
	}

	var bestLabels []int
	bestWCSS := math.Inf(1)
	bestConverged := false

	for r := 0; r < restarts; r++ {
		labels, wcss, converged := runKMeans(data, k, maxIterations, rng)
		if wcss < bestWCSS {
			bestWCSS = wcss
			bestLabels = labels
			bestConverged = converged
		}
	}

	return bestLabels, bestConverged
}

// runKMeans is Lloyd's algorithm with k-means++ initialization. It returns
// the best assignment found even when the iteration cap is hit.
func runKMeans(data *mat.Dense, k, maxIterations int, rng *rand.Rand) ([]int, float64, bool) {
	n, d := data.Dims()
	centroids := initCentroids(data, k, rng)

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	converged := false
	for iteration := 0; iteration < maxIterations; iteration++ {
		changed := false
		for i := 0; i < n; i++ {
			best := nearestCentroid(data.RawRowView(i), centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			converged = true
			break
		}

		// Update centroids.
		next := mat.NewDense(k, d, nil)
		counts := make([]int, k)
		for i := 0; i < n; i++ {
			c := assignments[i]
			floats.Add(next.RawRowView(c), data.RawRowView(i))
			counts[c]++
		}
		for c := 0; c < k; c++ {
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), next.RawRowView(c))
			} else {
				// Re-seed an emptied cluster with the point farthest from
				// its current centroid so the result keeps exactly k groups.
				next.SetRow(c, data.RawRowView(farthestPoint(data, centroids, assignments)))
			}
		}
		centroids = next
	}

	wcss := 0.0
	for i := 0; i < n; i++ {
		dist := floats.Distance(data.RawRowView(i), centroids.RawRowView(assignments[i]), 2)
		wcss += dist * dist
	}

	return assignments, wcss, converged
}

// initCentroids picks k starting centroids with k-means++ weighting: the
// first uniformly, the rest proportional to squared distance from the
// nearest already-chosen centroid.
func initCentroids(data *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	n, d := data.Dims()
	centroids := mat.NewDense(k, d, nil)
	centroids.SetRow(0, data.RawRowView(rng.Intn(n)))

	distances := make([]float64, n)
	for c := 1; c < k; c++ {
		total := 0.0
		for i := 0; i < n; i++ {
			minDist := math.Inf(1)
			for prev := 0; prev < c; prev++ {
				dist := floats.Distance(data.RawRowView(i), centroids.RawRowView(prev), 2)
				if dist < minDist {
					minDist = dist
				}
			}
			distances[i] = minDist * minDist
			total += distances[i]
		}

		if total == 0 {
			// All points coincide with a chosen centroid; fall back to a
			// uniform pick.
			centroids.SetRow(c, data.RawRowView(rng.Intn(n)))
			continue
		}

		target := rng.Float64() * total
		cumulative := 0.0
		for i, dist := range distances {
			cumulative += dist
			if cumulative >= target {
				centroids.SetRow(c, data.RawRowView(i))
				break
			}
		}
	}

	return centroids
}

// nearestCentroid returns the index of the closest centroid by Euclidean
// distance, lowest index on ties.
func nearestCentroid(point []float64, centroids *mat.Dense) int {
	k, _ := centroids.Dims()
	best := 0
	bestDist := math.Inf(1)
	for c := 0; c < k; c++ {
		if dist := floats.Distance(point, centroids.RawRowView(c), 2); dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	return best
}

// farthestPoint returns the point with the largest distance to its assigned
// centroid.
func farthestPoint(data *mat.Dense, centroids *mat.Dense, assignments []int) int {
	n, _ := data.Dims()
	farthest := 0
	maxDist := -1.0
	for i := 0; i < n; i++ {
		if dist := floats.Distance(data.RawRowView(i), centroids.RawRowView(assignments[i]), 2); dist > maxDist {
			maxDist = dist
			farthest = i
		}
	}
	return farthest
}

// compactPartition renumbers labels to a dense range [0, numClusters) in
// order of first appearance.
func compactPartition(labels []int) Partition {
	remap := make(map[int]int)
	compact := make([]int, len(labels))
	for i, label := range labels {
		id, ok := remap[label]
		if !ok {
			id = len(remap)
			remap[label] = id
		}
		compact[i] = id
	}
	return Partition{Labels: compact, NumClusters: len(remap)}
}
