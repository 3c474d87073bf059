package jawbone

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// neighborCount is how many strongest neighbors the graph export lists per
// page. The clustering itself always uses the full dense matrix; the
// nearest-neighbor view exists only for inspection.
const neighborCount = 5

// GraphNode describes one page in the exported graph.
type GraphNode struct {
	Page           int     `json:"page"`
	TokenCount     int     `json:"token_count"`
	WeightedDegree float64 `json:"weighted_degree"`
	Neighbors      []int   `json:"nearest_neighbors"`
}

// GraphExport is the on-disk form of the similarity graph.
type GraphExport struct {
	Nodes   []GraphNode `json:"nodes"`
	Weights [][]float64 `json:"weights"`
}

var BuildGraphCmd = &cobra.Command{
	Use:   "build-graph",
	Short: "Build the pairwise cosine similarity graph",
	Run: func(cmd *cobra.Command, args []string) {
		if err := buildAndExportGraph(); err != nil {
			log.Printf("Failed to build graph: %v", err)
			return
		}
		log.Println("Graph construction complete.")
	},
}

// buildAndExportGraph loads vectors, builds the weight matrix and writes the
// graph export.
func buildAndExportGraph() error {
	db, err := initPageDB(DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	pages, err := loadPages(db)
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}
	vectors, err := loadVectors(db)
	if err != nil {
		return fmt.Errorf("failed to load vectors: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("no vectors in database, run vectorize first")
	}
	if len(vectors) != len(pages) {
		return fmt.Errorf("have %d vectors for %d pages, rerun vectorize", len(vectors), len(pages))
	}

	weights := BuildSimilarityGraph(vectors)
	degrees := WeightedDegrees(weights)

	export := GraphExport{Weights: weightRows(weights)}
	for i, page := range pages {
		export.Nodes = append(export.Nodes, GraphNode{
			Page:           page.ID,
			TokenCount:     len(page.Tokens),
			WeightedDegree: degrees[i],
			Neighbors:      nearestNeighbors(weights, i, neighborCount),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if err := os.WriteFile(GraphPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write graph file: %w", err)
	}

	n := len(vectors)
	log.Printf("🕸️  Built similarity graph with %d nodes and %d weighted edges", n, n*(n-1)/2)
	return nil
}

// BuildSimilarityGraph computes the dense symmetric weight matrix of
// pairwise cosine similarities. The diagonal is zero by convention; it is
// never used in Laplacian construction. Entries are guaranteed symmetric
// and within [0, 1] since count vectors are non-negative.
func BuildSimilarityGraph(vectors [][]float64) *mat.SymDense {
	n := len(vectors)
	w := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w.SetSym(i, j, cosineSimilarity(vectors[i], vectors[j]))
		}
	}
	return w
}

// cosineSimilarity is ⟨a,b⟩ / (‖a‖‖b‖), defined as 0 when either vector has
// zero norm (the empty-page policy) and clamped to [0, 1] against float
// round-off.
func cosineSimilarity(a, b []float64) float64 {
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (normA * normB)
	return math.Min(1, math.Max(0, sim))
}

// WeightedDegrees returns the row sums of the weight matrix.
func WeightedDegrees(w *mat.SymDense) []float64 {
	n := w.SymmetricDim()
	degrees := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			degrees[i] += w.At(i, j)
		}
	}
	return degrees
}

// nearestNeighbors returns the ids of the k strongest neighbors of node i,
// heaviest edge first.
func nearestNeighbors(w *mat.SymDense, i, k int) []int {
	n := w.SymmetricDim()
	ids := make([]int, 0, n-1)
	for j := 0; j < n; j++ {
		if j != i {
			ids = append(ids, j)
		}
	}
	sort.SliceStable(ids, func(a, b int) bool {
		return w.At(i, ids[a]) > w.At(i, ids[b])
	})
	if k > len(ids) {
		k = len(ids)
	}
	return ids[:k]
}

// weightRows copies the symmetric matrix into plain rows for JSON export.
func weightRows(w *mat.SymDense) [][]float64 {
	n := w.SymmetricDim()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			rows[i][j] = w.At(i, j)
		}
	}
	return rows
}

// loadGraph reads a graph export back into a symmetric weight matrix.
func loadGraph(path string) (*mat.SymDense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var export GraphExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse graph file: %w", err)
	}

	n := len(export.Weights)
	w := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if len(export.Weights[i]) != n {
			return nil, fmt.Errorf("graph row %d has %d entries, want %d", i, len(export.Weights[i]), n)
		}
		for j := i + 1; j < n; j++ {
			w.SetSym(i, j, export.Weights[i][j])
		}
	}
	return w, nil
}
