package jawbone

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

// SeedPolicy controls how the comparator derives per-repetition seeds.
type SeedPolicy string

const (
	// SeedPolicyFixed derives run r's seed as BaseSeed + r, so the whole
	// comparison is reproducible from one number.
	SeedPolicyFixed SeedPolicy = "fixed"
	// SeedPolicyFresh draws every run's seed from a time-seeded source.
	// The drawn seeds are recorded in the results so any single run can
	// still be replayed.
	SeedPolicyFresh SeedPolicy = "fresh"
)

// CompareOptions configures the repeated-run comparison. Every parameter is
// explicit; there are no hidden defaults in the library.
type CompareOptions struct {
	K                int
	Repetitions      int
	KMeansRestarts   int
	KMeansMaxIter    int
	LouvainMaxSweeps int
	SeedPolicy       SeedPolicy
	BaseSeed         int64
	Workers          int
}

// RunOutcome is one scored partitioner run.
type RunOutcome struct {
	Run       int             `json:"run"`
	Result    PartitionResult `json:"result"`
	Coherence CoherenceReport `json:"coherence"`
}

// AlgorithmSummary aggregates all runs of one partitioner.
type AlgorithmSummary struct {
	Method           Method       `json:"method"`
	Runs             []RunOutcome `json:"runs"`
	MeanCoherence    float64      `json:"mean_coherence"`
	Best             RunOutcome   `json:"best"`
	MismatchedRuns   int          `json:"mismatched_runs"`
	FlaggedRuns      int          `json:"flagged_runs"`
	MeanClusterCount float64      `json:"mean_cluster_count"`
}

// ComparisonReport is the comparator's full output.
type ComparisonReport struct {
	K           int              `json:"k"`
	Repetitions int              `json:"repetitions"`
	SeedPolicy  SeedPolicy       `json:"seed_policy"`
	Spectral    AlgorithmSummary `json:"spectral"`
	Modularity  AlgorithmSummary `json:"modularity"`
}

var compareOpts = CompareOptions{
	K:                6,
	Repetitions:      100,
	KMeansRestarts:   10,
	KMeansMaxIter:    100,
	LouvainMaxSweeps: 100,
	SeedPolicy:       SeedPolicyFixed,
	Workers:          4,
}

var ComparePartitionsCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run both partitioners repeatedly and compare coherence",
	Run: func(cmd *cobra.Command, args []string) {
		if err := compareAllPartitions(); err != nil {
			log.Printf("Failed to compare partitions: %v", err)
			return
		}
		log.Println("Partition comparison complete.")
	},
}

func init() {
	flags := ComparePartitionsCmd.Flags()
	flags.IntVar(&compareOpts.K, "k", 6, "target cluster count (advisory for modularity)")
	flags.IntVar(&compareOpts.Repetitions, "repetitions", 100, "independent runs per algorithm")
	flags.IntVar(&compareOpts.KMeansRestarts, "kmeans-restarts", 10, "k-means restarts per spectral run")
	flags.IntVar(&compareOpts.KMeansMaxIter, "kmeans-max-iterations", 100, "k-means iteration cap")
	flags.IntVar(&compareOpts.LouvainMaxSweeps, "louvain-max-sweeps", 100, "modularity local phase sweep cap")
	flags.StringVar((*string)(&compareOpts.SeedPolicy), "seed-policy", string(SeedPolicyFixed), "fixed (base+run) or fresh per-run seeds")
	flags.Int64Var(&compareOpts.BaseSeed, "seed", 0, "base seed for the fixed policy")
	flags.IntVar(&compareOpts.Workers, "workers", 4, "parallel workers for the repetitions")
}

// Compare runs R independent repetitions of both partitioners against the
// same read-only inputs, scores every partition and aggregates per
// algorithm. Modularity runs may discover a cluster count different from k;
// such runs are counted and flagged, never dropped or rebalanced, and
// coherence is averaged over whatever clusters each run produced.
func Compare(pages []Page, w *mat.SymDense, opts CompareOptions) (ComparisonReport, error) {
	if opts.K < 1 {
		return ComparisonReport{}, ErrInvalidClusterCount
	}
	if opts.Repetitions < 1 {
		return ComparisonReport{}, fmt.Errorf("repetitions must be positive")
	}
	if len(pages) != w.SymmetricDim() {
		return ComparisonReport{}, fmt.Errorf("have %d pages but a %d-node graph", len(pages), w.SymmetricDim())
	}

	seeds := runSeeds(opts)
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	spectral := make([]RunOutcome, opts.Repetitions)
	modularity := make([]RunOutcome, opts.Repetitions)
	errs := make([]error, opts.Repetitions)

	// The repetitions are embarrassingly parallel: each run owns its seed
	// and intermediate state, sharing only the read-only pages and weights.
	jobs := make(chan int)
	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for run := range jobs {
				spectral[run], modularity[run], errs[run] = executeRun(pages, w, opts, run, seeds[run])
			}
		}()
	}
	for run := 0; run < opts.Repetitions; run++ {
		jobs <- run
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return ComparisonReport{}, err
		}
	}

	report := ComparisonReport{
		K:           opts.K,
		Repetitions: opts.Repetitions,
		SeedPolicy:  opts.SeedPolicy,
		Spectral:    summarize(MethodSpectral, spectral),
		Modularity:  summarize(MethodModularity, modularity),
	}
	return report, nil
}

// executeRun performs one repetition of both partitioners with the same
// seed.
func executeRun(pages []Page, w *mat.SymDense, opts CompareOptions, run int, seed int64) (RunOutcome, RunOutcome, error) {
	spectralResult, err := SpectralPartition(w, SpectralOptions{
		K:             opts.K,
		Restarts:      opts.KMeansRestarts,
		MaxIterations: opts.KMeansMaxIter,
		Seed:          seed,
	})
	if err != nil {
		return RunOutcome{}, RunOutcome{}, fmt.Errorf("spectral run %d: %w", run, err)
	}

	modularityResult, err := LouvainPartition(w, ModularityOptions{
		K:         opts.K,
		MaxSweeps: opts.LouvainMaxSweeps,
		Seed:      seed,
	})
	if err != nil {
		return RunOutcome{}, RunOutcome{}, fmt.Errorf("modularity run %d: %w", run, err)
	}

	spectralOutcome := RunOutcome{Run: run, Result: spectralResult, Coherence: ScoreCoherence(pages, spectralResult.Partition)}
	modularityOutcome := RunOutcome{Run: run, Result: modularityResult, Coherence: ScoreCoherence(pages, modularityResult.Partition)}
	return spectralOutcome, modularityOutcome, nil
}

// runSeeds materializes the per-run seeds up front so fresh seeds are
// recorded and runs stay independent of scheduling order.
func runSeeds(opts CompareOptions) []int64 {
	seeds := make([]int64, opts.Repetitions)
	if opts.SeedPolicy == SeedPolicyFresh {
		source := rand.New(rand.NewSource(time.Now().UnixNano()))
		for i := range seeds {
			seeds[i] = source.Int63()
		}
		return seeds
	}
	for i := range seeds {
		seeds[i] = opts.BaseSeed + int64(i)
	}
	return seeds
}

// summarize aggregates the runs of one algorithm: mean aggregate coherence,
// the best-scoring run, and how many runs were flagged.
func summarize(method Method, runs []RunOutcome) AlgorithmSummary {
	summary := AlgorithmSummary{Method: method, Runs: runs, Best: runs[0]}

	totalCoherence := 0.0
	totalClusters := 0
	for _, outcome := range runs {
		totalCoherence += outcome.Coherence.Aggregate
		totalClusters += outcome.Result.Partition.NumClusters
		if outcome.Coherence.Aggregate > summary.Best.Coherence.Aggregate {
			summary.Best = outcome
		}
		if outcome.Result.HasWarning(WarnClusterCountMismatch) {
			summary.MismatchedRuns++
		}
		if len(outcome.Result.Warnings) > 0 {
			summary.FlaggedRuns++
		}
	}
	summary.MeanCoherence = totalCoherence / float64(len(runs))
	summary.MeanClusterCount = float64(totalClusters) / float64(len(runs))
	return summary
}

// compareAllPartitions loads the stored corpus and graph, runs the
// comparison and writes the JSON results plus the markdown report.
func compareAllPartitions() error {
	pages, w, err := loadCorpusAndGraph()
	if err != nil {
		return err
	}

	log.Printf("⚖️  Comparing partitioners: k=%d, %d repetitions, %s seeds",
		compareOpts.K, compareOpts.Repetitions, compareOpts.SeedPolicy)

	report, err := Compare(pages, w, compareOpts)
	if err != nil {
		return fmt.Errorf("failed to compare partitions: %w", err)
	}

	clustersDir := filepath.Join(Config.DataDir, "clusters")
	if err := os.MkdirAll(clustersDir, 0755); err != nil {
		return fmt.Errorf("failed to create clusters directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal comparison: %w", err)
	}
	if err := os.WriteFile(filepath.Join(clustersDir, "comparison.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write comparison file: %w", err)
	}

	if err := os.WriteFile(filepath.Join(Config.DataDir, "report.md"), []byte(renderReport(pages, report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logSummary(report.Spectral)
	logSummary(report.Modularity)
	return nil
}

// runSinglePartition runs one partitioner once with its command's options,
// scores it and writes the result.
func runSinglePartition(method Method) error {
	pages, w, err := loadCorpusAndGraph()
	if err != nil {
		return err
	}

	var result PartitionResult
	switch method {
	case MethodSpectral:
		result, err = SpectralPartition(w, spectralOpts)
	case MethodModularity:
		result, err = LouvainPartition(w, modularityOpts)
	default:
		return fmt.Errorf("unknown method %q", method)
	}
	if err != nil {
		return fmt.Errorf("failed to partition: %w", err)
	}

	outcome := RunOutcome{Result: result, Coherence: ScoreCoherence(pages, result.Partition)}

	clustersDir := filepath.Join(Config.DataDir, "clusters")
	if err := os.MkdirAll(clustersDir, 0755); err != nil {
		return fmt.Errorf("failed to create clusters directory: %w", err)
	}
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	path := filepath.Join(clustersDir, string(method)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}

	log.Printf("📊 %s: %d clusters, coherence %.4f, warnings %v",
		method, result.Partition.NumClusters, outcome.Coherence.Aggregate, result.Warnings)
	return nil
}

// loadCorpusAndGraph loads pages from the database and the weight matrix
// from the graph export.
func loadCorpusAndGraph() ([]Page, *mat.SymDense, error) {
	db, err := initPageDB(DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	pages, err := loadPages(db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, nil, fmt.Errorf("no pages in database, run load-pages first")
	}

	w, err := loadGraph(GraphPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load graph, run build-graph first: %w", err)
	}
	if w.SymmetricDim() != len(pages) {
		return nil, nil, fmt.Errorf("graph has %d nodes for %d pages, rerun build-graph", w.SymmetricDim(), len(pages))
	}

	return pages, w, nil
}

func logSummary(summary AlgorithmSummary) {
	log.Printf("📈 %s: mean coherence %.4f, best %.4f (run %d, %d clusters), %d/%d runs flagged, %d cluster-count mismatches",
		summary.Method, summary.MeanCoherence, summary.Best.Coherence.Aggregate, summary.Best.Run,
		summary.Best.Result.Partition.NumClusters, summary.FlaggedRuns, len(summary.Runs), summary.MismatchedRuns)
}

// renderReport writes the markdown comparison report.
func renderReport(pages []Page, report ComparisonReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Narrative Thread Clustering Report\n\n")
	fmt.Fprintf(&b, "%d pages, k=%d, %d repetitions per algorithm, %s seed policy.\n\n",
		len(pages), report.K, report.Repetitions, report.SeedPolicy)

	fmt.Fprintf(&b, "| Algorithm | Mean coherence | Best coherence | Best run clusters | Flagged runs | k mismatches |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|\n")
	for _, summary := range []AlgorithmSummary{report.Spectral, report.Modularity} {
		fmt.Fprintf(&b, "| %s | %.4f | %.4f | %d | %d/%d | %d |\n",
			summary.Method, summary.MeanCoherence, summary.Best.Coherence.Aggregate,
			summary.Best.Result.Partition.NumClusters, summary.FlaggedRuns, len(summary.Runs), summary.MismatchedRuns)
	}

	for _, summary := range []AlgorithmSummary{report.Spectral, report.Modularity} {
		fmt.Fprintf(&b, "\n## Best %s partition\n\n", summary.Method)
		if len(summary.Best.Result.Warnings) > 0 {
			fmt.Fprintf(&b, "Warnings: %s\n\n", strings.Join(summary.Best.Result.Warnings, ", "))
		}
		clusters := summary.Best.Result.Partition.Clusters()
		for _, cc := range summary.Best.Coherence.Clusters {
			members := clusters[cc.Cluster]
			sort.Ints(members)
			fmt.Fprintf(&b, "- Cluster %d (%d pages, coherence %.4f): pages %v, top terms: %s\n",
				cc.Cluster, cc.Pages, cc.Score, members, strings.Join(cc.TopTerms, ", "))
		}
	}

	return b.String()
}
