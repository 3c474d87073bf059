package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	jawbone "github.com/maxstollmayer/Graph-Algorithms-Project"
	"github.com/spf13/cobra"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	jawbone.Config.DataDir = os.Getenv("JAWBONE_DATA_DIR")
	if jawbone.Config.DataDir == "" {
		jawbone.Config.DataDir = "."
	}

	rootCmd := &cobra.Command{
		Use:   "jawbone",
		Short: "Narrative thread clustering for shuffled page texts",
	}

	// Add all commands from the jawbone package
	rootCmd.AddCommand(jawbone.LoadPagesCmd)
	rootCmd.AddCommand(jawbone.VectorizeCmd)
	rootCmd.AddCommand(jawbone.BuildGraphCmd)
	rootCmd.AddCommand(jawbone.SpectralClusterCmd)
	rootCmd.AddCommand(jawbone.ModularityClusterCmd)
	rootCmd.AddCommand(jawbone.ComparePartitionsCmd)
	rootCmd.AddCommand(jawbone.GenerateHTMLCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cleanCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: load-pages -> vectorize -> build-graph -> compare -> generate-html",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Running full pipeline...")
		jawbone.LoadPagesCmd.Run(cmd, args)
		jawbone.VectorizeCmd.Run(cmd, args)
		jawbone.BuildGraphCmd.Run(cmd, args)
		jawbone.ComparePartitionsCmd.Run(cmd, args)
		jawbone.GenerateHTMLCmd.Run(cmd, args)
		log.Println("Pipeline complete.")
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean the database, graph, clusters, and reports",
	Run: func(cmd *cobra.Command, args []string) {
		files := []string{
			jawbone.DatabasePath(),
			jawbone.GraphPath(),
			filepath.Join(jawbone.Config.DataDir, "report.md"),
			filepath.Join(jawbone.Config.DataDir, "report.html"),
		}
		for _, file := range files {
			if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
				log.Printf("Failed to remove %s: %v", file, err)
			}
		}

		clustersDir := filepath.Join(jawbone.Config.DataDir, "clusters")
		if err := os.RemoveAll(clustersDir); err != nil {
			log.Printf("Failed to remove %s: %v", clustersDir, err)
		}

		log.Println("Cleaned database, graph, clusters, and reports.")
	},
}
