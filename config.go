package jawbone

import "path/filepath"

// Config holds all environment-derived settings
var Config struct {
	DataDir string
}

// DatabasePath returns the location of the page/vector database.
func DatabasePath() string {
	return filepath.Join(Config.DataDir, "pages.db")
}

// GraphPath returns the location of the exported similarity graph.
func GraphPath() string {
	return filepath.Join(Config.DataDir, "graph.json")
}
