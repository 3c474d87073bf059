package jawbone

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

// Page is one shuffled page of the source text. Tokens are produced by the
// external normalization step (lowercased, lemmatized, stop words and
// punctuation removed) and are immutable once loaded.
type Page struct {
	ID     int      `json:"id"`
	Tokens []string `json:"tokens"`
}

var pagesFile string

var LoadPagesCmd = &cobra.Command{
	Use:   "load-pages",
	Short: "Load normalized page texts into the database",
	Run: func(cmd *cobra.Command, args []string) {
		if err := loadAllPages(pagesFile); err != nil {
			log.Printf("Failed to load pages: %v", err)
			return
		}
		log.Println("Page loading complete.")
	},
}

func init() {
	LoadPagesCmd.Flags().StringVar(&pagesFile, "pages", "pages.txt",
		"normalized pages file, one page per blank-line-separated block")
}

// loadAllPages reads the pages file and stores every page in the database.
func loadAllPages(path string) error {
	pages, err := ReadPages(path)
	if err != nil {
		return fmt.Errorf("failed to read pages: %w", err)
	}

	log.Printf("Read %d pages from %s", len(pages), path)

	db, err := initPageDB(DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	if err := savePages(db, pages); err != nil {
		return fmt.Errorf("failed to save pages: %w", err)
	}

	empty := 0
	for _, page := range pages {
		if len(page.Tokens) == 0 {
			empty++
			log.Printf("⚠️  Page %d has no tokens after normalization", page.ID)
		}
	}
	log.Printf("📄 Stored %d pages (%d empty)", len(pages), empty)

	return nil
}

// ReadPages parses a normalized pages file. Pages are separated by blank
// lines and tokens within a page by whitespace, matching the format the
// preprocessing collaborator writes.
func ReadPages(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	blocks := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n\n")
	var pages []Page
	for _, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}
		pages = append(pages, Page{
			ID:     len(pages),
			Tokens: strings.Fields(block),
		})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyCorpus)
	}

	return pages, nil
}

// initPageDB initializes the SQLite database for pages and vectors.
func initPageDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY,
		tokens_json TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS vectors (
		page_id INTEGER PRIMARY KEY REFERENCES pages(id),
		vector_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS vocabulary (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		tokens_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			log.Printf("Failed to close database: %v", cerr)
		}
		return nil, err
	}

	return db, nil
}

// savePages replaces the stored corpus with the given pages.
func savePages(db *sql.DB, pages []Page) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// A reload replaces the whole corpus; stale vectors would no longer
	// match the vocabulary.
	for _, table := range []string{"vectors", "vocabulary", "pages"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}

	stmt, err := tx.Prepare("INSERT INTO pages (id, tokens_json, token_count) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			log.Printf("Failed to close statement: %v", err)
		}
	}()

	for _, page := range pages {
		tokensJSON, err := json.Marshal(page.Tokens)
		if err != nil {
			return fmt.Errorf("failed to marshal tokens for page %d: %w", page.ID, err)
		}
		if _, err := stmt.Exec(page.ID, string(tokensJSON), len(page.Tokens)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// loadPages reads the stored corpus back in page id order.
func loadPages(db *sql.DB) ([]Page, error) {
	rows, err := db.Query("SELECT id, tokens_json FROM pages ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Failed to close rows: %v", err)
		}
	}()

	var pages []Page
	for rows.Next() {
		var page Page
		var tokensJSON string
		if err := rows.Scan(&page.ID, &tokensJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tokensJSON), &page.Tokens); err != nil {
			return nil, fmt.Errorf("failed to parse tokens for page %d: %w", page.ID, err)
		}
		pages = append(pages, page)
	}

	return pages, rows.Err()
}
