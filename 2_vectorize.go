package jawbone

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// Vocabulary assigns a fixed column index to every distinct corpus token.
// Indices follow first-seen order over pages in id order; the ordering only
// affects internal indexing, never the clustering result, but it is fixed
// so vectors stay comparable for the lifetime of a run.
type Vocabulary struct {
	Index  map[string]int `json:"-"`
	Tokens []string       `json:"tokens"`
}

// Size returns the number of distinct tokens, i.e. the vector dimension.
func (v *Vocabulary) Size() int {
	return len(v.Tokens)
}

var VectorizeCmd = &cobra.Command{
	Use:   "vectorize",
	Short: "Build the vocabulary and term-frequency vectors for all pages",
	Run: func(cmd *cobra.Command, args []string) {
		if err := vectorizeAllPages(); err != nil {
			log.Printf("Failed to vectorize pages: %v", err)
			return
		}
		log.Println("Vectorization complete.")
	},
}

// vectorizeAllPages loads stored pages, builds count vectors and persists
// them alongside the vocabulary.
func vectorizeAllPages() error {
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
	if len(pages) == 0 {
		return fmt.Errorf("no pages in database, run load-pages first")
	}

	vocab := BuildVocabulary(pages)
	vectors, emptyPages, err := CountVectors(pages, vocab)
	if err != nil {
		return fmt.Errorf("failed to build vectors: %w", err)
	}

	for _, id := range emptyPages {
		log.Printf("⚠️  Page %d has a zero vector, it will have similarity 0 to all pages", id)
	}

	if err := saveVectors(db, vocab, vectors); err != nil {
		return fmt.Errorf("failed to save vectors: %w", err)
	}

	log.Printf("🔤 Vocabulary of %d tokens, %d vectors stored", vocab.Size(), len(vectors))
	return nil
}

// BuildVocabulary collects the distinct tokens of the corpus in first-seen
// order.
func BuildVocabulary(pages []Page) *Vocabulary {
	vocab := &Vocabulary{Index: make(map[string]int)}
	for _, page := range pages {
		for _, token := range page.Tokens {
			if _, ok := vocab.Index[token]; !ok {
				vocab.Index[token] = len(vocab.Tokens)
				vocab.Tokens = append(vocab.Tokens, token)
			}
		}
	}
	return vocab
}

// CountVectors produces one raw term-frequency vector per page, dimension
// |vocabulary|. No TF-IDF weighting and no smoothing: downstream cosine
// similarity is defined on plain counts. Pages without tokens yield an
// all-zero vector and are reported in the second return value rather than
// failing the run. Only a corpus with no tokens anywhere is an error.
func CountVectors(pages []Page, vocab *Vocabulary) ([][]float64, []int, error) {
	if len(pages) == 0 || vocab.Size() == 0 {
		return nil, nil, ErrEmptyCorpus
	}

	vectors := make([][]float64, len(pages))
	var emptyPages []int
	for i, page := range pages {
		vec := make([]float64, vocab.Size())
		for _, token := range page.Tokens {
			idx, ok := vocab.Index[token]
			if !ok {
				// Vocabulary was built from these pages; an unknown token
				// means vocabulary and pages are out of sync.
				return nil, nil, fmt.Errorf("token %q of page %d not in vocabulary", token, page.ID)
			}
			vec[idx]++
		}
		if len(page.Tokens) == 0 {
			emptyPages = append(emptyPages, page.ID)
		}
		vectors[i] = vec
	}

	return vectors, emptyPages, nil
}

// saveVectors replaces the stored vectors and vocabulary.
func saveVectors(db *sql.DB, vocab *Vocabulary, vectors [][]float64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec("DELETE FROM vectors"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM vocabulary"); err != nil {
		return err
	}

	vocabJSON, err := json.Marshal(vocab.Tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal vocabulary: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO vocabulary (id, tokens_json) VALUES (0, ?)", string(vocabJSON)); err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO vectors (page_id, vector_json) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			log.Printf("Failed to close statement: %v", err)
		}
	}()

	for pageID, vec := range vectors {
		vecJSON, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("failed to marshal vector for page %d: %w", pageID, err)
		}
		if _, err := stmt.Exec(pageID, string(vecJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// loadVectors reads the stored frequency vectors back in page id order.
func loadVectors(db *sql.DB) ([][]float64, error) {
	rows, err := db.Query("SELECT page_id, vector_json FROM vectors ORDER BY page_id")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Failed to close rows: %v", err)
		}
	}()

	var vectors [][]float64
	for rows.Next() {
		var pageID int
		var vecJSON string
		if err := rows.Scan(&pageID, &vecJSON); err != nil {
			return nil, err
		}
		var vec []float64
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			return nil, fmt.Errorf("failed to parse vector for page %d: %w", pageID, err)
		}
		vectors = append(vectors, vec)
	}

	return vectors, rows.Err()
}
