package jawbone

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildVocabularyFirstSeenOrder(t *testing.T) {
	pages := []Page{
		{ID: 0, Tokens: []string{"body", "attic", "body"}},
		{ID: 1, Tokens: []string{"attic", "cellar"}},
	}

	vocab := BuildVocabulary(pages)

	assert.Equal(t, []string{"body", "attic", "cellar"}, vocab.Tokens)
	assert.Equal(t, map[string]int{"body": 0, "attic": 1, "cellar": 2}, vocab.Index)
	assert.Equal(t, 3, vocab.Size())
}

func TestCountVectors(t *testing.T) {
	pages := []Page{
		{ID: 0, Tokens: []string{"body", "attic", "body"}},
		{ID: 1, Tokens: []string{"attic", "cellar"}},
		{ID: 2, Tokens: nil},
	}
	vocab := BuildVocabulary(pages)

	vectors, emptyPages, err := CountVectors(pages, vocab)
	require.NoError(t, err)

	assert.Equal(t, [][]float64{
		{2, 1, 0},
		{0, 1, 1},
		{0, 0, 0},
	}, vectors)
	assert.Equal(t, []int{2}, emptyPages)
}

func TestCountVectorsEmptyCorpus(t *testing.T) {
	pages := []Page{{ID: 0}, {ID: 1}}
	vocab := BuildVocabulary(pages)

	_, _, err := CountVectors(pages, vocab)
	require.True(t, errors.Is(err, ErrEmptyCorpus))
}

func TestCountVectorsVocabularyMismatch(t *testing.T) {
	vocab := BuildVocabulary([]Page{{ID: 0, Tokens: []string{"body"}}})
	pages := []Page{{ID: 0, Tokens: []string{"cellar"}}}

	_, _, err := CountVectors(pages, vocab)
	require.Error(t, err)
}
