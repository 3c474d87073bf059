package jawbone

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadPages(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    [][]string
		wantErr error
	}{
		{
			name:    "two pages",
			content: "murder knife blood\n\ngarden rose petal\n",
			want:    [][]string{{"murder", "knife", "blood"}, {"garden", "rose", "petal"}},
		},
		{
			name:    "windows line endings",
			content: "murder knife\r\n\r\ngarden rose\r\n",
			want:    [][]string{{"murder", "knife"}, {"garden", "rose"}},
		},
		{
			name:    "extra blank lines are not pages",
			content: "\n\nmurder knife\n\n\n\ngarden rose\n\n\n",
			want:    [][]string{{"murder", "knife"}, {"garden", "rose"}},
		},
		{
			name:    "empty file",
			content: "\n\n \n\n",
			wantErr: ErrEmptyCorpus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pages.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			pages, err := ReadPages(path)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr), "got error %v, want %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, pages, len(tt.want))
			for i, page := range pages {
				require.Equal(t, i, page.ID)
				require.Equal(t, tt.want[i], page.Tokens)
			}
		})
	}
}

func TestPageRoundTrip(t *testing.T) {
	db, err := initPageDB(filepath.Join(t.TempDir(), "pages.db"))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()

	pages := []Page{
		{ID: 0, Tokens: []string{"murder", "knife"}},
		{ID: 1, Tokens: []string{"garden", "rose", "rose"}},
	}
	require.NoError(t, savePages(db, pages))

	loaded, err := loadPages(db)
	require.NoError(t, err)
	require.Equal(t, pages, loaded)
}
