package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadJSON(t *testing.T) {
	path := writeDoc(t, `{
		"content_id": "book-1",
		"title": "The Psychology of Money",
		"author": "Morgan Housel",
		"category": "finance",
		"chunks": [
			{"text": "First chunk.", "chapter": "ch1"},
			{"text": "   ", "chapter": "ch1"},
			{"text": "  Second chunk.  ", "chapter": "ch2"}
		]
	}`)

	doc, err := ReadJSON(path)
	require.NoError(t, err)

	assert.Equal(t, "book-1", doc.Meta.ContentID)
	assert.Equal(t, "The Psychology of Money", doc.Meta.Title)
	assert.Equal(t, "Morgan Housel", doc.Meta.Author)

	// The blank chunk is dropped; ordinals stay contiguous.
	require.Len(t, doc.Chunks, 2)
	assert.Equal(t, "book-1-0", doc.Chunks[0].ID)
	assert.Equal(t, "First chunk.", doc.Chunks[0].Text)
	assert.Equal(t, "ch1", doc.Chunks[0].ChapterLabel)
	assert.Equal(t, "book-1-1", doc.Chunks[1].ID)
	assert.Equal(t, "Second chunk.", doc.Chunks[1].Text, "text is trimmed")
	assert.Equal(t, 1, doc.Chunks[1].Ordinal)
}

func TestReadJSON_Idempotent(t *testing.T) {
	path := writeDoc(t, `{"content_id": "book-1", "title": "T", "chunks": [{"text": "one"}, {"text": "two"}]}`)

	a, err := ReadJSON(path)
	require.NoError(t, err)
	b, err := ReadJSON(path)
	require.NoError(t, err)

	assert.Equal(t, a.Chunks[0].ID, b.Chunks[0].ID, "chunk IDs derive from position, not randomness")
	assert.Equal(t, a.Chunks[1].ID, b.Chunks[1].ID)
}

func TestReadJSON_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing content_id", `{"title": "T", "chunks": [{"text": "one"}]}`},
		{"missing title", `{"content_id": "b", "chunks": [{"text": "one"}]}`},
		{"no chunks", `{"content_id": "b", "title": "T", "chunks": []}`},
		{"all chunks blank", `{"content_id": "b", "title": "T", "chunks": [{"text": "  "}]}`},
		{"malformed json", `{"content_id": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadJSON(writeDoc(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestReadJSON_MissingFile(t *testing.T) {
	_, err := ReadJSON(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
