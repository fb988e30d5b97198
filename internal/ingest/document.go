// Package ingest parses chunked book content from files for import into the
// store. JSON is the primary interchange format; XLSX is supported for decks
// prepared in spreadsheets.
package ingest

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mindscroll/cardgen/internal/model"
)

// Document is one book's metadata plus its ordered chunks, ready for import.
type Document struct {
	Meta   model.BookMeta
	Chunks []model.Chunk
}

// jsonDocument is the on-disk JSON shape.
type jsonDocument struct {
	ContentID string `json:"content_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Category  string `json:"category"`
	Chunks    []struct {
		Text    string `json:"text"`
		Chapter string `json:"chapter,omitempty"`
	} `json:"chunks"`
}

// ReadJSON loads a document file. Chunk IDs are derived from the content ID
// and position, so re-importing the same file is idempotent.
func ReadJSON(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()

	var raw jsonDocument
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse %s", path)
	}

	doc := &Document{
		Meta: model.BookMeta{
			ContentID: raw.ContentID,
			Title:     raw.Title,
			Author:    raw.Author,
			Category:  raw.Category,
		},
	}
	for _, c := range raw.Chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		doc.Chunks = append(doc.Chunks, model.Chunk{
			ID:           model.ChunkID(raw.ContentID, len(doc.Chunks)),
			ContentID:    raw.ContentID,
			Text:         text,
			ChapterLabel: strings.TrimSpace(c.Chapter),
			Ordinal:      len(doc.Chunks),
		})
	}

	return doc, doc.validate()
}

func (d *Document) validate() error {
	if d.Meta.ContentID == "" {
		return eris.New("ingest: document has no content_id")
	}
	if d.Meta.Title == "" {
		return eris.New("ingest: document has no title")
	}
	if len(d.Chunks) == 0 {
		return eris.New("ingest: document has no non-empty chunks")
	}
	return nil
}
