package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/mindscroll/cardgen/internal/model"
)

// ReadXLSX loads a document from a spreadsheet: one chunk per row, text in
// the first column, an optional chapter label in the second. The first row
// is a header and is skipped. Row order is chunk order. Metadata comes from
// the caller since spreadsheets carry none.
func ReadXLSX(path string, meta model.BookMeta) (*Document, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("ingest: %s has no sheets", path)
	}

	doc := &Document{Meta: meta}
	for i, row := range f.Sheets[0].Rows {
		if i == 0 {
			continue // header
		}
		if len(row.Cells) == 0 {
			continue
		}
		text := strings.TrimSpace(row.Cells[0].String())
		if text == "" {
			continue
		}
		chapter := ""
		if len(row.Cells) > 1 {
			chapter = strings.TrimSpace(row.Cells[1].String())
		}
		doc.Chunks = append(doc.Chunks, model.Chunk{
			ID:           model.ChunkID(meta.ContentID, len(doc.Chunks)),
			ContentID:    meta.ContentID,
			Text:         text,
			ChapterLabel: chapter,
			Ordinal:      len(doc.Chunks),
		})
	}

	if err := doc.validate(); err != nil {
		return nil, eris.Wrapf(err, "xlsx %s", path)
	}
	return doc, nil
}
