package model

import "fmt"

// Chunk is a contiguous span of source text produced by the external
// extraction service. Chunks are immutable once stored; the pipeline only
// reads them.
type Chunk struct {
	ID           string `json:"id"`
	ContentID    string `json:"content_id"`
	Text         string `json:"text"`
	ChapterLabel string `json:"chapter_label,omitempty"`
	Ordinal      int    `json:"ordinal"`
}

// ChunkID derives the stable chunk identifier from content ID and position.
func ChunkID(contentID string, ordinal int) string {
	return fmt.Sprintf("%s-%d", contentID, ordinal)
}

// BookMeta describes the source document a chunk set belongs to. It is
// injected into every generation prompt.
type BookMeta struct {
	ContentID string `json:"content_id"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Category  string `json:"category,omitempty"`
}
