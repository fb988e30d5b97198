package pipeline

import "sync"

// ChunkTracker records which chunk IDs have been consumed by flashcard
// generation within one run. It is scoped to a single run and never shared
// across documents.
type ChunkTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewChunkTracker creates an empty tracker.
func NewChunkTracker() *ChunkTracker {
	return &ChunkTracker{seen: make(map[string]struct{})}
}

// Processed reports whether the chunk has already been marked.
func (t *ChunkTracker) Processed(chunkID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[chunkID]
	return ok
}

// MarkProcessed records the chunk as consumed.
func (t *ChunkTracker) MarkProcessed(chunkID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[chunkID] = struct{}{}
}

// MarkIfNew atomically marks the chunk and reports whether this call was the
// first to do so. Concurrent workers use this to guarantee at-most-once
// dispatch per chunk.
func (t *ChunkTracker) MarkIfNew(chunkID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[chunkID]; ok {
		return false
	}
	t.seen[chunkID] = struct{}{}
	return true
}

// Count returns the number of marked chunks.
func (t *ChunkTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
