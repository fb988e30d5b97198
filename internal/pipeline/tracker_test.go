package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkTracker_MarkIfNew(t *testing.T) {
	tr := NewChunkTracker()

	assert.False(t, tr.Processed("book-0"))
	assert.True(t, tr.MarkIfNew("book-0"))
	assert.False(t, tr.MarkIfNew("book-0"))
	assert.True(t, tr.Processed("book-0"))
	assert.Equal(t, 1, tr.Count())
}

func TestChunkTracker_ConcurrentClaims(t *testing.T) {
	tr := NewChunkTracker()

	// 50 goroutines race to claim the same 5 chunk IDs; exactly one claim
	// per ID may succeed.
	ids := []string{"c-0", "c-1", "c-2", "c-3", "c-4"}
	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				if tr.MarkIfNew(id) {
					atomic.AddInt64(&wins, 1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(len(ids)), wins)
	assert.Equal(t, len(ids), tr.Count())
}
