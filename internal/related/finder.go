// Package related scores chunks of the same document against a target chunk
// and returns the top-k most relevant ones as optional generation context.
package related

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/mindscroll/cardgen/internal/model"
	"github.com/mindscroll/cardgen/pkg/embeddings"
)

// Finder ranks candidate chunks by relevance to a target chunk. With a
// prepared embedding index it uses cosine similarity; otherwise it falls back
// to lexical term overlap. Output is advisory context only — an empty result
// never blocks generation.
type Finder struct {
	embedder embeddings.Client // may be nil
	vectors  map[string][]float64
}

// NewFinder creates a Finder. embedder may be nil, in which case relevance is
// always computed lexically.
func NewFinder(embedder embeddings.Client) *Finder {
	return &Finder{embedder: embedder}
}

// Prepare embeds all chunk texts once per document. Embedding failure is not
// fatal: the finder logs it and degrades to lexical scoring.
func (f *Finder) Prepare(ctx context.Context, chunks []model.Chunk) {
	f.vectors = nil
	if f.embedder == nil || len(chunks) == 0 {
		return
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vecs, err := f.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		zap.L().Warn("related: embedding failed, falling back to lexical scoring",
			zap.Error(err),
		)
		return
	}

	f.vectors = make(map[string][]float64, len(chunks))
	for i, c := range chunks {
		f.vectors[c.ID] = vecs[i]
	}
}

// FindRelated returns up to k chunks from candidates most relevant to target,
// ordered by descending relevance. The target itself is excluded. Ties break
// by original chunk ordinal (earlier chunk wins) so results are deterministic.
// Fewer than k candidates is not an error.
func (f *Finder) FindRelated(target model.Chunk, candidates []model.Chunk, k int) []model.Chunk {
	if k <= 0 {
		return nil
	}

	type scored struct {
		chunk model.Chunk
		score float64
	}

	var ranked []scored
	for _, c := range candidates {
		if c.ID == target.ID {
			continue
		}
		ranked = append(ranked, scored{chunk: c, score: f.score(target, c)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].chunk.Ordinal < ranked[j].chunk.Ordinal
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}

	out := make([]model.Chunk, len(ranked))
	for i, s := range ranked {
		out[i] = s.chunk
	}
	return out
}

func (f *Finder) score(a, b model.Chunk) float64 {
	if f.vectors != nil {
		va, okA := f.vectors[a.ID]
		vb, okB := f.vectors[b.ID]
		if okA && okB {
			return cosine(va, vb)
		}
	}
	return lexicalOverlap(a.Text, b.Text)
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
