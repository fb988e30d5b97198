package pipeline

import (
	"fmt"

	"github.com/mindscroll/cardgen/internal/model"
)

// chunkGroup is a run of consecutive chunks that share a chapter. Quiz and
// synthesis generation operate on these groups rather than raw chunks.
type chunkGroup struct {
	Label  string
	Chunks []model.Chunk
}

// groupChunks partitions chunks (in document order) into chapter groups. When
// chunks carry chapter labels, a group is a maximal run of consecutive chunks
// with the same label. Unlabeled documents fall back to fixed windows of
// window chunks each, with synthetic labels so provenance still resolves.
// Group labels are unique across the result: downstream tiers and provenance
// key cards by label, so a label that recurs non-consecutively (a per-chapter
// summary section, say) gets a numbered suffix on its later runs.
func groupChunks(chunks []model.Chunk, window int) []chunkGroup {
	if len(chunks) == 0 {
		return nil
	}
	if window <= 0 {
		window = 8
	}

	labeled := false
	for i := range chunks {
		if chunks[i].ChapterLabel != "" {
			labeled = true
			break
		}
	}

	var groups []chunkGroup
	if labeled {
		cur := chunkGroup{Label: chunks[0].ChapterLabel}
		for _, c := range chunks {
			if c.ChapterLabel != cur.Label && len(cur.Chunks) > 0 {
				groups = append(groups, cur)
				cur = chunkGroup{Label: c.ChapterLabel}
			}
			cur.Chunks = append(cur.Chunks, c)
		}
		groups = append(groups, cur)
		counts := make(map[string]int, len(groups))
		for i := range groups {
			label := groups[i].Label
			if label == "" {
				label = fmt.Sprintf("section-%d", i+1)
			}
			counts[label]++
			if n := counts[label]; n > 1 {
				label = fmt.Sprintf("%s (%d)", label, n)
			}
			groups[i].Label = label
		}
		return groups
	}

	for start := 0; start < len(chunks); start += window {
		end := start + window
		if end > len(chunks) {
			end = len(chunks)
		}
		groups = append(groups, chunkGroup{
			Label:  fmt.Sprintf("section-%d", len(groups)+1),
			Chunks: chunks[start:end],
		})
	}
	return groups
}

// buildChapters assembles per-chapter provenance records from the chunk
// groups and the finished cards. A card belongs to the chapter named by its
// ChapterContext.
func buildChapters(groups []chunkGroup, cards []model.Card) []model.Chapter {
	byLabel := make(map[string]int, len(groups))
	chapters := make([]model.Chapter, 0, len(groups))
	for _, g := range groups {
		byLabel[g.Label] = len(chapters)
		ch := model.Chapter{Label: g.Label}
		seen := make(map[string]struct{}, len(g.Chunks))
		for _, c := range g.Chunks {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			ch.ChunkIDs = append(ch.ChunkIDs, c.ID)
		}
		chapters = append(chapters, ch)
	}
	for _, card := range cards {
		idx, ok := byLabel[card.ChapterContext]
		if !ok {
			continue
		}
		chapters[idx].CardIDs = append(chapters[idx].CardIDs, card.ID)
	}
	return chapters
}
