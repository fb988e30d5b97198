package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mindscroll/cardgen/internal/model"
	"github.com/mindscroll/cardgen/pkg/anthropic"
)

// Flashcards generates FLASHCARD cards from one chunk plus optional related
// context. An empty related set is fine; generation proceeds from the main
// chunk alone.
func (g *Generator) Flashcards(ctx context.Context, meta model.BookMeta, main model.Chunk, related []model.Chunk) ([]model.Card, anthropic.TokenUsage, error) {
	contextBlock := ""
	if len(related) > 0 {
		var b strings.Builder
		for i, c := range related {
			fmt.Fprintf(&b, "--- Passage %d ---\n%s\n", i+1, c.Text)
		}
		contextBlock = fmt.Sprintf(relatedContextBlock, b.String())
	}

	prompt := fmt.Sprintf(flashcardPrompt,
		meta.Title, metaAuthor(meta), metaCategory(meta),
		g.settings.FlashcardsPerChunk,
		main.Text,
		contextBlock,
	)

	raw, usage, err := g.complete(ctx, g.settings.FlashcardModel, prompt)
	if err != nil {
		return nil, usage, err
	}

	sourceChunks := []string{main.ID}
	for _, c := range related {
		sourceChunks = append(sourceChunks, c.ID)
	}

	var cards []model.Card
	for _, d := range parseDrafts(raw, model.CardTypeFlashcard) {
		if d.Front == "" && d.Back == "" {
			continue
		}
		cards = append(cards, model.Card{
			ID:    uuid.New().String(),
			Type:  model.CardTypeFlashcard,
			Title: d.Title,
			Flashcard: &model.FlashcardPayload{
				Front: d.Front,
				Back:  d.Back,
			},
			Difficulty:     d.Difficulty,
			Tags:           d.Tags,
			SourceChunks:   sourceChunks,
			ChapterContext: main.ChapterLabel,
		})
	}
	return cards, usage, nil
}
