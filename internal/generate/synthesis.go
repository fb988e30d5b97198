package generate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mindscroll/cardgen/internal/model"
	"github.com/mindscroll/cardgen/pkg/anthropic"
)

// Synthesis generates SYNTHESIS cards for one chapter (or fixed chunk window
// when the document has no chapter structure) from every card generated for
// it. Synthesis cards reuse the front/back payload shape.
func (g *Generator) Synthesis(ctx context.Context, meta model.BookMeta, chapterLabel string, chapterCards []model.Card) ([]model.Card, anthropic.TokenUsage, error) {
	if len(chapterCards) == 0 {
		return nil, anthropic.TokenUsage{}, nil
	}

	prompt := fmt.Sprintf(synthesisPrompt,
		meta.Title, metaAuthor(meta), metaCategory(meta),
		chapterDisplay(chapterLabel),
		g.settings.SynthesesPerChapter,
		renderAllCards(chapterCards),
	)

	raw, usage, err := g.complete(ctx, g.settings.ReasoningModel, prompt)
	if err != nil {
		return nil, usage, err
	}

	sourceCards := cardIDs(chapterCards)
	sourceChunks := unionChunks(chapterCards)

	var cards []model.Card
	for _, d := range parseDrafts(raw, model.CardTypeSynthesis) {
		if d.Front == "" && d.Back == "" {
			continue
		}
		cards = append(cards, model.Card{
			ID:    uuid.New().String(),
			Type:  model.CardTypeSynthesis,
			Title: d.Title,
			Flashcard: &model.FlashcardPayload{
				Front: d.Front,
				Back:  d.Back,
			},
			Difficulty:     d.Difficulty,
			Tags:           d.Tags,
			SourceChunks:   sourceChunks,
			SourceCards:    sourceCards,
			ChapterContext: chapterLabel,
		})
	}
	return cards, usage, nil
}
