package generate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mindscroll/cardgen/internal/model"
	"github.com/mindscroll/cardgen/pkg/anthropic"
)

// Applications generates APPLICATION cards from a window of flashcards
// (typically 2-3 from the same chunk or chapter). Provenance records the
// flashcard IDs and the union of their source chunks.
func (g *Generator) Applications(ctx context.Context, meta model.BookMeta, flashcards []model.Card) ([]model.Card, anthropic.TokenUsage, error) {
	if len(flashcards) == 0 {
		return nil, anthropic.TokenUsage{}, nil
	}

	prompt := fmt.Sprintf(applicationPrompt,
		meta.Title, metaAuthor(meta), metaCategory(meta),
		g.settings.ApplicationsPerGroup,
		renderFlashcards(flashcards),
	)

	raw, usage, err := g.complete(ctx, g.settings.FlashcardModel, prompt)
	if err != nil {
		return nil, usage, err
	}

	sourceCards := cardIDs(flashcards)
	sourceChunks := unionChunks(flashcards)
	chapter := flashcards[0].ChapterContext

	var cards []model.Card
	for _, d := range parseDrafts(raw, model.CardTypeApplication) {
		if d.Scenario == "" {
			continue
		}
		cards = append(cards, model.Card{
			ID:    uuid.New().String(),
			Type:  model.CardTypeApplication,
			Title: d.Title,
			Application: &model.ApplicationPayload{
				Scenario: d.Scenario,
			},
			Difficulty:     d.Difficulty,
			Tags:           d.Tags,
			SourceChunks:   sourceChunks,
			SourceCards:    sourceCards,
			ChapterContext: chapter,
		})
	}
	return cards, usage, nil
}
