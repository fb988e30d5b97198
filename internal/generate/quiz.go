package generate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mindscroll/cardgen/internal/model"
	"github.com/mindscroll/cardgen/pkg/anthropic"
)

// Quizzes generates QUIZ cards for one chapter group from its flashcards and
// applications. Drafts without at least two choices or with an out-of-range
// correct index are dropped at parse time; the validation gate would reject
// them anyway.
func (g *Generator) Quizzes(ctx context.Context, meta model.BookMeta, chapterLabel string, flashcards, applications []model.Card) ([]model.Card, anthropic.TokenUsage, error) {
	if len(flashcards) == 0 && len(applications) == 0 {
		return nil, anthropic.TokenUsage{}, nil
	}

	prompt := fmt.Sprintf(quizPrompt,
		meta.Title, metaAuthor(meta), metaCategory(meta),
		chapterDisplay(chapterLabel),
		g.settings.QuizzesPerChapter,
		renderFlashcards(flashcards),
		renderApplications(applications),
	)

	raw, usage, err := g.complete(ctx, g.settings.ReasoningModel, prompt)
	if err != nil {
		return nil, usage, err
	}

	sources := append(append([]model.Card{}, flashcards...), applications...)
	sourceCards := cardIDs(sources)
	sourceChunks := unionChunks(sources)

	var cards []model.Card
	for _, d := range parseDrafts(raw, model.CardTypeQuiz) {
		if d.Question == "" || len(d.Choices) < 2 {
			continue
		}
		if d.CorrectIndex < 0 || d.CorrectIndex >= len(d.Choices) {
			continue
		}
		cards = append(cards, model.Card{
			ID:    uuid.New().String(),
			Type:  model.CardTypeQuiz,
			Title: d.Title,
			Quiz: &model.QuizPayload{
				Question:     d.Question,
				Choices:      d.Choices,
				CorrectIndex: d.CorrectIndex,
				Explanation:  d.Explanation,
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

func chapterDisplay(label string) string {
	if label == "" {
		return "(untitled section)"
	}
	return label
}
