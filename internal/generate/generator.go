// Package generate holds the four tier generators. Each tier builds a prompt
// from book metadata plus its inputs, calls the completion API, and parses a
// JSON array of card drafts into typed cards with provenance attached.
// Malformed completion output is a soft failure: the tier contributes zero
// cards and the pipeline continues.
package generate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mindscroll/cardgen/internal/model"
	"github.com/mindscroll/cardgen/internal/resilience"
	"github.com/mindscroll/cardgen/pkg/anthropic"
)

// Generator runs tier-specific card generation against the completion API.
type Generator struct {
	ai       anthropic.Client
	settings Settings
	retry    resilience.RetryConfig
}

// New creates a Generator.
func New(ai anthropic.Client, settings Settings) *Generator {
	return &Generator{
		ai:       ai,
		settings: settings,
		retry:    resilience.DefaultRetryConfig(),
	}
}

// complete sends one prompt and returns the response text. Transient API
// errors are retried; the returned error is non-nil only when all attempts
// failed or the context was canceled.
func (g *Generator) complete(ctx context.Context, modelID, prompt string) (string, anthropic.TokenUsage, error) {
	if err := ctx.Err(); err != nil {
		return "", anthropic.TokenUsage{}, err
	}
	temp := g.settings.Temperature

	resp, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return g.ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       modelID,
			MaxTokens:   g.settings.MaxTokens,
			System:      systemPrompt,
			Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
			Temperature: &temp,
		})
	})
	if err != nil {
		return "", anthropic.TokenUsage{}, err
	}
	return resp.Text(), resp.Usage, nil
}

// parseDrafts downgrades parse failures to zero drafts, logging the event so
// the orchestrator's soft-failure count stays observable.
func parseDrafts(raw string, tier model.CardType) []cardDraft {
	drafts, err := parseTierResponse(raw)
	if err != nil {
		zap.L().Warn("generate: unparseable completion output",
			zap.String("tier", string(tier)),
			zap.Error(err),
		)
		return nil
	}
	return drafts
}

func metaAuthor(meta model.BookMeta) string {
	if meta.Author == "" {
		return "unknown author"
	}
	return meta.Author
}

func metaCategory(meta model.BookMeta) string {
	if meta.Category == "" {
		return "general"
	}
	return meta.Category
}

// renderFlashcards serializes flashcards for inclusion in a downstream tier's
// prompt.
func renderFlashcards(cards []model.Card) string {
	var b strings.Builder
	for i, c := range cards {
		if c.Flashcard == nil {
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n   Q: %s\n   A: %s\n", i+1, c.Title, c.Flashcard.Front, c.Flashcard.Back)
	}
	return b.String()
}

// renderApplications serializes application scenarios for a downstream prompt.
func renderApplications(cards []model.Card) string {
	if len(cards) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, c := range cards {
		if c.Application == nil {
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, c.Title, c.Application.Scenario)
	}
	return b.String()
}

// renderAllCards serializes a mixed card set for the synthesis prompt.
func renderAllCards(cards []model.Card) string {
	var b strings.Builder
	for i, c := range cards {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, c.Type, c.Title)
		switch {
		case c.Flashcard != nil:
			fmt.Fprintf(&b, "   Q: %s\n   A: %s\n", c.Flashcard.Front, c.Flashcard.Back)
		case c.Application != nil:
			fmt.Fprintf(&b, "   %s\n", c.Application.Scenario)
		case c.Quiz != nil:
			fmt.Fprintf(&b, "   %s\n", c.Quiz.Question)
		}
	}
	return b.String()
}

func cardIDs(cards []model.Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

// unionChunks collects the distinct source chunk IDs across cards, preserving
// first-seen order.
func unionChunks(cards []model.Card) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range cards {
		for _, id := range c.SourceChunks {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
