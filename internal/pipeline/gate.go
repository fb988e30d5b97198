package pipeline

import (
	"fmt"
	"unicode/utf8"

	"github.com/mindscroll/cardgen/internal/model"
)

// Validation failure reasons.
const (
	ReasonEmptyResult      = "empty_result"
	ReasonInsufficient     = "insufficient_cards"
	ReasonTooManyInvalid   = "too_many_invalid_cards"
)

// ValidationError is returned when a generated deck fails the quality gate.
// Nothing is cached when this is returned.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("deck validation failed (%s): %s", e.Reason, e.Detail)
}

// GateConfig holds the quality-gate thresholds.
type GateConfig struct {
	MinCards           int
	MaxInvalidFraction float64
}

// DefaultGateConfig returns the standard thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{MinCards: 5, MaxInvalidFraction: 0.3}
}

// ValidateDeck runs the quality gate over a finished deck. A nil return means
// the deck may be cached and returned to callers.
func ValidateDeck(cards []model.Card, cfg GateConfig) error {
	if cfg.MinCards == 0 {
		cfg.MinCards = 5
	}
	if cfg.MaxInvalidFraction == 0 {
		cfg.MaxInvalidFraction = 0.3
	}

	if len(cards) == 0 {
		return &ValidationError{Reason: ReasonEmptyResult, Detail: "no cards were generated"}
	}
	if len(cards) < cfg.MinCards {
		return &ValidationError{
			Reason: ReasonInsufficient,
			Detail: fmt.Sprintf("generated %d cards, need at least %d", len(cards), cfg.MinCards),
		}
	}

	invalid := 0
	for i := range cards {
		if !cardValid(&cards[i]) {
			invalid++
		}
	}
	frac := float64(invalid) / float64(len(cards))
	if frac > cfg.MaxInvalidFraction {
		return &ValidationError{
			Reason: ReasonTooManyInvalid,
			Detail: fmt.Sprintf("%d of %d cards failed structural checks (%.0f%% > %.0f%% allowed)",
				invalid, len(cards), frac*100, cfg.MaxInvalidFraction*100),
		}
	}
	return nil
}

// cardValid applies the per-type structural checks. All length thresholds are
// in runes so multibyte content is not penalized.
func cardValid(c *model.Card) bool {
	if runeLen(c.Title) < 10 {
		return false
	}
	switch c.Type {
	case model.CardTypeFlashcard, model.CardTypeSynthesis:
		if c.Flashcard == nil {
			return false
		}
		return runeLen(c.Flashcard.Front) >= 20 && runeLen(c.Flashcard.Back) >= 100
	case model.CardTypeApplication:
		if c.Application == nil {
			return false
		}
		return runeLen(c.Application.Scenario) >= 20
	case model.CardTypeQuiz:
		q := c.Quiz
		if q == nil {
			return false
		}
		if runeLen(q.Question) < 20 || len(q.Choices) < 2 {
			return false
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Choices) {
			return false
		}
		return runeLen(q.Explanation) >= 30
	default:
		return false
	}
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
