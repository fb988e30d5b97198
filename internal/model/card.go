package model

// CardType identifies the generation tier a card belongs to.
type CardType string

const (
	CardTypeFlashcard   CardType = "FLASHCARD"
	CardTypeApplication CardType = "APPLICATION"
	CardTypeQuiz        CardType = "QUIZ"
	CardTypeSynthesis   CardType = "SYNTHESIS"
)

// AllCardTypes returns the tiers in generation order.
func AllCardTypes() []CardType {
	return []CardType{
		CardTypeFlashcard,
		CardTypeApplication,
		CardTypeQuiz,
		CardTypeSynthesis,
	}
}

// FlashcardPayload holds front/back text. SYNTHESIS cards share this shape.
type FlashcardPayload struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// ApplicationPayload holds an applied-scenario prompt.
type ApplicationPayload struct {
	Scenario string `json:"scenario"`
}

// QuizPayload holds one multiple-choice question.
type QuizPayload struct {
	Question     string   `json:"question"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

// Card is a single generated learning unit. Exactly one payload pointer is
// set, matching Type (SYNTHESIS uses Flashcard's front/back shape). Cards are
// never mutated after creation; a reprocessing run replaces the whole set.
type Card struct {
	ID             string              `json:"id"`
	Type           CardType            `json:"type"`
	Title          string              `json:"title"`
	Difficulty     string              `json:"difficulty,omitempty"`
	Tags           []string            `json:"tags,omitempty"`
	Flashcard      *FlashcardPayload   `json:"flashcard,omitempty"`
	Application    *ApplicationPayload `json:"application,omitempty"`
	Quiz           *QuizPayload        `json:"quiz,omitempty"`
	SourceChunks   []string            `json:"source_chunks,omitempty"`
	SourceCards    []string            `json:"source_cards,omitempty"`
	ChapterContext string              `json:"chapter_context,omitempty"`
}
