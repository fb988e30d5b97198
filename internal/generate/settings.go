package generate

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Settings tunes per-tier generation: which model each tier uses and how many
// cards each call asks for. Volume targets are guidance passed into the
// prompt, not hard limits on the parsed response.
type Settings struct {
	FlashcardModel string  `yaml:"flashcard_model"`
	ReasoningModel string  `yaml:"reasoning_model"`
	MaxTokens      int64   `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`

	FlashcardsPerChunk   int `yaml:"flashcards_per_chunk"`
	ApplicationsPerGroup int `yaml:"applications_per_group"`
	QuizzesPerChapter    int `yaml:"quizzes_per_chapter"`
	SynthesesPerChapter  int `yaml:"syntheses_per_chapter"`
}

// DefaultSettings returns the production defaults: the cheap model for
// flashcards and applications, the stronger model for quizzes and synthesis.
func DefaultSettings() Settings {
	return Settings{
		FlashcardModel:       "claude-haiku-4-5-20251001",
		ReasoningModel:       "claude-sonnet-4-5-20250929",
		MaxTokens:            2048,
		Temperature:          0.7,
		FlashcardsPerChunk:   2,
		ApplicationsPerGroup: 1,
		QuizzesPerChapter:    2,
		SynthesesPerChapter:  1,
	}
}

// LoadSettings reads settings from a YAML file, filling omitted fields from
// the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return s, eris.Wrapf(err, "generate: read settings %s", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, eris.Wrap(err, "generate: parse settings")
	}

	d := DefaultSettings()
	if s.FlashcardModel == "" {
		s.FlashcardModel = d.FlashcardModel
	}
	if s.ReasoningModel == "" {
		s.ReasoningModel = d.ReasoningModel
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = d.MaxTokens
	}
	if s.FlashcardsPerChunk <= 0 {
		s.FlashcardsPerChunk = d.FlashcardsPerChunk
	}
	if s.ApplicationsPerGroup <= 0 {
		s.ApplicationsPerGroup = d.ApplicationsPerGroup
	}
	if s.QuizzesPerChapter <= 0 {
		s.QuizzesPerChapter = d.QuizzesPerChapter
	}
	if s.SynthesesPerChapter <= 0 {
		s.SynthesesPerChapter = d.SynthesesPerChapter
	}
	return s, nil
}
