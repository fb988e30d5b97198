package generate

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// cardDraft is the raw card-shaped object expected in a completion response.
// Fields irrelevant to a tier are simply absent; the tier generator decides
// which ones it reads.
type cardDraft struct {
	Title        string   `json:"title"`
	Front        string   `json:"front"`
	Back         string   `json:"back"`
	Scenario     string   `json:"scenario"`
	Question     string   `json:"question"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
	Difficulty   string   `json:"difficulty"`
	Tags         []string `json:"tags"`
}

// parseTierResponse extracts a JSON array of card drafts from completion
// output. Tolerates markdown code fences and prose around the array. An empty
// array parses successfully to zero drafts; anything unparseable is an error
// the caller downgrades to a soft failure.
func parseTierResponse(raw string) ([]cardDraft, error) {
	cleaned := cleanJSONArray(raw)
	if cleaned == "" {
		return nil, eris.New("generate: no JSON array in response")
	}

	var drafts []cardDraft
	if err := json.Unmarshal([]byte(cleaned), &drafts); err != nil {
		return nil, eris.Wrap(err, "generate: parse response array")
	}
	return drafts, nil
}

// cleanJSONArray attempts to extract a JSON array from text that may contain
// markdown code fences or other wrapping.
func cleanJSONArray(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first [ and last ].
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}
