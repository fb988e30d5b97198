package model

import "time"

// RunStatus represents the current state of a processing run.
type RunStatus string

const (
	RunStatusQueued       RunStatus = "queued"
	RunStatusFlashcards   RunStatus = "generating_flashcards"
	RunStatusApplications RunStatus = "generating_applications"
	RunStatusQuizzes      RunStatus = "generating_quizzes"
	RunStatusSynthesis    RunStatus = "generating_synthesis"
	RunStatusValidating   RunStatus = "validating"
	RunStatusCached       RunStatus = "cached"
	RunStatusFailed       RunStatus = "failed"
)

// Run represents one pipeline execution against one document.
type Run struct {
	ID        string     `json:"id"`
	ContentID string     `json:"content_id"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	CardCount    int              `json:"card_count"`
	TierCounts   map[CardType]int `json:"tier_counts,omitempty"`
	ChunkCount   int              `json:"chunk_count"`
	SoftFailures int              `json:"soft_failures"`
	CacheHit     bool             `json:"cache_hit"`
	TotalTokens  int              `json:"total_tokens"`
	TotalCost    float64          `json:"total_cost"`
	Phases       []PhaseResult    `json:"phases,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// RunPhase tracks a single pipeline phase within a run.
type RunPhase struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// PhaseStatus values for RunPhase / PhaseResult.
const (
	PhaseStatusRunning  = "running"
	PhaseStatusComplete = "complete"
	PhaseStatusFailed   = "failed"
)

// PhaseResult summarizes a finished phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   string         `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chapter records the provenance grouping for one chapter (or fixed window
// when the document has no chapter labels): the chunks it covers and the
// cards generated from them.
type Chapter struct {
	Label    string   `json:"label"`
	ChunkIDs []string `json:"chunk_ids"`
	CardIDs  []string `json:"card_ids"`
}

// Deck is the cached result of a successful run: the full card set plus
// chapter provenance. It is written all-or-nothing after validation.
type Deck struct {
	ContentID   string    `json:"content_id"`
	Cards       []Card    `json:"cards"`
	Chapters    []Chapter `json:"chapters,omitempty"`
	CardCount   int       `json:"card_count"`
	GeneratedAt time.Time `json:"generated_at"`
}
