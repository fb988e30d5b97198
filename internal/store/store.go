package store

import (
	"context"
	"time"

	"github.com/mindscroll/cardgen/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	ContentID string          `json:"content_id,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the card pipeline: the chunk
// store, the time-boxed result cache, and run/phase records.
type Store interface {
	// Documents (chunk store; written once by import, read-only afterward)
	PutDocument(ctx context.Context, meta model.BookMeta, chunks []model.Chunk) error
	GetBookMeta(ctx context.Context, contentID string) (*model.BookMeta, error)
	GetChunks(ctx context.Context, contentID string) ([]model.Chunk, error)

	// Result cache. GetDeck returns nil for absent or expired entries.
	// PutDeck replaces any previous entry atomically.
	GetDeck(ctx context.Context, contentID string) (*model.Deck, error)
	PutDeck(ctx context.Context, deck *model.Deck, ttl time.Duration) error
	DeleteDeck(ctx context.Context, contentID string) error
	DeleteExpiredDecks(ctx context.Context) (int, error)

	// Runs
	CreateRun(ctx context.Context, contentID string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
