package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/mindscroll/cardgen/internal/model"
	"github.com/mindscroll/cardgen/internal/store"
	"github.com/mindscroll/cardgen/pkg/anthropic"
)

// Canned completion payloads that satisfy the validation gate thresholds.
const (
	flashcardJSON = `[{"title": "Compound interest basics", "front": "What force does compounding exert on long-term savings?", "back": "Compounding lets returns earn further returns over time, so small consistent contributions grow geometrically rather than linearly, which is why starting early matters more than the exact rate.", "difficulty": "easy", "tags": ["finance"]}]`

	applicationJSON = `[{"title": "Planning a retirement fund", "scenario": "You are 25 and can save $300 a month; decide how to allocate it given compounding and fees.", "difficulty": "medium", "tags": ["finance"]}]`

	quizJSON = `[{"title": "Compounding check", "question": "Which factor most increases long-term compound growth?", "choices": ["Starting early", "Timing the market", "Picking single stocks", "Holding cash"], "correct_index": 0, "explanation": "Time in the market dominates because growth compounds on prior gains.", "difficulty": "medium", "tags": ["finance"]}]`

	synthesisJSON = `[{"title": "Chapter synthesis theme", "front": "How do the chapter ideas combine into one saving strategy?", "back": "Consistent early contributions, low fees, and broad diversification work together: compounding amplifies whatever habit you establish, so structural choices matter far more than tactical ones over decades.", "difficulty": "hard", "tags": ["finance"]}]`
)

// fakeAI scripts completion responses by inspecting the tier prompt. failOn
// makes calls whose prompt contains the substring return an error; garbage
// makes every call return unparseable output.
type fakeAI struct {
	mu      sync.Mutex
	calls   int
	byTier  map[string]int
	failOn  string
	garbage bool
}

func newFakeAI() *fakeAI {
	return &fakeAI{byTier: map[string]int{}}
}

func (f *fakeAI) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[0].Content
	}

	tier := "flashcard"
	body := flashcardJSON
	switch {
	case strings.Contains(prompt, "application card"):
		tier, body = "application", applicationJSON
	case strings.Contains(prompt, "multiple-choice quiz"):
		tier, body = "quiz", quizJSON
	case strings.Contains(prompt, "synthesis card"):
		tier, body = "synthesis", synthesisJSON
	}

	f.mu.Lock()
	f.calls++
	f.byTier[tier]++
	f.mu.Unlock()

	if f.failOn != "" && strings.Contains(prompt, f.failOn) {
		return nil, eris.New("api unavailable")
	}
	if f.garbage {
		body = "I cannot produce cards for this excerpt."
	}

	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: body}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

func (f *fakeAI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAI) tierCalls(tier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byTier[tier]
}

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	mu      sync.Mutex
	meta    map[string]model.BookMeta
	chunks  map[string][]model.Chunk
	decks   map[string]*model.Deck
	expiry  map[string]time.Time
	runs    map[string]*model.Run
	order   []string
	phases  map[string][]model.RunPhase
	results map[string]*model.PhaseResult
}

func newMemStore() *memStore {
	return &memStore{
		meta:    map[string]model.BookMeta{},
		chunks:  map[string][]model.Chunk{},
		decks:   map[string]*model.Deck{},
		expiry:  map[string]time.Time{},
		runs:    map[string]*model.Run{},
		phases:  map[string][]model.RunPhase{},
		results: map[string]*model.PhaseResult{},
	}
}

var _ store.Store = (*memStore)(nil)

func (m *memStore) PutDocument(_ context.Context, meta model.BookMeta, chunks []model.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[meta.ContentID] = meta
	m.chunks[meta.ContentID] = chunks
	return nil
}

func (m *memStore) GetBookMeta(_ context.Context, contentID string) (*model.BookMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.meta[contentID]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

func (m *memStore) GetChunks(_ context.Context, contentID string) ([]model.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks[contentID], nil
}

func (m *memStore) GetDeck(_ context.Context, contentID string) (*model.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deck, ok := m.decks[contentID]
	if !ok || time.Now().After(m.expiry[contentID]) {
		return nil, nil
	}
	return deck, nil
}

func (m *memStore) PutDeck(_ context.Context, deck *model.Deck, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decks[deck.ContentID] = deck
	m.expiry[deck.ContentID] = time.Now().Add(ttl)
	return nil
}

func (m *memStore) DeleteDeck(_ context.Context, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.decks, contentID)
	delete(m.expiry, contentID)
	return nil
}

func (m *memStore) DeleteExpiredDecks(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, exp := range m.expiry {
		if time.Now().After(exp) {
			delete(m.decks, id)
			delete(m.expiry, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateRun(_ context.Context, contentID string) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := &model.Run{
		ID:        uuid.New().String(),
		ContentID: contentID,
		Status:    model.RunStatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	return run, nil
}

func (m *memStore) UpdateRunStatus(_ context.Context, runID string, status model.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return eris.Errorf("run %s not found", runID)
	}
	run.Status = status
	run.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) UpdateRunResult(_ context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return eris.Errorf("run %s not found", runID)
	}
	run.Status = status
	run.Result = result
	run.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, eris.Errorf("run %s not found", runID)
	}
	return run, nil
}

func (m *memStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Run
	for _, id := range m.order {
		r := m.runs[id]
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.ContentID != "" && r.ContentID != filter.ContentID {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) CreatePhase(_ context.Context, runID, name string) (*model.RunPhase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	phase := model.RunPhase{
		ID:        uuid.New().String(),
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: time.Now(),
	}
	m.phases[runID] = append(m.phases[runID], phase)
	return &phase, nil
}

func (m *memStore) CompletePhase(_ context.Context, phaseID string, result *model.PhaseResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[phaseID] = result
	return nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func (m *memStore) lastRun() *model.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) == 0 {
		return nil
	}
	return m.runs[m.order[len(m.order)-1]]
}

func (m *memStore) deck(contentID string) *model.Deck {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decks[contentID]
}
