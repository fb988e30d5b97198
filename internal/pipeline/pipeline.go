// Package pipeline orchestrates card generation for one document: cache
// check, four dependent generation tiers, validation gate, and all-or-nothing
// deck commit. Individual tier calls may soft-fail (logged, zero cards); the
// run only fails outright on cancellation, storage errors, or a validation
// gate rejection.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mindscroll/cardgen/internal/cost"
	"github.com/mindscroll/cardgen/internal/generate"
	"github.com/mindscroll/cardgen/internal/model"
	"github.com/mindscroll/cardgen/internal/related"
	"github.com/mindscroll/cardgen/internal/store"
	"github.com/mindscroll/cardgen/pkg/anthropic"
)

// Fatal precondition errors. These mean the document cannot be processed at
// all, as opposed to soft failures inside a tier.
var (
	ErrNoChunks   = eris.New("pipeline: document has no chunks")
	ErrNoBookMeta = eris.New("pipeline: document has no book metadata")
)

// Options tunes orchestration behavior.
type Options struct {
	MaxConcurrent   int
	RelatedChunks   int
	FlashcardWindow int
	SynthesisWindow int
	Gate            GateConfig
	CacheTTL        time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 4
	}
	if o.RelatedChunks <= 0 {
		o.RelatedChunks = 3
	}
	if o.FlashcardWindow <= 0 {
		o.FlashcardWindow = 3
	}
	if o.SynthesisWindow <= 0 {
		o.SynthesisWindow = 8
	}
	if o.Gate.MinCards == 0 {
		o.Gate.MinCards = 5
	}
	if o.Gate.MaxInvalidFraction == 0 {
		o.Gate.MaxInvalidFraction = 0.3
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 7 * 24 * time.Hour
	}
}

// Request identifies one pipeline invocation.
type Request struct {
	ContentID string
	Force     bool // regenerate even when a cached deck exists
}

// Pipeline wires the store, the tier generators, and the related-chunk finder
// into the run state machine.
type Pipeline struct {
	store    store.Store
	gen      *generate.Generator
	finder   *related.Finder
	costs    *cost.Calculator
	settings generate.Settings
	opts     Options
}

// New creates a Pipeline. finder may be nil when related-chunk context is
// disabled entirely.
func New(st store.Store, gen *generate.Generator, finder *related.Finder, costs *cost.Calculator, settings generate.Settings, opts Options) *Pipeline {
	opts.applyDefaults()
	if costs == nil {
		costs = cost.NewCalculator(cost.DefaultRates())
	}
	return &Pipeline{
		store:    st,
		gen:      gen,
		finder:   finder,
		costs:    costs,
		settings: settings,
		opts:     opts,
	}
}

// runState accumulates mutable per-run bookkeeping shared across phases.
type runState struct {
	mu           sync.Mutex
	softFailures int
	flashUsage   anthropic.TokenUsage
	reasonUsage  anthropic.TokenUsage
	phases       []model.PhaseResult
}

func (s *runState) softFail() {
	s.mu.Lock()
	s.softFailures++
	s.mu.Unlock()
}

func (s *runState) addFlashUsage(u anthropic.TokenUsage) {
	s.mu.Lock()
	s.flashUsage.Add(u)
	s.mu.Unlock()
}

func (s *runState) addReasonUsage(u anthropic.TokenUsage) {
	s.mu.Lock()
	s.reasonUsage.Add(u)
	s.mu.Unlock()
}

// Run executes the full pipeline for one document and returns its result.
// With a fresh cached deck and Force unset it returns immediately without any
// completion calls.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.RunResult, error) {
	log := zap.L().With(zap.String("content_id", req.ContentID))

	if !req.Force {
		deck, err := p.store.GetDeck(ctx, req.ContentID)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: cache lookup")
		}
		if deck != nil {
			log.Info("pipeline: cache hit", zap.Int("cards", deck.CardCount))
			return p.recordCacheHit(ctx, req.ContentID, deck)
		}
	}

	chunks, err := p.store.GetChunks(ctx, req.ContentID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load chunks")
	}
	if len(chunks) == 0 {
		return nil, eris.Wrapf(ErrNoChunks, "content %s", req.ContentID)
	}
	meta, err := p.store.GetBookMeta(ctx, req.ContentID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load book meta")
	}
	if meta == nil {
		return nil, eris.Wrapf(ErrNoBookMeta, "content %s", req.ContentID)
	}

	if req.Force {
		if err := p.store.DeleteDeck(ctx, req.ContentID); err != nil {
			return nil, eris.Wrap(err, "pipeline: invalidate cached deck")
		}
	}

	run, err := p.store.CreateRun(ctx, req.ContentID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: run started", zap.Int("chunks", len(chunks)))

	if p.finder != nil {
		p.finder.Prepare(ctx, chunks)
	}

	groups := groupChunks(chunks, p.opts.SynthesisWindow)
	labelFor := make(map[string]string, len(chunks))
	for _, g := range groups {
		for _, c := range g.Chunks {
			labelFor[c.ID] = g.Label
		}
	}

	state := &runState{}

	flashcards, err := p.flashcardPhase(ctx, run.ID, log, *meta, chunks, labelFor, state)
	if err != nil {
		return p.failRun(ctx, run.ID, state, chunks, err)
	}
	applications, err := p.applicationPhase(ctx, run.ID, log, *meta, groups, flashcards, state)
	if err != nil {
		return p.failRun(ctx, run.ID, state, chunks, err)
	}
	quizzes, err := p.quizPhase(ctx, run.ID, log, *meta, groups, flashcards, applications, state)
	if err != nil {
		return p.failRun(ctx, run.ID, state, chunks, err)
	}
	syntheses, err := p.synthesisPhase(ctx, run.ID, log, *meta, groups, flashcards, applications, quizzes, state)
	if err != nil {
		return p.failRun(ctx, run.ID, state, chunks, err)
	}

	all := make([]model.Card, 0, len(flashcards)+len(applications)+len(quizzes)+len(syntheses))
	all = append(all, flashcards...)
	all = append(all, applications...)
	all = append(all, quizzes...)
	all = append(all, syntheses...)

	if err := p.validatePhase(ctx, run.ID, log, all, state); err != nil {
		if delErr := p.store.DeleteDeck(ctx, req.ContentID); delErr != nil {
			log.Warn("pipeline: failed to clear deck after validation failure", zap.Error(delErr))
		}
		return p.failRun(ctx, run.ID, state, chunks, err)
	}

	deck := &model.Deck{
		ContentID:   req.ContentID,
		Cards:       all,
		Chapters:    buildChapters(groups, all),
		CardCount:   len(all),
		GeneratedAt: time.Now().UTC(),
	}
	if err := p.store.PutDeck(ctx, deck, p.opts.CacheTTL); err != nil {
		return p.failRun(ctx, run.ID, state, chunks, eris.Wrap(err, "pipeline: cache deck"))
	}

	result := p.buildResult(state, all, len(chunks), false)
	if err := p.store.UpdateRunResult(ctx, run.ID, model.RunStatusCached, result); err != nil {
		return nil, eris.Wrap(err, "pipeline: record run result")
	}

	log.Info("pipeline: run complete",
		zap.Int("cards", result.CardCount),
		zap.Int("soft_failures", result.SoftFailures),
		zap.Int("total_tokens", result.TotalTokens),
		zap.Float64("total_cost", result.TotalCost),
	)
	return result, nil
}

// recordCacheHit writes a short-circuit run record for an idempotent hit.
func (p *Pipeline) recordCacheHit(ctx context.Context, contentID string, deck *model.Deck) (*model.RunResult, error) {
	run, err := p.store.CreateRun(ctx, contentID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	result := &model.RunResult{
		CardCount:  deck.CardCount,
		TierCounts: tierCounts(deck.Cards),
		ChunkCount: chunkCount(deck),
		CacheHit:   true,
	}
	if err := p.store.UpdateRunResult(ctx, run.ID, model.RunStatusCached, result); err != nil {
		return nil, eris.Wrap(err, "pipeline: record cache hit")
	}
	return result, nil
}

func (p *Pipeline) failRun(ctx context.Context, runID string, state *runState, chunks []model.Chunk, cause error) (*model.RunResult, error) {
	result := p.buildResult(state, nil, len(chunks), false)
	result.Error = cause.Error()
	// The failure record must land even when the run died by cancellation.
	ctx = context.WithoutCancel(ctx)
	if err := p.store.UpdateRunResult(ctx, runID, model.RunStatusFailed, result); err != nil {
		zap.L().Error("pipeline: failed to record run failure",
			zap.String("run_id", runID),
			zap.Error(err),
		)
	}
	return nil, cause
}

func (p *Pipeline) buildResult(state *runState, cards []model.Card, chunkCount int, cacheHit bool) *model.RunResult {
	state.mu.Lock()
	defer state.mu.Unlock()
	totalCost := p.costs.Claude(p.settings.FlashcardModel, int(state.flashUsage.InputTokens), int(state.flashUsage.OutputTokens)) +
		p.costs.Claude(p.settings.ReasoningModel, int(state.reasonUsage.InputTokens), int(state.reasonUsage.OutputTokens))
	return &model.RunResult{
		CardCount:    len(cards),
		TierCounts:   tierCounts(cards),
		ChunkCount:   chunkCount,
		SoftFailures: state.softFailures,
		CacheHit:     cacheHit,
		TotalTokens:  state.flashUsage.Total() + state.reasonUsage.Total(),
		TotalCost:    totalCost,
		Phases:       append([]model.PhaseResult(nil), state.phases...),
	}
}

// phase wraps one pipeline phase with run-status transitions and phase
// records. fn's metadata ends up on the completed phase row.
func (p *Pipeline) phase(ctx context.Context, runID string, status model.RunStatus, name string, state *runState, fn func(context.Context) (map[string]any, error)) error {
	if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
		return eris.Wrapf(err, "pipeline: enter phase %s", name)
	}
	rec, err := p.store.CreatePhase(ctx, runID, name)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create phase %s", name)
	}

	start := time.Now()
	metadata, runErr := fn(ctx)

	result := &model.PhaseResult{
		Name:     name,
		Status:   model.PhaseStatusComplete,
		Duration: time.Since(start).Milliseconds(),
		Metadata: metadata,
	}
	if runErr != nil {
		result.Status = model.PhaseStatusFailed
		result.Error = runErr.Error()
	}
	if err := p.store.CompletePhase(ctx, rec.ID, result); err != nil {
		zap.L().Warn("pipeline: failed to record phase completion",
			zap.String("phase", name),
			zap.Error(err),
		)
	}

	state.mu.Lock()
	state.phases = append(state.phases, *result)
	state.mu.Unlock()

	return runErr
}

// flashcardPhase fans out over chunks with bounded concurrency. Each chunk is
// claimed through the tracker before dispatch so duplicate IDs in the input
// produce exactly one generation call. Results merge back in document order.
func (p *Pipeline) flashcardPhase(ctx context.Context, runID string, log *zap.Logger, meta model.BookMeta, chunks []model.Chunk, labelFor map[string]string, state *runState) ([]model.Card, error) {
	results := make([][]model.Card, len(chunks))

	err := p.phase(ctx, runID, model.RunStatusFlashcards, "flashcards", state, func(ctx context.Context) (map[string]any, error) {
		tracker := NewChunkTracker()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.opts.MaxConcurrent)

		for i := range chunks {
			chunk := chunks[i]
			if !tracker.MarkIfNew(chunk.ID) {
				log.Debug("pipeline: duplicate chunk skipped", zap.String("chunk_id", chunk.ID))
				continue
			}
			idx := i
			g.Go(func() error {
				var rel []model.Chunk
				if p.finder != nil {
					rel = p.finder.FindRelated(chunk, chunks, p.opts.RelatedChunks)
				}
				cards, usage, err := p.gen.Flashcards(gctx, meta, chunk, rel)
				state.addFlashUsage(usage)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					log.Warn("pipeline: flashcard generation failed for chunk",
						zap.String("chunk_id", chunk.ID),
						zap.Error(err),
					)
					state.softFail()
					return nil
				}
				for j := range cards {
					cards[j].ChapterContext = labelFor[chunk.ID]
				}
				results[idx] = cards
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, eris.Wrap(err, "flashcard generation aborted")
		}

		n := 0
		for _, r := range results {
			n += len(r)
		}
		return map[string]any{"chunks": tracker.Count(), "cards": n}, nil
	})
	if err != nil {
		return nil, err
	}

	var cards []model.Card
	for _, r := range results {
		cards = append(cards, r...)
	}
	return cards, nil
}

// applicationPhase windows each chapter's flashcards and generates scenario
// cards from every window.
func (p *Pipeline) applicationPhase(ctx context.Context, runID string, log *zap.Logger, meta model.BookMeta, groups []chunkGroup, flashcards []model.Card, state *runState) ([]model.Card, error) {
	var cards []model.Card

	err := p.phase(ctx, runID, model.RunStatusApplications, "applications", state, func(ctx context.Context) (map[string]any, error) {
		for _, g := range groups {
			groupFlash := cardsForChapter(flashcards, g.Label)
			for start := 0; start < len(groupFlash); start += p.opts.FlashcardWindow {
				end := start + p.opts.FlashcardWindow
				if end > len(groupFlash) {
					end = len(groupFlash)
				}
				out, usage, err := p.gen.Applications(ctx, meta, groupFlash[start:end])
				state.addFlashUsage(usage)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					log.Warn("pipeline: application generation failed for window",
						zap.String("chapter", g.Label),
						zap.Error(err),
					)
					state.softFail()
					continue
				}
				cards = append(cards, out...)
			}
		}
		return map[string]any{"cards": len(cards)}, nil
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// quizPhase generates quiz cards per chapter from that chapter's flashcards
// and applications.
func (p *Pipeline) quizPhase(ctx context.Context, runID string, log *zap.Logger, meta model.BookMeta, groups []chunkGroup, flashcards, applications []model.Card, state *runState) ([]model.Card, error) {
	var cards []model.Card

	err := p.phase(ctx, runID, model.RunStatusQuizzes, "quizzes", state, func(ctx context.Context) (map[string]any, error) {
		for _, g := range groups {
			out, usage, err := p.gen.Quizzes(ctx, meta, g.Label,
				cardsForChapter(flashcards, g.Label),
				cardsForChapter(applications, g.Label),
			)
			state.addReasonUsage(usage)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Warn("pipeline: quiz generation failed for chapter",
					zap.String("chapter", g.Label),
					zap.Error(err),
				)
				state.softFail()
				continue
			}
			cards = append(cards, out...)
		}
		return map[string]any{"cards": len(cards)}, nil
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// synthesisPhase generates capstone cards per chapter over everything the
// earlier tiers produced for it.
func (p *Pipeline) synthesisPhase(ctx context.Context, runID string, log *zap.Logger, meta model.BookMeta, groups []chunkGroup, flashcards, applications, quizzes []model.Card, state *runState) ([]model.Card, error) {
	var cards []model.Card

	err := p.phase(ctx, runID, model.RunStatusSynthesis, "synthesis", state, func(ctx context.Context) (map[string]any, error) {
		for _, g := range groups {
			chapterCards := cardsForChapter(flashcards, g.Label)
			chapterCards = append(chapterCards, cardsForChapter(applications, g.Label)...)
			chapterCards = append(chapterCards, cardsForChapter(quizzes, g.Label)...)

			out, usage, err := p.gen.Synthesis(ctx, meta, g.Label, chapterCards)
			state.addReasonUsage(usage)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Warn("pipeline: synthesis generation failed for chapter",
					zap.String("chapter", g.Label),
					zap.Error(err),
				)
				state.softFail()
				continue
			}
			cards = append(cards, out...)
		}
		return map[string]any{"cards": len(cards)}, nil
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

func (p *Pipeline) validatePhase(ctx context.Context, runID string, log *zap.Logger, cards []model.Card, state *runState) error {
	return p.phase(ctx, runID, model.RunStatusValidating, "validate", state, func(ctx context.Context) (map[string]any, error) {
		if err := ValidateDeck(cards, p.opts.Gate); err != nil {
			log.Warn("pipeline: deck rejected by quality gate", zap.Error(err))
			return map[string]any{"cards": len(cards)}, err
		}
		return map[string]any{"cards": len(cards)}, nil
	})
}

func cardsForChapter(cards []model.Card, label string) []model.Card {
	var out []model.Card
	for _, c := range cards {
		if c.ChapterContext == label {
			out = append(out, c)
		}
	}
	return out
}

func tierCounts(cards []model.Card) map[model.CardType]int {
	if len(cards) == 0 {
		return nil
	}
	counts := make(map[model.CardType]int)
	for _, c := range cards {
		counts[c.Type]++
	}
	return counts
}

func chunkCount(deck *model.Deck) int {
	seen := make(map[string]struct{})
	for _, ch := range deck.Chapters {
		for _, id := range ch.ChunkIDs {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}
