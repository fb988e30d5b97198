package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mindscroll/cardgen/internal/cost"
	"github.com/mindscroll/cardgen/internal/generate"
	"github.com/mindscroll/cardgen/internal/pipeline"
	"github.com/mindscroll/cardgen/internal/related"
	"github.com/mindscroll/cardgen/internal/store"
	anthropicpkg "github.com/mindscroll/cardgen/pkg/anthropic"
	"github.com/mindscroll/cardgen/pkg/embeddings"
)

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return store.NewSQLite(cfg.Store.DatabaseURL)
	}
}

// pipelineEnv holds the initialized store, clients, and pipeline needed by
// the generate/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Settings generate.Settings
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, the completion and embedding clients, and
// builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	settings := generate.DefaultSettings()
	if cfg.Pipeline.SettingsFile != "" {
		settings, err = generate.LoadSettings(cfg.Pipeline.SettingsFile)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	if cfg.Anthropic.FlashcardModel != "" {
		settings.FlashcardModel = cfg.Anthropic.FlashcardModel
	}
	if cfg.Anthropic.ReasoningModel != "" {
		settings.ReasoningModel = cfg.Anthropic.ReasoningModel
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key,
		anthropicpkg.WithRequestsPerSec(cfg.Anthropic.RequestsPerSec),
		anthropicpkg.WithTimeout(cfg.Anthropic.Timeout()),
	)

	// Embeddings are optional: without a key the related-chunk finder scores
	// lexically.
	var embedder embeddings.Client
	if cfg.OpenAI.Key != "" {
		embedder, err = embeddings.NewOpenAIClient(cfg.OpenAI.Key, cfg.OpenAI.EmbeddingModel)
		if err != nil {
			zap.L().Warn("embeddings client init failed, using lexical relevance", zap.Error(err))
			embedder = nil
		}
	} else {
		zap.L().Debug("CARDGEN_OPENAI_KEY not set, related chunks scored lexically")
	}

	gen := generate.New(anthropicClient, settings)
	finder := related.NewFinder(embedder)
	costs := cost.NewCalculator(cost.DefaultRates())

	p := pipeline.New(st, gen, finder, costs, settings, pipeline.Options{
		MaxConcurrent:   cfg.Pipeline.MaxConcurrent,
		RelatedChunks:   cfg.Pipeline.RelatedChunks,
		FlashcardWindow: cfg.Pipeline.FlashcardWindow,
		SynthesisWindow: cfg.Pipeline.SynthesisWindow,
		Gate: pipeline.GateConfig{
			MinCards:           cfg.Pipeline.MinCards,
			MaxInvalidFraction: cfg.Pipeline.MaxInvalidFraction,
		},
		CacheTTL: cfg.Cache.TTL(),
	})

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
		Settings: settings,
	}, nil
}
