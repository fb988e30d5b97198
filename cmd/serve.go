package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mindscroll/cardgen/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for generation requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(ctx, env),
		}

		// Graceful shutdown. The signal context is already canceled here, so
		// draining needs its own deadline.
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter assembles the HTTP surface over an initialized pipeline
// environment. Generation requests run asynchronously against ctx, which
// outlives the individual request.
func buildRouter(ctx context.Context, env *pipelineEnv) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/runs", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ContentID string `json:"content_id"`
			Force     bool   `json:"force"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.ContentID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content_id is required"})
			return
		}

		// Generation runs asynchronously; poll GET /runs/{id} or list runs
		// for the outcome.
		go func() {
			if env.Pipeline == nil {
				return
			}
			result, err := env.Pipeline.Run(ctx, pipeline.Request{
				ContentID: req.ContentID,
				Force:     req.Force,
			})
			if err != nil {
				zap.L().Error("api generation failed",
					zap.String("content_id", req.ContentID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("api generation complete",
				zap.String("content_id", req.ContentID),
				zap.Int("cards", result.CardCount),
				zap.Bool("cache_hit", result.CacheHit),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":     "accepted",
			"content_id": req.ContentID,
		})
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		run, err := env.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/decks/{contentID}", func(w http.ResponseWriter, r *http.Request) {
		deck, err := env.Store.GetDeck(r.Context(), chi.URLParam(r, "contentID"))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "deck lookup failed"})
			return
		}
		if deck == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cached deck"})
			return
		}
		writeJSON(w, http.StatusOK, deck)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
