package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mindscroll/cardgen/internal/pipeline"
)

var (
	generateContent string
	generateForce   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a card deck for one imported document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, pipeline.Request{
			ContentID: generateContent,
			Force:     generateForce,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("generation complete",
			zap.String("content_id", generateContent),
			zap.Int("cards", result.CardCount),
			zap.Bool("cache_hit", result.CacheHit),
			zap.Int("soft_failures", result.SoftFailures),
			zap.Int("total_tokens", result.TotalTokens),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateContent, "content", "", "content ID of the imported document (required)")
	generateCmd.Flags().BoolVar(&generateForce, "force", false, "regenerate even when a cached deck exists")
	_ = generateCmd.MarkFlagRequired("content")
	rootCmd.AddCommand(generateCmd)
}
