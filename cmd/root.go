package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mindscroll/cardgen/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cardgen",
	Short: "Multi-tier learning card generation pipeline",
	Long:  "Generates flashcard, application, quiz, and synthesis cards from chunked book content via tiered Claude models, with a time-boxed result cache.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
