package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "cardgen.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.FlashcardModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.ReasoningModel)
	assert.InDelta(t, 5.0, cfg.Anthropic.RequestsPerSec, 0.001)
	assert.Equal(t, 60, cfg.Anthropic.TimeoutSecs)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 7, cfg.Cache.TTLDays)
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, 3, cfg.Pipeline.RelatedChunks)
	assert.Equal(t, 3, cfg.Pipeline.FlashcardWindow)
	assert.Equal(t, 8, cfg.Pipeline.SynthesisWindow)
	assert.Equal(t, 5, cfg.Pipeline.MinCards)
	assert.InDelta(t, 0.3, cfg.Pipeline.MaxInvalidFraction, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/cardgen
log:
  level: debug
  format: console
cache:
  ttl_days: 14
pipeline:
  max_concurrent: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/cardgen", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 14, cfg.Cache.TTLDays)
	assert.Equal(t, 8, cfg.Pipeline.MaxConcurrent)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Pipeline.RelatedChunks)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: info
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("CARDGEN_LOG_LEVEL", "warn")
	t.Setenv("CARDGEN_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := &Config{
			Anthropic: AnthropicConfig{Key: "sk-test"},
			Store:     StoreConfig{Driver: "sqlite"},
		}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing anthropic key", func(t *testing.T) {
		cfg := &Config{Store: StoreConfig{Driver: "sqlite"}}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anthropic.key")
	})

	t.Run("unsupported driver", func(t *testing.T) {
		cfg := &Config{
			Anthropic: AnthropicConfig{Key: "sk-test"},
			Store:     StoreConfig{Driver: "mysql"},
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mysql")
	})
}

func TestDurationHelpers(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, CacheConfig{TTLDays: 7}.TTL())
	assert.Equal(t, 90*time.Second, AnthropicConfig{TimeoutSecs: 90}.Timeout())
}

func TestInitLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
		assert.NotNil(t, zap.L())
	})

	t.Run("console", func(t *testing.T) {
		require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	})

	t.Run("bad level", func(t *testing.T) {
		assert.Error(t, InitLogger(LogConfig{Level: "verbose", Format: "json"}))
	})
}
