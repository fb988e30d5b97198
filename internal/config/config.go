package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds completion API settings.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	FlashcardModel string  `yaml:"flashcard_model" mapstructure:"flashcard_model"`
	ReasoningModel string  `yaml:"reasoning_model" mapstructure:"reasoning_model"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-request completion timeout as a duration.
func (c AnthropicConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// OpenAIConfig holds embedding API settings. Optional: without a key the
// related-chunk finder falls back to lexical overlap.
type OpenAIConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	TTLDays int `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// TTL returns the cache time-to-live as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// PipelineConfig tunes generation and validation behavior.
type PipelineConfig struct {
	SettingsFile       string  `yaml:"settings_file" mapstructure:"settings_file"`
	MaxConcurrent      int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RelatedChunks      int     `yaml:"related_chunks" mapstructure:"related_chunks"`
	FlashcardWindow    int     `yaml:"flashcard_window" mapstructure:"flashcard_window"`
	SynthesisWindow    int     `yaml:"synthesis_window" mapstructure:"synthesis_window"`
	MinCards           int     `yaml:"min_cards" mapstructure:"min_cards"`
	MaxInvalidFraction float64 `yaml:"max_invalid_fraction" mapstructure:"max_invalid_fraction"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CARDGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cardgen.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.flashcard_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.reasoning_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.requests_per_sec", 5)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("cache.ttl_days", 7)
	v.SetDefault("pipeline.max_concurrent", 4)
	v.SetDefault("pipeline.related_chunks", 3)
	v.SetDefault("pipeline.flashcard_window", 3)
	v.SetDefault("pipeline.synthesis_window", 8)
	v.SetDefault("pipeline.min_cards", 5)
	v.SetDefault("pipeline.max_invalid_fraction", 0.3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that required settings for generation are present.
func (c *Config) Validate() error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required (set CARDGEN_ANTHROPIC_KEY)")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
