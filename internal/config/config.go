// ABOUTME: Centralized configuration for sekha
// ABOUTME: Layers env vars (SEKHA_*) over a TOML file over defaults, with hot-reload
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type VectorStoreConfig struct {
	URL        string `mapstructure:"url"`
	Collection string `mapstructure:"collection"`
}

type EmbedderConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

type SummarizerConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

type FeaturesConfig struct {
	SummarizationEnabled bool `mapstructure:"summarization_enabled"`
	PruningEnabled       bool `mapstructure:"pruning_enabled"`
	AutoEmbed            bool `mapstructure:"auto_embed"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server          ServerConfig      `mapstructure:"server"`
	Database        DatabaseConfig    `mapstructure:"database"`
	VectorStore     VectorStoreConfig `mapstructure:"vector_store"`
	Embedder        EmbedderConfig    `mapstructure:"embedder"`
	Summarizer      SummarizerConfig  `mapstructure:"summarizer"`
	Features        FeaturesConfig    `mapstructure:"features"`
	RateLimit       RateLimitConfig   `mapstructure:"rate_limit"`
	CORS            CORSConfig        `mapstructure:"cors"`
	Log             LogConfig         `mapstructure:"log"`
	RequestDeadline time.Duration     `mapstructure:"-"`
}

// HomeDir returns $HOME/.sekha.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".sekha"), nil
}

// EnsureLayout creates the persisted layout from spec.md section 6:
// $HOME/.sekha/{data/,logs/,import/,imported/,config.toml}.
func EnsureLayout() (string, error) {
	base, err := HomeDir()
	if err != nil {
		return "", err
	}
	for _, sub := range []string{"data", "logs", "import", "imported"} {
		if err := os.MkdirAll(filepath.Join(base, sub), 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", sub, err)
		}
	}
	return base, nil
}

func defaults(v *viper.Viper, base string) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("database.url", filepath.Join(base, "data", "sekha.db"))
	v.SetDefault("database.max_connections", 16)
	v.SetDefault("vector_store.url", "http://localhost:8000")
	v.SetDefault("vector_store.collection", "sekha")
	v.SetDefault("embedder.url", "http://localhost:11434")
	v.SetDefault("embedder.model", "nomic-embed-text")
	v.SetDefault("summarizer.url", "http://localhost:11434")
	v.SetDefault("summarizer.model", "nomic-embed-text")
	v.SetDefault("features.summarization_enabled", true)
	v.SetDefault("features.pruning_enabled", true)
	v.SetDefault("features.auto_embed", true)
	v.SetDefault("rate_limit.rps", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func newViper() (*viper.Viper, string, error) {
	base, err := EnsureLayout()
	if err != nil {
		return nil, "", err
	}
	v := viper.New()
	defaults(v, base)
	v.SetConfigFile(filepath.Join(base, "config.toml"))
	v.SetConfigType("toml")
	v.SetEnvPrefix("SEKHA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, base, nil
}

// Load discovers configuration in priority: SEKHA_* env vars, then
// $HOME/.sekha/config.toml, then defaults (spec.md section 6).
func Load() (*Config, error) {
	v, _, err := newViper()
	if err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config.toml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.RequestDeadline = 30 * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WatchHotReload re-reads non-structural keys (rate limits, feature flags,
// log level, CORS) whenever config.toml changes. Structural keys
// (server.port, database.url) still require a restart.
func WatchHotReload(cfg *Config, onChange func(*Config)) error {
	v, _, err := newViper()
	if err != nil {
		return err
	}
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var next Config
		if err := v.Unmarshal(&next); err != nil {
			log.Warn("config hot-reload failed", "err", err)
			return
		}
		cfg.Features = next.Features
		cfg.RateLimit = next.RateLimit
		cfg.Log = next.Log
		cfg.CORS = next.CORS
		onChange(cfg)
	})
	return nil
}

func (c *Config) Validate() error {
	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate_limit.rps must be positive, got %f", c.RateLimit.RPS)
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("database.max_connections must be positive")
	}
	if c.Server.APIKey != "" && len(c.Server.APIKey) < 32 {
		return fmt.Errorf("server.api_key must be at least 32 characters when set")
	}
	return nil
}
