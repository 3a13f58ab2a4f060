// ABOUTME: Tests for centralized configuration system
// ABOUTME: Verifies environment variable parsing and validation
package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear environment to test defaults; HOME points at a scratch dir so
	// the persisted layout and config.toml lookup stay inside the test.
	os.Clearenv()
	os.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Verify defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if !cfg.Features.AutoEmbed {
		t.Error("Features.AutoEmbed = false, want true")
	}
	if cfg.Embedder.Model != "nomic-embed-text" {
		t.Errorf("Embedder.Model = %s, want nomic-embed-text", cfg.Embedder.Model)
	}
	if cfg.VectorStore.Collection != "sekha" {
		t.Errorf("VectorStore.Collection = %s, want sekha", cfg.VectorStore.Collection)
	}
	if cfg.RequestDeadline != 30*time.Second {
		t.Errorf("RequestDeadline = %v, want 30s", cfg.RequestDeadline)
	}
	if cfg.Database.MaxConnections != 16 {
		t.Errorf("Database.MaxConnections = %d, want 16", cfg.Database.MaxConnections)
	}
	if cfg.RateLimit.Burst != 20 {
		t.Errorf("RateLimit.Burst = %d, want 20", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RPS != 10.0 {
		t.Errorf("RateLimit.RPS = %f, want 10.0", cfg.RateLimit.RPS)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %s, want info", cfg.Log.Level)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	// Set custom SEKHA_* environment variables
	os.Clearenv()
	os.Setenv("HOME", t.TempDir())
	os.Setenv("SEKHA_SERVER_HOST", "127.0.0.1")
	os.Setenv("SEKHA_SERVER_PORT", "9090")
	os.Setenv("SEKHA_FEATURES_AUTO_EMBED", "false")
	os.Setenv("SEKHA_DATABASE_URL", "custom.db")
	os.Setenv("SEKHA_SUMMARIZER_MODEL", "llama3")
	os.Setenv("SEKHA_EMBEDDER_MODEL", "mxbai-embed-large")
	os.Setenv("SEKHA_DATABASE_MAX_CONNECTIONS", "4")
	os.Setenv("SEKHA_RATE_LIMIT_RPS", "2.5")
	os.Setenv("SEKHA_RATE_LIMIT_BURST", "5")
	os.Setenv("SEKHA_VECTOR_STORE_COLLECTION", "custom")
	os.Setenv("SEKHA_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Verify custom values
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Features.AutoEmbed {
		t.Error("Features.AutoEmbed = true, want false")
	}
	if cfg.Database.URL != "custom.db" {
		t.Errorf("Database.URL = %s, want custom.db", cfg.Database.URL)
	}
	if cfg.Summarizer.Model != "llama3" {
		t.Errorf("Summarizer.Model = %s, want llama3", cfg.Summarizer.Model)
	}
	if cfg.Embedder.Model != "mxbai-embed-large" {
		t.Errorf("Embedder.Model = %s, want mxbai-embed-large", cfg.Embedder.Model)
	}
	if cfg.Database.MaxConnections != 4 {
		t.Errorf("Database.MaxConnections = %d, want 4", cfg.Database.MaxConnections)
	}
	if cfg.RateLimit.RPS != 2.5 {
		t.Errorf("RateLimit.RPS = %f, want 2.5", cfg.RateLimit.RPS)
	}
	if cfg.RateLimit.Burst != 5 {
		t.Errorf("RateLimit.Burst = %d, want 5", cfg.RateLimit.Burst)
	}
	if cfg.VectorStore.Collection != "custom" {
		t.Errorf("VectorStore.Collection = %s, want custom", cfg.VectorStore.Collection)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
}

func TestValidate_InvalidRPS(t *testing.T) {
	cfg := &Config{
		RateLimit: RateLimitConfig{RPS: 0},
		Database:  DatabaseConfig{MaxConnections: 16},
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("Validate() should fail for rate_limit.rps == 0")
	}

	cfg.RateLimit.RPS = -1
	err = cfg.Validate()
	if err == nil {
		t.Error("Validate() should fail for rate_limit.rps < 0")
	}
}

func TestValidate_InvalidMaxConnections(t *testing.T) {
	cfg := &Config{
		RateLimit: RateLimitConfig{RPS: 10},
		Database:  DatabaseConfig{MaxConnections: 0},
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("Validate() should fail for database.max_connections == 0")
	}

	cfg.Database.MaxConnections = -1
	err = cfg.Validate()
	if err == nil {
		t.Error("Validate() should fail for database.max_connections < 0")
	}
}

func TestLoad_EnvBool(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"empty uses default true", "", true},
		{"true", "true", true},
		{"1", "1", true},
		{"false", "false", false},
		{"0", "0", false},
		{"f", "f", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("HOME", t.TempDir())
			if tt.value != "" {
				os.Setenv("SEKHA_FEATURES_AUTO_EMBED", tt.value)
			}
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if cfg.Features.AutoEmbed != tt.want {
				t.Errorf("Features.AutoEmbed = %v, want %v", cfg.Features.AutoEmbed, tt.want)
			}
		})
	}
}
