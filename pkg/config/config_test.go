package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()

	validConfig := `
provider: openai
openai_key: test-key
chat_model: gpt-4o-mini
session:
  summary_threshold: 4
  media_path: /tmp/media
  max_idle: 30m
server:
  port: 9000
`

	validFile := filepath.Join(tmpDir, "valid.yaml")
	err := os.WriteFile(validFile, []byte(validConfig), 0600)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cfg, err := LoadConfig(validFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ChatModel != "gpt-4o-mini" {
		t.Errorf("expected model 'gpt-4o-mini', got %s", cfg.ChatModel)
	}
	if cfg.Session.SummaryThreshold != 4 {
		t.Errorf("expected threshold 4, got %d", cfg.Session.SummaryThreshold)
	}
	if cfg.Session.MaxIdle != 30*time.Minute {
		t.Errorf("expected max_idle 30m, got %s", cfg.Session.MaxIdle)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	tmpDir := t.TempDir()

	minimal := filepath.Join(tmpDir, "minimal.yaml")
	if err := os.WriteFile(minimal, []byte("openai_key: k\n"), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cfg, err := LoadConfig(minimal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("expected default provider openai, got %s", cfg.Provider)
	}
	if cfg.Session.SummaryThreshold != 10 {
		t.Errorf("expected default threshold 10, got %d", cfg.Session.SummaryThreshold)
	}
	if cfg.Session.MediaPath != "media" {
		t.Errorf("expected default media path 'media', got %s", cfg.Session.MediaPath)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
}

func TestLoadConfig_NonexistentFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()

	invalidYAML := `
provider: openai
invalid yaml here: [[[
`

	invalidFile := filepath.Join(tmpDir, "invalid.yaml")
	err := os.WriteFile(invalidFile, []byte(invalidYAML), 0600)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	_, err = LoadConfig(invalidFile)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"openai ok", func(c *Config) { c.OpenAIKey = "k" }, false},
		{"openai missing key", func(c *Config) { c.OpenAIKey = "" }, true},
		{"gemini ok", func(c *Config) {
			c.Provider = "gemini"
			c.GeminiKey = "g"
			c.OpenAIKey = "k"
		}, false},
		{"gemini missing key", func(c *Config) {
			c.Provider = "gemini"
			c.OpenAIKey = "k"
		}, true},
		{"gemini missing openai key", func(c *Config) {
			c.Provider = "gemini"
			c.GeminiKey = "g"
			c.OpenAIKey = ""
		}, true},
		{"unknown provider", func(c *Config) { c.Provider = "llamafile" }, true},
		{"bad threshold", func(c *Config) {
			c.OpenAIKey = "k"
			c.Session.SummaryThreshold = 0
		}, true},
		{"eviction without idle window", func(c *Config) {
			c.OpenAIKey = "k"
			c.Session.EvictionSchedule = "@every 10m"
			c.Session.MaxIdle = -1
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.OpenAIKey = ""
			cfg.GeminiKey = ""
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
