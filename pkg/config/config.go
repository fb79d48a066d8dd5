package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// API Keys
	OpenAIKey string `yaml:"openai_key"`
	GeminiKey string `yaml:"gemini_key"`

	// Provider selects the chat backend: openai or gemini
	Provider string `yaml:"provider"`

	// OpenAI configuration
	OpenAIBaseURL      string `yaml:"openai_base_url"`
	ChatModel          string `yaml:"chat_model"`
	TranscriptionModel string `yaml:"transcription_model"`
	SpeechModel        string `yaml:"speech_model"`

	// Gemini configuration
	GeminiModel string `yaml:"gemini_model"`

	// Session Configuration
	Session SessionConfig `yaml:"session"`

	// Server Configuration
	Server ServerConfig `yaml:"server"`

	// Debug enables verbose AI logging
	Debug bool `yaml:"debug"`
}

// SessionConfig holds per-session policy values
type SessionConfig struct {
	SummaryThreshold int           `yaml:"summary_threshold"`
	MediaPath        string        `yaml:"media_path"`
	MaxIdle          time.Duration `yaml:"max_idle"`
	EvictionSchedule string        `yaml:"eviction_schedule"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port              int     `yaml:"port"`
	ObservabilityPort int     `yaml:"observability_port"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Session.SummaryThreshold == 0 {
		c.Session.SummaryThreshold = 10
	}
	if c.Session.MediaPath == "" {
		c.Session.MediaPath = "media"
	}
	if c.Session.MaxIdle == 0 {
		c.Session.MaxIdle = time.Hour
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ObservabilityPort == 0 {
		c.Server.ObservabilityPort = 9090
	}
	if c.Server.RequestsPerSecond == 0 {
		c.Server.RequestsPerSecond = 5
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = 10
	}

	// Load API keys from environment if not in config
	if c.OpenAIKey == "" {
		c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.GeminiKey == "" {
		c.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("openai provider needs openai_key or OPENAI_API_KEY")
		}
	case "gemini":
		if c.GeminiKey == "" {
			return fmt.Errorf("gemini provider needs gemini_key or GEMINI_API_KEY")
		}
		if c.OpenAIKey == "" {
			// Transcription and synthesis still go through OpenAI.
			return fmt.Errorf("voice pipeline needs openai_key or OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown provider %q (want openai or gemini)", c.Provider)
	}

	if c.Session.SummaryThreshold < 1 {
		return fmt.Errorf("summary_threshold must be at least 1")
	}
	if c.Session.EvictionSchedule != "" && c.Session.MaxIdle <= 0 {
		return fmt.Errorf("eviction_schedule requires a positive max_idle")
	}

	return nil
}
