package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/voicebot-dev/voicebot/internal/ailog"
	"github.com/voicebot-dev/voicebot/internal/api"
	"github.com/voicebot-dev/voicebot/internal/observability"
	"github.com/voicebot-dev/voicebot/pkg/chatbot"
	"github.com/voicebot-dev/voicebot/pkg/config"
	"github.com/voicebot-dev/voicebot/pkg/gateway"
	obs "github.com/voicebot-dev/voicebot/pkg/observability"
	"github.com/voicebot-dev/voicebot/pkg/persona"
	"github.com/voicebot-dev/voicebot/pkg/prompt"
	"github.com/voicebot-dev/voicebot/pkg/security"
)

var (
	// Version information (set via ldflags)
	Version = "dev"

	// Command line flags
	configFile = flag.String("config", getEnv("CONFIG_FILE", ""), "Configuration file (optional)")
	httpPort   = flag.Int("http-port", getEnvInt("PORT", 0), "API server port (overrides config)")
	debug      = flag.Bool("debug", os.Getenv("DEBUG") != "", "Enable AI debug logging")
)

func main() {
	flag.Parse()

	log.Printf("Starting voicebot v%s", Version)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	ailog.SetDebug(cfg.Debug || *debug)

	// Initialize observability
	obs.InitMetrics()
	if err := observability.InitFromEnv(); err != nil {
		log.Printf("Tracing disabled: %v", err)
	}
	healthChecker := obs.NewHealthChecker()
	healthChecker.RegisterCheck(obs.PingCheck())

	if err := os.MkdirAll(cfg.Session.MediaPath, 0o755); err != nil {
		log.Fatalf("Media path error: %v", err)
	}

	deps, err := buildGateways(cfg)
	if err != nil {
		log.Fatalf("Gateway setup error: %v", err)
	}

	registry := persona.DefaultRegistry()
	cache := chatbot.NewCache(registry, deps, chatbot.Config{
		SummaryThreshold: cfg.Session.SummaryThreshold,
		MediaPath:        cfg.Session.MediaPath,
	})
	limiter := security.NewRateLimiter(cfg.Server.RequestsPerSecond, cfg.Server.Burst)

	apiServer := api.NewServer(cfg.Server.Port, cache, registry, limiter, cfg.Session.MediaPath)
	obsServer := obs.NewServer(cfg.Server.ObservabilityPort, healthChecker)

	// Idle-session sweep
	var sweeper *cron.Cron
	if cfg.Session.EvictionSchedule != "" {
		sweeper = cron.New()
		_, err := sweeper.AddFunc(cfg.Session.EvictionSchedule, func() {
			evicted := cache.EvictIdle(cfg.Session.MaxIdle)
			for _, id := range evicted {
				limiter.Forget(id)
			}
			if len(evicted) > 0 {
				log.Printf("Evicted %d idle sessions", len(evicted))
			}
		})
		if err != nil {
			log.Fatalf("Eviction schedule error: %v", err)
		}
		sweeper.Start()
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		log.Printf("API server on :%d", cfg.Server.Port)
		return apiServer.Start()
	})
	g.Go(func() error {
		log.Printf("Observability server on :%d", cfg.Server.ObservabilityPort)
		if err := obsServer.Start(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("observability server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			log.Printf("Received %s, shutting down...", sig)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if sweeper != nil {
			<-sweeper.Stop().Done()
		}
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Observability server shutdown error: %v", err)
		}
		if err := observability.Shutdown(shutdownCtx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Error: %v", err)
	}
	log.Println("Voicebot stopped")
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}
	if *httpPort != 0 {
		cfg.Server.Port = *httpPort
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildGateways wires the speech pipeline. OpenAI always backs
// transcription and synthesis; the chat completer is switchable.
func buildGateways(cfg *config.Config) (chatbot.Deps, error) {
	openAI, err := gateway.NewOpenAIGateway(gateway.OpenAIConfig{
		APIKey:             cfg.OpenAIKey,
		BaseURL:            cfg.OpenAIBaseURL,
		ChatModel:          cfg.ChatModel,
		TranscriptionModel: cfg.TranscriptionModel,
		SpeechModel:        cfg.SpeechModel,
	})
	if err != nil {
		return chatbot.Deps{}, err
	}

	deps := chatbot.Deps{
		Prompts:     prompt.DefaultStore(),
		Completer:   openAI,
		Transcriber: openAI,
		Synthesizer: openAI,
		Detector:    gateway.NewEnergyDetector(),
	}

	if cfg.Provider == "gemini" {
		gemini, err := gateway.NewGeminiGateway(cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return chatbot.Deps{}, err
		}
		deps.Completer = gemini
	}
	return deps, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
