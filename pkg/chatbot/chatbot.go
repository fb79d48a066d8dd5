// Package chatbot implements the conversational session engine: one
// Chatbot owns the evolving dialogue memory for a (user, persona) pair,
// compacts it when it grows past the summary threshold, detects silent
// voice turns, and sequences the speech-to-text, reasoning and
// text-to-speech pipeline.
package chatbot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/voicebot-dev/voicebot/internal/ailog"
	"github.com/voicebot-dev/voicebot/internal/observability"
	"github.com/voicebot-dev/voicebot/pkg/gateway"
	obs "github.com/voicebot-dev/voicebot/pkg/observability"
	"github.com/voicebot-dev/voicebot/pkg/persona"
	"github.com/voicebot-dev/voicebot/pkg/prompt"
)

// DefaultSummaryThreshold bounds how many memory entries are kept
// verbatim before older turns are folded into the rolling summary.
const DefaultSummaryThreshold = 10

// Memory entry tags.
const (
	humanPrefix = "HUMAN: "
	aiPrefix    = "AI: "
)

// Deps are the external collaborators a Chatbot calls. All four
// gateways plus the prompt store are required for voice turns; text-only
// callers may leave Detector, Transcriber and Synthesizer nil.
type Deps struct {
	Prompts     *prompt.Store
	Completer   gateway.ChatCompleter
	Transcriber gateway.Transcriber
	Synthesizer gateway.Synthesizer
	Detector    gateway.SpeechDetector
}

// Config holds per-session policy values.
type Config struct {
	// SummaryThreshold is the memory length boundary that triggers
	// compaction (default DefaultSummaryThreshold).
	SummaryThreshold int
	// MediaPath is where synthesized reply audio is written.
	MediaPath string
}

// Chatbot is one ongoing conversation between one user and one persona.
// Turns are serialized: at most one turn is in flight per Chatbot, and
// concurrent callers queue on the session mutex.
type Chatbot struct {
	mu sync.Mutex

	userID           string
	persona          persona.Persona
	memory           []string
	summary          string
	summaryThreshold int
	systemPrompt     string
	mediaPath        string
	lastTurn         time.Time

	deps Deps
}

// New creates a session for the given persona and user. The system
// prompt is resolved once at construction.
func New(p persona.Persona, userID string, deps Deps, cfg Config) (*Chatbot, error) {
	if deps.Prompts == nil {
		return nil, fmt.Errorf("chatbot: prompt store is required")
	}
	if deps.Completer == nil {
		return nil, fmt.Errorf("chatbot: chat completer is required")
	}

	systemPrompt, err := deps.Prompts.Render(prompt.SystemPrompt, map[string]any{"Persona": p.Name})
	if err != nil {
		return nil, fmt.Errorf("resolve system prompt: %w", err)
	}

	threshold := cfg.SummaryThreshold
	if threshold <= 0 {
		threshold = DefaultSummaryThreshold
	}
	mediaPath := cfg.MediaPath
	if mediaPath == "" {
		mediaPath = "media"
	}

	return &Chatbot{
		userID:           userID,
		persona:          p,
		summaryThreshold: threshold,
		systemPrompt:     systemPrompt,
		mediaPath:        mediaPath,
		lastTurn:         time.Now(),
		deps:             deps,
	}, nil
}

func (c *Chatbot) String() string {
	return fmt.Sprintf("<Chatbot (%s): %s>", c.persona.Name, c.userID)
}

// UserID returns the session's user identity.
func (c *Chatbot) UserID() string { return c.userID }

// Persona returns the session's persona.
func (c *Chatbot) Persona() persona.Persona { return c.persona }

// SetSystemPrompt overrides the resolved system prompt.
func (c *Chatbot) SetSystemPrompt(p string) {
	c.mu.Lock()
	c.systemPrompt = p
	c.mu.Unlock()
}

// ResetMemory clears the conversation memory and summary.
func (c *Chatbot) ResetMemory() {
	c.mu.Lock()
	c.memory = nil
	c.summary = ""
	c.mu.Unlock()
}

// Memory returns a copy of the conversation memory.
func (c *Chatbot) Memory() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.memory))
	copy(out, c.memory)
	return out
}

// Summary returns the current rolling summary.
func (c *Chatbot) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// LastTurn returns when the session last completed or started a turn.
func (c *Chatbot) LastTurn() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTurn
}

// Respond runs one text turn: the message is appended to memory as a
// HUMAN entry (even when empty, which marks a silent voice turn), memory
// is compacted if it has grown past the summary threshold, a reply is
// generated, appended as an AI entry and returned.
//
// Gateway failures abort the turn; memory entries appended before the
// failing step are kept.
func (c *Chatbot) Respond(ctx context.Context, message string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.respondLocked(ctx, message)
}

func (c *Chatbot) respondLocked(ctx context.Context, message string) (string, error) {
	start := time.Now()
	c.lastTurn = start

	c.memory = append(c.memory, humanPrefix+message)

	if len(c.memory) > c.summaryThreshold {
		if err := c.summarize(ctx); err != nil {
			obs.RecordTurn(c.persona.Name, "text", "error", time.Since(start))
			return "", err
		}
	}

	var reply string
	var err error
	if message == "" {
		reply, err = c.silentReply(ctx)
	} else {
		reply, err = c.generateReply(ctx)
	}
	if err != nil {
		obs.RecordTurn(c.persona.Name, "text", "error", time.Since(start))
		return "", err
	}

	c.memory = append(c.memory, aiPrefix+reply)
	ailog.Debugf("AI(%s) - %s", c.persona.Name, reply)
	obs.RecordTurn(c.persona.Name, "text", "ok", time.Since(start))
	return reply, nil
}

// promptWindow renders the user message for a non-silent turn: the last
// summaryThreshold memory entries joined with the current summary as the
// separator between each pair, plus the trailing AI turn marker.
func (c *Chatbot) promptWindow() string {
	window := c.memory
	if len(window) > c.summaryThreshold {
		window = window[len(window)-c.summaryThreshold:]
	}
	return strings.Join(window, "\n"+c.summary) + "\nAI: "
}

func (c *Chatbot) generateReply(ctx context.Context) (string, error) {
	ctx, span := observability.StartSpanWithContext(ctx, "chatbot.generate", map[string]any{
		"persona": c.persona.Name,
	})
	defer span.End()

	reply, err := c.deps.Completer.CompleteChat(ctx, []gateway.Message{
		{Role: gateway.RoleSystem, Content: c.systemPrompt},
		{Role: gateway.RoleUser, Content: c.promptWindow()},
	})
	if err != nil {
		obs.RecordGatewayError("generate")
		ailog.Errorf("generating reply: %v", err)
		return "", err
	}
	return reply, nil
}

// silentReply generates a silence acknowledgment from the dedicated
// silence prompt alone: no conversation context, no memory.
func (c *Chatbot) silentReply(ctx context.Context) (string, error) {
	ctx, span := observability.StartSpanWithContext(ctx, "chatbot.silent_reply", map[string]any{
		"persona": c.persona.Name,
	})
	defer span.End()

	silentPrompt, err := c.deps.Prompts.Render(prompt.SilentPrompt, nil)
	if err != nil {
		return "", err
	}

	reply, err := c.deps.Completer.CompleteChat(ctx, []gateway.Message{
		{Role: gateway.RoleSystem, Content: silentPrompt},
	})
	if err != nil {
		obs.RecordGatewayError("generate")
		ailog.Errorf("generating silence reply: %v", err)
		return "", err
	}
	return reply, nil
}

// summarize compacts the conversation: the entire memory is rendered
// through the summarization prompt, the result replaces the summary, and
// memory is truncated to the last summaryThreshold entries. On failure
// memory and summary are left as they were.
func (c *Chatbot) summarize(ctx context.Context) error {
	ctx, span := observability.StartSpanWithContext(ctx, "chatbot.summarize", map[string]any{
		"persona": c.persona.Name,
		"entries": len(c.memory),
	})
	defer span.End()

	summarizationPrompt, err := c.deps.Prompts.Render(prompt.SummarizationPrompt, map[string]any{
		"Context": strings.Join(c.memory, "\n"),
	})
	if err != nil {
		return err
	}

	summary, err := c.deps.Completer.CompleteChat(ctx, []gateway.Message{
		{Role: gateway.RoleSystem, Content: summarizationPrompt},
	})
	if err != nil {
		obs.RecordGatewayError("summarize")
		ailog.Errorf("summarizing conversation: %v", err)
		return fmt.Errorf("summarize conversation: %w", err)
	}

	ailog.Debugf("conversation exceeded summary threshold, summarizing previous messages")
	c.summary = summary
	c.memory = c.memory[len(c.memory)-c.summaryThreshold:]
	obs.RecordCompaction(c.persona.Name)
	return nil
}

// VoiceRespond runs one voice turn end to end: silence gate,
// transcription, text turn, synthesis. It returns the path of the
// synthesized reply audio, written to the media path and named per user
// (overwritten on each turn).
func (c *Chatbot) VoiceRespond(ctx context.Context, inputPath string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	ctx, span := observability.StartSpanWithContext(ctx, "chatbot.voice_turn", map[string]any{
		"persona": c.persona.Name,
		"user":    c.userID,
	})
	defer span.End()

	message, err := c.speechToText(ctx, inputPath)
	if err != nil {
		obs.RecordTurn(c.persona.Name, "voice", "error", time.Since(start))
		return "", err
	}

	reply, err := c.respondLocked(ctx, message)
	if err != nil {
		obs.RecordTurn(c.persona.Name, "voice", "error", time.Since(start))
		return "", err
	}

	outputPath, err := c.textToSpeech(ctx, reply)
	if err != nil {
		obs.RecordTurn(c.persona.Name, "voice", "error", time.Since(start))
		return "", err
	}

	obs.RecordTurn(c.persona.Name, "voice", "ok", time.Since(start))
	return outputPath, nil
}

// speechToText reads the uploaded audio, gates on speech activity and
// transcribes. Silent turns skip transcription entirely and return the
// empty string. The input file is removed once consumed.
func (c *Chatbot) speechToText(ctx context.Context, inputPath string) (string, error) {
	if c.deps.Detector == nil || c.deps.Transcriber == nil {
		return "", fmt.Errorf("chatbot: voice turns need a speech detector and transcriber")
	}

	audio, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("read input audio: %w", err)
	}
	defer os.Remove(inputPath)

	stepStart := time.Now()
	speech, err := c.deps.Detector.DetectSpeech(ctx, audio)
	if err != nil {
		return "", err
	}
	obs.RecordStep("detect", time.Since(stepStart))

	if !speech {
		ailog.Debugf("no speech detected in user's audio, skipping transcription step")
		obs.RecordSilentTurn(c.persona.Name)
		return "", nil
	}

	ctx, span := observability.StartSpanWithContext(ctx, "chatbot.transcribe", nil)
	defer span.End()

	stepStart = time.Now()
	transcript, err := c.deps.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		obs.RecordGatewayError("transcribe")
		ailog.Errorf("transcribing user's voice: %v", err)
		return "", err
	}
	obs.RecordStep("transcribe", time.Since(stepStart))

	message := strings.TrimSpace(transcript.Text)
	ailog.Debugf("User (%s): %s", c.userID, message)
	return message, nil
}

// textToSpeech synthesizes the reply with the persona's voice and
// persists it to the per-user output location.
func (c *Chatbot) textToSpeech(ctx context.Context, reply string) (string, error) {
	if c.deps.Synthesizer == nil {
		return "", fmt.Errorf("chatbot: voice turns need a synthesizer")
	}

	ctx, span := observability.StartSpanWithContext(ctx, "chatbot.synthesize", map[string]any{
		"voice": c.persona.Voice,
	})
	defer span.End()

	stepStart := time.Now()
	audio, err := c.deps.Synthesizer.Synthesize(ctx, reply, c.persona.Voice)
	if err != nil {
		obs.RecordGatewayError("synthesize")
		ailog.Errorf("synthesizing ai's voice: %v", err)
		return "", err
	}
	obs.RecordStep("synthesize", time.Since(stepStart))

	outputPath := filepath.Join(c.mediaPath, fmt.Sprintf("output-%s.wav", c.userID))
	ailog.Debugf("writing AI response audio content to %s", outputPath)
	if err := os.WriteFile(outputPath, audio, 0o644); err != nil {
		return "", fmt.Errorf("write output audio: %w", err)
	}
	return outputPath, nil
}
