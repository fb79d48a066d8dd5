// Package gateway defines the capability interfaces the session engine
// requires from speech and language providers, plus concrete adapters.
// The engine only ever sees these interfaces; providers are swappable.
package gateway

import (
	"context"
	"errors"
)

// Turn-fatal error kinds. Adapters wrap provider failures with one of
// these sentinels so callers can classify with errors.Is. The engine
// never retries any of them.
var (
	// ErrTranscription indicates the transcription gateway failed.
	ErrTranscription = errors.New("transcription failed")
	// ErrGeneration indicates the chat completion gateway failed.
	ErrGeneration = errors.New("generation failed")
	// ErrSynthesis indicates the speech synthesis gateway failed.
	ErrSynthesis = errors.New("synthesis failed")
)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message sent to the language gateway.
type Message struct {
	Role    string
	Content string
}

// Segment is a timed slice of a transcript.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Transcript is the result of transcribing audio.
type Transcript struct {
	Text     string
	Segments []Segment
}

// SpeechDetector reports whether audio contains speech.
type SpeechDetector interface {
	DetectSpeech(ctx context.Context, audio []byte) (bool, error)
}

// Transcriber converts audio to text.
// Failures are wrapped with ErrTranscription.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (*Transcript, error)
}

// ChatCompleter generates a chat completion from an ordered message list.
// Failures are wrapped with ErrGeneration.
type ChatCompleter interface {
	CompleteChat(ctx context.Context, messages []Message) (string, error)
}

// Synthesizer converts text to audio using the given voice.
// Failures are wrapped with ErrSynthesis.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}
