package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// openAIClient is the subset of the go-openai client the gateway uses.
// Narrowed for testability.
type openAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAIConfig configures the OpenAI-compatible gateway.
type OpenAIConfig struct {
	// APIKey authenticates against the provider.
	APIKey string
	// BaseURL overrides the API endpoint. Set it to front an
	// OpenAI-compatible provider such as Groq.
	BaseURL string
	// ChatModel is the completion model (default gpt-4o-mini).
	ChatModel string
	// TranscriptionModel is the speech-to-text model (default whisper-1).
	TranscriptionModel string
	// SpeechModel is the text-to-speech model (default tts-1).
	SpeechModel string
}

// OpenAIGateway fronts an OpenAI-compatible API and implements
// Transcriber, ChatCompleter and Synthesizer.
type OpenAIGateway struct {
	client             openAIClient
	chatModel          string
	transcriptionModel string
	speechModel        string
}

// NewOpenAIGateway creates a gateway from config.
func NewOpenAIGateway(cfg OpenAIConfig) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai gateway: API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return newOpenAIGateway(openai.NewClientWithConfig(clientCfg), cfg), nil
}

func newOpenAIGateway(client openAIClient, cfg OpenAIConfig) *OpenAIGateway {
	g := &OpenAIGateway{
		client:             client,
		chatModel:          cfg.ChatModel,
		transcriptionModel: cfg.TranscriptionModel,
		speechModel:        cfg.SpeechModel,
	}
	if g.chatModel == "" {
		g.chatModel = openai.GPT4oMini
	}
	if g.transcriptionModel == "" {
		g.transcriptionModel = openai.Whisper1
	}
	if g.speechModel == "" {
		g.speechModel = string(openai.TTSModel1)
	}
	return g
}

// CompleteChat generates a completion for the given message list.
func (g *OpenAIGateway) CompleteChat(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    g.chatModel,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrGeneration)
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcribe converts audio bytes to text via the whisper endpoint.
func (g *OpenAIGateway) Transcribe(ctx context.Context, audio []byte) (*Transcript, error) {
	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       g.transcriptionModel,
		Reader:      bytes.NewReader(audio),
		FilePath:    "input.wav",
		Temperature: 0,
		Format:      openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	t := &Transcript{Text: resp.Text}
	for _, s := range resp.Segments {
		t.Segments = append(t.Segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return t, nil
}

// Synthesize converts text to WAV audio with the given voice.
func (g *OpenAIGateway) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	resp, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(g.speechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voiceID),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %v", ErrSynthesis, err)
	}
	return audio, nil
}
