package gateway

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

const geminiClientTimeout = 30 * time.Second

// GeminiGateway implements ChatCompleter against the Gemini API using
// the Google Gen AI SDK.
type GeminiGateway struct {
	client *genai.Client
	model  string
}

// NewGeminiGateway creates a Gemini-backed chat gateway.
func NewGeminiGateway(apiKey, model string) (*GeminiGateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini gateway: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	ctx, cancel := context.WithTimeout(context.Background(), geminiClientTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini gateway: create client: %w", err)
	}

	return &GeminiGateway{client: client, model: model}, nil
}

// CompleteChat generates a completion for the given message list.
func (g *GeminiGateway) CompleteChat(ctx context.Context, messages []Message) (string, error) {
	contents, system := buildGeminiContents(messages)
	config := &genai.GenerateContentConfig{}

	// Gemini rejects requests with no contents. System-only requests
	// (summarization, silence replies) are sent as a user turn instead.
	if len(contents) == 0 && system != nil {
		contents = append(contents, &genai.Content{
			Role:  "user",
			Parts: system.Parts,
		})
		system = nil
	}
	if system != nil {
		config.SystemInstruction = system
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates in response", ErrGeneration)
	}

	var content string
	for _, part := range resp.Candidates[0].Content.Parts {
		content += part.Text
	}
	return content, nil
}

// buildGeminiContents converts messages to Gen AI content format,
// splitting out the system instruction.
func buildGeminiContents(messages []Message) ([]*genai.Content, *genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		if m.Role == RoleSystem {
			system = &genai.Content{
				Parts: []*genai.Part{{Text: m.Content}},
			}
			continue
		}

		role := m.Role
		if role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	return contents, system
}
