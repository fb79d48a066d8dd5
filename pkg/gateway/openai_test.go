package gateway

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpenAI struct {
	chatResp   openai.ChatCompletionResponse
	chatErr    error
	chatReq    *openai.ChatCompletionRequest
	transResp  openai.AudioResponse
	transErr   error
	speechBody string
	speechErr  error
	speechReq  *openai.CreateSpeechRequest
}

func (f *fakeOpenAI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.chatReq = &req
	return f.chatResp, f.chatErr
}

func (f *fakeOpenAI) CreateTranscription(_ context.Context, _ openai.AudioRequest) (openai.AudioResponse, error) {
	return f.transResp, f.transErr
}

func (f *fakeOpenAI) CreateSpeech(_ context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error) {
	f.speechReq = &req
	if f.speechErr != nil {
		return openai.RawResponse{}, f.speechErr
	}
	return openai.RawResponse{ReadCloser: io.NopCloser(strings.NewReader(f.speechBody))}, nil
}

func TestCompleteChat(t *testing.T) {
	fake := &fakeOpenAI{
		chatResp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "hello there"}},
			},
		},
	}
	g := newOpenAIGateway(fake, OpenAIConfig{ChatModel: "gpt-4o-mini"})

	out, err := g.CompleteChat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	require.NotNil(t, fake.chatReq)
	assert.Equal(t, "gpt-4o-mini", fake.chatReq.Model)
	require.Len(t, fake.chatReq.Messages, 2)
	assert.Equal(t, RoleSystem, fake.chatReq.Messages[0].Role)
}

func TestCompleteChatError(t *testing.T) {
	fake := &fakeOpenAI{chatErr: errors.New("rate limited")}
	g := newOpenAIGateway(fake, OpenAIConfig{})

	_, err := g.CompleteChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeneration))
}

func TestCompleteChatNoChoices(t *testing.T) {
	g := newOpenAIGateway(&fakeOpenAI{}, OpenAIConfig{})

	_, err := g.CompleteChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeneration))
}

func TestTranscribe(t *testing.T) {
	fake := &fakeOpenAI{transResp: openai.AudioResponse{Text: " hello world "}}
	g := newOpenAIGateway(fake, OpenAIConfig{})

	tr, err := g.Transcribe(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, " hello world ", tr.Text)
}

func TestTranscribeError(t *testing.T) {
	fake := &fakeOpenAI{transErr: errors.New("bad audio")}
	g := newOpenAIGateway(fake, OpenAIConfig{})

	_, err := g.Transcribe(context.Background(), []byte{1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscription))
}

func TestSynthesize(t *testing.T) {
	fake := &fakeOpenAI{speechBody: "RIFFwav-bytes"}
	g := newOpenAIGateway(fake, OpenAIConfig{})

	audio, err := g.Synthesize(context.Background(), "hi there", "nova")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFwav-bytes"), audio)

	require.NotNil(t, fake.speechReq)
	assert.Equal(t, openai.SpeechVoice("nova"), fake.speechReq.Voice)
	assert.Equal(t, "hi there", fake.speechReq.Input)
}

func TestSynthesizeError(t *testing.T) {
	fake := &fakeOpenAI{speechErr: errors.New("voice not found")}
	g := newOpenAIGateway(fake, OpenAIConfig{})

	_, err := g.Synthesize(context.Background(), "hi", "bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSynthesis))
}

func TestNewOpenAIGatewayRequiresKey(t *testing.T) {
	_, err := NewOpenAIGateway(OpenAIConfig{})
	require.Error(t, err)
}
