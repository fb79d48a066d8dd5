package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebot-dev/voicebot/pkg/chatbot"
	"github.com/voicebot-dev/voicebot/pkg/gateway"
	"github.com/voicebot-dev/voicebot/pkg/persona"
	"github.com/voicebot-dev/voicebot/pkg/prompt"
	"github.com/voicebot-dev/voicebot/pkg/security"
)

type fakeCompleter struct{ reply string }

func (f *fakeCompleter) CompleteChat(context.Context, []gateway.Message) (string, error) {
	return f.reply, nil
}

type fakeDetector struct{ speech bool }

func (f *fakeDetector) DetectSpeech(context.Context, []byte) (bool, error) {
	return f.speech, nil
}

type fakeTranscriber struct {
	text string
	got  []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte) (*gateway.Transcript, error) {
	f.got = audio
	return &gateway.Transcript{Text: f.text}, nil
}

type fakeSynthesizer struct {
	audio []byte
	err   error
}

func (f *fakeSynthesizer) Synthesize(context.Context, string, string) ([]byte, error) {
	return f.audio, f.err
}

type testHarness struct {
	server *Server
	tr     *fakeTranscriber
	syn    *fakeSynthesizer
	media  string
}

func newHarness(t *testing.T, limiter *security.RateLimiter) *testHarness {
	t.Helper()
	media := t.TempDir()
	tr := &fakeTranscriber{text: "hello"}
	syn := &fakeSynthesizer{audio: []byte("reply-wav")}
	registry := persona.DefaultRegistry()
	cache := chatbot.NewCache(registry, chatbot.Deps{
		Prompts:     prompt.DefaultStore(),
		Completer:   &fakeCompleter{reply: "hi!"},
		Detector:    &fakeDetector{speech: true},
		Transcriber: tr,
		Synthesizer: syn,
	}, chatbot.Config{MediaPath: media})
	return &testHarness{
		server: NewServer(0, cache, registry, limiter, media),
		tr:     tr,
		syn:    syn,
		media:  media,
	}
}

func uploadRequest(persona string, body string) *http.Request {
	target := "/api/upload_stream"
	if persona != "" {
		target += "?persona=" + persona
	}
	return httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
}

func TestUploadStream(t *testing.T) {
	h := newHarness(t, nil)

	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, uploadRequest("", "ogg-audio"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "reply-wav", rec.Body.String())

	// A fresh caller is issued a session cookie and the persona cookie
	// reflects the default persona.
	cookies := rec.Result().Cookies()
	var names []string
	for _, c := range cookies {
		names = append(names, c.Name)
		if c.Name == "persona" {
			assert.Equal(t, "Alice", c.Value)
		}
	}
	assert.Contains(t, names, "session_id")
	assert.Contains(t, names, "persona")
}

func TestUploadStreamStripsMultipartHeaders(t *testing.T) {
	h := newHarness(t, nil)

	body := "Content-Disposition: form-data\r\nContent-Type: audio/ogg\r\n\r\nogg-payload"
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, uploadRequest("", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("ogg-payload"), h.tr.got)
}

func TestUploadStreamKeepsExistingSession(t *testing.T) {
	h := newHarness(t, nil)

	req := uploadRequest("", "audio")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: uuid.NewString()})
	req.AddCookie(&http.Cookie{Name: "persona", Value: "Alice"})
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// Nothing to re-issue: session and persona cookies already match.
	assert.Empty(t, rec.Result().Cookies())
}

func TestSessionIDRejectsNonUUIDCookie(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "path traversal", value: "../../../../../../../tmp/evil"},
		{name: "arbitrary string", value: "user-1"},
		{name: "empty", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/upload_stream", nil)
			if tt.value != "" {
				req.AddCookie(&http.Cookie{Name: "session_id", Value: tt.value})
			}

			id, minted := sessionID(req)
			assert.True(t, minted)
			assert.NotEqual(t, tt.value, id)
			_, err := uuid.Parse(id)
			assert.NoError(t, err)
		})
	}
}

func TestUploadStreamMintsSessionForForgedCookie(t *testing.T) {
	h := newHarness(t, nil)

	req := uploadRequest("", "audio")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "../../../../../../../tmp/evil"})
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// The forged cookie never reaches the filesystem: a fresh UUID is
	// minted and all media lands under the media directory.
	var sessionValue string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_id" {
			sessionValue = c.Value
		}
	}
	require.NotEmpty(t, sessionValue)
	_, err := uuid.Parse(sessionValue)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(h.media, "output-"+sessionValue+".wav"))
	assert.NoError(t, err)
}

func TestUploadStreamRejectsOversizedBody(t *testing.T) {
	h := newHarness(t, nil)

	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, uploadRequest("", strings.Repeat("a", maxUploadBytes+1)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadStreamUnknownPersona(t *testing.T) {
	h := newHarness(t, nil)

	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, uploadRequest("Zelda", "audio"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadStreamPipelineFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.syn.err = fmt.Errorf("%w: voice missing", gateway.ErrSynthesis)

	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, uploadRequest("", "audio"))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestUploadStreamRateLimited(t *testing.T) {
	h := newHarness(t, security.NewRateLimiter(1, 1))
	userID := uuid.NewString()

	req := uploadRequest("", "audio")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: userID})
	req.AddCookie(&http.Cookie{Name: "persona", Value: "Alice"})

	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req2 := uploadRequest("", "audio")
	req2.AddCookie(&http.Cookie{Name: "session_id", Value: userID})
	rec2 := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestPersonas(t *testing.T) {
	h := newHarness(t, nil)

	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/personas", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []persona.Persona
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "Alice", got[0].Name)
}
