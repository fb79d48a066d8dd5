// Package api exposes the voice pipeline over HTTP. One POST endpoint
// accepts a recorded audio chunk and answers with the synthesized
// reply; session identity rides on a cookie.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/voicebot-dev/voicebot/internal/ailog"
	"github.com/voicebot-dev/voicebot/pkg/chatbot"
	"github.com/voicebot-dev/voicebot/pkg/gateway"
	obs "github.com/voicebot-dev/voicebot/pkg/observability"
	"github.com/voicebot-dev/voicebot/pkg/persona"
	"github.com/voicebot-dev/voicebot/pkg/security"
)

const (
	sessionCookie  = "session_id"
	personaCookie  = "persona"
	defaultPersona = "Alice"

	// Recorded chunks are small; anything bigger is not speech.
	maxUploadBytes = 10 << 20
)

// Server is the public HTTP API.
type Server struct {
	cache     *chatbot.Cache
	registry  *persona.Registry
	limiter   *security.RateLimiter
	mediaPath string

	httpServer *http.Server
}

// NewServer creates the API server. limiter may be nil to disable rate
// limiting.
func NewServer(port int, cache *chatbot.Cache, registry *persona.Registry, limiter *security.RateLimiter, mediaPath string) *Server {
	s := &Server{
		cache:     cache,
		registry:  registry,
		limiter:   limiter,
		mediaPath: mediaPath,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload_stream", s.instrument("/api/upload_stream", s.handleUploadStream))
	mux.HandleFunc("GET /api/personas", s.instrument("/api/personas", s.handlePersonas))

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     mux,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	ailog.Debugf("API server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		obs.RecordHTTPRequest(r.Method, route, strconv.Itoa(sw.status), time.Since(start))
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// sessionID returns the caller's session, minting a new one when the
// cookie is absent or not a UUID. The second return reports whether it
// was minted. The UUID requirement is load-bearing: the session ID is
// embedded in media file paths, so a forged cookie must never reach
// the filesystem.
func sessionID(r *http.Request) (string, bool) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value, false
		}
	}
	return uuid.NewString(), true
}

// handleUploadStream accepts one recorded audio chunk, runs the voice
// turn against the caller's session and streams the synthesized reply
// back.
func (s *Server) handleUploadStream(w http.ResponseWriter, r *http.Request) {
	userID, minted := sessionID(r)

	if s.limiter != nil && !s.limiter.Allow(userID) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	personaName := r.URL.Query().Get("persona")
	if personaName == "" {
		personaName = defaultPersona
	}

	bot, err := s.cache.GetOrCreate(userID, personaName)
	if err != nil {
		if errors.Is(err, persona.ErrUnknownPersona) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "session setup failed", http.StatusInternalServerError)
		return
	}

	audio, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		http.Error(w, "reading upload", http.StatusBadRequest)
		return
	}
	if len(audio) > maxUploadBytes {
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
		return
	}

	inputPath := filepath.Join(s.mediaPath, fmt.Sprintf("temp_audio-%s.ogg", userID))
	ailog.Debugf("Saving user's audio to %s", inputPath)
	if err := os.WriteFile(inputPath, stripUploadHeaders(audio), 0o644); err != nil {
		http.Error(w, "saving upload", http.StatusInternalServerError)
		return
	}

	outputPath, err := bot.VoiceRespond(r.Context(), inputPath)
	if err != nil {
		ailog.Errorf("voice turn for %s: %v", userID, err)
		switch {
		case errors.Is(err, gateway.ErrTranscription),
			errors.Is(err, gateway.ErrGeneration),
			errors.Is(err, gateway.ErrSynthesis):
			http.Error(w, "voice pipeline unavailable", http.StatusBadGateway)
		default:
			http.Error(w, "voice turn failed", http.StatusInternalServerError)
		}
		return
	}

	if minted {
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: userID, Path: "/"})
	}
	if c, err := r.Cookie(personaCookie); err != nil || c.Value != bot.Persona().Name {
		http.SetCookie(w, &http.Cookie{Name: personaCookie, Value: bot.Persona().Name, Path: "/"})
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, outputPath)
}

// handlePersonas lists the configured personas.
func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.registry.All()); err != nil {
		ailog.Errorf("encoding personas: %v", err)
	}
}

// stripUploadHeaders drops any multipart header remnant the browser
// recorder prepends. Everything up to and including the first blank
// line is discarded; payloads without one pass through untouched.
func stripUploadHeaders(raw []byte) []byte {
	boundary := []byte("\r\n\r\n")
	if i := bytes.Index(raw, boundary); i >= 0 {
		return raw[i+len(boundary):]
	}
	return raw
}
