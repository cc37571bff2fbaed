package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/calliope-voice/calliope/internal/config"
	"github.com/calliope-voice/calliope/internal/observe"
	"github.com/calliope-voice/calliope/internal/pipeline"
	"github.com/calliope-voice/calliope/internal/store"
	"github.com/calliope-voice/calliope/internal/transcript"
	"github.com/calliope-voice/calliope/pkg/audio"
	"github.com/calliope-voice/calliope/pkg/provider/asr"
	"github.com/calliope-voice/calliope/pkg/provider/llm"
	"github.com/calliope-voice/calliope/pkg/provider/tts"
	"github.com/calliope-voice/calliope/pkg/provider/vad"
	"github.com/calliope-voice/calliope/pkg/segment"
)

// Defaults for the per-session VAD gate.
const (
	defaultSpeechThreshold  = 0.6
	defaultSilenceThreshold = 0.4
)

// Deps bundles the shared provider instances the gateway hands to each
// session. The ASR, LLM, and TTS clients are stateless and shared; VAD
// sessions, decoders, and frame encoders are created per connection.
type Deps struct {
	VAD   vad.Engine
	ASR   asr.Provider
	LLM   llm.Provider
	TTS   tts.Provider
	Store store.DialogueStore

	// Corrector applies hotword correction to transcripts. Optional.
	Corrector *transcript.Corrector

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Server accepts device WebSocket connections and runs one session per
// connection.
type Server struct {
	cfg  *config.Config
	deps Deps
}

// New validates deps and returns a ready Server.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config must not be nil")
	}
	if deps.VAD == nil || deps.ASR == nil || deps.LLM == nil || deps.TTS == nil || deps.Store == nil {
		return nil, errors.New("server: vad, asr, llm, tts and store must not be nil")
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{cfg: cfg, deps: deps}, nil
}

// Handler returns the WebSocket upgrade handler. Mount it on the gateway
// route (e.g., "/ws").
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			s.deps.Logger.Warn("rejected unauthenticated connection", "remote", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			s.deps.Logger.Error("websocket accept failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		sess, err := s.newSession(conn, r)
		if err != nil {
			s.deps.Logger.Error("session setup failed", "remote", r.RemoteAddr, "error", err)
			conn.Close(websocket.StatusInternalError, "session setup failed")
			return
		}

		s.deps.Metrics.ActiveSessions.Add(r.Context(), 1)
		defer s.deps.Metrics.ActiveSessions.Add(r.Context(), -1)

		sess.run(r.Context())
	})
}

// authorized checks the device bearer token against the configured list.
// An empty token list accepts every connection.
func (s *Server) authorized(r *http.Request) bool {
	tokens := s.cfg.Server.AuthTokens
	if len(tokens) == 0 {
		return true
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return slices.Contains(tokens, token)
}

// newSession builds the per-connection state: Opus decoder, VAD session,
// frame encoder, and reply pipeline.
func (s *Server) newSession(conn *websocket.Conn, r *http.Request) (*session, error) {
	p := s.cfg.Pipeline

	decoder, err := audio.NewDecoder(p.SampleRate, p.FrameDurationMs)
	if err != nil {
		return nil, fmt.Errorf("server: create decoder: %w", err)
	}

	vadSession, err := s.deps.VAD.NewSession(vad.Config{
		SampleRate:       p.SampleRate,
		FrameSizeMs:      p.FrameDurationMs,
		SpeechThreshold:  defaultSpeechThreshold,
		SilenceThreshold: defaultSilenceThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("server: create vad session: %w", err)
	}

	encoder, err := audio.NewFrameEncoder(audio.EncoderConfig{
		FrameDurationMs: p.FrameDurationMs,
		SampleRate:      p.SampleRate,
		Bitrate:         p.Bitrate,
	})
	if err != nil {
		vadSession.Close()
		return nil, fmt.Errorf("server: create frame encoder: %w", err)
	}

	policy := segment.DefaultPolicy()
	policy.StripNoise = p.StripNoise

	pipe, err := pipeline.New(s.deps.LLM, s.deps.TTS, encoder,
		pipeline.WithPolicy(policy),
		pipeline.WithVoice(tts.Voice{
			ID:          p.Voice.VoiceID,
			SpeedRatio:  p.Voice.SpeedRatio,
			VolumeRatio: p.Voice.VolumeRatio,
			PitchRatio:  p.Voice.PitchRatio,
		}),
		pipeline.WithMetrics(s.deps.Metrics),
		pipeline.WithLogger(s.deps.Logger),
	)
	if err != nil {
		vadSession.Close()
		return nil, fmt.Errorf("server: create pipeline: %w", err)
	}

	id := uuid.NewString()
	return &session{
		id:         id,
		deviceID:   r.Header.Get("Device-Id"),
		conn:       conn,
		srv:        s,
		logger:     s.deps.Logger.With("session", id, "remote", r.RemoteAddr),
		decoder:    decoder,
		vadSession: vadSession,
		pipe:       pipe,
		listenMode: ModeAuto,
		receiving:  true,
	}, nil
}
