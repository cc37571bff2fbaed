package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/calliope-voice/calliope/internal/pipeline"
	"github.com/calliope-voice/calliope/internal/store"
	"github.com/calliope-voice/calliope/pkg/audio"
	"github.com/calliope-voice/calliope/pkg/provider/llm"
	"github.com/calliope-voice/calliope/pkg/provider/vad"
)

// errIdleTimeout signals that the client sent nothing but silence for longer
// than the configured close timeout.
var errIdleTimeout = errors.New("server: idle timeout")

// writeTimeout bounds a single frame write to a slow client.
const writeTimeout = 10 * time.Second

// session is the per-connection state machine. The read loop is the only
// goroutine that touches the decoder and VAD session; reply turns run on
// their own goroutine and share the connection through writeMu.
type session struct {
	id       string
	deviceID string
	conn     *websocket.Conn
	srv      *Server
	logger   *slog.Logger

	decoder    *audio.Decoder
	vadSession vad.SessionHandle
	pipe       *pipeline.Pipeline

	writeMu sync.Mutex

	mu             sync.Mutex
	listenMode     string
	haveVoice      bool
	noVoiceSince   time.Time
	utterance      []byte
	frames         int
	receiving      bool
	turnCancel     context.CancelFunc
	iotStates      any
	iotDescription any

	abort atomic.Bool
}

// run drives the read loop until the client disconnects, the context is
// cancelled, or the idle timeout fires.
func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.vadSession.Close()
	defer s.conn.CloseNow()

	s.logger.Info("session started", "device", s.deviceID)

	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.logger.Info("session closed by client")
			} else {
				s.logger.Debug("session read ended", "error", err)
			}
			return
		}

		switch typ {
		case websocket.MessageText:
			err = s.handleCommand(ctx, data)
		case websocket.MessageBinary:
			err = s.handleAudio(ctx, data)
		}
		if errors.Is(err, errIdleTimeout) {
			s.logger.Info("closing silent connection")
			s.conn.Close(websocket.StatusNormalClosure, "idle timeout")
			return
		}
		if err != nil {
			s.logger.Warn("message handling failed", "error", err)
		}
	}
}

// handleCommand dispatches one JSON control frame.
func (s *session) handleCommand(ctx context.Context, data []byte) error {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("server: decode command: %w", err)
	}

	switch cmd.Type {
	case TypeHello:
		return s.writeCommand(ctx, Command{
			Type:      TypeHello,
			Transport: "websocket",
			Session:   s.id,
			AudioParams: &AudioParams{
				Format:        "opus",
				SampleRate:    s.srv.cfg.Pipeline.SampleRate,
				Channels:      audio.CanonicalChannels,
				FrameDuration: s.srv.cfg.Pipeline.FrameDurationMs,
			},
		})

	case TypeListen:
		return s.handleListen(ctx, cmd)

	case TypeAbort:
		s.logger.Info("client abort", "device", s.deviceID)
		s.abort.Store(true)
		s.mu.Lock()
		if s.turnCancel != nil {
			s.turnCancel()
		}
		s.mu.Unlock()
		return s.writeCommand(ctx, Command{Type: TypeTTS, State: StateStop, Session: s.id})

	case TypeIoT:
		s.mu.Lock()
		s.iotStates = cmd.States
		s.iotDescription = cmd.Description
		s.mu.Unlock()
		s.logger.Debug("iot state updated")
		return nil

	default:
		return fmt.Errorf("server: unknown command type %q", cmd.Type)
	}
}

// handleListen updates the capture gate from a listen command.
func (s *session) handleListen(ctx context.Context, cmd Command) error {
	s.mu.Lock()
	if cmd.Mode != "" {
		s.listenMode = cmd.Mode
	}

	switch cmd.State {
	case StateStart:
		s.haveVoice = true
		s.noVoiceSince = time.Time{}
		s.mu.Unlock()
		return nil

	case StateStop:
		// Client-driven end of utterance.
		utt, frames, ok := s.takeUtteranceLocked()
		s.mu.Unlock()
		if ok {
			s.startTurn(ctx, utt, frames)
		}
		return nil

	case StateDetect:
		// Wake-word detection reported by the device; drop any buffered audio.
		s.haveVoice = false
		s.utterance = nil
		s.frames = 0
		s.mu.Unlock()
		return nil

	default:
		s.mu.Unlock()
		return fmt.Errorf("server: unknown listen state %q", cmd.State)
	}
}

// handleAudio processes one inbound Opus packet through the VAD gate.
func (s *session) handleAudio(ctx context.Context, packet []byte) error {
	s.mu.Lock()
	if !s.receiving {
		s.mu.Unlock()
		return nil
	}
	mode := s.listenMode
	s.mu.Unlock()

	pcm, err := s.decoder.Decode(packet)
	if err != nil {
		return err
	}

	voice := false
	speechEnd := false
	if mode == ModeAuto {
		ev, err := s.vadSession.ProcessFrame(pcm)
		if err != nil {
			return err
		}
		voice = ev.Type == vad.SpeechStart || ev.Type == vad.SpeechContinue
		speechEnd = ev.Type == vad.SpeechEnd
	}

	s.mu.Lock()
	if mode == ModeManual {
		voice = s.haveVoice
	}

	// Pure silence with no utterance under way: discard and track idle time.
	if !voice && !speechEnd && !s.haveVoice {
		s.utterance = nil
		s.frames = 0
		if s.noVoiceSince.IsZero() {
			s.noVoiceSince = time.Now()
		} else if time.Since(s.noVoiceSince) >= time.Duration(s.srv.cfg.Pipeline.CloseTimeoutS)*time.Second {
			s.mu.Unlock()
			return errIdleTimeout
		}
		s.mu.Unlock()
		return nil
	}

	s.noVoiceSince = time.Time{}
	if voice {
		s.haveVoice = true
	}
	s.utterance = append(s.utterance, pcm...)
	s.frames++

	if speechEnd {
		utt, frames, ok := s.takeUtteranceLocked()
		s.mu.Unlock()
		if ok {
			s.startTurn(ctx, utt, frames)
		}
		return nil
	}

	s.mu.Unlock()
	return nil
}

// takeUtteranceLocked finalizes the buffered utterance and resets the VAD
// gate. It returns ok=false when the capture is too short to transcribe.
// Caller must hold s.mu.
func (s *session) takeUtteranceLocked() (utt []byte, frames int, ok bool) {
	utt = s.utterance
	frames = s.frames
	s.utterance = nil
	s.frames = 0
	s.haveVoice = false
	s.noVoiceSince = time.Time{}
	s.vadSession.Reset()

	if frames < s.srv.cfg.Pipeline.MinUtteranceFrames {
		s.logger.Debug("utterance too short, discarded", "frames", frames)
		return nil, 0, false
	}

	s.receiving = false
	s.abort.Store(false)
	return utt, frames, true
}

// startTurn launches a reply turn for one finalized utterance.
func (s *session) startTurn(ctx context.Context, pcm []byte, frames int) {
	turnCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.turnCancel = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		s.runTurn(turnCtx, pcm, frames)
		s.setReceiving(true)
	}()
}

func (s *session) setReceiving(v bool) {
	s.mu.Lock()
	s.receiving = v
	s.mu.Unlock()
}

// runTurn transcribes the utterance and streams the reply back.
func (s *session) runTurn(ctx context.Context, pcm []byte, frames int) {
	deps := s.srv.deps
	p := s.srv.cfg.Pipeline

	asrStart := time.Now()
	tr, err := deps.ASR.Transcribe(ctx, audio.Buffer{
		Data:       pcm,
		SampleRate: p.SampleRate,
		Channels:   audio.CanonicalChannels,
	})
	deps.Metrics.ASRDuration.Record(ctx, time.Since(asrStart).Seconds())
	if err != nil {
		deps.Metrics.RecordProviderError(ctx, "asr", "transcribe")
		s.logger.Error("transcription failed", "error", err)
		return
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		s.logger.Debug("empty transcript, skipping turn", "frames", frames)
		return
	}

	if deps.Corrector != nil {
		corrected, corrections := deps.Corrector.Correct(text)
		if len(corrections) > 0 {
			s.logger.Debug("hotword corrections applied", "count", len(corrections), "text", corrected)
		}
		text = corrected
	}

	deps.Metrics.Utterances.Add(ctx, 1)
	s.logger.Info("utterance recognised", "text", text, "frames", frames)

	if err := deps.Store.Append(ctx, s.id, store.Message{Role: "user", Content: text}); err != nil {
		s.logger.Warn("dialogue append failed", "error", err)
	}
	history, err := deps.Store.History(ctx, s.id, s.srv.cfg.Dialogue.HistoryLimit)
	if err != nil {
		s.logger.Warn("dialogue history unavailable", "error", err)
		history = []store.Message{{Role: "user", Content: text}}
	}

	req := llm.CompletionRequest{
		SystemPrompt: p.SystemPrompt,
		Messages:     make([]llm.Message, 0, len(history)),
	}
	for _, m := range history {
		req.Messages = append(req.Messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	if err := s.writeCommand(ctx, Command{Type: TypeTTS, State: StateStart, Session: s.id}); err != nil {
		s.logger.Debug("reply aborted before start", "error", err)
		return
	}

	events, err := s.pipe.Run(ctx, req)
	if err != nil {
		s.logger.Error("reply pipeline failed to start", "error", err)
		s.writeStop(ctx)
		return
	}

	var reply strings.Builder
	for ev := range events {
		if s.abort.Load() {
			s.mu.Lock()
			if s.turnCancel != nil {
				s.turnCancel()
			}
			s.mu.Unlock()
			for range events {
			}
			break
		}

		switch ev.Type {
		case pipeline.EventSegmentStart:
			reply.WriteString(ev.Raw)
			if err := s.writeCommand(ctx, Command{Type: TypeTTS, State: StateSentenceStart, Session: s.id, Text: ev.Text}); err != nil {
				s.logger.Debug("segment announce failed", "error", err)
			}
		case pipeline.EventAudioFrame:
			if err := s.writeBinary(ctx, ev.Frame); err != nil {
				s.logger.Debug("audio frame write failed", "error", err)
			}
		case pipeline.EventError:
			s.logger.Error("reply turn failed", "segment", ev.Segment, "error", ev.Err)
		case pipeline.EventDone:
			s.logger.Debug("reply complete", "duration_s", ev.Duration)
		}
	}

	s.writeStop(ctx)

	if reply.Len() > 0 {
		if err := deps.Store.Append(ctx, s.id, store.Message{Role: "assistant", Content: reply.String()}); err != nil {
			s.logger.Warn("dialogue append failed", "error", err)
		}
	}
}

// writeStop sends the reply-finished state message. Uses a detached context
// so the stop still reaches the client after an aborted turn.
func (s *session) writeStop(ctx context.Context) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := s.writeCommand(ctx, Command{Type: TypeTTS, State: StateStop, Session: s.id}); err != nil {
		s.logger.Debug("stop message failed", "error", err)
	}
}

func (s *session) writeCommand(ctx context.Context, cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("server: encode command: %w", err)
	}
	return s.write(ctx, websocket.MessageText, data)
}

func (s *session) writeBinary(ctx context.Context, data []byte) error {
	return s.write(ctx, websocket.MessageBinary, data)
}

func (s *session) write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, typ, data)
}
