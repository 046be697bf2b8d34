package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsWSBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	providerElevenLabs  = "elevenlabs"
	closeWriteTimeout   = time.Second
)

// ElevenLabs model IDs
const (
	// ModelTurboV2_5 is the fastest English model (~200ms latency).
	ModelTurboV2_5 = "eleven_turbo_v2_5"

	// ModelFlashV2_5 is the fastest multilingual model (~150ms latency).
	ModelFlashV2_5 = "eleven_flash_v2_5"

	// ModelMultilingualV2 is the highest quality multilingual model.
	ModelMultilingualV2 = "eleven_multilingual_v2"
)

// ElevenLabsStream synthesizes speech over the ElevenLabs stream-input
// WebSocket. It holds configuration only; every RunSession call dials its
// own connection and owns its own buffers.
type ElevenLabsStream struct {
	config *Config
	logger *slog.Logger
	dialer websocket.Dialer
}

// NewElevenLabsStream creates a WebSocket-based ElevenLabs synthesizer.
func NewElevenLabsStream(opts ...Option) (*ElevenLabsStream, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	return &ElevenLabsStream{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.elevenlabs_ws"),
		dialer: websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
	}, nil
}

// RunSession opens a connection, submits text in one flush and collects the
// streamed audio and alignment until the provider closes the stream.
func (e *ElevenLabsStream) RunSession(ctx context.Context, text, requestID string) (*SessionResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	if e.config.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.SessionTimeout)
		defer cancel()
	}

	s := &session{
		stream:    e,
		requestID: requestID,
		logger:    e.logger.With("request_id", requestID),
	}
	res, err := s.run(ctx, text)
	if err != nil {
		return nil, &ProviderError{Provider: providerElevenLabs, RequestID: requestID, Err: err}
	}
	return res, nil
}

// VoiceID returns the configured voice ID.
func (e *ElevenLabsStream) VoiceID() string {
	return e.config.VoiceID
}

// ModelID returns the configured model ID.
func (e *ElevenLabsStream) ModelID() string {
	return e.config.ModelID
}

// OutputFormat returns the configured output encoding.
func (e *ElevenLabsStream) OutputFormat() Encoding {
	return e.config.OutputFormat
}

// endpoint builds the stream-input URL for the configured voice.
func (e *ElevenLabsStream) endpoint() string {
	q := url.Values{}
	q.Set("model_id", e.config.ModelID)
	q.Set("output_format", string(e.config.OutputFormat))
	return fmt.Sprintf("%s/%s/stream-input?%s",
		strings.TrimRight(e.config.StreamURL, "/"), url.PathEscape(e.config.VoiceID), q.Encode())
}

// sessionState is the lifecycle of one synthesis session.
type sessionState int

const (
	stateIdle sessionState = iota
	stateConnecting
	stateHandshake
	stateStreaming
	stateClosing
	stateResolved
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateHandshake:
		return "handshake"
	case stateStreaming:
		return "streaming"
	case stateClosing:
		return "closing"
	case stateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// session is the per-request state. It is created by RunSession, driven by a
// single goroutine and discarded once resolved.
type session struct {
	stream    *ElevenLabsStream
	requestID string
	logger    *slog.Logger

	state     sessionState
	started   time.Time
	firstByte time.Duration

	fragments [][]byte
	timing    []json.RawMessage
	ignored   int

	result *SessionResult
	err    error
}

func (s *session) transition(next sessionState) {
	if s.state == stateResolved {
		return
	}
	s.logger.Debug("session state", "from", s.state.String(), "to", next.String())
	s.state = next
}

// resolve moves the session to its terminal state. Only the first call has
// any effect; later calls return the outcome already recorded.
func (s *session) resolve(res *SessionResult, err error) (*SessionResult, error) {
	if s.state == stateResolved {
		return s.result, s.err
	}
	s.state = stateResolved
	s.result, s.err = res, err

	if err != nil {
		s.logger.Warn("session failed",
			"error", err,
			"fragments", len(s.fragments),
			"alignment_events", len(s.timing),
			"elapsed_ms", time.Since(s.started).Milliseconds(),
		)
	} else {
		s.logger.Info("session complete",
			"bytes", len(res.Audio),
			"fragments", res.Fragments,
			"alignment_events", len(res.Timing),
			"ignored_events", s.ignored,
			"first_audio_ms", res.FirstAudioMs,
			"elapsed_ms", time.Since(s.started).Milliseconds(),
		)
	}
	return res, err
}

func (s *session) fail(kind error, format string, args ...any) (*SessionResult, error) {
	return s.resolve(nil, fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)))
}

func (s *session) run(ctx context.Context, text string) (*SessionResult, error) {
	s.started = time.Now()
	s.transition(stateConnecting)

	conn, err := s.dial(ctx)
	if err != nil {
		return s.resolve(nil, err)
	}
	defer conn.Close()

	// Unblock a pending read when the session deadline passes.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.transition(stateHandshake)
	if err := s.wait(ctx, s.stream.config.HandshakeDelay); err != nil {
		return s.fail(ErrConnection, "before handshake: %v", err)
	}
	if err := s.handshake(conn, text); err != nil {
		if ctx.Err() != nil {
			return s.fail(ErrConnection, "handshake: %v", ctx.Err())
		}
		return s.fail(ErrConnection, "handshake: %v", err)
	}

	s.transition(stateStreaming)
	for {
		if idle := s.stream.config.IdleTimeout; idle > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(idle))
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return s.fail(ErrConnection, "session aborted: %v", ctx.Err())
			}
			return s.closed(err)
		}

		ev := Decode(message)
		if done, err := s.handle(ev); err != nil {
			return s.resolve(nil, err)
		} else if done {
			break
		}
	}

	s.transition(stateClosing)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWriteTimeout))
	return s.complete()
}

// dial opens the WebSocket. A refused upgrade means the provider answered
// and rejected us, which is a protocol failure; anything else is transport.
func (s *session) dial(ctx context.Context) (*websocket.Conn, error) {
	cfg := s.stream.config

	headers := http.Header{}
	if cfg.AuthMode == AuthHeader {
		headers.Set("xi-api-key", cfg.APIKey)
	}
	if s.requestID != "" {
		headers.Set("X-Request-ID", s.requestID)
	}

	conn, resp, err := s.stream.dialer.DialContext(ctx, s.stream.endpoint(), headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(body)),
				Provider:   providerElevenLabs,
			}
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrProtocol, rejectReason(apiErr), apiErr)
		}
		return nil, fmt.Errorf("%w: dial: %w", ErrConnection, err)
	}

	s.logger.Debug("websocket connected", "voice", cfg.VoiceID, "model", cfg.ModelID)
	return conn, nil
}

func rejectReason(e *APIError) string {
	switch {
	case e.IsUnauthorized(), e.IsForbidden():
		return "credentials rejected"
	case e.IsRateLimited():
		return "rate limited"
	case e.IsServerError():
		return "provider unavailable"
	default:
		return "upgrade rejected"
	}
}

func (s *session) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handshake sends begin-of-stream, the whole script with flush, and
// end-of-stream.
func (s *session) handshake(conn *websocket.Conn, text string) error {
	cfg := s.stream.config

	bos := map[string]interface{}{
		"text": " ",
		"voice_settings": map[string]interface{}{
			"stability":         cfg.VoiceSettings.Stability,
			"similarity_boost":  cfg.VoiceSettings.SimilarityBoost,
			"style":             cfg.VoiceSettings.Style,
			"use_speaker_boost": cfg.VoiceSettings.SpeakerBoost,
		},
	}
	if cfg.AuthMode == AuthInline {
		bos["xi_api_key"] = cfg.APIKey
	}
	if len(cfg.ChunkSchedule) > 0 {
		bos["generation_config"] = map[string]interface{}{
			"chunk_length_schedule": cfg.ChunkSchedule,
		}
	}
	if err := conn.WriteJSON(bos); err != nil {
		return fmt.Errorf("send BOS: %w", err)
	}

	payload := map[string]interface{}{
		"text":  text,
		"flush": true,
	}
	if err := conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("send text: %w", err)
	}

	eos := map[string]interface{}{
		"text": "",
	}
	if err := conn.WriteJSON(eos); err != nil {
		return fmt.Errorf("send EOS: %w", err)
	}

	s.logger.Debug("handshake sent", "chars", len(text), "auth", string(cfg.AuthMode))
	return nil
}

// handle appends one event to the session buffers. It reports done when the
// provider signalled the end of the stream.
func (s *session) handle(ev Event) (bool, error) {
	switch ev.Kind {
	case EventAudio:
		if len(s.fragments) == 0 {
			s.firstByte = time.Since(s.started)
		}
		s.fragments = append(s.fragments, ev.Audio)
		if ev.Alignment != nil {
			s.timing = append(s.timing, ev.Alignment)
		}
	case EventAlignment:
		s.timing = append(s.timing, ev.Alignment)
	case EventError:
		return true, fmt.Errorf("%w: provider error: %w", ErrProtocol, ev.Err)
	case EventFinal:
	default:
		s.ignored++
		if ev.Err != nil {
			s.logger.Debug("ignoring malformed message", "error", ev.Err)
		}
	}
	return ev.Final, nil
}

// closed classifies a read error. A normal close ends the stream; policy
// and payload closes are provider rejections; everything else is transport.
func (s *session) closed(err error) (*SessionResult, error) {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		s.transition(stateClosing)
		return s.complete()
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.ClosePolicyViolation,
			websocket.CloseUnsupportedData,
			websocket.CloseInvalidFramePayloadData,
			websocket.CloseMessageTooBig:
			return s.fail(ErrProtocol, "provider closed stream (%d): %s", closeErr.Code, closeErr.Text)
		}
		return s.fail(ErrConnection, "provider closed stream (%d): %s", closeErr.Code, closeErr.Text)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return s.fail(ErrConnection, "no message within %s", s.stream.config.IdleTimeout)
	}
	return s.fail(ErrConnection, "read: %v", err)
}

// complete assembles the collected fragments into the session result.
func (s *session) complete() (*SessionResult, error) {
	audio, err := Assemble(s.fragments)
	if err != nil {
		return s.resolve(nil, fmt.Errorf("%w after %d alignment and %d ignored events",
			err, len(s.timing), s.ignored))
	}

	enc := s.stream.config.OutputFormat
	return s.resolve(&SessionResult{
		RequestID:    s.requestID,
		Audio:        audio,
		Timing:       s.timing,
		Format:       formatFor(enc),
		Fragments:    len(s.fragments),
		Duration:     ProbeDuration(audio, enc),
		FirstAudioMs: s.firstByte.Milliseconds(),
	}, nil)
}

// Verify ElevenLabsStream implements Synthesizer at compile time.
var _ Synthesizer = (*ElevenLabsStream)(nil)
