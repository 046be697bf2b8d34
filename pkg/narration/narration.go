// Package narration turns a record's script into stored, linked audio.
//
// Service.Process runs the whole pipeline for one record:
//
//	read script -> synthesize -> store audio -> write URL and timing back
//
// Each step fails with its own error kind (see Classify). Audio that was
// stored but could not be linked to its record is logged, recorded in the
// ledger as orphaned and announced on the event bus; nothing is deleted
// or retried.
package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teslashibe/go-narrate/internal/telemetry"
	"github.com/teslashibe/go-narrate/pkg/events"
	"github.com/teslashibe/go-narrate/pkg/ledger"
	"github.com/teslashibe/go-narrate/pkg/records"
	"github.com/teslashibe/go-narrate/pkg/storage"
	"github.com/teslashibe/go-narrate/pkg/tts"
)

// Fields names the record fields used by the pipeline.
type Fields struct {
	Script     string
	AudioURL   string
	Timestamps string
}

// DefaultFields returns the standard field names.
func DefaultFields() Fields {
	return Fields{
		Script:     "Script",
		AudioURL:   "Audio URL",
		Timestamps: "Timestamps JSON",
	}
}

// Ledger records stored artifacts. *ledger.Store implements it.
type Ledger interface {
	Record(ctx context.Context, a ledger.Artifact) error
}

// Result is the persisted artifact reference.
type Result struct {
	RecordID   string
	RequestID  string
	StorageKey string
	AudioURL   string
	Timing     []json.RawMessage
	Bytes      int
	Duration   time.Duration
}

// Service is the orchestration facade.
type Service struct {
	records records.Store
	synth   tts.Synthesizer
	sink    storage.Sink

	ledger         Ledger
	events         events.Publisher
	metrics        *telemetry.Metrics
	tracer         trace.Tracer
	keys           *KeyGenerator
	newRequestID   func() string
	fields         Fields
	encoding       tts.Encoding
	sessionTimeout time.Duration
	log            *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFields overrides the record field names.
func WithFields(f Fields) Option {
	return func(s *Service) { s.fields = f }
}

// WithEncoding sets the audio encoding, which picks the key extension
// and content type. Default is MP3.
func WithEncoding(enc tts.Encoding) Option {
	return func(s *Service) { s.encoding = enc }
}

// WithKeyGenerator replaces the storage key generator.
func WithKeyGenerator(g *KeyGenerator) Option {
	return func(s *Service) { s.keys = g }
}

// WithLedger records every stored artifact.
func WithLedger(l Ledger) Option {
	return func(s *Service) { s.ledger = l }
}

// WithPublisher announces outcomes.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMetrics records request and session metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracerProvider sets the provider for pipeline spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(telemetry.Scope) }
}

// WithSessionTimeout bounds the synthesis step. Zero leaves it to the
// synthesizer.
func WithSessionTimeout(d time.Duration) Option {
	return func(s *Service) { s.sessionTimeout = d }
}

// WithRequestIDs replaces the request ID source.
func WithRequestIDs(fn func() string) Option {
	return func(s *Service) { s.newRequestID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New creates a Service from its three collaborators.
func New(store records.Store, synth tts.Synthesizer, sink storage.Sink, opts ...Option) *Service {
	s := &Service{
		records:      store,
		synth:        synth,
		sink:         sink,
		events:       events.Nop{},
		tracer:       otel.Tracer(telemetry.Scope),
		newRequestID: uuid.NewString,
		fields:       DefaultFields(),
		encoding:     tts.EncodingMP3,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.keys == nil {
		s.keys = NewKeyGenerator("audio/", s.encoding.Extension())
	}
	s.log = s.log.With("component", "narration")
	return s
}

// Process narrates one record.
//
// Once the script has been read the remaining steps are detached from
// ctx cancellation: a caller that goes away does not abort a running
// synthesis session or leave audio half-persisted.
func (s *Service) Process(ctx context.Context, recordID string) (*Result, error) {
	requestID := s.newRequestID()
	ctx, span := s.tracer.Start(ctx, "narration.Process", trace.WithAttributes(
		attribute.String("narration.record_id", recordID),
		attribute.String("narration.request_id", requestID),
	))
	defer span.End()

	log := s.log.With("record_id", recordID, "request_id", requestID)
	start := time.Now()

	res, err := s.process(ctx, log, recordID, requestID)
	if err != nil {
		kind := Classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		s.metrics.Request(ctx, outcomeFor(kind), kind)
		log.Error("narration failed", "kind", kind, "error", err, "elapsed", time.Since(start))
		return nil, err
	}

	s.metrics.Request(ctx, telemetry.OutcomeOK, "")
	log.Info("narration complete",
		"key", res.StorageKey,
		"bytes", res.Bytes,
		"duration", res.Duration,
		"timing_events", len(res.Timing),
		"elapsed", time.Since(start))
	return res, nil
}

func outcomeFor(kind string) string {
	if kind == KindWriteBack {
		return telemetry.OutcomeOrphaned
	}
	return telemetry.OutcomeFailed
}

func (s *Service) process(ctx context.Context, log *slog.Logger, recordID, requestID string) (*Result, error) {
	script, err := s.fetchScript(ctx, recordID)
	if err != nil {
		s.publishFailure(ctx, recordID, requestID, "", err)
		return nil, err
	}

	work := context.WithoutCancel(ctx)

	session, err := s.synthesize(work, script, requestID)
	if err != nil {
		s.publishFailure(work, recordID, requestID, "", err)
		return nil, fmt.Errorf("synthesize record %s: %w", recordID, err)
	}
	log.Debug("synthesis complete",
		"fragments", session.Fragments,
		"bytes", len(session.Audio),
		"first_audio_ms", session.FirstAudioMs)

	key := s.keys.Next(recordID)
	url, err := s.store(work, key, session.Audio)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrStorage, key, err)
		s.publishFailure(work, recordID, requestID, key, err)
		return nil, err
	}

	artifact := ledger.Artifact{
		StorageKey: key,
		RecordID:   recordID,
		RequestID:  requestID,
		AudioURL:   url,
		Bytes:      len(session.Audio),
		DurationMs: session.Duration.Milliseconds(),
		Status:     ledger.StatusStored,
	}
	s.recordArtifact(work, log, artifact)

	timingJSON, err := FormatTiming(session.Timing)
	if err != nil {
		return nil, s.orphan(work, log, artifact, err)
	}
	if err := s.writeBack(work, recordID, url, timingJSON); err != nil {
		return nil, s.orphan(work, log, artifact, err)
	}

	artifact.Status = ledger.StatusLinked
	s.recordArtifact(work, log, artifact)
	s.publish(work, events.Event{
		Type:       events.TypeCompleted,
		RecordID:   recordID,
		RequestID:  requestID,
		StorageKey: key,
		AudioURL:   url,
		Bytes:      len(session.Audio),
		DurationMs: session.Duration.Milliseconds(),
	})

	return &Result{
		RecordID:   recordID,
		RequestID:  requestID,
		StorageKey: key,
		AudioURL:   url,
		Timing:     session.Timing,
		Bytes:      len(session.Audio),
		Duration:   session.Duration,
	}, nil
}

func (s *Service) fetchScript(ctx context.Context, recordID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "narration.FetchScript")
	defer span.End()

	script, err := s.records.GetField(ctx, recordID, s.fields.Script)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return "", fmt.Errorf("fetch script: %w", err)
		}
		return "", fmt.Errorf("%w: %w", ErrRecordStore, err)
	}
	if strings.TrimSpace(script) == "" {
		return "", fmt.Errorf("record %s: %w", recordID, ErrEmptyScript)
	}
	return script, nil
}

func (s *Service) synthesize(ctx context.Context, script, requestID string) (*tts.SessionResult, error) {
	ctx, span := s.tracer.Start(ctx, "narration.Synthesize")
	defer span.End()

	if s.sessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sessionTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.synth.RunSession(ctx, script, requestID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.Session(ctx, time.Since(start), res.FirstAudioMs, len(res.Audio))
	span.SetAttributes(
		attribute.Int("narration.audio_bytes", len(res.Audio)),
		attribute.Int("narration.fragments", res.Fragments),
	)
	return res, nil
}

func (s *Service) store(ctx context.Context, key string, audio []byte) (string, error) {
	ctx, span := s.tracer.Start(ctx, "narration.Store", trace.WithAttributes(
		attribute.String("narration.storage_key", key),
	))
	defer span.End()

	url, err := s.sink.PutObject(ctx, key, audio, s.encoding.MIMEType())
	if err != nil {
		span.RecordError(err)
	}
	return url, err
}

func (s *Service) writeBack(ctx context.Context, recordID, url, timingJSON string) error {
	ctx, span := s.tracer.Start(ctx, "narration.WriteBack")
	defer span.End()

	err := s.records.SetFields(ctx, recordID, map[string]any{
		s.fields.AudioURL:   url,
		s.fields.Timestamps: timingJSON,
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// orphan handles audio that is stored but not linked to its record.
func (s *Service) orphan(ctx context.Context, log *slog.Logger, a ledger.Artifact, cause error) error {
	err := fmt.Errorf("%w: audio stored at %s: %w", ErrWriteBack, a.StorageKey, cause)

	log.Error("audio stored but not linked to record",
		"key", a.StorageKey,
		"url", a.AudioURL,
		"error", cause)

	a.Status = ledger.StatusOrphaned
	a.Error = cause.Error()
	s.recordArtifact(ctx, log, a)
	s.publish(ctx, events.Event{
		Type:       events.TypeOrphaned,
		RecordID:   a.RecordID,
		RequestID:  a.RequestID,
		StorageKey: a.StorageKey,
		AudioURL:   a.AudioURL,
		Bytes:      a.Bytes,
		ErrorKind:  KindWriteBack,
		Error:      cause.Error(),
	})
	return err
}

func (s *Service) recordArtifact(ctx context.Context, log *slog.Logger, a ledger.Artifact) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Record(ctx, a); err != nil {
		log.Warn("ledger write failed", "key", a.StorageKey, "status", a.Status, "error", err)
	}
}

func (s *Service) publishFailure(ctx context.Context, recordID, requestID, key string, err error) {
	s.publish(ctx, events.Event{
		Type:       events.TypeFailed,
		RecordID:   recordID,
		RequestID:  requestID,
		StorageKey: key,
		ErrorKind:  Classify(err),
		Error:      err.Error(),
	})
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed", "type", evt.Type, "record_id", evt.RecordID, "error", err)
	}
}

// Health checks the synthesis provider.
func (s *Service) Health(ctx context.Context) error {
	return s.synth.Health(ctx)
}
