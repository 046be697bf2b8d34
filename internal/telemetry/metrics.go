package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Instrumentation scope for narration metrics and spans.
const Scope = "github.com/teslashibe/go-narrate"

// Session outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeOrphaned = "orphaned"
	OutcomeFailed   = "failed"
)

// Metrics holds the narration instruments. A nil *Metrics records nothing.
type Metrics struct {
	requests   metric.Int64Counter
	latency    metric.Float64Histogram
	firstAudio metric.Float64Histogram
	audioBytes metric.Int64Histogram
}

// NewMetrics creates the instruments on mp. A nil provider yields no-op
// instruments.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(Scope)

	requests, err := meter.Int64Counter("narration_requests",
		metric.WithDescription("Narration requests by outcome and error kind"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("narration_synthesis_seconds",
		metric.WithDescription("Synthesis session wall time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	firstAudio, err := meter.Float64Histogram("narration_first_audio_seconds",
		metric.WithDescription("Time from session start to first audio fragment"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	audioBytes, err := meter.Int64Histogram("narration_audio_bytes",
		metric.WithDescription("Assembled audio artifact size"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		requests:   requests,
		latency:    latency,
		firstAudio: firstAudio,
		audioBytes: audioBytes,
	}, nil
}

// Request counts one finished narration request.
func (m *Metrics) Request(ctx context.Context, outcome, kind string) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("kind", kind),
	))
}

// Session records one successful synthesis session.
func (m *Metrics) Session(ctx context.Context, elapsed time.Duration, firstAudioMs int64, bytes int) {
	if m == nil {
		return
	}
	m.latency.Record(ctx, elapsed.Seconds())
	if firstAudioMs > 0 {
		m.firstAudio.Record(ctx, float64(firstAudioMs)/1000)
	}
	m.audioBytes.Record(ctx, int64(bytes))
}
