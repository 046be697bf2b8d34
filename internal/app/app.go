// Package app wires configuration into a running narration service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-narrate/internal/config"
	"github.com/teslashibe/go-narrate/internal/googleauth"
	"github.com/teslashibe/go-narrate/internal/telemetry"
	"github.com/teslashibe/go-narrate/pkg/events"
	"github.com/teslashibe/go-narrate/pkg/hub"
	"github.com/teslashibe/go-narrate/pkg/ledger"
	"github.com/teslashibe/go-narrate/pkg/narration"
	"github.com/teslashibe/go-narrate/pkg/records"
	"github.com/teslashibe/go-narrate/pkg/storage"
	"github.com/teslashibe/go-narrate/pkg/tts"
	"github.com/teslashibe/go-narrate/pkg/web"
)

// Google API scopes.
const (
	scopeSheets  = "https://www.googleapis.com/auth/spreadsheets"
	scopeStorage = "https://www.googleapis.com/auth/devstorage.read_write"
)

// App holds the wired components and everything that must be closed.
type App struct {
	Config    config.Config
	Service   *narration.Service
	Telemetry *telemetry.Telemetry

	// Feed is the WebSocket event hub, nil when disabled.
	Feed *hub.Hub

	closers []func(context.Context) error
	log     *slog.Logger
}

// Build constructs every collaborator named by cfg.
func Build(ctx context.Context, cfg config.Config, version string, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, log: log}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Environment,
		Version:      version,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		StdoutTraces: cfg.Telemetry.StdoutTraces,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.Telemetry = tel
	a.closers = append(a.closers, tel.Shutdown)

	metrics, err := telemetry.NewMetrics(tel.Meter)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("metrics: %w", err)
	}

	synth, err := NewSynthesizer(cfg.Synthesis, log)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	store, err := NewRecordStore(ctx, cfg.Records)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	sink, err := NewSink(ctx, cfg.Storage)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	opts := []narration.Option{
		narration.WithFields(narration.Fields{
			Script:     cfg.Records.Fields.Script,
			AudioURL:   cfg.Records.Fields.AudioURL,
			Timestamps: cfg.Records.Fields.Timestamp,
		}),
		narration.WithEncoding(tts.Encoding(cfg.Synthesis.OutputFormat)),
		narration.WithKeyGenerator(narration.NewKeyGenerator(
			cfg.Storage.KeyPrefix, tts.Encoding(cfg.Synthesis.OutputFormat).Extension())),
		narration.WithSessionTimeout(config.Millis(cfg.Synthesis.SessionTimeoutMS)),
		narration.WithMetrics(metrics),
		narration.WithTracerProvider(tel.Tracer),
		narration.WithLogger(log),
	}

	if cfg.Ledger.Enabled {
		l, err := ledger.Open(ctx, cfg.Ledger.Path, log)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return l.Close() })
		opts = append(opts, narration.WithLedger(l))
	}

	var publishers events.Fanout
	if cfg.Server.EventFeed {
		feedCtx, stop := context.WithCancel(context.Background())
		a.Feed = hub.New("events", log)
		go a.Feed.Run(feedCtx)
		a.closers = append(a.closers, func(context.Context) error { stop(); return nil })
		publishers = append(publishers, a.Feed)
	}

	if cfg.Events.Enabled {
		pub, err := events.Connect(events.NATSConfig{
			Servers:        cfg.Events.Servers,
			SubjectPrefix:  cfg.Events.SubjectPrefix,
			Token:          cfg.Events.Token,
			ConnectTimeout: config.Millis(cfg.Events.ConnectTimeout),
		}, log)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { pub.Close(); return nil })
		publishers = append(publishers, pub)
	}
	switch len(publishers) {
	case 0:
	case 1:
		opts = append(opts, narration.WithPublisher(publishers[0]))
	default:
		opts = append(opts, narration.WithPublisher(publishers))
	}

	a.Service = narration.New(store, synth, sink, opts...)
	return a, nil
}

// Server returns an HTTP server for the service.
func (a *App) Server(version string) *web.Server {
	return web.NewServer(a.Service, web.Config{
		Version:        version,
		DetailedStatus: a.Config.Server.DetailedStatus,
		RequestLog:     a.Config.Log.Level == "debug",
		Metrics:        a.Telemetry.Handler,
		Feed:           a.Feed,
		Logger:         a.log,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewSynthesizer builds the configured synthesis provider.
func NewSynthesizer(cfg config.SynthesisConfig, log *slog.Logger) (tts.Synthesizer, error) {
	if cfg.Provider == config.ProviderMock {
		log.Warn("using mock synthesizer")
		return tts.NewMock(), nil
	}

	opts := []tts.Option{
		tts.WithAPIKey(cfg.APIKey),
		tts.WithVoice(cfg.VoiceID),
		tts.WithModel(cfg.ModelID),
		tts.WithOutputFormat(tts.Encoding(cfg.OutputFormat)),
		tts.WithAuthMode(tts.AuthMode(cfg.AuthMode)),
		tts.WithVoiceSettings(tts.VoiceSettings{
			Stability:       cfg.Voice.Stability,
			SimilarityBoost: cfg.Voice.SimilarityBoost,
			Style:           cfg.Voice.Style,
			SpeakerBoost:    cfg.Voice.SpeakerBoost,
		}),
		tts.WithHandshakeDelay(config.Millis(cfg.HandshakeDelayMS)),
		tts.WithDialTimeout(config.Millis(cfg.DialTimeoutMS)),
		tts.WithIdleTimeout(config.Millis(cfg.IdleTimeoutMS)),
		tts.WithSessionTimeout(config.Millis(cfg.SessionTimeoutMS)),
		tts.WithLogger(log),
	}
	if len(cfg.ChunkSchedule) > 0 {
		opts = append(opts, tts.WithChunkSchedule(cfg.ChunkSchedule...))
	}
	if cfg.StreamURL != "" {
		opts = append(opts, tts.WithStreamURL(cfg.StreamURL))
	}
	if cfg.RESTURL != "" {
		opts = append(opts, tts.WithRESTURL(cfg.RESTURL))
	}

	stream, err := tts.NewElevenLabsStream(opts...)
	if err != nil {
		return nil, fmt.Errorf("synthesizer: %w", err)
	}
	return stream, nil
}

// NewRecordStore builds the configured record store.
func NewRecordStore(ctx context.Context, cfg config.RecordsConfig) (records.Store, error) {
	switch cfg.Backend {
	case config.BackendAirtable:
		store, err := records.NewAirtable(records.AirtableConfig{
			APIKey:    cfg.Airtable.APIKey,
			BaseID:    cfg.Airtable.BaseID,
			TableName: cfg.Airtable.TableName,
			BaseURL:   cfg.Airtable.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendSheets:
		opts, err := googleauth.ClientOptions(ctx, googleauth.Config{
			CredentialsFile: cfg.Sheets.CredentialsFile,
			Endpoint:        cfg.Sheets.Endpoint,
			Scopes:          []string{scopeSheets},
		})
		if err != nil {
			return nil, fmt.Errorf("records: %w", err)
		}
		store, err := records.NewSheets(ctx, records.SheetsConfig{
			SpreadsheetID: cfg.Sheets.SpreadsheetID,
			SheetName:     cfg.Sheets.SheetName,
			IDColumn:      cfg.Sheets.IDColumn,
		}, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendMemory:
		return records.NewMemory(), nil
	default:
		return nil, fmt.Errorf("records: unknown backend %q", cfg.Backend)
	}
}

// NewSink builds the configured object-storage sink.
func NewSink(ctx context.Context, cfg config.StorageConfig) (storage.Sink, error) {
	switch cfg.Backend {
	case config.BackendS3:
		sink, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			PublicURL:       cfg.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		return sink, nil
	case config.BackendGCS:
		opts, err := googleauth.ClientOptions(ctx, googleauth.Config{
			CredentialsFile: cfg.GCS.CredentialsFile,
			Endpoint:        cfg.GCS.Endpoint,
			Scopes:          []string{scopeStorage},
		})
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		sink, err := storage.NewGCS(ctx, storage.GCSConfig{
			Bucket:    cfg.Bucket,
			PublicURL: cfg.PublicURL,
		}, opts...)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case config.BackendMemory:
		return storage.NewMemory(cfg.PublicURL), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
