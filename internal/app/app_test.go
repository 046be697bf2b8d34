package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teslashibe/go-narrate/internal/config"
	"github.com/teslashibe/go-narrate/pkg/ledger"
	"github.com/teslashibe/go-narrate/pkg/records"
	"github.com/teslashibe/go-narrate/pkg/storage"
	"github.com/teslashibe/go-narrate/pkg/tts"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func memoryConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Synthesis.Provider = config.ProviderMock
	cfg.Records.Backend = config.BackendMemory
	cfg.Storage.Backend = config.BackendMemory
	cfg.Ledger.Enabled = true
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "ledger.db")
	return cfg
}

func TestBuildMemory(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, memoryConfig(t), "test", newLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close(ctx)

	if a.Service == nil || a.Telemetry == nil {
		t.Fatal("expected service and telemetry")
	}

	srv := a.Server("test")
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected /metrics 200, got %d", resp.StatusCode)
	}

	// Memory record store starts empty.
	resp, err = srv.App().Test(httptest.NewRequest(http.MethodPost, "/api/narrate",
		strings.NewReader(`{"recordId":"rec1"}`)), -1)
	if err != nil {
		t.Fatalf("narrate request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500 for unknown record, got %d", resp.StatusCode)
	}
}

func TestEventFeedToggle(t *testing.T) {
	ctx := context.Background()

	a, err := Build(ctx, memoryConfig(t), "test", newLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if a.Feed == nil {
		t.Error("expected event feed by default")
	}
	a.Close(ctx)

	cfg := memoryConfig(t)
	cfg.Server.EventFeed = false
	b, err := Build(ctx, cfg, "test", newLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer b.Close(ctx)
	if b.Feed != nil {
		t.Error("expected no event feed")
	}
	resp, err := b.Server("test").App().Test(httptest.NewRequest(http.MethodGet, "/ws/events", nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusUpgradeRequired {
		t.Error("feed route should not be registered")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, memoryConfig(t), "test", newLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestNewSynthesizer(t *testing.T) {
	cfg := config.Default().Synthesis
	cfg.APIKey = "xi-test"
	cfg.VoiceID = "rachel"
	cfg.ChunkSchedule = []int{50, 120}

	synth, err := NewSynthesizer(cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stream, ok := synth.(*tts.ElevenLabsStream)
	if !ok {
		t.Fatalf("expected ElevenLabsStream, got %T", synth)
	}
	if stream.VoiceID() != tts.ResolveElevenLabsVoice("rachel") {
		t.Errorf("expected preset to resolve, got %s", stream.VoiceID())
	}

	cfg.APIKey = ""
	if _, err := NewSynthesizer(cfg, newLogger()); err == nil {
		t.Error("expected error without api key")
	}

	cfg.Provider = config.ProviderMock
	if synth, _ := NewSynthesizer(cfg, newLogger()); synth == nil {
		t.Error("expected mock synthesizer")
	}
}

func TestNewRecordStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default().Records

	cfg.Backend = config.BackendMemory
	if s, err := NewRecordStore(ctx, cfg); err != nil {
		t.Errorf("memory: %v", err)
	} else if _, ok := s.(*records.Memory); !ok {
		t.Errorf("expected memory store, got %T", s)
	}

	cfg.Backend = config.BackendAirtable
	cfg.Airtable.APIKey, cfg.Airtable.BaseID, cfg.Airtable.TableName = "k", "b", "t"
	if s, err := NewRecordStore(ctx, cfg); err != nil {
		t.Errorf("airtable: %v", err)
	} else if _, ok := s.(*records.Airtable); !ok {
		t.Errorf("expected airtable store, got %T", s)
	}

	cfg.Backend = config.BackendSheets
	cfg.Sheets.SpreadsheetID = "sheet"
	cfg.Sheets.Endpoint = "http://127.0.0.1:1/"
	if s, err := NewRecordStore(ctx, cfg); err != nil {
		t.Errorf("sheets: %v", err)
	} else if _, ok := s.(*records.Sheets); !ok {
		t.Errorf("expected sheets store, got %T", s)
	}

	cfg.Backend = "postgres"
	if _, err := NewRecordStore(ctx, cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewSink(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default().Storage

	cfg.Backend = config.BackendMemory
	if s, err := NewSink(ctx, cfg); err != nil {
		t.Errorf("memory: %v", err)
	} else if _, ok := s.(*storage.Memory); !ok {
		t.Errorf("expected memory sink, got %T", s)
	}

	cfg.Backend = config.BackendS3
	cfg.Bucket = "narrations"
	cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey = "AKID", "secret"
	if s, err := NewSink(ctx, cfg); err != nil {
		t.Errorf("s3: %v", err)
	} else if _, ok := s.(*storage.S3); !ok {
		t.Errorf("expected s3 sink, got %T", s)
	}

	cfg.Backend = config.BackendGCS
	cfg.GCS.Endpoint = "http://127.0.0.1:1/storage/v1/"
	if s, err := NewSink(ctx, cfg); err != nil {
		t.Errorf("gcs: %v", err)
	} else if _, ok := s.(*storage.GCS); !ok {
		t.Errorf("expected gcs sink, got %T", s)
	}

	cfg.Backend = "ftp"
	if _, err := NewSink(ctx, cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLedgerWiredThroughBuild(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)
	a, err := Build(ctx, cfg, "test", newLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	a.Close(ctx)

	l, err := ledger.Open(ctx, cfg.Ledger.Path, newLogger())
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	defer l.Close()
	rows, err := l.ListByStatus(ctx, ledger.StatusLinked, 10)
	if err != nil || len(rows) != 0 {
		t.Errorf("expected empty ledger, got %v (%v)", rows, err)
	}
}
