package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ELEVENLABS_API_KEY", "xi-test")
	t.Setenv("ELEVENLABS_VOICE_ID", "voice-1")
	t.Setenv("AIRTABLE_API_KEY", "pat-test")
	t.Setenv("AIRTABLE_BASE_ID", "appBase")
	t.Setenv("AIRTABLE_TABLE_NAME", "Scripts")
	t.Setenv("S3_BUCKET_NAME", "narrations")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Records.Fields.Script != "Script" || cfg.Records.Fields.AudioURL != "Audio URL" {
		t.Errorf("unexpected default fields: %+v", cfg.Records.Fields)
	}
	if cfg.Storage.S3.Region != "us-east-1" {
		t.Errorf("expected default region, got %s", cfg.Storage.S3.Region)
	}
	if cfg.Synthesis.AuthMode != "header" {
		t.Errorf("expected header auth by default, got %s", cfg.Synthesis.AuthMode)
	}
	if !cfg.Server.EventFeed {
		t.Error("expected event feed on by default")
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "ELEVENLABS_API_KEY") {
		t.Fatalf("expected missing api key error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8080")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NATS_URL", "nats://one:4222, nats://two:4222")
	t.Setenv("NARRATE_EVENTS_ENABLED", "true")
	t.Setenv("NARRATE_DETAILED_STATUS", "true")
	t.Setenv("NARRATE_EVENT_FEED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.S3.Region != "eu-west-1" {
		t.Errorf("expected region override, got %s", cfg.Storage.S3.Region)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level override, got %s", cfg.Log.Level)
	}
	if len(cfg.Events.Servers) != 2 || !cfg.Events.Enabled {
		t.Errorf("expected two nats servers and events enabled, got %+v", cfg.Events)
	}
	if !cfg.Server.DetailedStatus {
		t.Error("expected detailed status override")
	}
	if cfg.Server.EventFeed {
		t.Error("expected event feed override")
	}
	if cfg.Synthesis.APIKey != "xi-test" || cfg.Records.Airtable.BaseID != "appBase" {
		t.Error("expected credentials from environment")
	}
}

func TestLoadFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "narrate.yaml")
	data := `
server:
  port: 9000
records:
  backend: memory
  fields:
    script: Body
    audio_url: Narration
    timestamps_json: Timing
storage:
  backend: memory
synthesis:
  chunk_length_schedule: [50, 120]
  voice_settings:
    stability: 0.3
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Records.Fields.Script != "Body" || cfg.Records.Fields.Timestamp != "Timing" {
		t.Errorf("unexpected fields: %+v", cfg.Records.Fields)
	}
	if len(cfg.Synthesis.ChunkSchedule) != 2 || cfg.Synthesis.ChunkSchedule[1] != 120 {
		t.Errorf("unexpected chunk schedule: %v", cfg.Synthesis.ChunkSchedule)
	}
	if cfg.Synthesis.Voice.Stability != 0.3 {
		t.Errorf("expected stability 0.3, got %v", cfg.Synthesis.Voice.Stability)
	}
	if cfg.Synthesis.Voice.SimilarityBoost != 0.75 {
		t.Errorf("expected default similarity boost kept, got %v", cfg.Synthesis.Voice.SimilarityBoost)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	base := Default()
	base.Synthesis.Provider = ProviderMock
	base.Records.Backend = BackendMemory
	base.Storage.Backend = BackendMemory

	if err := base.Validate(); err != nil {
		t.Fatalf("expected memory config to validate, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad provider", func(c *Config) { c.Synthesis.Provider = "polly" }},
		{"bad auth mode", func(c *Config) { c.Synthesis.AuthMode = "query" }},
		{"bad records backend", func(c *Config) { c.Records.Backend = "postgres" }},
		{"airtable without key", func(c *Config) { c.Records.Backend = BackendAirtable }},
		{"sheets without id", func(c *Config) { c.Records.Backend = BackendSheets }},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = BackendS3 }},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = BackendGCS }},
		{"blank field name", func(c *Config) { c.Records.Fields.Script = "" }},
		{"events without servers", func(c *Config) {
			c.Events.Enabled = true
			c.Events.Servers = nil
		}},
		{"ledger without path", func(c *Config) {
			c.Ledger.Enabled = true
			c.Ledger.Path = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Events.Servers = append([]string(nil), base.Events.Servers...)
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestHelpers(t *testing.T) {
	if got := Millis(1500); got != 1500*time.Millisecond {
		t.Errorf("Millis(1500) = %v", got)
	}
	s := ServerConfig{Bind: "127.0.0.1", Port: 3000}
	if s.Addr() != "127.0.0.1:3000" {
		t.Errorf("unexpected addr %s", s.Addr())
	}
	c := Config{Environment: "production"}
	if !c.IsProduction() {
		t.Error("expected production")
	}
}
