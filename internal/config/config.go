// Package config loads go-narrate configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by records.backend and storage.backend.
const (
	BackendAirtable = "airtable"
	BackendSheets   = "sheets"
	BackendS3       = "s3"
	BackendGCS      = "gcs"
	BackendMemory   = "memory"
)

// Synthesis providers.
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderMock       = "mock"
)

type Config struct {
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Log         LogConfig       `yaml:"log"`
	Synthesis   SynthesisConfig `yaml:"synthesis"`
	Records     RecordsConfig   `yaml:"records"`
	Storage     StorageConfig   `yaml:"storage"`
	Events      EventsConfig    `yaml:"events"`
	Ledger      LedgerConfig    `yaml:"ledger"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Bind              string `yaml:"bind"`
	Port              int    `yaml:"port"`
	DetailedStatus    bool   `yaml:"detailed_status"`
	EventFeed         bool   `yaml:"event_feed"`
	ShutdownTimeoutMS int    `yaml:"shutdown_timeout_ms"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Bind, s.Port)
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type SynthesisConfig struct {
	Provider         string        `yaml:"provider"` // elevenlabs, mock
	APIKey           string        `yaml:"api_key"`
	VoiceID          string        `yaml:"voice_id"`
	ModelID          string        `yaml:"model_id"`
	OutputFormat     string        `yaml:"output_format"`
	AuthMode         string        `yaml:"auth_mode"` // header, inline
	StreamURL        string        `yaml:"stream_url"`
	RESTURL          string        `yaml:"rest_url"`
	ChunkSchedule    []int         `yaml:"chunk_length_schedule"`
	HandshakeDelayMS int           `yaml:"handshake_delay_ms"`
	DialTimeoutMS    int           `yaml:"dial_timeout_ms"`
	IdleTimeoutMS    int           `yaml:"idle_timeout_ms"`
	SessionTimeoutMS int           `yaml:"session_timeout_ms"`
	Voice            VoiceSettings `yaml:"voice_settings"`
}

type VoiceSettings struct {
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`
	Style           float64 `yaml:"style"`
	SpeakerBoost    bool    `yaml:"speaker_boost"`
}

type RecordsConfig struct {
	Backend  string         `yaml:"backend"` // airtable, sheets, memory
	Fields   FieldsConfig   `yaml:"fields"`
	Airtable AirtableConfig `yaml:"airtable"`
	Sheets   SheetsConfig   `yaml:"sheets"`
}

// FieldsConfig names the record fields read and written per narration.
type FieldsConfig struct {
	Script    string `yaml:"script"`
	AudioURL  string `yaml:"audio_url"`
	Timestamp string `yaml:"timestamps_json"`
}

type AirtableConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseID    string `yaml:"base_id"`
	TableName string `yaml:"table_name"`
	BaseURL   string `yaml:"base_url"`
}

type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
	IDColumn        string `yaml:"id_column"`
	CredentialsFile string `yaml:"credentials_file"`
	Endpoint        string `yaml:"endpoint"`
}

type StorageConfig struct {
	Backend   string    `yaml:"backend"` // s3, gcs, memory
	Bucket    string    `yaml:"bucket"`
	KeyPrefix string    `yaml:"key_prefix"`
	PublicURL string    `yaml:"public_url"`
	S3        S3Config  `yaml:"s3"`
	GCS       GCSConfig `yaml:"gcs"`
}

type S3Config struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
}

type GCSConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	Endpoint        string `yaml:"endpoint"`
}

type EventsConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	SubjectPrefix  string   `yaml:"subject_prefix"`
	Token          string   `yaml:"token"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	StdoutTraces bool   `yaml:"stdout_traces"`
}

func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Bind:              "0.0.0.0",
			Port:              3000,
			EventFeed:         true,
			ShutdownTimeoutMS: 10000,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  64,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Synthesis: SynthesisConfig{
			Provider:         ProviderElevenLabs,
			ModelID:          "eleven_multilingual_v2",
			OutputFormat:     "mp3_44100_128",
			AuthMode:         "header",
			HandshakeDelayMS: 100,
			DialTimeoutMS:    10000,
			IdleTimeoutMS:    20000,
			SessionTimeoutMS: 120000,
			Voice: VoiceSettings{
				Stability:       0.5,
				SimilarityBoost: 0.75,
				SpeakerBoost:    true,
			},
		},
		Records: RecordsConfig{
			Backend: BackendAirtable,
			Fields: FieldsConfig{
				Script:    "Script",
				AudioURL:  "Audio URL",
				Timestamp: "Timestamps JSON",
			},
			Airtable: AirtableConfig{
				BaseURL: "https://api.airtable.com/v0",
			},
			Sheets: SheetsConfig{
				SheetName: "Sheet1",
				IDColumn:  "id",
			},
		},
		Storage: StorageConfig{
			Backend:   BackendS3,
			KeyPrefix: "audio/",
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Events: EventsConfig{
			Servers:        []string{"nats://localhost:4222"},
			SubjectPrefix:  "narration",
			ConnectTimeout: 2000,
		},
		Ledger: LedgerConfig{
			Path: "./data/narrate.db",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "go-narrate",
			OTLPInsecure: true,
		},
	}
}

// Load reads the YAML file at path (optional), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Environment, "GO_ENV")
	overrideInt(&cfg.Server.Port, "PORT")
	overrideBool(&cfg.Server.DetailedStatus, "NARRATE_DETAILED_STATUS")
	overrideBool(&cfg.Server.EventFeed, "NARRATE_EVENT_FEED")
	overrideString(&cfg.Log.Level, "LOG_LEVEL")
	overrideString(&cfg.Log.Format, "LOG_FORMAT")
	overrideString(&cfg.Log.File, "LOG_FILE")

	overrideString(&cfg.Synthesis.Provider, "NARRATE_SYNTHESIS_PROVIDER")
	overrideString(&cfg.Synthesis.APIKey, "ELEVENLABS_API_KEY")
	overrideString(&cfg.Synthesis.VoiceID, "ELEVENLABS_VOICE_ID")
	overrideString(&cfg.Synthesis.ModelID, "ELEVENLABS_MODEL_ID")
	overrideString(&cfg.Synthesis.OutputFormat, "ELEVENLABS_OUTPUT_FORMAT")
	overrideString(&cfg.Synthesis.AuthMode, "ELEVENLABS_AUTH_MODE")

	overrideString(&cfg.Records.Backend, "NARRATE_RECORDS_BACKEND")
	overrideString(&cfg.Records.Airtable.APIKey, "AIRTABLE_API_KEY")
	overrideString(&cfg.Records.Airtable.BaseID, "AIRTABLE_BASE_ID")
	overrideString(&cfg.Records.Airtable.TableName, "AIRTABLE_TABLE_NAME")
	overrideString(&cfg.Records.Sheets.SpreadsheetID, "SHEETS_SPREADSHEET_ID")
	overrideString(&cfg.Records.Sheets.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")

	overrideString(&cfg.Storage.Backend, "NARRATE_STORAGE_BACKEND")
	overrideString(&cfg.Storage.Bucket, "S3_BUCKET_NAME")
	overrideString(&cfg.Storage.S3.Region, "AWS_REGION")
	overrideString(&cfg.Storage.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
	overrideString(&cfg.Storage.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	overrideString(&cfg.Storage.GCS.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")

	overrideBool(&cfg.Events.Enabled, "NARRATE_EVENTS_ENABLED")
	overrideStringSlice(&cfg.Events.Servers, "NATS_URL")
	overrideString(&cfg.Events.Token, "NATS_TOKEN")
	overrideBool(&cfg.Ledger.Enabled, "NARRATE_LEDGER_ENABLED")
	overrideString(&cfg.Ledger.Path, "NARRATE_LEDGER_PATH")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}

	switch c.Synthesis.Provider {
	case ProviderElevenLabs:
		if c.Synthesis.APIKey == "" {
			return errors.New("synthesis.api_key (ELEVENLABS_API_KEY) must be set")
		}
		if c.Synthesis.VoiceID == "" {
			return errors.New("synthesis.voice_id (ELEVENLABS_VOICE_ID) must be set")
		}
	case ProviderMock:
	default:
		return errors.New("synthesis.provider must be one of elevenlabs|mock")
	}
	switch c.Synthesis.AuthMode {
	case "header", "inline":
	default:
		return errors.New("synthesis.auth_mode must be one of header|inline")
	}
	if c.Synthesis.SessionTimeoutMS <= 0 || c.Synthesis.IdleTimeoutMS <= 0 {
		return errors.New("synthesis timeouts must be positive")
	}

	if c.Records.Fields.Script == "" || c.Records.Fields.AudioURL == "" || c.Records.Fields.Timestamp == "" {
		return errors.New("records.fields must name script, audio_url and timestamps_json")
	}
	switch c.Records.Backend {
	case BackendAirtable:
		a := c.Records.Airtable
		if a.APIKey == "" || a.BaseID == "" || a.TableName == "" {
			return errors.New("records.airtable requires api_key, base_id and table_name")
		}
	case BackendSheets:
		if c.Records.Sheets.SpreadsheetID == "" {
			return errors.New("records.sheets.spreadsheet_id must be set")
		}
	case BackendMemory:
	default:
		return errors.New("records.backend must be one of airtable|sheets|memory")
	}

	switch c.Storage.Backend {
	case BackendS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket (S3_BUCKET_NAME) must be set")
		}
		if c.Storage.S3.Region == "" {
			return errors.New("storage.s3.region (AWS_REGION) must be set")
		}
	case BackendGCS:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set")
		}
	case BackendMemory:
	default:
		return errors.New("storage.backend must be one of s3|gcs|memory")
	}

	if c.Events.Enabled && len(c.Events.Servers) == 0 {
		return errors.New("events.servers must not be empty when events are enabled")
	}
	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return errors.New("ledger.path must not be empty when the ledger is enabled")
	}
	return nil
}

// IsProduction reports whether the service runs with GO_ENV=production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
