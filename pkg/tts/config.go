package tts

import (
	"log/slog"
	"time"
)

// AuthMode selects where the provider credential travels.
type AuthMode string

const (
	// AuthHeader sends the key as the xi-api-key header on the WebSocket upgrade.
	AuthHeader AuthMode = "header"

	// AuthInline sends the key as xi_api_key inside the handshake message.
	// Older provider contract revisions required this.
	AuthInline AuthMode = "inline"
)

// Config holds TTS provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Provider credentials
	APIKey string

	// StreamURL is the WebSocket base; the voice ID and stream-input path are appended.
	StreamURL string

	// RESTURL is the HTTP API base used for health checks.
	RESTURL string

	// Voice configuration
	VoiceID       string
	ModelID       string
	VoiceSettings VoiceSettings

	// Audio output
	OutputFormat Encoding

	// Handshake shape
	AuthMode      AuthMode
	ChunkSchedule []int

	// HandshakeDelay is waited between connection open and the first message.
	HandshakeDelay time.Duration

	// Timeouts
	DialTimeout    time.Duration
	IdleTimeout    time.Duration
	SessionTimeout time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring TTS providers.
type Option func(*Config)

// WithAPIKey sets the API key for the provider.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithStreamURL overrides the default WebSocket base URL.
func WithStreamURL(url string) Option {
	return func(c *Config) {
		c.StreamURL = url
	}
}

// WithRESTURL overrides the default HTTP API base URL.
func WithRESTURL(url string) Option {
	return func(c *Config) {
		c.RESTURL = url
	}
}

// WithVoice sets the voice ID. Preset names are resolved.
func WithVoice(voiceID string) Option {
	return func(c *Config) {
		c.VoiceID = ResolveElevenLabsVoice(voiceID)
	}
}

// WithModel sets the model ID.
func WithModel(modelID string) Option {
	return func(c *Config) {
		c.ModelID = modelID
	}
}

// WithOutputFormat sets the audio output format.
func WithOutputFormat(format Encoding) Option {
	return func(c *Config) {
		c.OutputFormat = format
	}
}

// WithVoiceSettings sets voice characteristics.
func WithVoiceSettings(settings VoiceSettings) Option {
	return func(c *Config) {
		c.VoiceSettings = settings
	}
}

// WithAuthMode selects header or inline credentials.
func WithAuthMode(mode AuthMode) Option {
	return func(c *Config) {
		c.AuthMode = mode
	}
}

// WithChunkSchedule adds a generation_config.chunk_length_schedule hint to the handshake.
func WithChunkSchedule(schedule ...int) Option {
	return func(c *Config) {
		c.ChunkSchedule = schedule
	}
}

// WithHandshakeDelay sets the grace delay before the handshake is sent.
func WithHandshakeDelay(d time.Duration) Option {
	return func(c *Config) {
		c.HandshakeDelay = d
	}
}

// WithDialTimeout bounds the WebSocket upgrade.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.DialTimeout = d
	}
}

// WithIdleTimeout bounds the wait for each inbound message.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.IdleTimeout = d
	}
}

// WithSessionTimeout bounds a whole session.
func WithSessionTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.SessionTimeout = d
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		StreamURL:      elevenLabsWSBaseURL,
		RESTURL:        elevenLabsBaseURL,
		ModelID:        ModelMultilingualV2,
		OutputFormat:   EncodingMP3,
		VoiceSettings:  DefaultVoiceSettings(),
		AuthMode:       AuthHeader,
		HandshakeDelay: 100 * time.Millisecond,
		DialTimeout:    10 * time.Second,
		IdleTimeout:    20 * time.Second,
		SessionTimeout: 2 * time.Minute,
		Logger:         slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// ValidateWithVoice checks that both API key and voice ID are present.
func (c *Config) ValidateWithVoice() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.VoiceID == "" {
		return ErrNoVoiceID
	}
	switch c.AuthMode {
	case AuthHeader, AuthInline:
	default:
		return ErrBadAuthMode
	}
	return nil
}
