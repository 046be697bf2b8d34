// Package tts drives streaming text-to-speech synthesis sessions.
//
// A session opens one WebSocket connection to the provider, submits the whole
// script in a single flush, and collects the audio fragments and alignment
// (timing) events the provider streams back until the connection closes. The
// result is one contiguous audio artifact plus the ordered timing events.
//
// Example usage:
//
//	synth, _ := tts.NewElevenLabsStream(
//	    tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    tts.WithVoice("your-voice-id"),
//	)
//
//	result, err := synth.RunSession(ctx, "Hello world", uuid.NewString())
//	// result.Audio holds MP3 bytes, result.Timing the alignment events
package tts

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Synthesizer runs one synthesis session per call.
// Implementations must not share mutable state between concurrent calls.
type Synthesizer interface {
	// RunSession synthesizes text and returns the assembled artifact.
	// Failures wrap ErrConnection, ErrProtocol or ErrEmptyAudio.
	RunSession(ctx context.Context, text, requestID string) (*SessionResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error
}

// SessionResult is the outcome of a successful synthesis session.
// Audio is never empty.
type SessionResult struct {
	// RequestID correlates the session with the inbound request.
	RequestID string

	// Audio is the concatenation of every audio fragment in arrival order.
	Audio []byte

	// Timing holds the provider's alignment events in arrival order,
	// passed through unchanged.
	Timing []json.RawMessage

	// Format describes the audio encoding.
	Format AudioFormat

	// Fragments is the number of audio fragments received.
	Fragments int

	// Duration is the probed playback duration (zero if unknown).
	Duration time.Duration

	// FirstAudioMs is the time from dial to the first audio fragment.
	FirstAudioMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// Encoding represents audio encoding types.
// These match ElevenLabs output_format options.
type Encoding string

const (
	// PCM formats (raw 16-bit mono)
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM22 Encoding = "pcm_22050"
	EncodingPCM24 Encoding = "pcm_24000"
	EncodingPCM44 Encoding = "pcm_44100"

	// Compressed formats
	EncodingMP3     Encoding = "mp3_44100_128" // MP3 128kbps
	EncodingMP3Low  Encoding = "mp3_22050_32"  // MP3 32kbps, smallest files
	EncodingMP3High Encoding = "mp3_44100_192" // MP3 192kbps (paid tiers)
	EncodingULaw    Encoding = "ulaw_8000"     // μ-law 8kHz (telephony)
)

// IsMP3 reports whether the encoding produces an MP3 stream.
func (e Encoding) IsMP3() bool {
	return strings.HasPrefix(string(e), "mp3_")
}

// MIMEType returns the content type for stored artifacts of this encoding.
func (e Encoding) MIMEType() string {
	switch {
	case e.IsMP3():
		return "audio/mpeg"
	case strings.HasPrefix(string(e), "pcm_"):
		return "audio/pcm"
	case e == EncodingULaw:
		return "audio/basic"
	default:
		return "audio/mpeg"
	}
}

// Extension returns the file extension (without dot) for this encoding.
func (e Encoding) Extension() string {
	switch {
	case strings.HasPrefix(string(e), "pcm_"):
		return "pcm"
	case e == EncodingULaw:
		return "ulaw"
	default:
		return "mp3"
	}
}

// VoiceSettings controls voice characteristics sent in the handshake.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0).
	// Lower values = more expressive/variable, higher = more consistent.
	Stability float64 `yaml:"stability"`

	// SimilarityBoost controls how closely the voice matches the original (0.0-1.0).
	SimilarityBoost float64 `yaml:"similarity_boost"`

	// Style controls style exaggeration (0.0-1.0).
	Style float64 `yaml:"style"`

	// SpeakerBoost enhances speaker clarity.
	SpeakerBoost bool `yaml:"speaker_boost"`
}

// DefaultVoiceSettings returns sensible defaults for narration.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		SpeakerBoost:    true,
	}
}

// SampleRateFromEncoding extracts the sample rate from an encoding type.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22, EncodingMP3Low:
		return 22050
	case EncodingPCM24:
		return 24000
	case EncodingPCM44, EncodingMP3, EncodingMP3High:
		return 44100
	case EncodingULaw:
		return 8000
	default:
		return 44100
	}
}

func formatFor(enc Encoding) AudioFormat {
	return AudioFormat{
		Encoding:   enc,
		SampleRate: SampleRateFromEncoding(enc),
		Channels:   1,
	}
}
