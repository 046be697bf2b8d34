package tts

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration problems.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("tts: API key required")

	// ErrNoVoiceID is returned when the voice ID is missing.
	ErrNoVoiceID = errors.New("tts: voice ID required")

	// ErrBadAuthMode is returned for an unknown AuthMode.
	ErrBadAuthMode = errors.New("tts: auth mode must be header or inline")

	// ErrEmptyText is returned when asked to synthesize blank text.
	ErrEmptyText = errors.New("tts: text is empty")
)

// Session failure kinds. Session errors wrap exactly one of these.
var (
	// ErrConnection is a transport-level failure of the provider connection,
	// including dial failures, resets and timeouts.
	ErrConnection = errors.New("tts: connection failed")

	// ErrProtocol is a malformed handshake or a rejection by the provider.
	ErrProtocol = errors.New("tts: protocol error")

	// ErrEmptyAudio is returned when a session ends without any audio fragment.
	ErrEmptyAudio = errors.New("tts: no audio received")
)

// APIError represents an error response from the provider.
type APIError struct {
	// StatusCode is the HTTP status code (0 for in-stream errors).
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Code is the error code from the API (if provided).
	Code string

	// Provider identifies which provider returned the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tts [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tts [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsForbidden returns true if this is a permission error (HTTP 403).
func (e *APIError) IsForbidden() bool {
	return e.StatusCode == 403
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider  string
	RequestID string
	Err       error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("tts [%s] request %s: %v", e.Provider, e.RequestID, e.Err)
	}
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// Kind returns the session failure kind wrapped by err, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrConnection, ErrProtocol, ErrEmptyAudio} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
