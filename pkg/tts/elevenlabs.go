package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/teslashibe/go-narrate/internal/httpc"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

// Health checks API connectivity and API key validity.
func (e *ElevenLabsStream) Health(ctx context.Context) error {
	url := strings.TrimRight(e.config.RESTURL, "/") + "/user"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return WrapError(providerElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := httpc.Do(req)
	if err != nil {
		return WrapError(providerElevenLabs, fmt.Errorf("%w: health check: %w", ErrConnection, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseError(resp)
	}
	return nil
}

// AccountVoice is a voice available to the configured account.
type AccountVoice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// ListVoices returns the voices the API key can synthesize with.
func (e *ElevenLabsStream) ListVoices(ctx context.Context) ([]AccountVoice, error) {
	url := strings.TrimRight(e.config.RESTURL, "/") + "/voices"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("%w: list voices: %w", ErrConnection, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var result struct {
		Voices []AccountVoice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("%w: decode voices: %w", ErrProtocol, err))
	}
	return result.Voices, nil
}

// parseError reads and parses an error response.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
		Provider:   providerElevenLabs,
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail.Message != "" {
		apiErr.Message = errResp.Detail.Message
		apiErr.Code = errResp.Detail.Status
	}
	return apiErr
}
