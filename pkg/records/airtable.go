package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/teslashibe/go-narrate/internal/httpc"
)

const (
	airtableBaseURL = "https://api.airtable.com/v0"
	backendAirtable = "airtable"
)

// AirtableConfig holds Airtable connection settings.
type AirtableConfig struct {
	APIKey    string
	BaseID    string
	TableName string
	BaseURL   string       // default https://api.airtable.com/v0
	Client    *http.Client // default httpc.Client
}

// Airtable is a Store backed by the Airtable REST API.
type Airtable struct {
	cfg    AirtableConfig
	client *http.Client
}

// NewAirtable creates an Airtable store.
func NewAirtable(cfg AirtableConfig) (*Airtable, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("records: airtable API key is required")
	}
	if cfg.BaseID == "" || cfg.TableName == "" {
		return nil, errors.New("records: airtable base ID and table name are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = airtableBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client := cfg.Client
	if client == nil {
		client = httpc.Client
	}
	return &Airtable{cfg: cfg, client: client}, nil
}

type airtableRecord struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

// GetField fetches the record and returns one field as a string.
func (a *Airtable) GetField(ctx context.Context, recordID, field string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.recordURL(recordID), nil)
	if err != nil {
		return "", err
	}

	var rec airtableRecord
	if err := a.do(req, &rec); err != nil {
		return "", fmt.Errorf("get record %s: %w", recordID, err)
	}
	return stringValue(rec.Fields[field]), nil
}

// SetFields patches the given fields, leaving others untouched.
func (a *Airtable) SetFields(ctx context.Context, recordID string, fields map[string]any) error {
	body, err := json.Marshal(airtableRecord{Fields: fields})
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, a.recordURL(recordID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := a.do(req, nil); err != nil {
		return fmt.Errorf("update record %s: %w", recordID, err)
	}
	return nil
}

func (a *Airtable) recordURL(recordID string) string {
	return fmt.Sprintf("%s/%s/%s/%s",
		a.cfg.BaseURL,
		url.PathEscape(a.cfg.BaseID),
		url.PathEscape(a.cfg.TableName),
		url.PathEscape(recordID))
}

func (a *Airtable) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		apiErr := parseAirtableError(resp)
		if isMissingRecord(apiErr) {
			return fmt.Errorf("%w: %w", ErrRecordNotFound, apiErr)
		}
		return apiErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAirtableError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// A 404 also covers an unknown table or base; only these types mean the
// record itself is missing.
func isMissingRecord(e *APIError) bool {
	return e.Type == "NOT_FOUND" || e.Type == "MODEL_ID_NOT_FOUND"
}

// Airtable reports errors either as {"error":"TYPE"} or
// {"error":{"type":"TYPE","message":"..."}}.
func parseAirtableError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{
		Backend:    backendAirtable,
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Error) == 0 {
		if s := strings.TrimSpace(string(body)); s != "" {
			apiErr.Message = s
		}
		return apiErr
	}

	var typ string
	if json.Unmarshal(envelope.Error, &typ) == nil {
		apiErr.Type = typ
		return apiErr
	}
	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &detail) == nil {
		apiErr.Type = detail.Type
		if detail.Message != "" {
			apiErr.Message = detail.Message
		}
	}
	return apiErr
}

var _ Store = (*Airtable)(nil)
