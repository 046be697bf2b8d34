// Package records reads narration scripts from, and writes results back to,
// a hosted tabular store.
//
// Three backends are provided:
//   - Airtable: REST API, one table per base
//   - Sheets: a Google Sheets tab with a header row and an ID column
//   - Memory: in-process map, for tests and local runs
package records

import (
	"context"
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned when the record ID does not exist.
var ErrRecordNotFound = errors.New("record not found")

// Store is the record-store collaborator.
type Store interface {
	// GetField returns the string value of field on the record.
	// A field that is absent or empty yields "" and no error.
	GetField(ctx context.Context, recordID, field string) (string, error)

	// SetFields updates the named fields on the record.
	SetFields(ctx context.Context, recordID string, fields map[string]any) error
}

// APIError is a non-success response from a record backend.
type APIError struct {
	Backend    string
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("records [%s]: API error %d (%s): %s", e.Backend, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("records [%s]: API error %d: %s", e.Backend, e.StatusCode, e.Message)
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
