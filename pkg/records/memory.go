package records

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// Memory is an in-process Store. Errors can be injected for tests.
type Memory struct {
	mu      sync.Mutex
	records map[string]map[string]any
	writes  int

	// GetErr and SetErr, when set, are returned instead of touching data.
	GetErr error
	SetErr error
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]any)}
}

// Put creates or replaces a record.
func (m *Memory) Put(recordID string, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recordID] = maps.Clone(fields)
}

// Fields returns a copy of the record's fields, or nil if absent.
func (m *Memory) Fields(recordID string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.records[recordID])
}

// Writes returns how many SetFields calls succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) GetField(_ context.Context, recordID, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", m.GetErr
	}
	rec, ok := m.records[recordID]
	if !ok {
		return "", fmt.Errorf("get record %s: %w", recordID, ErrRecordNotFound)
	}
	return stringValue(rec[field]), nil
}

func (m *Memory) SetFields(_ context.Context, recordID string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	rec, ok := m.records[recordID]
	if !ok {
		return fmt.Errorf("update record %s: %w", recordID, ErrRecordNotFound)
	}
	maps.Copy(rec, fields)
	m.writes++
	return nil
}

var _ Store = (*Memory)(nil)
