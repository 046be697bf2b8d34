package storage

import (
	"context"
	"slices"
	"sync"
)

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Memory is an in-process Sink for tests and local runs.
type Memory struct {
	mu      sync.Mutex
	base    string
	objects map[string]Object

	// PutErr, when set, fails every upload.
	PutErr error
}

// NewMemory returns a sink whose URLs start with base.
func NewMemory(base string) *Memory {
	if base == "" {
		base = "memory://narrations"
	}
	return &Memory{base: base, objects: make(map[string]Object)}
}

func (m *Memory) PutObject(_ context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return "", m.PutErr
	}
	m.objects[key] = Object{Data: slices.Clone(data), ContentType: contentType}
	return joinURL(m.base, key), nil
}

// Get returns the object stored under key.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var _ Sink = (*Memory)(nil)
