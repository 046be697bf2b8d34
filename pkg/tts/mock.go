package tts

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Mock implements Synthesizer for testing.
// All methods can be customized via function fields.
type Mock struct {
	// RunSessionFunc is called when RunSession is invoked.
	// If nil, NewMock's default fragments are returned.
	RunSessionFunc func(ctx context.Context, text, requestID string) (*SessionResult, error)

	// HealthFunc is called when Health is invoked.
	// If nil, returns nil (healthy).
	HealthFunc func(ctx context.Context) error

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method    string
	Text      string
	RequestID string
	Time      time.Time
}

// NewMock creates a mock that answers every session with two small MP3-ish
// fragments and one alignment event.
func NewMock() *Mock {
	return &Mock{
		RunSessionFunc: func(ctx context.Context, text, requestID string) (*SessionResult, error) {
			audio, err := Assemble([][]byte{{0xFF, 0xFB, 0x90}, {0x64, 0x00}})
			if err != nil {
				return nil, err
			}
			return &SessionResult{
				RequestID: requestID,
				Audio:     audio,
				Timing: []json.RawMessage{
					json.RawMessage(`{"chars":["h","i"],"charStartTimesMs":[0,80],"charDurationsMs":[80,90]}`),
				},
				Format:    formatFor(EncodingMP3),
				Fragments: 2,
			}, nil
		},
	}
}

// RunSession calls RunSessionFunc and records the call.
func (m *Mock) RunSession(ctx context.Context, text, requestID string) (*SessionResult, error) {
	m.recordCall("RunSession", text, requestID)
	if m.RunSessionFunc != nil {
		return m.RunSessionFunc(ctx, text, requestID)
	}
	return nil, WrapError("mock", ErrEmptyAudio)
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", "", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

func (m *Mock) recordCall(method, text, requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:    method,
		Text:      text,
		RequestID: requestID,
		Time:      time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock whose sessions and health checks fail with err.
func WithError(err error) *Mock {
	return &Mock{
		RunSessionFunc: func(ctx context.Context, text, requestID string) (*SessionResult, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// WithLatency wraps a mock to add artificial latency to each session.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	original := m.RunSessionFunc
	m.RunSessionFunc = func(ctx context.Context, text, requestID string) (*SessionResult, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if original != nil {
			return original(ctx, text, requestID)
		}
		return nil, WrapError("mock", ErrEmptyAudio)
	}
	return m
}

// Verify Mock implements Synthesizer at compile time.
var _ Synthesizer = (*Mock)(nil)
