// Package ttstest provides a scripted stand-in for the ElevenLabs
// stream-input WebSocket, for use in tests.
package ttstest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const handlerDeadline = 5 * time.Second

// Provider is a fake synthesis endpoint. Each connection is handled by the
// provider's script.
type Provider struct {
	server *httptest.Server
	script func(conn *websocket.Conn)

	mu       sync.Mutex
	received []map[string]any
	headers  []http.Header
	paths    []string
}

// NewProvider returns a provider that reads the client's handshake up to the
// end-of-stream message, replies with frames in order and closes normally.
func NewProvider(t testing.TB, frames ...string) *Provider {
	p := &Provider{}
	p.script = func(conn *websocket.Conn) {
		if !p.ReadHandshake(conn) {
			return
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				t.Errorf("ttstest: write frame: %v", err)
				return
			}
		}
		CloseWith(conn, websocket.CloseNormalClosure, "")
	}
	p.start(t)
	return p
}

// NewProviderFunc returns a provider that hands every upgraded connection
// to script. The script may call ReadHandshake to record client messages.
func NewProviderFunc(t testing.TB, script func(p *Provider, conn *websocket.Conn)) *Provider {
	p := &Provider{}
	p.script = func(conn *websocket.Conn) { script(p, conn) }
	p.start(t)
	return p
}

// NewRejectingProvider answers every upgrade with an HTTP error.
func NewRejectingProvider(t testing.TB, status int, body string) *Provider {
	p := &Provider{}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		http.Error(w, body, status)
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *Provider) start(t testing.TB) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("ttstest: upgrade: %v", err)
			return
		}
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(handlerDeadline))
		p.script(conn)
	}))
	t.Cleanup(p.server.Close)
}

func (p *Provider) record(r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.headers = append(p.headers, r.Header.Clone())
	p.paths = append(p.paths, r.URL.RequestURI())
}

// URL returns the ws:// base URL to pass to tts.WithStreamURL.
func (p *Provider) URL() string {
	return "ws" + strings.TrimPrefix(p.server.URL, "http")
}

// HTTPURL returns the plain http:// URL of the server.
func (p *Provider) HTTPURL() string {
	return p.server.URL
}

// ReadHandshake records client messages until the end-of-stream message
// (empty text) arrives. It reports whether EOS was seen.
func (p *Provider) ReadHandshake(conn *websocket.Conn) bool {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return false
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		p.mu.Lock()
		p.received = append(p.received, msg)
		p.mu.Unlock()
		if text, ok := msg["text"].(string); ok && text == "" {
			return true
		}
	}
}

// Messages returns the JSON messages received from clients.
func (p *Provider) Messages() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]map[string]any, len(p.received))
	copy(out, p.received)
	return out
}

// Headers returns the upgrade request headers of each connection.
func (p *Provider) Headers() []http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]http.Header, len(p.headers))
	copy(out, p.headers)
	return out
}

// Paths returns the request URI of each connection.
func (p *Provider) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.paths))
	copy(out, p.paths)
	return out
}

// Connections returns how many upgrade requests were received.
func (p *Provider) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paths)
}

// CloseWith sends a close frame with code and waits briefly for the client.
func CloseWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Drop closes the TCP connection without a close frame.
func Drop(conn *websocket.Conn) {
	_ = conn.UnderlyingConn().Close()
}

// Audio builds an audio frame from a base64 string.
func Audio(b64 string) string {
	return fmt.Sprintf(`{"audio":%q,"isFinal":null}`, b64)
}

// AudioBytes builds an audio frame from raw bytes.
func AudioBytes(b []byte) string {
	return Audio(base64.StdEncoding.EncodeToString(b))
}

// Alignment builds an alignment-only frame.
func Alignment(obj string) string {
	return fmt.Sprintf(`{"audio":null,"alignment":%s}`, obj)
}

// AudioWithAlignment builds a frame carrying audio and its alignment.
func AudioWithAlignment(b64, obj string) string {
	return fmt.Sprintf(`{"audio":%q,"alignment":%s,"normalizedAlignment":%s}`, b64, obj, obj)
}

// Final builds the provider's last message.
func Final() string {
	return `{"isFinal":true}`
}

// Error builds an in-stream provider error.
func Error(code, message string) string {
	return fmt.Sprintf(`{"message":%q,"error":%q,"code":1008}`, message, code)
}
