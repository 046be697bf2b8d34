package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-narrate/pkg/events"
	"github.com/teslashibe/go-narrate/pkg/hub"
	"github.com/teslashibe/go-narrate/pkg/narration"
	"github.com/teslashibe/go-narrate/pkg/records"
	"github.com/teslashibe/go-narrate/pkg/storage"
	"github.com/teslashibe/go-narrate/pkg/tts"
	"github.com/teslashibe/go-narrate/pkg/web"
)

type fakeNarrator struct {
	mu        sync.Mutex
	calls     []string
	err       error
	healthErr error
}

func (f *fakeNarrator) Process(_ context.Context, recordID string) (*narration.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordID)
	if f.err != nil {
		return nil, f.err
	}
	return &narration.Result{
		RecordID: recordID,
		AudioURL: "https://narrations.s3.us-east-1.amazonaws.com/audio/" + recordID + "-1.mp3",
	}, nil
}

func (f *fakeNarrator) Health(context.Context) error { return f.healthErr }

func (f *fakeNarrator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func do(t *testing.T, srv *web.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("invalid json %q: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestNarrateSuccess(t *testing.T) {
	for _, path := range []string{"/api/narrate", "/"} {
		t.Run(path, func(t *testing.T) {
			n := &fakeNarrator{}
			srv := web.NewServer(n, web.Config{Logger: newLogger()})

			status, body := do(t, srv, http.MethodPost, path, `{"recordId":"rec1"}`)
			if status != http.StatusOK {
				t.Fatalf("expected 200, got %d (%v)", status, body)
			}
			if body["recordId"] != "rec1" {
				t.Errorf("unexpected recordId %v", body["recordId"])
			}
			if body["audioUrl"] != "https://narrations.s3.us-east-1.amazonaws.com/audio/rec1-1.mp3" {
				t.Errorf("unexpected audioUrl %v", body["audioUrl"])
			}
			if body["message"] == "" {
				t.Error("expected a message")
			}
		})
	}
}

func TestNarrateMissingRecordID(t *testing.T) {
	bodies := []string{"", `{}`, `{"recordId":""}`, `{"recordId":"  "}`, `not json`, `{"record":"rec1"}`}
	for _, b := range bodies {
		t.Run(b, func(t *testing.T) {
			n := &fakeNarrator{}
			srv := web.NewServer(n, web.Config{Logger: newLogger()})

			status, _ := do(t, srv, http.MethodPost, "/api/narrate", b)
			if status != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", status)
			}
			if n.callCount() != 0 {
				t.Error("narrator must not be called")
			}
		})
	}
}

func TestNarrateMethodNotAllowed(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			n := &fakeNarrator{}
			srv := web.NewServer(n, web.Config{Logger: newLogger()})

			status, _ := do(t, srv, method, "/api/narrate", `{"recordId":"rec1"}`)
			if status != http.StatusMethodNotAllowed {
				t.Errorf("expected 405, got %d", status)
			}
			if n.callCount() != 0 {
				t.Error("narrator must not be called")
			}
		})
	}
}

func TestNarrateFailureUniformStatus(t *testing.T) {
	errs := []error{
		fmt.Errorf("fetch: %w", records.ErrRecordNotFound),
		narration.ErrEmptyScript,
		tts.WrapError("elevenlabs", tts.ErrConnection),
		fmt.Errorf("%w: x", narration.ErrStorage),
	}
	for _, e := range errs {
		t.Run(e.Error(), func(t *testing.T) {
			srv := web.NewServer(&fakeNarrator{err: e}, web.Config{Logger: newLogger()})

			status, body := do(t, srv, http.MethodPost, "/api/narrate", `{"recordId":"rec1"}`)
			if status != http.StatusInternalServerError {
				t.Errorf("expected 500, got %d", status)
			}
			if body["error"] != e.Error() {
				t.Errorf("expected error description, got %v", body["error"])
			}
			if _, ok := body["kind"]; ok {
				t.Error("kind must only be reported with detailed status")
			}
		})
	}
}

func TestNarrateDetailedStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("fetch: %w", records.ErrRecordNotFound), http.StatusNotFound},
		{narration.ErrEmptyScript, http.StatusUnprocessableEntity},
		{tts.WrapError("elevenlabs", tts.ErrConnection), http.StatusBadGateway},
		{tts.WrapError("elevenlabs", tts.ErrProtocol), http.StatusBadGateway},
		{tts.ErrEmptyAudio, http.StatusBadGateway},
		{fmt.Errorf("%w: x", narration.ErrStorage), http.StatusInternalServerError},
		{fmt.Errorf("%w: x", narration.ErrWriteBack), http.StatusInternalServerError},
		{fmt.Errorf("%w: audio stored at k: %w", narration.ErrWriteBack, records.ErrRecordNotFound), http.StatusInternalServerError},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			srv := web.NewServer(&fakeNarrator{err: tt.err}, web.Config{DetailedStatus: true, Logger: newLogger()})

			status, body := do(t, srv, http.MethodPost, "/api/narrate", `{"recordId":"rec1"}`)
			if status != tt.want {
				t.Errorf("expected %d, got %d", tt.want, status)
			}
			if body["kind"] != narration.Classify(tt.err) {
				t.Errorf("unexpected kind %v", body["kind"])
			}
		})
	}
}

func TestHealth(t *testing.T) {
	n := &fakeNarrator{}
	srv := web.NewServer(n, web.Config{Version: "1.2.3", Logger: newLogger()})

	status, body := do(t, srv, http.MethodGet, "/health", "")
	if status != http.StatusOK || body["status"] != "ok" || body["version"] != "1.2.3" {
		t.Errorf("unexpected health %d %v", status, body)
	}

	status, body = do(t, srv, http.MethodGet, "/health?deep=1", "")
	if status != http.StatusOK || body["provider"] != "ok" {
		t.Errorf("unexpected deep health %d %v", status, body)
	}

	n.healthErr = errors.New("unauthorized")
	status, body = do(t, srv, http.MethodGet, "/health?deep=1", "")
	if status != http.StatusServiceUnavailable || body["status"] != "degraded" {
		t.Errorf("expected degraded, got %d %v", status, body)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		io.WriteString(w, "narration_requests_total 3\n")
	})
	srv := web.NewServer(&fakeNarrator{}, web.Config{Metrics: metrics, Logger: newLogger()})

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), "narration_requests_total 3") {
		t.Errorf("unexpected metrics response %d %q", resp.StatusCode, raw)
	}
}

// End to end through the real service with in-memory collaborators.
func TestNarrateWithService(t *testing.T) {
	store := records.NewMemory()
	store.Put("rec1", map[string]any{"Script": "Hello."})
	sink := storage.NewMemory("https://files.test")
	svc := narration.New(store, tts.NewMock(), sink, narration.WithLogger(newLogger()))
	srv := web.NewServer(svc, web.Config{Logger: newLogger()})

	status, body := do(t, srv, http.MethodPost, "/api/narrate", `{"recordId":"rec1"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if store.Fields("rec1")["Audio URL"] != body["audioUrl"] {
		t.Errorf("record not updated with returned url")
	}
	if len(sink.Keys()) != 1 {
		t.Errorf("expected one stored object, got %v", sink.Keys())
	}
}

func TestEventFeed(t *testing.T) {
	feed := hub.New("events", newLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	srv := web.NewServer(&fakeNarrator{}, web.Config{Feed: feed, Logger: newLogger()})

	t.Run("plain request needs upgrade", func(t *testing.T) {
		status, _ := do(t, srv, http.MethodGet, "/ws/events", "")
		if status != http.StatusUpgradeRequired {
			t.Errorf("expected 426, got %d", status)
		}
	})

	t.Run("subscriber receives events", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		go srv.App().Listener(ln)
		defer srv.Shutdown(context.Background())

		conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/events", nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()

		deadline := time.Now().Add(2 * time.Second)
		for feed.ClientCount() != 1 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if feed.ClientCount() != 1 {
			t.Fatal("subscriber never registered")
		}

		if err := feed.Publish(ctx, events.Event{Type: events.TypeCompleted, RecordID: "rec9"}); err != nil {
			t.Fatalf("publish: %v", err)
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var got events.Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("invalid json %q: %v", data, err)
		}
		if got.Type != events.TypeCompleted || got.RecordID != "rec9" {
			t.Errorf("unexpected event %+v", got)
		}
	})
}
