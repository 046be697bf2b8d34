package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSetupServesMetrics(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, Config{ServiceName: "go-narrate-test", Environment: "test"}, newLogger())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { tel.Shutdown(context.Background()) })

	m, err := NewMetrics(tel.Meter)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	m.Request(ctx, OutcomeOK, "")
	m.Request(ctx, OutcomeFailed, "connection")
	m.Session(ctx, 1500*time.Millisecond, 240, 4096)

	rec := httptest.NewRecorder()
	tel.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"narration_requests", "narration_audio_bytes", `outcome="failed"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestSetupTwice(t *testing.T) {
	for i := 0; i < 2; i++ {
		tel, err := Setup(context.Background(), Config{ServiceName: "svc"}, newLogger())
		if err != nil {
			t.Fatalf("setup %d: %v", i, err)
		}
		if err := tel.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown %d: %v", i, err)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Request(context.Background(), OutcomeOK, "")
	m.Session(context.Background(), time.Second, 1, 1)

	noop, err := NewMetrics(nil)
	if err != nil {
		t.Fatalf("noop metrics: %v", err)
	}
	noop.Request(context.Background(), OutcomeOK, "")
}
