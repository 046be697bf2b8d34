package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-narrate/pkg/tts"
	"github.com/teslashibe/go-narrate/pkg/tts/ttstest"
)

func TestSummarize(t *testing.T) {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }

	t.Run("mixed", func(t *testing.T) {
		s := summarize([]sample{
			{firstAudio: ms(300), total: ms(900), bytes: 100},
			{firstAudio: ms(100), total: ms(700), bytes: 300},
			{err: errors.New("boom")},
			{firstAudio: ms(200), total: ms(800), bytes: 200},
		})
		if s.ok != 3 || s.failed != 1 {
			t.Fatalf("expected 3 ok 1 failed, got %d/%d", s.ok, s.failed)
		}
		if s.firstMin != ms(100) || s.firstMax != ms(300) || s.firstAvg != ms(200) {
			t.Errorf("unexpected first audio stats: %+v", s)
		}
		if s.firstP95 != ms(300) {
			t.Errorf("expected p95 300ms, got %v", s.firstP95)
		}
		if s.totalAvg != ms(800) || s.bytesAvg != 200 {
			t.Errorf("unexpected averages: %+v", s)
		}
	})

	t.Run("all failed", func(t *testing.T) {
		s := summarize([]sample{{err: errors.New("a")}, {err: errors.New("b")}})
		if s.ok != 0 || s.failed != 2 || s.firstAvg != 0 {
			t.Errorf("unexpected summary: %+v", s)
		}
	})
}

func TestPercentile(t *testing.T) {
	in := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(in, 0.95); got != 10 {
		t.Errorf("expected 10, got %v", got)
	}
	if got := percentile(in, 0.5); got != 5 {
		t.Errorf("expected 5, got %v", got)
	}
	if got := percentile(nil, 0.95); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestRunOnce(t *testing.T) {
	provider := ttstest.NewProvider(t,
		ttstest.AudioBytes([]byte{1, 2, 3}),
		ttstest.Alignment(`{"chars":["a"]}`),
		ttstest.AudioBytes([]byte{4}),
		ttstest.Final(),
	)
	stream, err := tts.NewElevenLabsStream(
		tts.WithAPIKey("test-key"),
		tts.WithVoice("v"),
		tts.WithStreamURL(provider.URL()),
		tts.WithHandshakeDelay(0),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := runOnce(context.Background(), stream, "hello")
	if s.err != nil {
		t.Fatalf("unexpected error: %v", s.err)
	}
	if s.bytes != 4 || s.fragments != 2 || s.timing != 1 {
		t.Errorf("unexpected sample: %+v", s)
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey("sk_1234567890abcdef"); got != "sk_1234567...cdef" {
		t.Errorf("unexpected mask: %s", got)
	}
	if got := maskKey("short"); got != "*****" {
		t.Errorf("unexpected mask: %s", got)
	}
}
