package narration

import (
	"sync"
	"testing"
	"time"
)

func TestKeyGeneratorFormat(t *testing.T) {
	g := NewKeyGenerator("audio/", "mp3")
	g.now = func() time.Time { return time.UnixMilli(1700000000123) }

	if got := g.Next("recXYZ"); got != "audio/recXYZ-1700000000123.mp3" {
		t.Errorf("unexpected key %s", got)
	}
}

func TestKeyGeneratorSameMillisecond(t *testing.T) {
	g := NewKeyGenerator("audio/", "mp3")
	g.now = func() time.Time { return time.UnixMilli(1000) }

	a, b, c := g.Next("r"), g.Next("r"), g.Next("r")
	if a != "audio/r-1000.mp3" || b != "audio/r-1001.mp3" || c != "audio/r-1002.mp3" {
		t.Errorf("unexpected keys %s %s %s", a, b, c)
	}
}

func TestKeyGeneratorClockStepsBack(t *testing.T) {
	g := NewKeyGenerator("audio/", "mp3")
	g.now = func() time.Time { return time.UnixMilli(5000) }
	g.Next("r")
	g.now = func() time.Time { return time.UnixMilli(4000) }

	if got := g.Next("r"); got != "audio/r-5001.mp3" {
		t.Errorf("expected monotonic key, got %s", got)
	}
}

func TestKeyGeneratorConcurrent(t *testing.T) {
	g := NewKeyGenerator("audio/", "mp3")
	g.now = func() time.Time { return time.UnixMilli(42) }

	const n = 64
	keys := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys <- g.Next("rec1")
		}()
	}
	wg.Wait()
	close(keys)

	seen := make(map[string]bool)
	for k := range keys {
		if seen[k] {
			t.Fatalf("duplicate key %s", k)
		}
		seen[k] = true
	}
}
