package narration

import (
	"fmt"
	"sync/atomic"
	"time"
)

// KeyGenerator derives storage keys of the form
// "{prefix}{recordID}-{unixMillis}.{ext}". The millisecond component never
// repeats within one generator, so back-to-back requests for the same
// record get distinct keys.
type KeyGenerator struct {
	prefix string
	ext    string
	now    func() time.Time
	last   atomic.Int64
}

// NewKeyGenerator returns a generator using the wall clock.
func NewKeyGenerator(prefix, ext string) *KeyGenerator {
	return &KeyGenerator{prefix: prefix, ext: ext, now: time.Now}
}

// Next returns a fresh key for recordID.
func (g *KeyGenerator) Next(recordID string) string {
	ms := g.now().UnixMilli()
	for {
		prev := g.last.Load()
		next := ms
		if next <= prev {
			next = prev + 1
		}
		if g.last.CompareAndSwap(prev, next) {
			return fmt.Sprintf("%s%s-%d.%s", g.prefix, recordID, next, g.ext)
		}
	}
}
