package coordinator

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// dedupWindow is how long a content hash stays hot.
const dedupWindow = 60 * time.Minute

// deduper remembers content hashes over a rolling window so the same
// text is never posted (or the same event processed) twice in a row.
type deduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
}

func newDeduper(window time.Duration) *deduper {
	if window <= 0 {
		window = dedupWindow
	}
	return &deduper{seen: make(map[string]time.Time), window: window}
}

// Seen reports whether the content was already recorded inside the
// window and records it when it was not. Expired entries are pruned on
// the way through.
func (d *deduper) Seen(content string, now time.Time) bool {
	h := contentHash(content)

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := now.Add(-d.window)
	for k, t := range d.seen {
		if t.Before(cutoff) {
			delete(d.seen, k)
		}
	}

	if t, ok := d.seen[h]; ok && t.After(cutoff) {
		return true
	}
	d.seen[h] = now
	return false
}

// contentHash normalizes whitespace and case before hashing so trivial
// variations still collide.
func contentHash(content string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:8])
}
