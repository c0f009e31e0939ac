package coordinator

import (
	"sync"
	"time"

	"github.com/valueadders/papito/internal/platform"
)

// maxEngagementsPerHour caps how often the persona engages one user on
// one destination. Beyond this it starts to look like harassment.
const maxEngagementsPerHour = 5

// engagementLimiter enforces a per-(destination, user) rolling-hour cap.
type engagementLimiter struct {
	mu     sync.Mutex
	max    int
	byUser map[string][]time.Time
}

func newEngagementLimiter(max int) *engagementLimiter {
	if max <= 0 {
		max = maxEngagementsPerHour
	}
	return &engagementLimiter{max: max, byUser: make(map[string][]time.Time)}
}

func limiterKey(dest platform.Destination, userID string) string {
	return string(dest) + ":" + userID
}

// Allow reports whether another engagement with this user fits under the
// cap at now. Actions without a target user are never limited.
func (l *engagementLimiter) Allow(dest platform.Destination, userID string, now time.Time) bool {
	if userID == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := limiterKey(dest, userID)
	cutoff := now.Add(-1 * time.Hour)
	var kept []time.Time
	for _, t := range l.byUser[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.byUser[key] = kept

	return len(kept) < l.max
}

// SetMax replaces the hourly cap. Non-positive values restore the default.
func (l *engagementLimiter) SetMax(max int) {
	if max <= 0 {
		max = maxEngagementsPerHour
	}
	l.mu.Lock()
	l.max = max
	l.mu.Unlock()
}

// Record notes one engagement. Call after a successful execution.
func (l *engagementLimiter) Record(dest platform.Destination, userID string, now time.Time) {
	if userID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := limiterKey(dest, userID)
	l.byUser[key] = append(l.byUser[key], now)
}
