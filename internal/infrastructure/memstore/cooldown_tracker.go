package memstore

import (
	"sync"
	"time"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/challenge"
	"github.com/gatekeeper-bot/gatekeeper/internal/domain/cooldown"
)

// CooldownTracker implements cooldown.Tracker with a process-local map.
// Expired entries are dropped lazily on lookup; Sweep trims the rest.
type CooldownTracker struct {
	mu      sync.Mutex
	entries map[challenge.Key]cooldown.Entry
}

func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{entries: make(map[challenge.Key]cooldown.Entry)}
}

func (t *CooldownTracker) IsCooling(key challenge.Key, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	if !ok {
		return false, 0
	}
	if !entry.Active(now) {
		delete(t.entries, key)
		return false, 0
	}
	return true, entry.Remaining(now)
}

func (t *CooldownTracker) Start(key challenge.Key, until time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = cooldown.Entry{Key: key, ExpiresAt: until}
}

func (t *CooldownTracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, entry := range t.entries {
		if !entry.Active(now) {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}
