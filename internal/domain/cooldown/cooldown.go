package cooldown

import (
	"time"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/challenge"
)

// Entry is a retry hold for a (user, chat) pair after a failed or expired attempt.
type Entry struct {
	Key       challenge.Key `json:"key"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Active reports whether the hold is still in effect.
func (e *Entry) Active(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Remaining returns the time left on the hold, floored at zero.
func (e *Entry) Remaining(now time.Time) time.Duration {
	if d := e.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Tracker records retry holds. Implementations must be safe for concurrent
// use and must treat expired entries as absent on lookup.
type Tracker interface {
	// IsCooling reports whether key is under an active hold and how long is left.
	IsCooling(key challenge.Key, now time.Time) (bool, time.Duration)

	// Start places key under a hold until the given instant, replacing any
	// previous hold.
	Start(key challenge.Key, until time.Time)

	// Sweep removes entries that expired before now and returns how many.
	Sweep(now time.Time) int
}
