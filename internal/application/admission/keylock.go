package admission

import (
	"sync"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/challenge"
)

// keyLocks serializes lifecycle transitions per (user, chat) key while
// leaving unrelated keys fully parallel. Entries are refcounted and removed
// once nobody holds or waits on them, so the map does not grow with every
// key ever seen.
type keyLocks struct {
	mu    sync.Mutex
	locks map[challenge.Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[challenge.Key]*keyLock)}
}

func (l *keyLocks) lock(key challenge.Key) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
}

func (l *keyLocks) unlock(key challenge.Key) {
	l.mu.Lock()
	kl := l.locks[key]
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()

	kl.mu.Unlock()
}

// size reports how many keys currently hold a lock entry.
func (l *keyLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
