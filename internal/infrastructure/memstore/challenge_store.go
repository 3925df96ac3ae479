package memstore

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/challenge"
)

// ChallengeStore implements challenge.Store with process-local maps.
type ChallengeStore struct {
	mu       sync.Mutex
	reserved map[challenge.Key]struct{}
	live     map[challenge.Key]challenge.Challenge
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		reserved: make(map[challenge.Key]struct{}),
		live:     make(map[challenge.Key]challenge.Challenge),
	}
}

func (s *ChallengeStore) Reserve(key challenge.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reserved[key]; ok {
		return false
	}
	if _, ok := s.live[key]; ok {
		return false
	}
	s.reserved[key] = struct{}{}
	return true
}

func (s *ChallengeStore) Cancel(key challenge.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reserved, key)
}

func (s *ChallengeStore) Commit(ch challenge.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reserved, ch.Key)
	s.live[ch.Key] = ch
}

func (s *ChallengeStore) Get(key challenge.Key) (challenge.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.live[key]
	return ch, ok
}

func (s *ChallengeStore) Claim(key challenge.Key) (challenge.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.live[key]
	if !ok || ch.Status != challenge.StatusPending {
		return challenge.Challenge{}, false
	}
	ch.Status = challenge.StatusAnswered
	s.live[key] = ch
	return ch, true
}

func (s *ChallengeStore) ClaimByID(key challenge.Key, id uuid.UUID) (challenge.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.live[key]
	if !ok || ch.ID != id || ch.Status != challenge.StatusPending {
		return challenge.Challenge{}, false
	}
	ch.Status = challenge.StatusAnswered
	s.live[key] = ch
	return ch, true
}

func (s *ChallengeStore) Remove(key challenge.Key, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.live[key]
	if !ok || ch.ID != id {
		return false
	}
	delete(s.live, key)
	return true
}

func (s *ChallengeStore) KeysForUser(userID int64) []challenge.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []challenge.Challenge
	for _, ch := range s.live {
		if ch.Key.UserID == userID {
			found = append(found, ch)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].IssuedAt.After(found[j].IssuedAt)
	})
	keys := make([]challenge.Key, len(found))
	for i, ch := range found {
		keys[i] = ch.Key
	}
	return keys
}

func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
