package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/group"
)

// GroupRegistry implements group.Registry in memory. It backs deployments
// that run without a database; changes do not survive a restart.
type GroupRegistry struct {
	mu     sync.RWMutex
	groups map[int64]group.Config
}

func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{groups: make(map[int64]group.Config)}
}

func (r *GroupRegistry) Get(_ context.Context, chatID int64) (*group.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.groups[chatID]
	if !ok {
		return nil, nil
	}
	out := cfg
	return &out, nil
}

func (r *GroupRegistry) List(_ context.Context) ([]*group.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*group.Config, 0, len(r.groups))
	for _, cfg := range r.groups {
		c := cfg
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (r *GroupRegistry) Upsert(_ context.Context, cfg *group.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *cfg
	now := time.Now().UTC()
	if existing, ok := r.groups[cfg.ChatID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.groups[cfg.ChatID] = stored
	return nil
}

func (r *GroupRegistry) UpdateTitle(_ context.Context, chatID int64, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.groups[chatID]
	if !ok || cfg.Title == title {
		return nil
	}
	cfg.Title = title
	cfg.UpdatedAt = time.Now().UTC()
	r.groups[chatID] = cfg
	return nil
}

func (r *GroupRegistry) Delete(_ context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[chatID]; !ok {
		return group.ErrNotFound
	}
	delete(r.groups, chatID)
	return nil
}
