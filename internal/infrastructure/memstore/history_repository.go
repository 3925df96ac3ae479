package memstore

import (
	"context"
	"sync"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/verification"
)

// HistoryRepository implements verification.Repository in memory, newest first.
type HistoryRepository struct {
	mu      sync.RWMutex
	records []verification.Record
	nextID  int64
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{nextID: 1}
}

func (r *HistoryRepository) Insert(_ context.Context, rec *verification.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *rec
	stored.ID = r.nextID
	r.nextID++
	r.records = append(r.records, stored)
	rec.ID = stored.ID
	return nil
}

func (r *HistoryRepository) Query(_ context.Context, filter verification.Filter, limit int) ([]*verification.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*verification.Record
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if !matches(&rec, filter) {
			continue
		}
		c := rec
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *HistoryRepository) Count(_ context.Context, filter verification.Filter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for i := range r.records {
		if matches(&r.records[i], filter) {
			count++
		}
	}
	return count, nil
}

func matches(rec *verification.Record, filter verification.Filter) bool {
	if filter.ChatID != nil && rec.ChatID != *filter.ChatID {
		return false
	}
	if filter.UserID != nil && rec.UserID != *filter.UserID {
		return false
	}
	if filter.Verdict != nil && rec.Verdict != *filter.Verdict {
		return false
	}
	if filter.Since != nil && rec.CreatedAt.Before(*filter.Since) {
		return false
	}
	return true
}
