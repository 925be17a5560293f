package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/pkg/metrics"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[model.Key]model.CampaignRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[model.Key]model.CampaignRecord)}
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(_ context.Context, rec model.CampaignRecord) error {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("upsert", float64(time.Since(start).Milliseconds())) }()

	if err := Validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	s.recs[rec.Key()] = rec
	s.mu.Unlock()
	return nil
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, f Filter) ([]model.CampaignRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("query", float64(time.Since(start).Milliseconds())) }()

	s.mu.RLock()
	out := make([]model.CampaignRecord, 0)
	for _, r := range s.recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}
