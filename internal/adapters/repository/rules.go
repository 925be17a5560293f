package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/aecr/internal/domain/model"
)

// RuleStore keeps user alert rules.
type RuleStore interface {
	SaveRule(ctx context.Context, r model.AlertRule) error
	DeleteRule(ctx context.Context, userID, ruleID string) error
	Rules(ctx context.Context, userID string) ([]model.AlertRule, error)
}

// MemoryRules is an in-process RuleStore.
type MemoryRules struct {
	mu    sync.RWMutex
	rules map[string]map[string]model.AlertRule
}

// NewMemoryRules creates an empty rule store.
func NewMemoryRules() *MemoryRules {
	return &MemoryRules{rules: make(map[string]map[string]model.AlertRule)}
}

// SaveRule inserts or replaces a rule by id.
func (s *MemoryRules) SaveRule(_ context.Context, r model.AlertRule) error {
	if r.ID == "" || r.UserID == "" {
		return fmt.Errorf("%w: rule needs an id and a user", ErrInvalidRecord)
	}
	if _, err := model.ParseKPI(string(r.KPI)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if _, err := model.ParseTrigger(string(r.Trigger)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if r.Platform != "" && !r.Platform.Valid() {
		return invalid("unknown platform " + string(r.Platform))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.rules[r.UserID]
	if m == nil {
		m = make(map[string]model.AlertRule)
		s.rules[r.UserID] = m
	}
	m[r.ID] = r
	return nil
}

// DeleteRule removes a rule.
func (s *MemoryRules) DeleteRule(_ context.Context, userID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[userID][ruleID]; !ok {
		return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	delete(s.rules[userID], ruleID)
	return nil
}

// Rules returns a user's rules ordered by id.
func (s *MemoryRules) Rules(_ context.Context, userID string) ([]model.AlertRule, error) {
	s.mu.RLock()
	out := make([]model.AlertRule, 0, len(s.rules[userID]))
	for _, r := range s.rules[userID] {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
