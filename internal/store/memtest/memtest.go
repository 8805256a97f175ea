// Package memtest is an in-memory internal/store.Store used by unit and
// property-based tests, so the auth-guard/budget/rate-limit property suite
// (spec.md §8) never needs network access or AWS credentials.
package memtest

import (
	"context"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/store"
)

// Store is a mutex-guarded in-memory implementation of store.Store. All
// methods take the same lock; this is a test double, not a performance
// target.
type Store struct {
	mu        sync.Mutex
	keys      map[string]model.KeyContext
	usage     []model.UsageRecord
	aggregate map[string]model.KeyUsageAggregate
	mappings  map[string]model.ModelMapping
	pricing   map[string]model.ModelPricing
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		keys:      make(map[string]model.KeyContext),
		aggregate: make(map[string]model.KeyUsageAggregate),
		mappings:  make(map[string]model.ModelMapping),
		pricing:   make(map[string]model.ModelPricing),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) GetKeyContext(_ context.Context, apiKey string) (*model.KeyContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[apiKey]
	if !ok {
		return nil, nil
	}
	cp := k
	return &cp, nil
}

func (s *Store) TryAutoReactivate(_ context.Context, apiKey, currentMonth string) (*model.KeyContext, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[apiKey]
	if !ok {
		return nil, false, errors.Errorf("key %q not found", apiKey)
	}

	if k.Active || !k.BudgetExceeded() || k.BudgetMTDMonth >= currentMonth {
		cp := k
		return &cp, false, nil
	}

	k.Active = true
	k.BudgetUsedMTD = 0
	k.BudgetMTDMonth = currentMonth
	k.DeactivationReason = nil
	s.keys[apiKey] = k

	cp := k
	return &cp, true, nil
}

func (s *Store) PutKeyContext(_ context.Context, key model.KeyContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key
	return nil
}

func (s *Store) RecordUsage(_ context.Context, rec model.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, rec)
	return nil
}

// UsageRecordCount reports how many UsageRecord rows have been persisted,
// for tests asserting spec.md §8 property 7 (a client disconnect mid-stream
// must not leave a UsageRecord behind).
func (s *Store) UsageRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.usage)
}

func (s *Store) IncrementAggregate(_ context.Context, keyID string, delta store.UsageDelta, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg := s.aggregate[keyID]
	agg.KeyID = keyID
	agg.TotalInputTokens += delta.InputTokens
	agg.TotalOutputTokens += delta.OutputTokens
	agg.TotalCachedInputTokens += delta.CachedInputTokens
	agg.TotalCacheWriteTokens += delta.CacheWriteTokens
	agg.TotalRequests++
	agg.LastAggregatedTimestamp = at.UTC().Format(time.RFC3339)
	s.aggregate[keyID] = agg
	return nil
}

func (s *Store) ApplyBudget(_ context.Context, keyID string, cost float64, currentMonth string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID]
	if !ok {
		return false, errors.Errorf("key %q not found", keyID)
	}

	k.BudgetUsedTotal += cost
	if k.BudgetMTDMonth != currentMonth {
		k.BudgetUsedMTD = cost
	} else {
		k.BudgetUsedMTD += cost
	}
	k.BudgetMTDMonth = currentMonth

	deactivated := false
	if k.MonthlyBudget != nil && k.BudgetUsedMTD >= *k.MonthlyBudget {
		k.Active = false
		reason := model.DeactivationReasonBudgetExceeded
		k.DeactivationReason = &reason
		deactivated = true
	}

	s.keys[keyID] = k
	return deactivated, nil
}

func (s *Store) GetModelMapping(_ context.Context, anthropicModelID string) (model.ModelMapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mappings[anthropicModelID]
	return m, ok, nil
}

func (s *Store) PutModelMapping(_ context.Context, mapping model.ModelMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[mapping.AnthropicModelID] = mapping
	return nil
}

func (s *Store) GetModelPricing(_ context.Context, modelID string) (model.ModelPricing, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pricing[modelID]
	return p, ok, nil
}

func (s *Store) PutModelPricing(_ context.Context, pricing model.ModelPricing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pricing[pricing.ModelID] = pricing
	return nil
}
