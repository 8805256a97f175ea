package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/store"
)

// keyContextTTL, modelMappingTTL and modelPricingTTL bound how stale a
// cached row may be read. Key contexts get the shortest TTL since budget
// deactivation must become visible promptly; mapping/pricing rows change
// only through cmd/keytool and can tolerate a longer window.
const (
	keyContextTTL   = 5 * time.Second
	modelMappingTTL = 60 * time.Second
	modelPricingTTL = 60 * time.Second
)

// CachingStore decorates a store.Store with the cache-aside reads of
// spec.md §4.9: GetKeyContext, GetModelMapping and GetModelPricing are
// served from cache on a hit; every write that can change a cached row
// invalidates it so the next read repopulates from the source of truth.
// All other methods pass straight through.
type CachingStore struct {
	store.Store
	cache *Cache
}

// Wrap builds a CachingStore around inner using c for reads.
func Wrap(inner store.Store, c *Cache) *CachingStore {
	return &CachingStore{Store: inner, cache: c}
}

func (s *CachingStore) GetKeyContext(ctx context.Context, apiKey string) (*model.KeyContext, error) {
	cacheKey := "kc:" + apiKey
	if raw, ok := s.cache.Get(ctx, cacheKey); ok {
		if raw == "" {
			return nil, nil
		}
		var kc model.KeyContext
		if err := json.Unmarshal([]byte(raw), &kc); err == nil {
			return &kc, nil
		}
	}

	kc, err := s.Store.GetKeyContext(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if kc == nil {
		s.cache.Set(ctx, cacheKey, "", keyContextTTL)
		return nil, nil
	}
	if raw, err := json.Marshal(kc); err == nil {
		s.cache.Set(ctx, cacheKey, string(raw), keyContextTTL)
	}
	return kc, nil
}

func (s *CachingStore) PutKeyContext(ctx context.Context, key model.KeyContext) error {
	if err := s.Store.PutKeyContext(ctx, key); err != nil {
		return err
	}
	s.cache.Del(ctx, "kc:"+key.ID)
	return nil
}

func (s *CachingStore) TryAutoReactivate(ctx context.Context, apiKey, currentMonth string) (*model.KeyContext, bool, error) {
	kc, reactivated, err := s.Store.TryAutoReactivate(ctx, apiKey, currentMonth)
	if reactivated {
		s.cache.Del(ctx, "kc:"+apiKey)
	}
	return kc, reactivated, err
}

func (s *CachingStore) ApplyBudget(ctx context.Context, keyID string, cost float64, currentMonth string) (bool, error) {
	deactivated, err := s.Store.ApplyBudget(ctx, keyID, cost, currentMonth)
	s.cache.Del(ctx, "kc:"+keyID)
	return deactivated, err
}

func (s *CachingStore) GetModelMapping(ctx context.Context, anthropicModelID string) (model.ModelMapping, bool, error) {
	cacheKey := "mm:" + anthropicModelID
	if raw, ok := s.cache.Get(ctx, cacheKey); ok {
		if raw == "" {
			return model.ModelMapping{}, false, nil
		}
		var mm model.ModelMapping
		if err := json.Unmarshal([]byte(raw), &mm); err == nil {
			return mm, true, nil
		}
	}

	mm, ok, err := s.Store.GetModelMapping(ctx, anthropicModelID)
	if err != nil {
		return model.ModelMapping{}, false, err
	}
	if !ok {
		s.cache.Set(ctx, cacheKey, "", modelMappingTTL)
		return model.ModelMapping{}, false, nil
	}
	if raw, err := json.Marshal(mm); err == nil {
		s.cache.Set(ctx, cacheKey, string(raw), modelMappingTTL)
	}
	return mm, true, nil
}

func (s *CachingStore) PutModelMapping(ctx context.Context, mapping model.ModelMapping) error {
	if err := s.Store.PutModelMapping(ctx, mapping); err != nil {
		return err
	}
	s.cache.Del(ctx, "mm:"+mapping.AnthropicModelID)
	return nil
}

func (s *CachingStore) GetModelPricing(ctx context.Context, modelID string) (model.ModelPricing, bool, error) {
	cacheKey := "mp:" + modelID
	if raw, ok := s.cache.Get(ctx, cacheKey); ok {
		if raw == "" {
			return model.ModelPricing{}, false, nil
		}
		var mp model.ModelPricing
		if err := json.Unmarshal([]byte(raw), &mp); err == nil {
			return mp, true, nil
		}
	}

	mp, ok, err := s.Store.GetModelPricing(ctx, modelID)
	if err != nil {
		return model.ModelPricing{}, false, err
	}
	if !ok {
		s.cache.Set(ctx, cacheKey, "", modelPricingTTL)
		return model.ModelPricing{}, false, nil
	}
	if raw, err := json.Marshal(mp); err == nil {
		s.cache.Set(ctx, cacheKey, string(raw), modelPricingTTL)
	}
	return mp, true, nil
}

func (s *CachingStore) PutModelPricing(ctx context.Context, pricing model.ModelPricing) error {
	if err := s.Store.PutModelPricing(ctx, pricing); err != nil {
		return err
	}
	s.cache.Del(ctx, "mp:"+pricing.ModelID)
	return nil
}
