// Package store defines the persistence contract for API keys, usage
// records, aggregates, and model pricing/mapping overrides
// (SPEC_FULL.md §5). internal/store/dynamo is the production DynamoDB
// implementation; internal/store/memtest is an in-memory stand-in used by
// unit and property tests so they never need AWS credentials.
package store

import (
	"context"
	"time"

	"github.com/laiskytech/converse-gateway/internal/model"
)

// UsageDelta is the per-request increment applied atomically to a key's
// aggregate row (spec.md §4.8 item 3: "if_not_exists(total_X, 0) + delta",
// never read-modify-write).
type UsageDelta struct {
	InputTokens       int64
	OutputTokens      int64
	CachedInputTokens int64
	CacheWriteTokens  int64
}

// Store is the persistence contract every component in internal/ depends
// on through this interface only, never a concrete client.
type Store interface {
	// GetKeyContext looks up a key by its full `sk-...` value. It returns
	// (nil, nil) on a miss — callers distinguish "not found" from error by
	// the nil record, matching the teacher's gorm-style lookup convention.
	GetKeyContext(ctx context.Context, apiKey string) (*model.KeyContext, error)

	// TryAutoReactivate applies the auto-reactivation rule of spec.md §4.6
	// in a single atomic conditional update: active=true,
	// budget_used_mtd=0, budget_mtd_month=currentMonth,
	// deactivation_reason=null — but only if the stored row still shows
	// the key deactivated for budget_exceeded in a prior month. Returns
	// the refreshed record and whether reactivation actually happened (it
	// races with concurrent requests by design and at most one wins).
	TryAutoReactivate(ctx context.Context, apiKey, currentMonth string) (*model.KeyContext, bool, error)

	// PutKeyContext creates or fully overwrites a key record; used only by
	// cmd/keytool.
	PutKeyContext(ctx context.Context, key model.KeyContext) error

	// RecordUsage appends one UsageRecord to the time-sorted usage table.
	RecordUsage(ctx context.Context, rec model.UsageRecord) error

	// IncrementAggregate atomically folds delta into the key's running
	// totals in the usage-stats table.
	IncrementAggregate(ctx context.Context, keyID string, delta UsageDelta, at time.Time) error

	// ApplyBudget atomically applies spec.md §4.8 item 5's budget update:
	// budget_used_total += cost; budget_used_mtd reset-or-incremented
	// depending on month rollover; deactivation when the monthly ceiling
	// is crossed. Returns whether this call caused deactivation.
	ApplyBudget(ctx context.Context, keyID string, cost float64, currentMonth string) (deactivated bool, err error)

	// GetModelMapping looks up a persisted override; ok is false on a miss.
	GetModelMapping(ctx context.Context, anthropicModelID string) (mapping model.ModelMapping, ok bool, err error)

	// PutModelMapping creates or overwrites a mapping row; used by
	// cmd/keytool.
	PutModelMapping(ctx context.Context, mapping model.ModelMapping) error

	// GetModelPricing looks up a pricing row; ok is false on a miss, in
	// which case the caller must treat cost as zero and log it
	// (spec.md §4.8 item 4).
	GetModelPricing(ctx context.Context, modelID string) (pricing model.ModelPricing, ok bool, err error)

	// PutModelPricing creates or overwrites a pricing row; used by
	// cmd/keytool.
	PutModelPricing(ctx context.Context, pricing model.ModelPricing) error
}
