// Package billing implements the usage accountant of spec.md §4.8: turning
// one completed request's token usage into a persisted UsageRecord, an
// atomic aggregate increment, and an atomic budget update, fire-and-forget
// off the request's hot path. Grounded on the teacher's async post-consume
// billing pattern (relay/controller/claude_messages.go's
// postConsumeClaudeMessagesQuotaWithTraceID: a goroutine spawned after the
// response has already been sent to the client, logging rather than
// failing the request on a billing error), simplified from the teacher's
// pre-consume/post-consume reconciliation to the single post-hoc atomic
// update spec.md §4.8 specifies — this gateway never pre-deducts a
// speculative quota before the call.
package billing

import (
	"context"
	"time"

	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/laiskytech/converse-gateway/internal/graceful"
	"github.com/laiskytech/converse-gateway/internal/logger"
	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/store"
)

// Accountant records usage and applies budget updates for completed
// requests. It is safe for concurrent use.
type Accountant struct {
	store store.Store
}

// New builds an Accountant backed by the given store.
func New(s store.Store) *Accountant {
	return &Accountant{store: s}
}

// Record is spec.md §4.8's five-step process, run fire-and-forget: build
// the UsageRecord, best-effort write it, atomically increment the key's
// aggregate, compute cost from pricing (absent pricing logs and charges
// zero), and atomically update the key's budget. Called with a
// request-scoped ctx for logging context only — billing runs on its own
// background context so client disconnection never truncates it. The
// task is tracked by internal/graceful so a shutdown's Drain waits for it
// rather than racing it against process exit.
func (a *Accountant) Record(ctx context.Context, in RecordInput) {
	graceful.GoCritical(ctx, "billing.record", func(context.Context) {
		a.record(ctx, in)
	})
}

// RecordInput carries everything needed to bill one completed request.
type RecordInput struct {
	KeyID          string
	RequestID      string
	UpstreamModel  string
	Usage          model.Usage
	Success        bool
	DurationMS     int64
	ErrorMessage   string
}

func (a *Accountant) record(parent context.Context, in RecordInput) {
	lg := logger.Logger.Named("billing")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	rec := model.UsageRecord{
		KeyID:             in.KeyID,
		Timestamp:         now.Format(time.RFC3339Nano),
		RequestID:         in.RequestID,
		Model:             in.UpstreamModel,
		InputTokens:       in.Usage.InputTokens,
		OutputTokens:      in.Usage.OutputTokens,
		CachedInputTokens: in.Usage.CacheReadTokens,
		CacheWriteTokens:  in.Usage.CacheCreationTokens,
		Success:           in.Success,
		DurationMS:        in.DurationMS,
		ErrorMessage:      in.ErrorMessage,
	}
	if rec.RequestID == "" {
		rec.RequestID = uuid.NewString()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.store.RecordUsage(gctx, rec); err != nil {
			lg.Error("record usage", zap.String("api_key", in.KeyID), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		delta := store.UsageDelta{
			InputTokens:       int64(in.Usage.InputTokens),
			OutputTokens:      int64(in.Usage.OutputTokens),
			CachedInputTokens: int64(in.Usage.CacheReadTokens),
			CacheWriteTokens:  int64(in.Usage.CacheCreationTokens),
		}
		if err := a.store.IncrementAggregate(gctx, in.KeyID, delta, now); err != nil {
			lg.Error("increment usage aggregate", zap.String("api_key", in.KeyID), zap.Error(err))
		}
		return nil
	})
	_ = g.Wait()

	cost := a.cost(ctx, in.UpstreamModel, in.Usage, lg)
	currentMonth := now.Format("2006-01")
	deactivated, err := a.store.ApplyBudget(ctx, in.KeyID, cost, currentMonth)
	if err != nil {
		lg.Error("apply budget", zap.String("api_key", in.KeyID), zap.Error(err))
		return
	}
	if deactivated {
		lg.Warn("key deactivated on budget overrun", zap.String("api_key", in.KeyID), zap.Float64("cost", cost))
	}
}

// cost computes the USD cost of one request's usage from the persisted
// pricing table. Absent pricing yields zero cost, logged (spec.md §4.8
// item 4), not an error — billing must never fail a request that already
// completed.
func (a *Accountant) cost(ctx context.Context, modelID string, usage model.Usage, lg glog.Logger) float64 {
	pricing, ok, err := a.store.GetModelPricing(ctx, modelID)
	if err != nil {
		lg.Warn("pricing lookup failed, charging zero", zap.String("model_id", modelID), zap.Error(err))
		return 0
	}
	if !ok {
		lg.Warn("no pricing row for model, charging zero", zap.String("model_id", modelID))
		return 0
	}

	const million = 1_000_000
	return float64(usage.InputTokens)*pricing.InputPerMillion/million +
		float64(usage.OutputTokens)*pricing.OutputPerMillion/million +
		float64(usage.CacheReadTokens)*pricing.CacheReadPerMillion/million +
		float64(usage.CacheCreationTokens)*pricing.CacheWritePerMillion/million
}
