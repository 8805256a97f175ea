package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/store/memtest"
)

func TestRecord_WritesUsageAndAppliesCost(t *testing.T) {
	st := memtest.New()
	require.NoError(t, st.PutKeyContext(context.Background(), model.KeyContext{ID: "sk-test", Active: true}))
	require.NoError(t, st.PutModelPricing(context.Background(), model.ModelPricing{
		ModelID:          "anthropic.claude-3-5-sonnet-20241022-v2:0",
		InputPerMillion:  3,
		OutputPerMillion: 15,
	}))

	a := New(st)
	a.record(context.Background(), RecordInput{
		KeyID:         "sk-test",
		UpstreamModel: "anthropic.claude-3-5-sonnet-20241022-v2:0",
		Usage:         model.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
		Success:       true,
	})

	k, err := st.GetKeyContext(context.Background(), "sk-test")
	require.NoError(t, err)
	assert.Equal(t, float64(18), k.BudgetUsedTotal)
}

func TestRecord_AbsentPricingChargesZero(t *testing.T) {
	st := memtest.New()
	require.NoError(t, st.PutKeyContext(context.Background(), model.KeyContext{ID: "sk-test", Active: true}))

	a := New(st)
	a.record(context.Background(), RecordInput{
		KeyID:         "sk-test",
		UpstreamModel: "unknown-model",
		Usage:         model.Usage{InputTokens: 100, OutputTokens: 100},
		Success:       true,
	})

	k, err := st.GetKeyContext(context.Background(), "sk-test")
	require.NoError(t, err)
	assert.Equal(t, float64(0), k.BudgetUsedTotal)
}

func TestRecord_DeactivatesOnBudgetOverrun(t *testing.T) {
	st := memtest.New()
	budget := 1.0
	require.NoError(t, st.PutKeyContext(context.Background(), model.KeyContext{
		ID: "sk-test", Active: true, MonthlyBudget: &budget,
	}))
	require.NoError(t, st.PutModelPricing(context.Background(), model.ModelPricing{
		ModelID:          "m",
		InputPerMillion:  1_000_000,
		OutputPerMillion: 0,
	}))

	a := New(st)
	a.record(context.Background(), RecordInput{KeyID: "sk-test", UpstreamModel: "m", Usage: model.Usage{InputTokens: 10}, Success: true})

	k, err := st.GetKeyContext(context.Background(), "sk-test")
	require.NoError(t, err)
	assert.False(t, k.Active)
	require.NotNil(t, k.DeactivationReason)
}
