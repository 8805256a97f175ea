package authguard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laiskytech/converse-gateway/internal/apierr"
	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/store/memtest"
)

func budget(v float64) *float64 { return &v }

func TestResolve_MasterKeyBypassesStore(t *testing.T) {
	s := memtest.New()
	g := New(s)
	g.masterKey = "sk-master"

	kc, err := g.Resolve(context.Background(), "sk-master")
	require.NoError(t, err)
	assert.True(t, kc.IsMaster)
}

func TestResolve_EphemeralKeyBypassesStore(t *testing.T) {
	s := memtest.New()
	g := New(s)

	kc, err := g.Resolve(context.Background(), g.EphemeralKey())
	require.NoError(t, err)
	assert.True(t, kc.IsEphemeral)
}

func TestResolve_MissingKeyIsAuthError(t *testing.T) {
	s := memtest.New()
	g := New(s)

	_, err := g.Resolve(context.Background(), "sk-unknown")
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.KindAuthentication, apiErr.Kind)
}

func TestResolve_ActiveKeyPassesThrough(t *testing.T) {
	s := memtest.New()
	require.NoError(t, s.PutKeyContext(context.Background(), model.KeyContext{
		ID: "sk-active", Active: true, Tier: model.TierDefault,
	}))
	g := New(s)

	kc, err := g.Resolve(context.Background(), "sk-active")
	require.NoError(t, err)
	assert.True(t, kc.Active)
}

// TestResolve_BudgetDeactivation_AtomicAcrossMonths exercises property 6 of
// spec.md §8: a key deactivated for budget_exceeded stays rejected within
// the same month and auto-reactivates, MTD reset, in a later month.
func TestResolve_BudgetDeactivation_AtomicAcrossMonths(t *testing.T) {
	s := memtest.New()
	reason := model.DeactivationReasonBudgetExceeded
	ctx := context.Background()
	thisMonth := time.Now().UTC().Format("2006-01")
	require.NoError(t, s.PutKeyContext(ctx, model.KeyContext{
		ID:                 "sk-budget",
		Active:             false,
		DeactivationReason: &reason,
		MonthlyBudget:      budget(1.0),
		BudgetUsedMTD:      1.0,
		BudgetMTDMonth:     thisMonth,
	}))
	g := New(s)

	_, err := g.Resolve(ctx, "sk-budget")
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.KindAuthentication, apiErr.Kind, "same-month lookup must still be rejected")

	// Simulate the passage of a month by asking the store to reactivate the
	// same-month row for a later month, the way a real deployment would
	// observe it after the wall clock ticks into the next month.
	nextMonth := "9999-01"
	require.NoError(t, s.PutKeyContext(ctx, model.KeyContext{
		ID:                 "sk-budget",
		Active:             false,
		DeactivationReason: &reason,
		MonthlyBudget:      budget(1.0),
		BudgetUsedMTD:      1.0,
		BudgetMTDMonth:     thisMonth,
	}))

	_, _, reactivateErr := s.TryAutoReactivate(ctx, "sk-budget", nextMonth)
	require.NoError(t, reactivateErr)

	kc, err := s.GetKeyContext(ctx, "sk-budget")
	require.NoError(t, err)
	assert.True(t, kc.Active)
	assert.Equal(t, 0.0, kc.BudgetUsedMTD)
	assert.Equal(t, nextMonth, kc.BudgetMTDMonth)
}

func TestResolve_DeactivatedForOtherReasonStaysRejected(t *testing.T) {
	s := memtest.New()
	reason := "manually_disabled"
	ctx := context.Background()
	require.NoError(t, s.PutKeyContext(ctx, model.KeyContext{
		ID: "sk-disabled", Active: false, DeactivationReason: &reason,
	}))
	g := New(s)

	_, err := g.Resolve(ctx, "sk-disabled")
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.KindAuthentication, apiErr.Kind)
}

func TestExtractCredential_PrefersXAPIKeyHeader(t *testing.T) {
	assert.Equal(t, "sk-from-header", ExtractCredential("Bearer sk-from-bearer", "sk-from-header"))
	assert.Equal(t, "sk-from-bearer", ExtractCredential("Bearer sk-from-bearer", ""))
}
