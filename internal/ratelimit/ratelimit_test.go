package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestAllow_Monotonicity exercises spec.md §8 property 5 and the S6
// end-to-end scenario: quota 2 over a 60s window admits at most 2 requests
// in rapid succession for one key, rejecting the third with a positive
// Retry-After.
func TestAllow_Monotonicity(t *testing.T) {
	l := New(100, time.Hour)
	l.enabled = true

	d1 := l.Allow("sk-abc", 2, 60)
	d2 := l.Allow("sk-abc", 2, 60)
	d3 := l.Allow("sk-abc", 2, 60)

	assert.True(t, d1.Allowed)
	assert.True(t, d2.Allowed)
	assert.False(t, d3.Allowed)
	assert.Greater(t, d3.RetryAfter, time.Duration(0))
}

func TestAllow_SeparateKeysAreIndependent(t *testing.T) {
	l := New(100, time.Hour)
	l.enabled = true

	assert.True(t, l.Allow("sk-a", 1, 60).Allowed)
	assert.True(t, l.Allow("sk-b", 1, 60).Allowed)
	assert.False(t, l.Allow("sk-a", 1, 60).Allowed)
}

func TestAllow_DisabledAlwaysAllows(t *testing.T) {
	l := New(100, time.Hour)
	l.enabled = false

	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("sk-x", 1, 60).Allowed)
	}
}
