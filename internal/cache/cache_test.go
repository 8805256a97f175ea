package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_LocalOnlySetGetDel(t *testing.T) {
	c, err := New("", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k", "v", time.Minute)
	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	c.Del(ctx, "k")
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_EmptyRedisURLRunsLocalOnly(t *testing.T) {
	c, err := New("", time.Second)
	require.NoError(t, err)
	assert.Nil(t, c.redis)
}
