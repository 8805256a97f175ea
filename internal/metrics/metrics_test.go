package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest_IncrementsCounterAndHistogram(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("anthropic", "test-model", "success"))
	ObserveRequest("anthropic", "test-model", "success", 25*time.Millisecond)
	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("anthropic", "test-model", "success"))
	assert.Equal(t, before+1, after)
}

func TestObserveTokens_SkipsZeroClasses(t *testing.T) {
	before := testutil.ToFloat64(TokensTotal.WithLabelValues("test-model", "input"))
	ObserveTokens("test-model", 100, 0, 0, 0)
	after := testutil.ToFloat64(TokensTotal.WithLabelValues("test-model", "input"))
	assert.Equal(t, before+100, after)

	// cache_read was never touched, so it must not exist as a series yet
	// for this particular label unless another test already created it.
	assert.Equal(t, float64(0), testutil.ToFloat64(TokensTotal.WithLabelValues("test-model", "cache_read")))
}
