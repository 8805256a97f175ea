package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laiskytech/converse-gateway/internal/authguard"
	"github.com/laiskytech/converse-gateway/internal/billing"
	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/modelresolver"
	"github.com/laiskytech/converse-gateway/internal/ptc"
	"github.com/laiskytech/converse-gateway/internal/ratelimit"
	"github.com/laiskytech/converse-gateway/internal/store/memtest"
)

// unreachableStore wraps a working memtest.Store but fails the read
// readyHandler probes with, simulating a DynamoDB outage for the
// readiness check's "store" dependency.
type unreachableStore struct {
	*memtest.Store
}

func (unreachableStore) GetModelPricing(context.Context, string) (model.ModelPricing, bool, error) {
	return model.ModelPricing{}, false, errors.New("dynamodb unreachable")
}

func TestReadyHandler_ReportsUnavailableWhenStoreUnreachable(t *testing.T) {
	s := unreachableStore{Store: memtest.New()}
	deps := Deps{
		Guard:    authguard.New(s),
		Limiter:  ratelimit.New(100, 0),
		Resolver: modelresolver.New(s),
		Converse: &fakeConverser{},
		Billing:  billing.New(s),
		Store:    s,
		PTC:      ptc.DisabledDispatcher{},
	}

	r := New(deps)
	req, err := http.NewRequest(http.MethodGet, "/ready", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
