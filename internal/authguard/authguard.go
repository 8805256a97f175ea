// Package authguard resolves the bearer credential on every request into a
// model.KeyContext, following the resolution order of spec.md §4.6:
// master credential, then ephemeral credential, then the key store — with
// the store lookup applying the atomic month-rollover auto-reactivation
// rule. Grounded on the teacher's bearer/sk- parsing
// (middleware/utils.go GetTokenKeyParts) and its one-shot JSON error
// envelope (middleware/utils.go AbortWithError), generalized here into
// apierr.
package authguard

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/laiskytech/converse-gateway/internal/apierr"
	"github.com/laiskytech/converse-gateway/internal/config"
	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/store"
)

// Guard resolves credentials against a fixed master key, a process-lifetime
// ephemeral key, and a Store, in that order.
type Guard struct {
	store         store.Store
	masterKey     string
	ephemeralKey  string
	requireAPIKey bool
}

// New builds a Guard. The ephemeral credential is generated once per
// process start (spec.md §5 "Ephemeral key: set once at startup,
// immutable") so a fresh deployment always has a working dev credential
// even before any key is provisioned in the store.
func New(s store.Store) *Guard {
	return &Guard{
		store:         s,
		masterKey:     config.MasterAPIKey,
		ephemeralKey:  config.TokenKeyPrefix + uuid.NewString(),
		requireAPIKey: config.RequireAPIKey,
	}
}

// EphemeralKey returns the process's dev credential, so it can be logged
// once at startup.
func (g *Guard) EphemeralKey() string {
	return g.ephemeralKey
}

// ExtractCredential pulls the bearer credential out of either the
// Authorization header ("Bearer sk-...") or the x-api-key header, mirroring
// the teacher's GetTokenKeyParts parsing but returning the full credential
// rather than splitting it into channel-id parts (this gateway has no
// per-key channel routing).
func ExtractCredential(authHeader, xAPIKeyHeader string) string {
	if xAPIKeyHeader != "" {
		return xAPIKeyHeader
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// Resolve implements the full lookup order of spec.md §4.6.
func (g *Guard) Resolve(ctx context.Context, credential string) (*model.KeyContext, error) {
	if !g.requireAPIKey {
		return g.openKeyContext(), nil
	}

	if credential == "" {
		return nil, apierr.New(apierr.KindAuthentication, "missing API key", nil)
	}

	if g.masterKey != "" && credential == g.masterKey {
		return g.masterKeyContext(), nil
	}
	if credential == g.ephemeralKey {
		return g.ephemeralKeyContext(), nil
	}

	kc, err := g.store.GetKeyContext(ctx, credential)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindPersistence, err, "look up api key")
	}
	if kc == nil {
		return nil, apierr.New(apierr.KindAuthentication, "invalid API key", nil)
	}

	if kc.Active {
		return kc, nil
	}

	if kc.BudgetExceeded() {
		currentMonth := currentYearMonth()
		if kc.BudgetMTDMonth < currentMonth {
			reactivated, didReactivate, err := g.store.TryAutoReactivate(ctx, credential, currentMonth)
			if err != nil {
				return nil, apierr.Wrap(apierr.KindPersistence, err, "auto-reactivate api key")
			}
			if didReactivate && reactivated != nil {
				return reactivated, nil
			}
			// Lost the reactivation race to a concurrent request, or the
			// row changed underneath us; re-check the freshest state
			// rather than unconditionally rejecting.
			if reactivated != nil && reactivated.Active {
				return reactivated, nil
			}
		}
	}

	return nil, apierr.New(apierr.KindAuthentication, "api key is deactivated", nil)
}

func (g *Guard) masterKeyContext() *model.KeyContext {
	return &model.KeyContext{
		ID:       "master",
		Tier:     model.TierReserved,
		Active:   true,
		IsMaster: true,
	}
}

func (g *Guard) ephemeralKeyContext() *model.KeyContext {
	return &model.KeyContext{
		ID:          g.ephemeralKey,
		Tier:        model.TierDefault,
		Active:      true,
		IsEphemeral: true,
	}
}

// openKeyContext is used when REQUIRE_API_KEY is false. A warning is
// logged once at startup by cmd/gateway, not here, since this path is hit
// on every request.
func (g *Guard) openKeyContext() *model.KeyContext {
	return &model.KeyContext{
		ID:     "open",
		Tier:   model.TierDefault,
		Active: true,
	}
}

func currentYearMonth() string {
	return time.Now().UTC().Format("2006-01")
}
