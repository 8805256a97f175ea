// Package modelresolver implements spec.md §4.9's model-name resolution:
// a caller's Anthropic-dialect id, an upstream id, or a region/prefix
// decorated upstream id is mapped to a concrete upstream model id through
// five layers (global override, family override, persisted mapping,
// default table, passthrough). Grounded on the teacher's
// GetDefaultModelPricing table (relay/adaptor/aws/adaptor.go), which is
// the pack's only concrete Claude-on-Bedrock model id registry.
package modelresolver

import (
	"context"
	"strings"

	"github.com/laiskytech/converse-gateway/internal/config"
	"github.com/laiskytech/converse-gateway/internal/store"
)

// Resolver resolves a client-supplied model string to an upstream model id.
type Resolver struct {
	store store.Store
}

// New builds a Resolver.
func New(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// defaultTable maps Anthropic-dialect model ids to Bedrock Converse model
// ids, grounded on the pricing table's key set in
// relay/adaptor/aws/adaptor.go GetDefaultModelPricing, restricted to the
// Claude family since this gateway only exposes Anthropic/OpenAI client
// dialects over a Claude-on-Bedrock upstream.
var defaultTable = map[string]string{
	"claude-3-haiku-20240307":    "anthropic.claude-3-haiku-20240307-v1:0",
	"claude-3-sonnet-20240229":   "anthropic.claude-3-sonnet-20240229-v1:0",
	"claude-3-opus-20240229":     "anthropic.claude-3-opus-20240229-v1:0",
	"claude-3-5-sonnet-20240620": "anthropic.claude-3-5-sonnet-20240620-v1:0",
	"claude-3-5-sonnet-20241022": "anthropic.claude-3-5-sonnet-20241022-v2:0",
	"claude-3-5-sonnet-latest":   "anthropic.claude-3-5-sonnet-20241022-v2:0",
	"claude-3-5-haiku-20241022":  "anthropic.claude-3-5-haiku-20241022-v1:0",
	"claude-3-7-sonnet-20250219": "anthropic.claude-3-7-sonnet-20250219-v1:0",
	"claude-3-7-sonnet-latest":   "anthropic.claude-3-7-sonnet-20250219-v1:0",
	"claude-opus-4-20250514":     "anthropic.claude-opus-4-20250514-v1:0",
	"claude-sonnet-4-20250514":   "anthropic.claude-sonnet-4-20250514-v1:0",
}

// familyOf classifies a model string by the substring it contains, for the
// sonnet/haiku/opus family override layer.
func familyOf(modelID string) string {
	switch {
	case strings.Contains(modelID, "sonnet"):
		return "sonnet"
	case strings.Contains(modelID, "haiku"):
		return "haiku"
	case strings.Contains(modelID, "opus"):
		return "opus"
	default:
		return ""
	}
}

func familyOverride(family string) string {
	switch family {
	case "sonnet":
		return config.AnthropicDefaultSonnetModel
	case "haiku":
		return config.AnthropicDefaultHaikuModel
	case "opus":
		return config.AnthropicDefaultOpusModel
	default:
		return ""
	}
}

// stripRegionDecoration removes a leading region prefix ("us.", "global.")
// and a trailing "#..." suffix from an upstream-shaped model id, returning
// the bare id used for the family-override lookup; the persisted-mapping
// and default-table lookups use the caller's string as given.
func stripRegionDecoration(modelID string) string {
	id := modelID
	if idx := strings.IndexByte(id, '#'); idx >= 0 {
		id = id[:idx]
	}
	for _, prefix := range []string{"us.", "global.", "eu.", "apac."} {
		if strings.HasPrefix(id, prefix) {
			id = strings.TrimPrefix(id, prefix)
			break
		}
	}
	return id
}

// KnownModels returns the client-facing Anthropic-dialect model ids this
// gateway advertises through GET /v1/models, drawn from defaultTable's key
// set. Persisted mappings (internal/store) can route additional ids the
// upstream accepts, but only the statically known family is listed.
func KnownModels() []string {
	ids := make([]string, 0, len(defaultTable))
	for id := range defaultTable {
		ids = append(ids, id)
	}
	return ids
}

// UpstreamFor returns the upstream model id defaultTable maps id to, and
// whether id is known at all — used by GET /v1/models/:id to answer
// without performing a full five-layer Resolve (which always succeeds via
// passthrough and so can't express "not found").
func UpstreamFor(id string) (string, bool) {
	upstream, ok := defaultTable[id]
	return upstream, ok
}

// Resolve applies the five-layer lookup order of spec.md §4.9. It never
// errors: a resolution that yields no candidate passes the caller's string
// through untouched, leaving rejection to the upstream.
func (r *Resolver) Resolve(ctx context.Context, clientModel string) string {
	if config.AnthropicDefaultModel != "" {
		return config.AnthropicDefaultModel
	}

	bare := stripRegionDecoration(clientModel)
	if family := familyOf(bare); family != "" {
		if override := familyOverride(family); override != "" {
			return override
		}
	}

	if mapping, ok, err := r.store.GetModelMapping(ctx, clientModel); err == nil && ok {
		return mapping.UpstreamModelID
	}

	if upstream, ok := defaultTable[clientModel]; ok {
		return upstream
	}

	return clientModel
}
