package httpapi

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/laiskytech/converse-gateway/internal/apierr"
	"github.com/laiskytech/converse-gateway/internal/modelresolver"
)

// modelCard is the wire shape of one entry in GET /v1/models, mirroring
// the shape the Anthropic and OpenAI model-listing endpoints both expose
// (an id plus an "object" discriminator), which either client dialect can
// parse identically since they agree on the fields that matter.
type modelCard struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// listModelsHandler answers GET /v1/models with the statically known
// Claude-on-Bedrock model family (spec.md §4.9's default table), sorted for
// deterministic output.
func listModelsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ids := modelresolver.KnownModels()
		sort.Strings(ids)

		cards := make([]modelCard, 0, len(ids))
		for _, id := range ids {
			cards = append(cards, modelCard{ID: id, Object: "model", OwnedBy: "anthropic"})
		}

		c.JSON(http.StatusOK, gin.H{"object": "list", "data": cards})
	}
}

// getModelHandler answers GET /v1/models/:id, rejecting an id outside the
// known table with 400 invalid_request_error rather than the passthrough
// Resolve uses on the hot path.
func getModelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, ok := modelresolver.UpstreamFor(id); !ok {
			apierr.Write(c, apierr.New(apierr.KindInvalidRequest, "unknown model: "+id, nil))
			return
		}

		c.JSON(http.StatusOK, modelCard{ID: id, Object: "model", OwnedBy: "anthropic"})
	}
}
