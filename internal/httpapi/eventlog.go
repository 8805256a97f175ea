package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/laiskytech/converse-gateway/internal/apierr"
)

// maxEventBatchSize bounds how many opaque telemetry events one batch
// accepts, mirroring spec.md §9's "bound every unbounded loop" rule.
const maxEventBatchSize = 500

// eventBatchRequest is the wire shape of POST /api/event_logging/batch:
// an array of opaque client telemetry events, accepted and counted but
// never parsed for business logic, grounded on the teacher's
// dto/log_statistics.go read-model shape generalized into a write-side
// ingestion endpoint (SPEC_FULL.md §3's supplemented batch ingestion
// feature; explicitly out of scope for any further processing per spec.md
// §1).
type eventBatchRequest struct {
	Events []json.RawMessage `json:"events"`
}

type eventBatchResponse struct {
	Accepted int `json:"accepted"`
}

// eventLoggingBatchHandler accepts and counts a bounded batch of opaque
// client telemetry events. It never sits behind the API-key auth/rate-limit
// chain since it carries no billable upstream call.
func eventLoggingBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req eventBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.Write(c, apierr.New(apierr.KindInvalidRequest, "invalid event batch", err))
			return
		}

		if len(req.Events) > maxEventBatchSize {
			apierr.Write(c, apierr.New(apierr.KindInvalidRequest, "event batch exceeds maximum size", nil))
			return
		}

		c.JSON(http.StatusOK, eventBatchResponse{Accepted: len(req.Events)})
	}
}
