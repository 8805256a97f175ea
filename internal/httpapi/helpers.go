package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/laiskytech/converse-gateway/internal/ctxkey"
	"github.com/laiskytech/converse-gateway/internal/model"
)

// mustKeyContext fetches the *model.KeyContext authMiddleware attached to
// the request. Every route this is called from sits behind authMiddleware,
// so a missing value means a route was wired without it — a programming
// error, not a client-facing one.
func mustKeyContext(c *gin.Context) *model.KeyContext {
	return c.MustGet(ctxkey.KeyContext).(*model.KeyContext)
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get(ctxkey.RequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
