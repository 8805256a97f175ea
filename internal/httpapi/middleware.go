package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/laiskytech/converse-gateway/internal/apierr"
	"github.com/laiskytech/converse-gateway/internal/authguard"
	"github.com/laiskytech/converse-gateway/internal/config"
	"github.com/laiskytech/converse-gateway/internal/ctxkey"
	"github.com/laiskytech/converse-gateway/internal/graceful"
	"github.com/laiskytech/converse-gateway/internal/metrics"
	"github.com/laiskytech/converse-gateway/internal/ratelimit"
)

// requestIDMiddleware generates one request id per call and echoes it on
// both x-request-id and x-trace-id, grounded on the teacher's
// middleware.RequestId (common/helper.GenRequestID + a response header of
// the same name). It also brackets the request with
// internal/graceful.BeginRequest, so a streaming handler still held open
// counts toward cmd/gateway's shutdown drain.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("x-request-id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxkey.RequestID, id)
		c.Header("x-request-id", id)
		c.Header("x-trace-id", id)

		end := graceful.BeginRequest()
		defer end()

		c.Next()
	}
}

// authMiddleware resolves the bearer credential through the Guard and
// stashes the result under ctxkey.KeyContext, aborting with an
// authentication_error envelope on failure.
func authMiddleware(guard *authguard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := authguard.ExtractCredential(c.GetHeader("Authorization"), c.GetHeader("x-api-key"))

		kc, err := guard.Resolve(c.Request.Context(), credential)
		if err != nil {
			apierr.Write(c, err)
			return
		}

		c.Set(ctxkey.KeyContext, kc)
		c.Next()
	}
}

// rateLimitMiddleware enforces the per-key token bucket, bypassing master
// and ephemeral credentials (spec.md §4.7: those never consume a shared
// bucket). On rejection it sets Retry-After/X-RateLimit-* headers and
// increments metrics.RateLimitRejectionsTotal.
func rateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		kc := mustKeyContext(c)
		if kc.IsMaster || kc.IsEphemeral {
			c.Next()
			return
		}

		requestsPerWindow := kc.RateLimit
		if requestsPerWindow <= 0 {
			requestsPerWindow = config.RateLimitRequestsPerWindow
		}

		decision := limiter.Allow(kc.ID, requestsPerWindow, config.RateLimitWindowSeconds)
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			metrics.RateLimitRejectionsTotal.Inc()
			c.Header("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())+1))
			apierr.Write(c, apierr.New(apierr.KindRateLimit, "rate limit exceeded", nil))
			return
		}

		c.Next()
	}
}

// adminOnlyMiddleware gates /metrics behind the master credential, grounded
// on the teacher's `server.GET("/metrics", middleware.AdminAuth(), ...)`
// pattern, narrowed to this gateway's one admin credential (the master
// key) rather than a full roles table.
func adminOnlyMiddleware(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := authguard.ExtractCredential(c.GetHeader("Authorization"), c.GetHeader("x-api-key"))
		if config.MasterAPIKey == "" || credential != config.MasterAPIKey {
			apierr.Write(c, apierr.New(apierr.KindForbidden, "admin credential required", nil))
			return
		}
		c.Next()
	}
}
