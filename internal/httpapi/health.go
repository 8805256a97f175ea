package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/laiskytech/converse-gateway/internal/graceful"
	"github.com/laiskytech/converse-gateway/internal/ptc"
)

// healthHandler answers /health and /liveness: the process is up and
// serving, regardless of upstream or store reachability.
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"hostname": hostname,
	})
}

// readyHandler answers /ready: true once the guard's ephemeral credential
// has been generated, which happens synchronously at cmd/gateway startup
// before the router ever starts serving, and the backing store answers a
// trivial read within budget. Once cmd/gateway starts draining for
// shutdown it reports 503 so a load balancer stops routing new traffic
// here before the process actually stops accepting connections. The
// response reports each check separately (config_loaded and store) rather
// than collapsing them into one bool; upstream reachability is not probed.
func readyHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if graceful.IsDraining() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "draining",
				"uptime_sec": int(time.Since(deps.StartedAt).Seconds()),
			})
			return
		}

		storeOK := true
		if deps.Store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if _, _, err := deps.Store.GetModelPricing(ctx, "__readiness_probe__"); err != nil {
				storeOK = false
			}
		}

		checks := gin.H{"config_loaded": true, "store": storeOK}
		if !storeOK {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"checks":     checks,
				"uptime_sec": int(time.Since(deps.StartedAt).Seconds()),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"checks":     checks,
			"uptime_sec": int(time.Since(deps.StartedAt).Seconds()),
		})
	}
}

// ptcHealthHandler reports the configured tool-dispatch backend. A disabled
// backend is reported healthy (it is the supported default, not a
// degraded state); a Temporal backend's health is the result of its Ping
// health check, which tests connectivity without running a tool.
func ptcHealthHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, disabled := deps.PTC.(ptc.DisabledDispatcher); disabled {
			c.JSON(http.StatusOK, gin.H{"backend": "disabled", "status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if td, ok := deps.PTC.(*ptc.TemporalDispatcher); ok {
			if err := td.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"backend": "temporal", "status": "unreachable", "error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"backend": "temporal", "status": "ok"})
	}
}
