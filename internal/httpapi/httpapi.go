// Package httpapi assembles the gin router exposing the Anthropic Messages
// and OpenAI Chat Completions client dialects over a single Converse
// upstream, wiring every other internal/ package (auth, rate limiting,
// model resolution, billing, metrics, tracing) into one request path.
// Grounded on the teacher's main.go middleware chain
// (gin.Recovery/gmw.NewLoggerMiddleware/middleware.RequestId/
// middleware.TracingMiddleware) and router/api.go's route-table shape,
// dropping the teacher's session/cookie/static-web-UI machinery since this
// gateway is a pure JSON API with no browser-facing console.
package httpapi

import (
	"context"
	"net/http"
	"os"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/laiskytech/converse-gateway/internal/authguard"
	"github.com/laiskytech/converse-gateway/internal/billing"
	"github.com/laiskytech/converse-gateway/internal/config"
	"github.com/laiskytech/converse-gateway/internal/converse"
	"github.com/laiskytech/converse-gateway/internal/metrics"
	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/modelresolver"
	"github.com/laiskytech/converse-gateway/internal/ptc"
	"github.com/laiskytech/converse-gateway/internal/ratelimit"
	"github.com/laiskytech/converse-gateway/internal/store"
	"github.com/laiskytech/converse-gateway/internal/toolname"
	"github.com/laiskytech/converse-gateway/internal/tracing"
)

// Converser is the subset of converse.Client's surface handlers depend on.
// Declared locally so tests can fake the Bedrock call without a real AWS
// client, mirroring how the teacher's relay layer is itself built behind
// small per-concern interfaces rather than one god object.
type Converser interface {
	Invoke(ctx context.Context, req *model.Request, upstreamModelID string, names *toolname.Map) (*model.Response, error)
	OpenStream(ctx context.Context, req *model.Request, upstreamModelID string, names *toolname.Map) (*converse.StreamHandle, error)
}

// Deps carries every collaborator the router's handlers close over. All
// fields are required except Tracing and PTC, which default to a disabled
// no-op.
type Deps struct {
	Guard     *authguard.Guard
	Limiter   *ratelimit.Limiter
	Resolver  *modelresolver.Resolver
	Converse  Converser
	Billing   *billing.Accountant
	Store     store.Store
	Tracing   *tracing.Settings
	PTC       ptc.Dispatcher
	StartedAt time.Time
}

// New assembles the gin.Engine. Routes are registered under /v1 for the two
// client dialects and model listing, plus the ambient /health*, /metrics
// and /api/event_logging endpoints.
func New(deps Deps) *gin.Engine {
	if deps.Tracing == nil {
		deps.Tracing = tracing.Disabled()
	}
	if deps.PTC == nil {
		deps.PTC = ptc.DisabledDispatcher{}
	}
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}

	if !config.IsProduction() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.RedirectTrailingSlash = false

	logLevel := glog.LevelInfo
	if config.DebugEnabled {
		logLevel = glog.LevelDebug
	}
	baseLogger, err := glog.NewConsoleWithName("converse-gateway", logLevel)
	if err != nil {
		panic("failed to build request logger: " + err.Error())
	}

	r.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel.String()),
			gmw.WithLogger(baseLogger),
		),
		requestIDMiddleware(),
		corsMiddleware(),
	)

	r.GET("/health", healthHandler)
	r.GET("/liveness", healthHandler)
	r.GET("/ready", readyHandler(deps))
	r.GET("/health/ptc", ptcHealthHandler(deps))

	r.GET("/metrics", adminOnlyMiddleware(deps), gin.WrapH(metrics.Handler()))

	v1 := r.Group("/v1")
	v1.Use(authMiddleware(deps.Guard), rateLimitMiddleware(deps.Limiter))
	{
		v1.POST("/messages", messagesHandler(deps))
		v1.POST("/messages/count_tokens", countTokensHandler())
		v1.POST("/chat/completions", chatCompletionsHandler(deps))
		v1.GET("/models", listModelsHandler())
		v1.GET("/models/:id", getModelHandler())
	}

	r.POST("/api/event_logging/batch", eventLoggingBatchHandler())

	return r
}

func corsMiddleware() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowHeaders = []string{"Authorization", "Content-Type", "x-api-key", "anthropic-version", "anthropic-beta"}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	return cors.New(cfg)
}

// hostname is resolved once for the /health payload.
var hostname = func() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}()
