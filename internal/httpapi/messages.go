package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/laiskytech/converse-gateway/internal/apierr"
	"github.com/laiskytech/converse-gateway/internal/billing"
	"github.com/laiskytech/converse-gateway/internal/converse"
	"github.com/laiskytech/converse-gateway/internal/ctxkey"
	"github.com/laiskytech/converse-gateway/internal/dialect"
	"github.com/laiskytech/converse-gateway/internal/dialect/anthropic"
	"github.com/laiskytech/converse-gateway/internal/metrics"
	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/modelresolver"
	"github.com/laiskytech/converse-gateway/internal/tokencount"
	"github.com/laiskytech/converse-gateway/internal/toolname"
	"github.com/laiskytech/converse-gateway/internal/tracing"
)

// messagesHandler serves POST /v1/messages, both unary and SSE-streamed,
// per spec.md §4.1-§4.3.
func messagesHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		kc := mustKeyContext(c)

		var wireReq anthropic.Request
		if err := c.ShouldBindJSON(&wireReq); err != nil {
			apierr.Write(c, apierr.New(apierr.KindInvalidRequest, "invalid request body", err))
			return
		}
		if err := dialect.ValidateStruct(&wireReq); err != nil {
			apierr.Write(c, apierr.New(apierr.KindInvalidRequest, err.Error(), err))
			return
		}

		canonical, err := anthropic.ToCanonical(&wireReq)
		if err != nil {
			apierr.Write(c, err)
			return
		}

		upstreamModel := deps.Resolver.Resolve(c.Request.Context(), canonical.Model)
		if err := modelresolver.ValidateRequest(canonical, upstreamModel); err != nil {
			apierr.Write(c, err)
			return
		}

		names := toolname.New()
		c.Set(ctxkey.ToolNameMap, names)

		tracer := tracing.GetTracer(deps.Tracing)
		attrs := tracing.RequestAttributes("anthropic", canonical.Model, upstreamModel, kc.ID)

		if canonical.Stream {
			streamMessages(c, deps, canonical, upstreamModel, names, kc, tracer, attrs, start)
			return
		}

		resp, err := tracing.RecordSpan(c.Request.Context(), tracer, tracing.SpanOptions{Name: "converse.invoke", Attributes: attrs},
			func(ctx context.Context, _ trace.Span) (*model.Response, error) {
				return deps.Converse.Invoke(ctx, canonical, upstreamModel, names)
			})
		dur := time.Since(start)
		if err != nil {
			recordOutcome(c, deps, kc.ID, upstreamModel, "anthropic", model.Usage{}, false, dur, err.Error())
			apierr.Write(c, err)
			return
		}

		recordOutcome(c, deps, kc.ID, upstreamModel, "anthropic", resp.Usage, true, dur, "")
		c.JSON(http.StatusOK, anthropic.FromCanonical(resp))
	}
}

// streamMessages drives one SSE-framed Converse stream for the Anthropic
// dialect, per spec.md §4.3/§6's event framing.
func streamMessages(c *gin.Context, deps Deps, req *model.Request, upstreamModel string, names *toolname.Map, kc *model.KeyContext, tracer trace.Tracer, attrs []attribute.KeyValue, start time.Time) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	handle, err := tracing.RecordSpan(c.Request.Context(), tracer, tracing.SpanOptions{Name: "converse.stream", Attributes: attrs},
		func(ctx context.Context, _ trace.Span) (*converse.StreamHandle, error) {
			return deps.Converse.OpenStream(ctx, req, upstreamModel, names)
		})
	if err != nil {
		apierr.Write(c, err)
		return
	}
	defer handle.Close()

	writer := anthropic.NewSSEWriter(c.Writer)
	flusher, _ := c.Writer.(http.Flusher)

	var finalUsage model.Usage
	success := true
	errMsg := ""

	for ev := range handle.Events() {
		if ev.Type == model.EventError {
			success = false
			if ev.Err != nil {
				errMsg = ev.Err.Error()
			}
		}
		if ev.Usage != nil {
			finalUsage = *ev.Usage
		}
		if werr := writer.WriteEvent(ev); werr != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	// A client that closed the connection mid-stream already cancelled
	// c.Request.Context(), which is what stopped the OpenStream goroutine
	// above; skip billing/metrics too rather than persist a UsageRecord for
	// a response the client never fully received.
	if c.Request.Context().Err() != nil {
		return
	}

	recordOutcome(c, deps, kc.ID, upstreamModel, "anthropic", finalUsage, success, time.Since(start), errMsg)
}

// countTokensHandler serves POST /v1/messages/count_tokens: it never calls
// upstream, so it sits outside the billing/tracing path entirely.
func countTokensHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var wireReq anthropic.CountTokensRequest
		if err := c.ShouldBindJSON(&wireReq); err != nil {
			apierr.Write(c, apierr.New(apierr.KindInvalidRequest, "invalid request body", err))
			return
		}

		canonical, err := anthropic.ToCanonicalForCounting(&wireReq)
		if err != nil {
			apierr.Write(c, err)
			return
		}

		c.JSON(http.StatusOK, anthropic.CountTokensResponse{InputTokens: tokencount.CountRequest(canonical)})
	}
}

// recordOutcome folds billing and metrics recording for one completed
// request, shared by both client dialects' unary and streaming paths.
func recordOutcome(c *gin.Context, deps Deps, keyID, upstreamModel, dialectName string, usage model.Usage, success bool, dur time.Duration, errMsg string) {
	deps.Billing.Record(c.Request.Context(), billing.RecordInput{
		KeyID:         keyID,
		RequestID:     requestID(c),
		UpstreamModel: upstreamModel,
		Usage:         usage,
		Success:       success,
		DurationMS:    dur.Milliseconds(),
		ErrorMessage:  errMsg,
	})

	outcome := "success"
	if !success {
		outcome = "error"
	}
	metrics.ObserveRequest(dialectName, upstreamModel, outcome, dur)
	metrics.ObserveTokens(upstreamModel, usage.InputTokens, usage.OutputTokens, usage.CacheReadTokens, usage.CacheCreationTokens)
}
