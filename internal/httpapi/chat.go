package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/laiskytech/converse-gateway/internal/apierr"
	"github.com/laiskytech/converse-gateway/internal/converse"
	"github.com/laiskytech/converse-gateway/internal/ctxkey"
	"github.com/laiskytech/converse-gateway/internal/dialect"
	"github.com/laiskytech/converse-gateway/internal/dialect/openai"
	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/modelresolver"
	"github.com/laiskytech/converse-gateway/internal/toolname"
	"github.com/laiskytech/converse-gateway/internal/tracing"
)

// chatCompletionsHandler serves POST /v1/chat/completions, both unary and
// SSE-streamed, per spec.md §4.1-§4.4.
func chatCompletionsHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		kc := mustKeyContext(c)

		var wireReq openai.Request
		if err := c.ShouldBindJSON(&wireReq); err != nil {
			apierr.Write(c, apierr.New(apierr.KindInvalidRequest, "invalid request body", err))
			return
		}
		if err := dialect.ValidateStruct(&wireReq); err != nil {
			apierr.Write(c, apierr.New(apierr.KindInvalidRequest, err.Error(), err))
			return
		}

		canonical, err := openai.ToCanonical(&wireReq)
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
		attrs := tracing.RequestAttributes("openai", canonical.Model, upstreamModel, kc.ID)
		createdUnix := start.Unix()

		if canonical.Stream {
			streamChatCompletion(c, deps, canonical, upstreamModel, names, kc, tracer, attrs, start, createdUnix)
			return
		}

		resp, err := tracing.RecordSpan(c.Request.Context(), tracer, tracing.SpanOptions{Name: "converse.invoke", Attributes: attrs},
			func(ctx context.Context, _ trace.Span) (*model.Response, error) {
				return deps.Converse.Invoke(ctx, canonical, upstreamModel, names)
			})
		dur := time.Since(start)
		if err != nil {
			recordOutcome(c, deps, kc.ID, upstreamModel, "openai", model.Usage{}, false, dur, err.Error())
			apierr.Write(c, err)
			return
		}

		recordOutcome(c, deps, kc.ID, upstreamModel, "openai", resp.Usage, true, dur, "")
		c.JSON(http.StatusOK, openai.FromCanonical(resp, createdUnix))
	}
}

// streamChatCompletion drives one SSE-framed Converse stream for the
// OpenAI dialect, per spec.md §4.4/§6's `chat.completion.chunk` framing.
func streamChatCompletion(c *gin.Context, deps Deps, req *model.Request, upstreamModel string, names *toolname.Map, kc *model.KeyContext, tracer trace.Tracer, attrs []attribute.KeyValue, start time.Time, createdUnix int64) {
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

	writer := openai.NewSSEWriter(c.Writer, createdUnix)
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

	recordOutcome(c, deps, kc.ID, upstreamModel, "openai", finalUsage, success, time.Since(start), errMsg)
}
