// Package apierr implements the error taxonomy of spec.md §7: a small set
// of kinds, each with a fixed HTTP status and client envelope type, plus a
// single AbortWithError-style writer mirroring the teacher's
// middleware.AbortWithError.
package apierr

import (
	"net/http"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
)

// Kind is one of the eight error kinds named in spec.md §7.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindForbidden      Kind = "forbidden"
	KindRateLimit      Kind = "rate_limit"
	KindInvalidRequest Kind = "invalid_request"
	KindUpstream       Kind = "upstream"
	KindUpstreamTimout Kind = "upstream_timeout"
	KindPersistence    Kind = "persistence"
	KindInternal       Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindAuthentication: http.StatusUnauthorized,
	KindForbidden:      http.StatusForbidden,
	KindRateLimit:      http.StatusTooManyRequests,
	KindInvalidRequest: http.StatusBadRequest,
	KindUpstream:       http.StatusBadGateway,
	KindUpstreamTimout: http.StatusGatewayTimeout,
	KindPersistence:    http.StatusInternalServerError,
	KindInternal:       http.StatusInternalServerError,
}

var envelopeTypeByKind = map[Kind]string{
	KindAuthentication: "authentication_error",
	KindForbidden:      "forbidden_error",
	KindRateLimit:      "rate_limit_error",
	KindInvalidRequest: "invalid_request_error",
	KindUpstream:       "api_error",
	KindUpstreamTimout: "api_error",
	KindPersistence:    "api_error",
	KindInternal:       "api_error",
}

// Error is the gateway's own error type; it always knows how it should be
// rendered to an HTTP client.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// EnvelopeType returns the client-facing error.type field.
func (e *Error) EnvelopeType() string {
	if t, ok := envelopeTypeByKind[e.Kind]; ok {
		return t
	}
	return "api_error"
}

// New builds an *Error of the given kind, wrapping cause (which may be nil).
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Wrap is a convenience constructor equivalent to New but named for
// call-sites that are wrapping an existing error (mirrors the teacher's
// errors.Wrap idiom).
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: errors.Wrap(cause, message)}
}

// AnthropicEnvelope is the client-facing JSON body, shaped like Anthropic's
// error envelope; spec.md §6 mandates this shape for auth failures and it is
// reused for every error kind so both dialects share one wire format for
// transport-level failures (dialect-specific translation errors are
// rendered the same way — the two client dialects converge on one error
// envelope upstream of dialect-specific success responses).
type AnthropicEnvelope struct {
	Type  string       `json:"type"`
	Error ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Write renders err to the client and aborts the gin context. If err is not
// an *Error it is treated as an opaque internal failure.
func Write(c *gin.Context, err error) {
	lg := gmw.GetLogger(c)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = New(KindInternal, "internal error", err)
	}

	if apiErr.Kind == KindRateLimit {
		lg.Warn("request rejected", zap.String("kind", string(apiErr.Kind)), zap.Error(err))
	} else {
		lg.Error("request aborted", zap.String("kind", string(apiErr.Kind)), zap.Error(err))
	}

	c.JSON(apiErr.Status(), AnthropicEnvelope{
		Type: "error",
		Error: ErrorPayload{
			Type:    apiErr.EnvelopeType(),
			Message: apiErr.Message,
		},
	})
	c.Abort()
}

// IsRetryable reports whether the error kind is safe to retry per spec.md
// §7 ("Retryable (internal, with backoff): 429 and 5xx from upstream on
// unary calls; throttling on persistence writes").
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindRateLimit, KindUpstream, KindUpstreamTimout, KindPersistence:
		return true
	default:
		return false
	}
}
