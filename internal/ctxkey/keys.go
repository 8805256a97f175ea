// Package ctxkey centralizes the gin.Context keys the gateway sets and
// reads across middleware and handlers, matching the teacher's
// common/ctxkey convention of one documented constant per key.
package ctxkey

const (
	// KeyContext holds the resolved *authguard.KeyContext for the request.
	// Set in: httpapi auth middleware. Read in: rate limiter, handlers.
	KeyContext = "key_context"

	// ToolNameMap holds the request-scoped *toolname.Map.
	// Set in: httpapi messages and chat-completions handlers, which also
	// pass the map directly to the Converse client; nothing reads it back
	// from the context.
	ToolNameMap = "tool_name_map"

	// RequestID is the trace/request identifier echoed on x-request-id and
	// x-trace-id.
	RequestID = "request_id"

	// RequestBody is reserved for the raw request bytes; no middleware or
	// handler sets or reads it.
	RequestBody = "request_body"
)
