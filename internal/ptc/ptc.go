// Package ptc defines the pluggable tool-call dispatcher of spec.md §1 and
// §4.10: when a tool_use block names a tool the gateway itself executes
// (rather than leaving to the client to run and feed back as a
// tool_result), the configured Dispatcher runs it out-of-process and
// returns the result to be folded back into the conversation. This
// package is interface-only plus two dispatchers — it has no opinion on
// what a tool's sandbox looks like; that is the dispatcher
// implementation's problem, never this gateway's.
//
// Grounded on goadesign-goa-ai's runtime/agent/engine package: a narrow
// Engine interface (StartWorkflow/WorkflowHandle) that every durable-
// execution backend implements, with engine/temporal providing the one
// concrete backend by wrapping go.temporal.io/sdk/client.ExecuteWorkflow
// and waiting on the returned run.
package ptc

import "context"

// Call describes one tool invocation to dispatch.
type Call struct {
	// ID is the tool_use id from the canonical content block, used as the
	// workflow/correlation id so retries and duplicate dispatches of the
	// same call are idempotent at the backend's discretion.
	ID string
	// Name is the tool name as declared in the request (already restored
	// from any alias by internal/toolname).
	Name string
	// Input is the tool's input payload, already unmarshalled from the
	// model's tool_use block.
	Input any
}

// Result is what a dispatched call produced.
type Result struct {
	// Output is serialized back into a tool_result content block's text.
	Output string
	// IsError marks the result as a tool execution error, mapped onto the
	// canonical ContentToolResult block's IsError field.
	IsError bool
}

// Dispatcher executes one tool call and returns its result. Implementations
// must respect ctx cancellation: a client disconnect must not leave a
// dispatched call running unbounded.
type Dispatcher interface {
	Dispatch(ctx context.Context, call Call) (Result, error)
}

// DisabledDispatcher is the default: it refuses every call, since running
// tools server-side is an opt-in capability (spec.md §1 Non-goals: no
// sandboxed tool execution is built, only the dispatch seam for a future
// or external backend to plug into).
type DisabledDispatcher struct{}

// Dispatch always returns ErrDispatchDisabled.
func (DisabledDispatcher) Dispatch(ctx context.Context, call Call) (Result, error) {
	return Result{}, ErrDispatchDisabled
}

// ErrDispatchDisabled is returned by DisabledDispatcher.Dispatch.
var ErrDispatchDisabled = dispatchDisabledError{}

type dispatchDisabledError struct{}

func (dispatchDisabledError) Error() string {
	return "ptc: server-side tool dispatch is disabled"
}
