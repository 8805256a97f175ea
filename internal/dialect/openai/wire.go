// Package openai translates between the OpenAI Chat Completions wire
// format and the canonical internal/model types, and serializes canonical
// stream events as `chat.completion.chunk` SSE frames. Grounded on the
// teacher's `relay/model.Usage`/`Error` shapes (prompt/completion token
// naming, cached_tokens detail) generalized to the classic Chat Completions
// surface, since the teacher's own `relay/adaptor/openai` package targets
// the newer Response API and carries no classic ChatCompletionRequest/
// Message struct this gateway's dialect can copy directly.
package openai

import "encoding/json"

// Request is the wire shape of POST /v1/chat/completions.
type Request struct {
	Model       string          `json:"model" validate:"required"`
	Messages    []WireMessage   `json:"messages" validate:"required,min=1"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	N           *int            `json:"n,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Stop        json.RawMessage `json:"stop,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Tools       []WireTool      `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
}

// WireMessage is one Chat Completions message. Content is either a bare
// string or an array of content parts (the vision-style shape).
type WireMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  []WireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// WireContentPart is one entry of a multi-part `content` array.
type WireContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *WireImageURL `json:"image_url,omitempty"`
}

// WireImageURL carries either a remote URL or a data: URI.
type WireImageURL struct {
	URL string `json:"url"`
}

// WireToolCall is one assistant-issued tool call.
type WireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function WireFunctionCall `json:"function"`
}

// WireFunctionCall carries the function name and raw JSON arguments.
type WireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// WireTool is a client-declared function tool.
type WireTool struct {
	Type     string       `json:"type"`
	Function WireFunction `json:"function"`
}

// WireFunction is the function declaration nested in WireTool.
type WireFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// WireToolChoice mirrors the `"auto"|"none"|"required"` bare-string form or
// the `{"type":"function","function":{"name":...}}` specific-tool form.
type WireToolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// Response is the wire shape of a non-streaming chat completion reply.
type Response struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []WireChoice `json:"choices"`
	Usage   WireUsage    `json:"usage"`
}

// WireChoice is one completion choice; this gateway always returns exactly
// one (n>1 is rejected at request-translation time).
type WireChoice struct {
	Index        int         `json:"index"`
	Message      WireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// WireUsage mirrors the teacher's relay/model.Usage naming
// (prompt_tokens/completion_tokens/total_tokens + cached_tokens detail).
type WireUsage struct {
	PromptTokens            int                       `json:"prompt_tokens"`
	CompletionTokens        int                       `json:"completion_tokens"`
	TotalTokens             int                       `json:"total_tokens"`
	PromptTokensDetails     *WireUsagePromptDetails   `json:"prompt_tokens_details,omitempty"`
}

// WireUsagePromptDetails carries cache-read token accounting.
type WireUsagePromptDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

// StreamChunk is the wire shape of one `chat.completion.chunk` SSE frame.
type StreamChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []WireStreamChoice `json:"choices"`
	Usage   *WireUsage        `json:"usage,omitempty"`
}

// WireStreamChoice is one streamed delta.
type WireStreamChoice struct {
	Index        int        `json:"index"`
	Delta        WireDelta  `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// WireDelta is the incremental content of one stream chunk.
type WireDelta struct {
	Role      string               `json:"role,omitempty"`
	Content   string               `json:"content,omitempty"`
	ToolCalls []WireToolCallDelta  `json:"tool_calls,omitempty"`
}

// WireToolCallDelta is one incremental tool_call entry, keyed by Index per
// spec.md §4.4's "tool_call_index assigned in order of first appearance."
type WireToolCallDelta struct {
	Index    int                   `json:"index"`
	ID       string                `json:"id,omitempty"`
	Type     string                `json:"type,omitempty"`
	Function *WireFunctionCallDelta `json:"function,omitempty"`
}

// WireFunctionCallDelta carries the function name (set once) and a partial
// JSON arguments fragment.
type WireFunctionCallDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}
