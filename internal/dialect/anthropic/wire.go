// Package anthropic translates between the Anthropic Messages wire format
// and the canonical internal/model types, and serializes canonical stream
// events as Anthropic-named SSE frames. Grounded on the teacher's Claude
// Messages surface (relay/adaptor/openai_compatible/claude_messages.go,
// claude_convert.go, relay/controller/claude_messages.go), generalized from
// "Claude-as-a-translation-target-of-OpenAI" to "Claude-as-a-client-dialect-
// of-Converse."
package anthropic

import "encoding/json"

// Request is the wire shape of POST /v1/messages.
type Request struct {
	Model         string          `json:"model" validate:"required"`
	Messages      []WireMessage   `json:"messages" validate:"required,min=1"`
	System        json.RawMessage `json:"system,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Tools         []WireTool      `json:"tools,omitempty"`
	ToolChoice    json.RawMessage `json:"tool_choice,omitempty"`
	Thinking      *WireThinking   `json:"thinking,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// WireThinking carries Anthropic's extended-thinking opt-in.
type WireThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// WireMessage is one message entry; Content is either a bare string or an
// array of WireContentBlock, handled by the request translator's
// normalizing parse (spec.md §9 "define a normalizing parse up front").
type WireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// WireContentBlock is the tagged union over Anthropic content-block kinds,
// parsed generically since `type` selects which other fields are present.
type WireContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Source *WireImageSource `json:"source,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	// thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

// WireImageSource is the Anthropic base64-image source shape.
type WireImageSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// WireTool is a client-declared tool.
type WireTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

// WireToolChoice mirrors the {"type": "auto"|"any"|"tool", "name"?} shape.
type WireToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Response is the wire shape of a non-streaming POST /v1/messages reply.
type Response struct {
	ID           string              `json:"id"`
	Type         string              `json:"type"`
	Role         string              `json:"role"`
	Model        string              `json:"model"`
	Content      []WireContentBlock  `json:"content"`
	StopReason   string              `json:"stop_reason"`
	StopSequence *string             `json:"stop_sequence"`
	Usage        ResponseWireUsage   `json:"usage"`
}

// ResponseWireUsage is the Anthropic usage block.
type ResponseWireUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
}

// CountTokensRequest is the wire shape of POST /v1/messages/count_tokens.
type CountTokensRequest struct {
	Model    string          `json:"model"`
	Messages []WireMessage   `json:"messages"`
	System   json.RawMessage `json:"system,omitempty"`
	Tools    []WireTool      `json:"tools,omitempty"`
}

// CountTokensResponse is the wire shape returned by count_tokens.
type CountTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}
