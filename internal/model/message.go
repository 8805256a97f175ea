// Package model defines the canonical, dialect-neutral types the gateway
// translates every client and upstream payload into, grounded on the
// teacher's relay/model shapes (relay/model/misc.go, relay/model/tool.go)
// but generalized to the three-dialect (Anthropic, OpenAI, Converse) world
// described in spec.md §3.
package model

// Role is the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a canonical conversation. System prompts are kept
// out of Messages entirely (spec.md §3.2) and carried on Request.System.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// ContentBlockType discriminates the ContentBlock union.
type ContentBlockType string

const (
	ContentText       ContentBlockType = "text"
	ContentImage      ContentBlockType = "image"
	ContentToolUse    ContentBlockType = "tool_use"
	ContentToolResult ContentBlockType = "tool_result"
	ContentThinking   ContentBlockType = "thinking"
)

// ContentBlock is a tagged union over the five block kinds spec.md §3.1
// requires every dialect translator to round-trip.
type ContentBlock struct {
	Type ContentBlockType

	// Text holds the payload for ContentText and ContentThinking.
	Text string

	// Image fields, for ContentImage.
	ImageMediaType string // e.g. "image/png"
	ImageData      []byte // decoded bytes; dialects carry base64 or URLs

	// Tool-use fields, for ContentToolUse.
	ToolUseID   string
	ToolName    string
	ToolInput   any // arbitrary JSON object, already unmarshalled
	ToolInputDelta string // raw partial-JSON fragment, used only in streaming tool_use deltas

	// Tool-result fields, for ContentToolResult.
	ToolResultForID string
	ToolResultText  string
	ToolResultIsErr bool

	// ThinkingSignature carries Anthropic's opaque extended-thinking
	// signature so it can be round-tripped even though the gateway never
	// inspects it.
	ThinkingSignature string
}

// ToolChoiceMode selects how the model must use the declared tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceAny      ToolChoiceMode = "any"
	ToolChoiceTool     ToolChoiceMode = "tool"
	ToolChoiceNone     ToolChoiceMode = "none"
)

// ToolChoice mirrors the union both client dialects expose over tool
// selection.
type ToolChoice struct {
	Mode     ToolChoiceMode
	ToolName string // set only when Mode == ToolChoiceTool
}

// Tool is a canonical function tool declaration. The Name field here is
// always the client-presented name; upstream aliasing lives entirely in
// internal/toolname and never leaks into this type.
type Tool struct {
	Name        string
	Description string
	InputSchema any // JSON Schema object
}

// StopReason is the canonical reason a turn ended, generalized from the
// teacher's writer.convertStopReason table (relay/adaptor/aws/writer/main.go)
// to cover both client dialects' vocabularies.
type StopReason string

const (
	StopEndTurn             StopReason = "end_turn"
	StopMaxTokens           StopReason = "max_tokens"
	StopToolUse             StopReason = "tool_use"
	StopStopSequence        StopReason = "stop_sequence"
	StopContentFilter       StopReason = "content_filter"
	StopGuardrailIntervened StopReason = "guardrail_intervened"
	StopUnknown             StopReason = "unknown"
)

// Usage is the canonical token accounting for one request, merging the
// teacher's relay/model.Usage fields with the cache-read/write breakdown
// Bedrock's Converse metadata event reports.
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

// Total returns InputTokens + OutputTokens, the figure most pricing tables
// key off when no separate cache rates apply.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Request is the canonical, dialect-neutral chat request both client
// translators produce and the Converse caller consumes.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []Tool
	ToolChoice  *ToolChoice
	MaxTokens   int
	Temperature *float64
	TopP        *float64
	TopK        *int
	StopSequences []string
	Stream      bool

	// Metadata carries request settings that have no explicit canonical
	// field. The only entry set is "thinking_budget_tokens", written by the
	// Anthropic translator for extended thinking; other dialect fields are
	// not copied here.
	Metadata map[string]any
}

// Response is the canonical, dialect-neutral chat response.
type Response struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason StopReason
	Usage      Usage
}

// StreamEventType discriminates the canonical stream event union, which
// both dialect stream writers fan out into their own wire framing.
type StreamEventType string

const (
	EventMessageStart      StreamEventType = "message_start"
	EventContentBlockStart StreamEventType = "content_block_start"
	EventContentBlockDelta StreamEventType = "content_block_delta"
	EventContentBlockStop  StreamEventType = "content_block_stop"
	EventMessageDelta      StreamEventType = "message_delta"
	EventMessageStop       StreamEventType = "message_stop"
	EventPing              StreamEventType = "ping"
	EventError             StreamEventType = "error"
)

// StreamEvent is one item of the canonical stream spec.md §4 describes the
// Converse transcoder as producing and both dialect writers as consuming.
type StreamEvent struct {
	Type StreamEventType

	Index int // content block index, for block-scoped events

	Message *Response // set on EventMessageStart (partial: ID/Model only)

	BlockType ContentBlockType // set on EventContentBlockStart

	// Delta fields: exactly one is populated depending on BlockType.
	TextDelta       string
	ToolInputDelta  string
	ThinkingDelta   string
	ToolUseID       string
	ToolName        string

	StopReason *StopReason // set on EventMessageDelta
	Usage      *Usage      // set on EventMessageDelta (final usage)

	Err error // set on EventError
}
