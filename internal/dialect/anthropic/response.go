package anthropic

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/laiskytech/converse-gateway/internal/model"
)

func marshalAny(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(v)
}

// FromCanonical renders a canonical Response as the Anthropic wire shape,
// per spec.md §4.2. ID generation mirrors Anthropic's own `msg_<uuid>` form.
func FromCanonical(resp *model.Response) *Response {
	out := &Response{
		ID:         "msg_" + uuid.NewString(),
		Type:       "message",
		Role:       "assistant",
		Model:      resp.Model,
		StopReason: stopReasonWire(resp.StopReason),
		Usage: ResponseWireUsage{
			InputTokens:              resp.Usage.InputTokens,
			OutputTokens:             resp.Usage.OutputTokens,
			CacheReadInputTokens:     resp.Usage.CacheReadTokens,
			CacheCreationInputTokens: resp.Usage.CacheCreationTokens,
		},
	}

	for _, b := range resp.Content {
		out.Content = append(out.Content, convertBlockToWire(b))
	}
	return out
}

func convertBlockToWire(b model.ContentBlock) WireContentBlock {
	switch b.Type {
	case model.ContentText:
		return WireContentBlock{Type: "text", Text: b.Text}
	case model.ContentToolUse:
		input, _ := marshalAny(b.ToolInput)
		return WireContentBlock{
			Type:  "tool_use",
			ID:    b.ToolUseID,
			Name:  b.ToolName,
			Input: input,
		}
	case model.ContentThinking:
		return WireContentBlock{Type: "thinking", Thinking: b.Text, Signature: b.ThinkingSignature}
	default:
		return WireContentBlock{Type: "text", Text: ""}
	}
}

func stopReasonWire(r model.StopReason) string {
	switch r {
	case model.StopEndTurn:
		return "end_turn"
	case model.StopMaxTokens:
		return "max_tokens"
	case model.StopToolUse:
		return "tool_use"
	case model.StopStopSequence:
		return "stop_sequence"
	case model.StopContentFilter:
		return "stop_sequence"
	case model.StopGuardrailIntervened:
		return "end_turn"
	default:
		return "end_turn"
	}
}
