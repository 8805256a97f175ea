package openai

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/laiskytech/converse-gateway/internal/model"
)

// FromCanonical renders a canonical Response as a Chat Completions reply,
// per spec.md §4.2. ID generation mirrors OpenAI's own `chatcmpl-<uuid>`
// form; cache-read tokens surface via prompt_tokens_details.cached_tokens
// only when non-zero, matching the teacher's omitempty usage shape.
func FromCanonical(resp *model.Response, createdUnix int64) *Response {
	out := &Response{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: createdUnix,
		Model:   resp.Model,
		Usage:   usageToWire(resp.Usage),
	}

	msg := WireMessage{Role: "assistant"}
	var text string
	for _, b := range resp.Content {
		switch b.Type {
		case model.ContentText:
			text += b.Text
		case model.ContentToolUse:
			args, _ := json.Marshal(b.ToolInput)
			if args == nil {
				args = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, WireToolCall{
				ID:   b.ToolUseID,
				Type: "function",
				Function: WireFunctionCall{
					Name:      b.ToolName,
					Arguments: string(args),
				},
			})
		}
	}
	if text != "" {
		raw, _ := json.Marshal(text)
		msg.Content = raw
	}

	out.Choices = []WireChoice{{
		Index:        0,
		Message:      msg,
		FinishReason: finishReasonWire(resp.StopReason),
	}}
	return out
}

func usageToWire(u model.Usage) WireUsage {
	wu := WireUsage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.Total(),
	}
	if u.CacheReadTokens > 0 {
		wu.PromptTokensDetails = &WireUsagePromptDetails{CachedTokens: u.CacheReadTokens}
	}
	return wu
}

func finishReasonWire(r model.StopReason) string {
	switch r {
	case model.StopEndTurn:
		return "stop"
	case model.StopMaxTokens:
		return "length"
	case model.StopToolUse:
		return "tool_calls"
	case model.StopStopSequence:
		return "stop"
	case model.StopContentFilter:
		return "content_filter"
	case model.StopGuardrailIntervened:
		return "content_filter"
	default:
		return "stop"
	}
}
