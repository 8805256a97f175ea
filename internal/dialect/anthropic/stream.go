package anthropic

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/laiskytech/converse-gateway/internal/model"
)

// SSEWriter renders canonical stream events as Anthropic named-event SSE
// frames (spec.md §4.3, §6). Unlike the OpenAI writer, Anthropic's framing
// uses a distinct `event:` line per event and never emits a `[DONE]`
// terminator — the stream simply ends after message_stop.
type SSEWriter struct {
	w       io.Writer
	msgID   string
	started bool
}

// NewSSEWriter constructs a writer over w. The message id is generated once
// and reused across message_start/message_delta/message_stop frames.
func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{w: w, msgID: "msg_" + uuid.NewString()}
}

// WriteEvent renders one canonical event as a named SSE frame.
func (s *SSEWriter) WriteEvent(ev model.StreamEvent) error {
	switch ev.Type {
	case model.EventMessageStart:
		return s.writeMessageStart(ev)
	case model.EventContentBlockStart:
		return s.writeContentBlockStart(ev)
	case model.EventContentBlockDelta:
		return s.writeContentBlockDelta(ev)
	case model.EventContentBlockStop:
		return s.frame("content_block_stop", map[string]any{
			"type":  "content_block_stop",
			"index": ev.Index,
		})
	case model.EventMessageDelta:
		return s.writeMessageDelta(ev)
	case model.EventMessageStop:
		return s.frame("message_stop", map[string]any{"type": "message_stop"})
	case model.EventPing:
		return s.frame("ping", map[string]any{"type": "ping"})
	case model.EventError:
		msg := "upstream error"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		return s.frame("error", map[string]any{
			"type": "error",
			"error": map[string]string{
				"type":    "api_error",
				"message": msg,
			},
		})
	default:
		return nil
	}
}

func (s *SSEWriter) writeMessageStart(ev model.StreamEvent) error {
	s.started = true
	model_ := ""
	if ev.Message != nil {
		model_ = ev.Message.Model
		if ev.Message.ID != "" {
			s.msgID = ev.Message.ID
		}
	}
	return s.frame("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":            s.msgID,
			"type":          "message",
			"role":          "assistant",
			"model":         model_,
			"content":       []any{},
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage": map[string]int{
				"input_tokens":  0,
				"output_tokens": 0,
			},
		},
	})
}

func (s *SSEWriter) writeContentBlockStart(ev model.StreamEvent) error {
	var block map[string]any
	switch ev.BlockType {
	case model.ContentToolUse:
		block = map[string]any{
			"type":  "tool_use",
			"id":    ev.ToolUseID,
			"name":  ev.ToolName,
			"input": map[string]any{},
		}
	case model.ContentThinking:
		block = map[string]any{"type": "thinking", "thinking": ""}
	default:
		block = map[string]any{"type": "text", "text": ""}
	}
	return s.frame("content_block_start", map[string]any{
		"type":          "content_block_start",
		"index":         ev.Index,
		"content_block": block,
	})
}

func (s *SSEWriter) writeContentBlockDelta(ev model.StreamEvent) error {
	var delta map[string]any
	switch {
	case ev.ToolInputDelta != "":
		delta = map[string]any{"type": "input_json_delta", "partial_json": ev.ToolInputDelta}
	case ev.ThinkingDelta != "":
		delta = map[string]any{"type": "thinking_delta", "thinking": ev.ThinkingDelta}
	default:
		delta = map[string]any{"type": "text_delta", "text": ev.TextDelta}
	}
	return s.frame("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": ev.Index,
		"delta": delta,
	})
}

func (s *SSEWriter) writeMessageDelta(ev model.StreamEvent) error {
	stopReason := any(nil)
	if ev.StopReason != nil {
		stopReason = stopReasonWire(*ev.StopReason)
	}
	usage := map[string]int{}
	if ev.Usage != nil {
		usage["output_tokens"] = ev.Usage.OutputTokens
	}
	return s.frame("message_delta", map[string]any{
		"type": "message_delta",
		"delta": map[string]any{
			"stop_reason":   stopReason,
			"stop_sequence": nil,
		},
		"usage": usage,
	})
}

func (s *SSEWriter) frame(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
