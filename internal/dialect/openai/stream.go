package openai

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/laiskytech/converse-gateway/internal/model"
)

// SSEWriter renders canonical stream events as `chat.completion.chunk`
// frames on a single default SSE event (no `event:` line), terminated by
// `data: [DONE]\n\n` once the canonical stream closes (spec.md §4.4, §6).
// Thinking blocks are silently dropped: OpenAI's Chat Completions wire
// format has no analogous delta shape.
type SSEWriter struct {
	w           io.Writer
	id          string
	model       string
	createdUnix int64

	roleSent     bool
	toolIndexFor map[string]int
	nextToolIdx  int
}

// NewSSEWriter constructs a writer over w for one chat completion stream.
func NewSSEWriter(w io.Writer, createdUnix int64) *SSEWriter {
	return &SSEWriter{
		w:            w,
		id:           "chatcmpl-" + uuid.NewString(),
		createdUnix:  createdUnix,
		toolIndexFor: make(map[string]int),
	}
}

// WriteEvent renders one canonical event, returning nil for event types
// that produce no chunk (ping, content_block_stop, thinking deltas).
func (s *SSEWriter) WriteEvent(ev model.StreamEvent) error {
	switch ev.Type {
	case model.EventMessageStart:
		if ev.Message != nil {
			s.model = ev.Message.Model
			if ev.Message.ID != "" {
				s.id = ev.Message.ID
			}
		}
		return s.emitDelta(WireDelta{Role: "assistant"}, nil)
	case model.EventContentBlockStart:
		if ev.BlockType == model.ContentToolUse {
			idx := s.toolIndex(ev.ToolUseID)
			return s.emitDelta(WireDelta{ToolCalls: []WireToolCallDelta{{
				Index: idx,
				ID:    ev.ToolUseID,
				Type:  "function",
				Function: &WireFunctionCallDelta{
					Name: ev.ToolName,
				},
			}}}, nil)
		}
		return nil
	case model.EventContentBlockDelta:
		switch {
		case ev.ToolInputDelta != "":
			// Canonical deltas carry no ToolUseID; upstream blocks arrive one
			// at a time, so an id-less delta belongs to the latest tool call.
			idx := s.nextToolIdx - 1
			if ev.ToolUseID != "" || idx < 0 {
				idx = s.toolIndex(ev.ToolUseID)
			}
			return s.emitDelta(WireDelta{ToolCalls: []WireToolCallDelta{{
				Index:    idx,
				Function: &WireFunctionCallDelta{Arguments: ev.ToolInputDelta},
			}}}, nil)
		case ev.ThinkingDelta != "":
			return nil
		default:
			if ev.TextDelta == "" {
				return nil
			}
			return s.emitDelta(WireDelta{Content: ev.TextDelta}, nil)
		}
	case model.EventContentBlockStop:
		return nil
	case model.EventMessageDelta:
		if ev.StopReason == nil {
			return nil
		}
		reason := finishReasonWire(*ev.StopReason)
		return s.emitDelta(WireDelta{}, &reason)
	case model.EventMessageStop:
		_, err := fmt.Fprint(s.w, "data: [DONE]\n\n")
		return err
	case model.EventPing:
		return nil
	case model.EventError:
		msg := "upstream error"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		payload := map[string]any{"error": map[string]string{"message": msg, "type": "api_error"}}
		return s.frame(payload)
	default:
		return nil
	}
}

// toolIndex assigns tool_call_index values in order of first appearance
// per stream, per spec.md §4.4.
func (s *SSEWriter) toolIndex(toolUseID string) int {
	if idx, ok := s.toolIndexFor[toolUseID]; ok {
		return idx
	}
	idx := s.nextToolIdx
	s.toolIndexFor[toolUseID] = idx
	s.nextToolIdx++
	return idx
}

func (s *SSEWriter) emitDelta(delta WireDelta, finishReason *string) error {
	if delta.Role != "" {
		if s.roleSent {
			delta.Role = ""
		} else {
			s.roleSent = true
		}
	}
	chunk := StreamChunk{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.createdUnix,
		Model:   s.model,
		Choices: []WireStreamChoice{{Index: 0, Delta: delta, FinishReason: finishReason}},
	}
	return s.frame(chunk)
}

func (s *SSEWriter) frame(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "data: %s\n\n", data)
	return err
}
