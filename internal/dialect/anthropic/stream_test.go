package anthropic

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laiskytech/converse-gateway/internal/model"
)

func TestSSEWriter_NamedEventsNoDoneTerminator(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)

	events := []model.StreamEvent{
		{Type: model.EventMessageStart, Message: &model.Response{Model: "claude-3-5-sonnet-20241022"}},
		{Type: model.EventContentBlockStart, Index: 0, BlockType: model.ContentText},
		{Type: model.EventContentBlockDelta, Index: 0, TextDelta: "hi"},
		{Type: model.EventContentBlockStop, Index: 0},
		{Type: model.EventMessageDelta, StopReason: stopPtr(model.StopEndTurn)},
		{Type: model.EventMessageStop},
	}
	for _, ev := range events {
		require.NoError(t, w.WriteEvent(ev))
	}

	out := buf.String()
	assert.Contains(t, out, "event: message_start\n")
	assert.Contains(t, out, "event: content_block_delta\n")
	assert.Contains(t, out, `"text_delta"`)
	assert.Contains(t, out, "event: message_stop\n")
	assert.False(t, strings.Contains(out, "[DONE]"), "Anthropic SSE must not emit a [DONE] terminator")
}

func TestSSEWriter_ErrorFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)
	require.NoError(t, w.WriteEvent(model.StreamEvent{Type: model.EventError, Err: assertErr{}}))
	assert.Contains(t, buf.String(), "event: error\n")
	assert.Contains(t, buf.String(), "boom")
}

func stopPtr(s model.StopReason) *model.StopReason { return &s }

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
