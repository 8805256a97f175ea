package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laiskytech/converse-gateway/internal/model"
)

func TestFromCanonical_TextResponse(t *testing.T) {
	resp := &model.Response{
		Model:      "gpt-4o",
		StopReason: model.StopEndTurn,
		Content:    []model.ContentBlock{{Type: model.ContentText, Text: "hi there"}},
		Usage:      model.Usage{InputTokens: 5, OutputTokens: 7},
	}

	wire := FromCanonical(resp, 1234)
	assert.Equal(t, "chat.completion", wire.Object)
	require.Len(t, wire.Choices, 1)
	assert.Equal(t, "stop", wire.Choices[0].FinishReason)
	assert.Equal(t, "assistant", wire.Choices[0].Message.Role)
	assert.JSONEq(t, `"hi there"`, string(wire.Choices[0].Message.Content))
	assert.Equal(t, 12, wire.Usage.TotalTokens)
	assert.Contains(t, wire.ID, "chatcmpl-")
}

func TestFromCanonical_ToolUseMapsToToolCalls(t *testing.T) {
	resp := &model.Response{
		Model:      "gpt-4o",
		StopReason: model.StopToolUse,
		Content: []model.ContentBlock{{
			Type:      model.ContentToolUse,
			ToolUseID: "call_1",
			ToolName:  "lookup",
			ToolInput: map[string]any{"q": "x"},
		}},
	}

	wire := FromCanonical(resp, 1234)
	assert.Equal(t, "tool_calls", wire.Choices[0].FinishReason)
	require.Len(t, wire.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "lookup", wire.Choices[0].Message.ToolCalls[0].Function.Name)
}

func TestFromCanonical_GuardrailInterventionMapsToContentFilter(t *testing.T) {
	resp := &model.Response{StopReason: model.StopGuardrailIntervened}
	wire := FromCanonical(resp, 0)
	assert.Equal(t, "content_filter", wire.Choices[0].FinishReason)
}

func TestFromCanonical_CacheReadTokensSurfaceInDetails(t *testing.T) {
	resp := &model.Response{Usage: model.Usage{InputTokens: 10, CacheReadTokens: 4}}
	wire := FromCanonical(resp, 0)
	require.NotNil(t, wire.Usage.PromptTokensDetails)
	assert.Equal(t, 4, wire.Usage.PromptTokensDetails.CachedTokens)
}
