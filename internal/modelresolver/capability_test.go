package modelresolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/laiskytech/converse-gateway/internal/model"
)

func TestValidateRequest_RejectsThinkingOnUnsupportedModel(t *testing.T) {
	req := &model.Request{Metadata: map[string]any{"thinking_budget_tokens": 1024}}
	err := ValidateRequest(req, "anthropic.claude-3-5-sonnet-20241022-v2:0")
	assert.Error(t, err)
}

func TestValidateRequest_AllowsThinkingOnSupportedModel(t *testing.T) {
	req := &model.Request{Metadata: map[string]any{"thinking_budget_tokens": 1024}}
	err := ValidateRequest(req, "anthropic.claude-sonnet-4-20250514-v1:0")
	assert.NoError(t, err)
}

func TestValidateRequest_AllowsToolsOnAnyClaudeModel(t *testing.T) {
	req := &model.Request{Tools: []model.Tool{{Name: "t"}}}
	assert.NoError(t, ValidateRequest(req, "anthropic.claude-3-haiku-20240307-v1:0"))
}
