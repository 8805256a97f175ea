package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laiskytech/converse-gateway/internal/model"
)

type reqFixture struct {
	Model string `validate:"required"`
}

func TestValidateStruct_RejectsMissingRequiredField(t *testing.T) {
	err := ValidateStruct(reqFixture{})
	assert.Error(t, err)

	err = ValidateStruct(reqFixture{Model: "m"})
	assert.NoError(t, err)
}

func TestValidateToolInputSchema_RejectsMismatchedInput(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"city"},
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
	}

	err := ValidateToolInputSchema("get_weather", schema, map[string]any{"city": "Tokyo"})
	assert.NoError(t, err)

	err = ValidateToolInputSchema("get_weather", schema, map[string]any{"city": 5})
	assert.Error(t, err)

	err = ValidateToolInputSchema("get_weather", schema, map[string]any{})
	assert.Error(t, err)
}

func TestValidateToolUseBlocks_SkipsUndeclaredToolNames(t *testing.T) {
	messages := []model.Message{{
		Role: model.RoleAssistant,
		Content: []model.ContentBlock{{
			Type: model.ContentToolUse, ToolUseID: "t1", ToolName: "unknown_tool",
			ToolInput: map[string]any{"x": 1},
		}},
	}}
	require.NoError(t, ValidateToolUseBlocks(messages, nil))
}

func TestValidateToolUseBlocks_RejectsInvalidInputAgainstDeclaredSchema(t *testing.T) {
	tools := []model.Tool{{
		Name: "get_weather",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"city"},
		},
	}}
	messages := []model.Message{{
		Role: model.RoleAssistant,
		Content: []model.ContentBlock{{
			Type: model.ContentToolUse, ToolUseID: "t1", ToolName: "get_weather",
			ToolInput: map[string]any{},
		}},
	}}
	assert.Error(t, ValidateToolUseBlocks(messages, tools))
}
