package converse

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/toolname"
)

func TestTranslateUnary_TextAndStopReason(t *testing.T) {
	out := &bedrockruntime.ConverseOutput{
		StopReason: types.StopReasonEndTurn,
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(20),
		},
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: "hello there"},
				},
			},
		},
	}

	resp := TranslateUnary(out, "claude-3-5-sonnet-20241022", toolname.New())
	assert.Equal(t, model.StopEndTurn, resp.StopReason)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 20, resp.Usage.OutputTokens)
	assert.Equal(t, "claude-3-5-sonnet-20241022", resp.Model)

	require.Len(t, resp.Content, 1)
	assertContentText(t, resp.Content, "hello there")
}

func assertContentText(t *testing.T, blocks []model.ContentBlock, want string) {
	t.Helper()
	for _, b := range blocks {
		if b.Type == model.ContentText {
			assert.Equal(t, want, b.Text)
			return
		}
	}
	t.Fatalf("no text block found")
}

func TestTranslateUnary_ToolUseRestoresAliasedName(t *testing.T) {
	names := toolname.New()
	longName := "a_very_long_tool_name_that_exceeds_the_sixty_four_character_bedrock_limit"
	aliased := names.Alias(longName)

	out := &bedrockruntime.ConverseOutput{
		StopReason: types.StopReasonToolUse,
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Content: []types.ContentBlock{
					&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
						ToolUseId: aws.String("toolu_1"),
						Name:      aws.String(aliased),
						Input:     document.NewLazyDocument(map[string]any{"q": "x"}),
					}},
				},
			},
		},
	}

	resp := TranslateUnary(out, "claude-3-5-sonnet-20241022", names)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, longName, resp.Content[0].ToolName)
	assert.Equal(t, model.StopToolUse, resp.StopReason)
}

func TestConvertStopReason_Unknown(t *testing.T) {
	assert.Equal(t, model.StopUnknown, convertStopReason(types.StopReason("something_new")))
}

func TestConvertStopReason_GuardrailIntervened(t *testing.T) {
	assert.Equal(t, model.StopGuardrailIntervened, convertStopReason(types.StopReasonGuardrailIntervened))
}
