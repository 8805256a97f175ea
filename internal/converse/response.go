package converse

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"

	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/toolname"
)

// TranslateUnary converts a ConverseOutput into a canonical Response,
// restoring any aliased tool names back to the client's original names.
// Grounded on writer/main.go's convertConverseResponseToOpenAI, generalized
// from its text-only extraction to the full content-block set.
func TranslateUnary(out *bedrockruntime.ConverseOutput, clientModel string, names *toolname.Map) *model.Response {
	resp := &model.Response{
		Model:      clientModel,
		StopReason: convertStopReason(out.StopReason),
		Usage:      convertUsage(out.Usage),
	}

	if msg, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		resp.Content = convertContentBlocks(msg.Value.Content, names)
	}

	return resp
}

func convertUsage(u *types.TokenUsage) model.Usage {
	if u == nil {
		return model.Usage{}
	}
	usage := model.Usage{
		InputTokens:  int(aws32(u.InputTokens)),
		OutputTokens: int(aws32(u.OutputTokens)),
	}
	if u.CacheReadInputTokens != nil {
		usage.CacheReadTokens = int(*u.CacheReadInputTokens)
	}
	if u.CacheWriteInputTokens != nil {
		usage.CacheCreationTokens = int(*u.CacheWriteInputTokens)
	}
	return usage
}

func aws32(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}

// convertStopReason maps Bedrock Converse's StopReason vocabulary to the
// canonical StopReason enum, generalizing writer/main.go's convertStopReason
// (which maps to OpenAI's finish_reason strings) to our own union.
func convertStopReason(reason types.StopReason) model.StopReason {
	switch reason {
	case types.StopReasonEndTurn:
		return model.StopEndTurn
	case types.StopReasonMaxTokens:
		return model.StopMaxTokens
	case types.StopReasonToolUse:
		return model.StopToolUse
	case types.StopReasonStopSequence:
		return model.StopStopSequence
	case types.StopReasonContentFiltered:
		return model.StopContentFilter
	case types.StopReasonGuardrailIntervened:
		return model.StopGuardrailIntervened
	default:
		return model.StopUnknown
	}
}

func convertContentBlocks(blocks []types.ContentBlock, names *toolname.Map) []model.ContentBlock {
	out := make([]model.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case *types.ContentBlockMemberText:
			out = append(out, model.ContentBlock{Type: model.ContentText, Text: v.Value})

		case *types.ContentBlockMemberToolUse:
			out = append(out, model.ContentBlock{
				Type:      model.ContentToolUse,
				ToolUseID: aws.ToString(v.Value.ToolUseId),
				ToolName:  names.Restore(aws.ToString(v.Value.Name)),
				ToolInput: unmarshalDocument(v.Value.Input),
			})

		case *types.ContentBlockMemberReasoningContent:
			if rt, ok := v.Value.(*types.ReasoningContentBlockMemberReasoningText); ok {
				out = append(out, model.ContentBlock{
					Type:              model.ContentThinking,
					Text:              aws.ToString(rt.Value.Text),
					ThinkingSignature: aws.ToString(rt.Value.Signature),
				})
			}

		default:
			// Images/tool-results never appear in an assistant turn the
			// upstream returns; anything unrecognized is dropped rather
			// than surfaced as an error, matching writer/main.go's
			// best-effort extraction.
		}
	}
	return out
}

func unmarshalDocument(doc document.Interface) any {
	if doc == nil {
		return nil
	}
	var v any
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return nil
	}
	return v
}
