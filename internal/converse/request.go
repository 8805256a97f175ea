// Package converse builds and invokes AWS Bedrock Converse/ConverseStream
// calls from the canonical internal/model request/response/stream types,
// and runs the upstream-event state machine spec.md §4.3/§4.4 describe.
// Grounded on the teacher's only real Converse caller
// (relay/adaptor/aws/writer/main.go convertWriterToConverseRequest/
// convertWriterToConverseStreamRequest) and its content-block handling
// (relay/adaptor/aws/utils/token.go convertMessagesToConverseTokensRequest),
// generalized from writer's text-only flow to the full tool-use/image/
// thinking content-block set spec.md §3 requires.
package converse

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"

	"github.com/laiskytech/converse-gateway/internal/apierr"
	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/toolname"
)

// BuildUnary translates a canonical Request into a ConverseInput, aliasing
// tool names through names per spec.md §4.5.
func BuildUnary(req *model.Request, upstreamModelID string, names *toolname.Map) (*bedrockruntime.ConverseInput, error) {
	messages, system, err := buildMessages(req, names)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(upstreamModelID),
		Messages:        messages,
		InferenceConfig: buildInferenceConfig(req),
	}
	if len(system) > 0 {
		input.System = system
	}
	if toolConfig := buildToolConfig(req, names); toolConfig != nil {
		input.ToolConfig = toolConfig
	}
	if extra := buildExtraModelFields(req); extra != nil {
		input.AdditionalModelRequestFields = extra
	}

	return input, nil
}

// BuildStream is BuildUnary's streaming counterpart; ConverseStreamInput
// shares every field with ConverseInput (spec.md §4.1, grounded on
// convertWriterToConverseStreamRequest's field-for-field reuse).
func BuildStream(req *model.Request, upstreamModelID string, names *toolname.Map) (*bedrockruntime.ConverseStreamInput, error) {
	unary, err := BuildUnary(req, upstreamModelID, names)
	if err != nil {
		return nil, err
	}
	return &bedrockruntime.ConverseStreamInput{
		ModelId:                      unary.ModelId,
		Messages:                     unary.Messages,
		System:                       unary.System,
		InferenceConfig:              unary.InferenceConfig,
		ToolConfig:                   unary.ToolConfig,
		AdditionalModelRequestFields: unary.AdditionalModelRequestFields,
	}, nil
}

func buildInferenceConfig(req *model.Request) *types.InferenceConfiguration {
	cfg := &types.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	if req.Temperature != nil {
		cfg.Temperature = aws.Float32(float32(*req.Temperature))
	}
	if req.TopP != nil {
		cfg.TopP = aws.Float32(float32(*req.TopP))
	}
	if len(req.StopSequences) > 0 {
		cfg.StopSequences = req.StopSequences
	}
	return cfg
}

func buildMessages(req *model.Request, names *toolname.Map) ([]types.Message, []types.SystemContentBlock, error) {
	var system []types.SystemContentBlock
	if req.System != "" {
		system = append(system, &types.SystemContentBlockMemberText{Value: req.System})
	}

	messages := make([]types.Message, 0, len(req.Messages))
	for i, msg := range req.Messages {
		blocks, err := buildContentBlocks(msg.Content, names)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "message %d", i)
		}
		if len(blocks) == 0 {
			continue
		}
		messages = append(messages, types.Message{
			Role:    types.ConversationRole(msg.Role),
			Content: blocks,
		})
	}

	return mergeAdjacentSameRole(messages), system, nil
}

// mergeAdjacentSameRole concatenates content blocks of consecutive
// same-role messages, since the upstream rejects consecutive same-role
// entries (spec.md §4.1).
func mergeAdjacentSameRole(messages []types.Message) []types.Message {
	if len(messages) == 0 {
		return messages
	}

	merged := make([]types.Message, 0, len(messages))
	merged = append(merged, messages[0])
	for _, m := range messages[1:] {
		last := &merged[len(merged)-1]
		if last.Role == m.Role {
			last.Content = append(last.Content, m.Content...)
			continue
		}
		merged = append(merged, m)
	}
	return merged
}

func buildContentBlocks(blocks []model.ContentBlock, names *toolname.Map) ([]types.ContentBlock, error) {
	out := make([]types.ContentBlock, 0, len(blocks))
	for i, b := range blocks {
		switch b.Type {
		case model.ContentText:
			out = append(out, &types.ContentBlockMemberText{Value: b.Text})

		case model.ContentImage:
			format, err := imageFormatOf(b.ImageMediaType)
			if err != nil {
				return nil, apierr.New(apierr.KindInvalidRequest, "unsupported image media type", err)
			}
			out = append(out, &types.ContentBlockMemberImage{
				Value: types.ImageBlock{
					Format: format,
					Source: &types.ImageSourceMemberBytes{Value: b.ImageData},
				},
			})

		case model.ContentToolUse:
			raw, err := json.Marshal(b.ToolInput)
			if err != nil {
				return nil, errors.Wrapf(err, "marshal tool_use %d input", i)
			}
			out = append(out, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(b.ToolUseID),
					Name:      aws.String(names.Alias(b.ToolName)),
					Input:     document.NewLazyDocument(json.RawMessage(raw)),
				},
			})

		case model.ContentToolResult:
			status := types.ToolResultStatusSuccess
			if b.ToolResultIsErr {
				status = types.ToolResultStatusError
			}
			out = append(out, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(b.ToolResultForID),
					Status:    status,
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: b.ToolResultText},
					},
				},
			})

		case model.ContentThinking:
			out = append(out, &types.ContentBlockMemberReasoningContent{
				Value: &types.ReasoningContentBlockMemberReasoningText{
					Value: types.ReasoningTextBlock{
						Text:      aws.String(b.Text),
						Signature: aws.String(b.ThinkingSignature),
					},
				},
			})

		default:
			return nil, apierr.New(apierr.KindInvalidRequest, "unrecognized content block type", nil)
		}
	}
	return out, nil
}

func imageFormatOf(mediaType string) (types.ImageFormat, error) {
	switch mediaType {
	case "image/png":
		return types.ImageFormatPng, nil
	case "image/jpeg", "image/jpg":
		return types.ImageFormatJpeg, nil
	case "image/gif":
		return types.ImageFormatGif, nil
	case "image/webp":
		return types.ImageFormatWebp, nil
	default:
		return "", errors.Errorf("media type %q not supported", mediaType)
	}
}

func buildToolConfig(req *model.Request, names *toolname.Map) *types.ToolConfiguration {
	if len(req.Tools) == 0 {
		return nil
	}

	tools := make([]types.Tool, 0, len(req.Tools))
	for _, t := range req.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = []byte(`{}`)
		}
		tools = append(tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(names.Alias(t.Name)),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(json.RawMessage(schema)),
				},
			},
		})
	}

	cfg := &types.ToolConfiguration{Tools: tools}
	cfg.ToolChoice = buildToolChoice(req.ToolChoice, names)
	return cfg
}

// buildToolChoice maps the client's tool_choice: auto→auto,
// any/required→any, {name}→specific{mapped_name}. none is sent as auto,
// because the upstream has no "none" choice, so a request with tools and
// tool_choice none still leaves the model free to call a declared tool.
// When the client sends tools but no explicit choice, auto is the default.
func buildToolChoice(choice *model.ToolChoice, names *toolname.Map) types.ToolChoice {
	if choice == nil {
		return &types.ToolChoiceMemberAuto{}
	}
	switch choice.Mode {
	case model.ToolChoiceAny:
		return &types.ToolChoiceMemberAny{}
	case model.ToolChoiceTool:
		return &types.ToolChoiceMemberTool{
			Value: types.SpecificToolChoice{Name: aws.String(names.Alias(choice.ToolName))},
		}
	case model.ToolChoiceNone:
		return &types.ToolChoiceMemberAuto{}
	default:
		return &types.ToolChoiceMemberAuto{}
	}
}

// buildExtraModelFields encodes Anthropic extended thinking
// (thinking.type=enabled + budget_tokens) into the upstream's
// additionalModelRequestFields shape (spec.md §4.1).
func buildExtraModelFields(req *model.Request) document.Interface {
	raw, ok := req.Metadata["thinking_budget_tokens"]
	if !ok {
		return nil
	}
	budget, ok := raw.(int)
	if !ok {
		return nil
	}

	fields := map[string]any{
		"thinking": map[string]any{
			"type":          "enabled",
			"budget_tokens": budget,
		},
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return document.NewLazyDocument(json.RawMessage(encoded))
}
