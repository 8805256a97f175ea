package anthropic

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/Laisky/errors/v2"

	"github.com/laiskytech/converse-gateway/internal/apierr"
	"github.com/laiskytech/converse-gateway/internal/dialect"
	"github.com/laiskytech/converse-gateway/internal/model"
)

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// ToCanonical translates a client-presented Anthropic Messages request into
// the canonical model.Request, per spec.md §4.1's Anthropic-side rules.
func ToCanonical(req *Request) (*model.Request, error) {
	if req.Model == "" {
		return nil, apierr.New(apierr.KindInvalidRequest, "model is required", nil)
	}
	if len(req.Messages) == 0 {
		return nil, apierr.New(apierr.KindInvalidRequest, "messages must not be empty", nil)
	}

	system, err := parseSystem(req.System)
	if err != nil {
		return nil, err
	}

	out := &model.Request{
		Model:         req.Model,
		System:        system,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
		Stream:        req.Stream,
	}

	for i, m := range req.Messages {
		blocks, err := parseContent(m.Content)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidRequest, fmt.Sprintf("message[%d]", i), err)
		}
		if len(blocks) == 0 {
			return nil, apierr.New(apierr.KindInvalidRequest, fmt.Sprintf("message[%d]: content must not be empty", i), nil)
		}
		role, err := parseRole(m.Role)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidRequest, fmt.Sprintf("message[%d]", i), err)
		}
		out.Messages = append(out.Messages, model.Message{Role: role, Content: blocks})
	}

	// spec.md §4.1: the last message must not be an assistant turn with
	// entirely empty content (a client priming-continuation bug).
	last := out.Messages[len(out.Messages)-1]
	if last.Role == model.RoleAssistant && allBlocksEmpty(last.Content) {
		return nil, apierr.New(apierr.KindInvalidRequest, "trailing assistant message has no content", nil)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, model.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	if len(req.ToolChoice) > 0 {
		choice, err := parseToolChoice(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		out.ToolChoice = choice
	}

	if req.Thinking != nil && req.Thinking.Type == "enabled" {
		out.Metadata = map[string]any{"thinking_budget_tokens": req.Thinking.BudgetTokens}
	}

	if err := dialect.ValidateToolUseBlocks(out.Messages, out.Tools); err != nil {
		return nil, apierr.New(apierr.KindInvalidRequest, err.Error(), err)
	}

	return out, nil
}

// ToCanonicalForCounting translates a count_tokens request into the same
// canonical shape ToCanonical produces, skipping the fields (stream,
// tool_choice, thinking) that don't affect the token estimate.
func ToCanonicalForCounting(req *CountTokensRequest) (*model.Request, error) {
	if req.Model == "" {
		return nil, apierr.New(apierr.KindInvalidRequest, "model is required", nil)
	}
	if len(req.Messages) == 0 {
		return nil, apierr.New(apierr.KindInvalidRequest, "messages must not be empty", nil)
	}

	system, err := parseSystem(req.System)
	if err != nil {
		return nil, err
	}

	out := &model.Request{Model: req.Model, System: system}

	for i, m := range req.Messages {
		blocks, err := parseContent(m.Content)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidRequest, fmt.Sprintf("message[%d]", i), err)
		}
		role, err := parseRole(m.Role)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidRequest, fmt.Sprintf("message[%d]", i), err)
		}
		out.Messages = append(out.Messages, model.Message{Role: role, Content: blocks})
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, model.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	return out, nil
}

func parseRole(role string) (model.Role, error) {
	switch role {
	case "user":
		return model.RoleUser, nil
	case "assistant":
		return model.RoleAssistant, nil
	default:
		return "", errors.Errorf("unsupported role %q", role)
	}
}

func allBlocksEmpty(blocks []model.ContentBlock) bool {
	for _, b := range blocks {
		if b.Type == model.ContentText && b.Text != "" {
			return false
		}
		if b.Type != model.ContentText {
			return false
		}
	}
	return true
}

// parseSystem accepts either a bare string or an array of text blocks and
// joins them, since Anthropic allows both shapes for the `system` field.
func parseSystem(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var blocks []WireContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", apierr.New(apierr.KindInvalidRequest, "system must be a string or an array of text blocks", nil)
	}
	out := ""
	for _, b := range blocks {
		out += b.Text
	}
	return out, nil
}

// parseContent accepts either a bare string (shorthand for a single text
// block) or an array of typed content blocks.
func parseContent(raw json.RawMessage) ([]model.ContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil, nil
		}
		return []model.ContentBlock{{Type: model.ContentText, Text: s}}, nil
	}

	var blocks []WireContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, errors.New("content must be a string or an array of content blocks")
	}

	out := make([]model.ContentBlock, 0, len(blocks))
	for i, b := range blocks {
		cb, err := convertContentBlock(b)
		if err != nil {
			return nil, errors.Wrapf(err, "content[%d]", i)
		}
		out = append(out, cb)
	}
	return out, nil
}

func convertContentBlock(b WireContentBlock) (model.ContentBlock, error) {
	switch b.Type {
	case "text":
		return model.ContentBlock{Type: model.ContentText, Text: b.Text}, nil
	case "image":
		if b.Source == nil || b.Source.Type != "base64" {
			return model.ContentBlock{}, errors.Errorf("unsupported image source")
		}
		data, err := decodeBase64(b.Source.Data)
		if err != nil {
			return model.ContentBlock{}, errors.Wrap(err, "decoding image data")
		}
		return model.ContentBlock{
			Type:           model.ContentImage,
			ImageMediaType: b.Source.MediaType,
			ImageData:      data,
		}, nil
	case "tool_use":
		var input any
		if len(b.Input) > 0 {
			if err := json.Unmarshal(b.Input, &input); err != nil {
				return model.ContentBlock{}, errors.Wrap(err, "decoding tool_use input")
			}
		}
		return model.ContentBlock{
			Type:      model.ContentToolUse,
			ToolUseID: b.ID,
			ToolName:  b.Name,
			ToolInput: input,
		}, nil
	case "tool_result":
		return model.ContentBlock{
			Type:            model.ContentToolResult,
			ToolResultForID: b.ToolUseID,
			ToolResultText:  flattenToolResultContent(b.Content),
			ToolResultIsErr: b.IsError,
		}, nil
	case "thinking":
		return model.ContentBlock{
			Type:              model.ContentThinking,
			Text:              b.Thinking,
			ThinkingSignature: b.Signature,
		}, nil
	default:
		return model.ContentBlock{}, errors.Errorf("unrecognized content block type %q", b.Type)
	}
}

// flattenToolResultContent accepts tool_result's content as either a bare
// string or an array of text blocks, mirroring parseContent's shorthand.
func flattenToolResultContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []WireContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		out := ""
		for _, b := range blocks {
			out += b.Text
		}
		return out
	}
	return string(raw)
}

func parseToolChoice(raw json.RawMessage) (*model.ToolChoice, error) {
	var wc WireToolChoice
	if err := json.Unmarshal(raw, &wc); err != nil {
		return nil, apierr.New(apierr.KindInvalidRequest, "invalid tool_choice", nil)
	}
	switch wc.Type {
	case "auto":
		return &model.ToolChoice{Mode: model.ToolChoiceAuto}, nil
	case "any":
		return &model.ToolChoice{Mode: model.ToolChoiceAny}, nil
	case "none":
		return &model.ToolChoice{Mode: model.ToolChoiceNone}, nil
	case "tool":
		if wc.Name == "" {
			return nil, apierr.New(apierr.KindInvalidRequest, "tool_choice.name is required when type is \"tool\"", nil)
		}
		return &model.ToolChoice{Mode: model.ToolChoiceTool, ToolName: wc.Name}, nil
	default:
		return nil, apierr.New(apierr.KindInvalidRequest, fmt.Sprintf("unrecognized tool_choice type %q", wc.Type), nil)
	}
}
