package openai

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/laiskytech/converse-gateway/internal/apierr"
	"github.com/laiskytech/converse-gateway/internal/dialect"
	"github.com/laiskytech/converse-gateway/internal/model"
)

// ToCanonical translates a client-presented Chat Completions request into
// the canonical model.Request, per spec.md §4.1's OpenAI-side rules:
// system-message extraction, tool-message conversion to tool_result,
// n>1 rejection, and tool_choice mapping.
func ToCanonical(req *Request) (*model.Request, error) {
	if req.Model == "" {
		return nil, apierr.New(apierr.KindInvalidRequest, "model is required", nil)
	}
	if len(req.Messages) == 0 {
		return nil, apierr.New(apierr.KindInvalidRequest, "messages must not be empty", nil)
	}
	if req.N != nil && *req.N > 1 {
		return nil, apierr.New(apierr.KindInvalidRequest, "n > 1 is not supported", nil)
	}

	maxTokens := 4096
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	out := &model.Request{
		Model:         req.Model,
		MaxTokens:     maxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Stream:        req.Stream,
		StopSequences: parseStop(req.Stop),
	}

	// tool_result content: OpenAI's "tool" role carries only tool_call_id,
	// which becomes the canonical block's ToolResultForID; no tool name is
	// looked up, since the canonical representation is keyed by id alone.
	for i, m := range req.Messages {
		switch m.Role {
		case "system":
			text, err := contentText(m.Content)
			if err != nil {
				return nil, apierr.New(apierr.KindInvalidRequest, "system message content", err)
			}
			if out.System != "" {
				out.System += "\n" + text
			} else {
				out.System = text
			}
		case "user":
			blocks, err := parseUserContent(m.Content)
			if err != nil {
				return nil, apierr.New(apierr.KindInvalidRequest, "invalid message content", err)
			}
			out.Messages = append(out.Messages, model.Message{Role: model.RoleUser, Content: blocks})
		case "assistant":
			blocks, err := parseAssistantContent(m)
			if err != nil {
				return nil, apierr.New(apierr.KindInvalidRequest, "invalid assistant message", err)
			}
			out.Messages = append(out.Messages, model.Message{Role: model.RoleAssistant, Content: blocks})
		case "tool":
			text, err := contentText(m.Content)
			if err != nil {
				return nil, apierr.New(apierr.KindInvalidRequest, "invalid tool message content", err)
			}
			// Converse has no dedicated "tool" role; tool results travel as
			// user-turn tool_result content blocks (spec.md §4.1).
			out.Messages = append(out.Messages, model.Message{
				Role: model.RoleUser,
				Content: []model.ContentBlock{{
					Type:            model.ContentToolResult,
					ToolResultForID: m.ToolCallID,
					ToolResultText:  text,
				}},
			})
		default:
			return nil, apierr.New(apierr.KindInvalidRequest, "unsupported role at message["+strconv.Itoa(i)+"]", nil)
		}
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, model.Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}

	if len(req.ToolChoice) > 0 {
		choice, err := parseToolChoice(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		out.ToolChoice = choice
	}

	if err := dialect.ValidateToolUseBlocks(out.Messages, out.Tools); err != nil {
		return nil, apierr.New(apierr.KindInvalidRequest, err.Error(), err)
	}

	return out, nil
}

// contentText accepts a bare string or a multi-part content array and
// flattens any text parts, mirroring the Anthropic dialect's shorthand
// handling for the same JSON ambiguity.
func contentText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var parts []WireContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", errors.New("content must be a string or an array of content parts")
	}
	var sb strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}

func parseUserContent(raw json.RawMessage) ([]model.ContentBlock, error) {
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

	var parts []WireContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, errors.New("content must be a string or an array of content parts")
	}

	out := make([]model.ContentBlock, 0, len(parts))
	for i, p := range parts {
		switch p.Type {
		case "text":
			out = append(out, model.ContentBlock{Type: model.ContentText, Text: p.Text})
		case "image_url":
			if p.ImageURL == nil {
				return nil, errors.Errorf("content[%d]: missing image_url", i)
			}
			mediaType, data, err := decodeDataURI(p.ImageURL.URL)
			if err != nil {
				return nil, errors.Wrapf(err, "content[%d]", i)
			}
			out = append(out, model.ContentBlock{Type: model.ContentImage, ImageMediaType: mediaType, ImageData: data})
		default:
			return nil, errors.Errorf("content[%d]: unrecognized content part type %q", i, p.Type)
		}
	}
	return out, nil
}

func parseAssistantContent(m WireMessage) ([]model.ContentBlock, error) {
	var out []model.ContentBlock
	if len(m.Content) > 0 {
		text, err := contentText(m.Content)
		if err != nil {
			return nil, err
		}
		if text != "" {
			out = append(out, model.ContentBlock{Type: model.ContentText, Text: text})
		}
	}
	for _, tc := range m.ToolCalls {
		var input any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				return nil, errors.Wrap(err, "decoding tool_call arguments")
			}
		}
		out = append(out, model.ContentBlock{
			Type:      model.ContentToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Function.Name,
			ToolInput: input,
		})
	}
	return out, nil
}

// decodeDataURI accepts a `data:<media-type>;base64,<data>` URI, the only
// image_url form Bedrock's Converse can actually ingest (Converse takes raw
// bytes, not a fetchable remote URL).
func decodeDataURI(uri string) (string, []byte, error) {
	const prefix = "data:"
	if !strings.HasPrefix(uri, prefix) {
		return "", nil, errors.New("only data: image URLs are supported")
	}
	rest := uri[len(prefix):]
	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return "", nil, errors.New("image_url must be a base64 data URI")
	}
	mediaType := rest[:semi]
	data, err := base64.StdEncoding.DecodeString(rest[semi+len(";base64,"):])
	if err != nil {
		return "", nil, errors.Wrap(err, "decoding image data")
	}
	return mediaType, data, nil
}

func parseStop(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return nil
}

func parseToolChoice(raw json.RawMessage) (*model.ToolChoice, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch s {
		case "auto":
			return &model.ToolChoice{Mode: model.ToolChoiceAuto}, nil
		case "none":
			return &model.ToolChoice{Mode: model.ToolChoiceNone}, nil
		case "required":
			return &model.ToolChoice{Mode: model.ToolChoiceAny}, nil
		default:
			return nil, apierr.New(apierr.KindInvalidRequest, "unrecognized tool_choice", nil)
		}
	}

	var wc WireToolChoice
	if err := json.Unmarshal(raw, &wc); err != nil {
		return nil, apierr.New(apierr.KindInvalidRequest, "invalid tool_choice", err)
	}
	if wc.Type != "function" || wc.Function.Name == "" {
		return nil, apierr.New(apierr.KindInvalidRequest, "invalid tool_choice", nil)
	}
	return &model.ToolChoice{Mode: model.ToolChoiceTool, ToolName: wc.Function.Name}, nil
}
