// Package tokencount estimates the input token count of a canonical
// request for POST /v1/messages/count_tokens, since Bedrock's Converse API
// has no standalone token-counting endpoint the gateway can delegate to.
// Grounded on the teacher's `relay/adaptor/openai/token.go` (tiktoken-go
// encoder, "every message costs tokensPerMessage + encoded(content)"
// shape) and `relay/controller/claude_messages.go`'s image/tool
// token-estimation heuristics (`calculateClaudeImageTokens`,
// `countClaudeToolsTokens`), carried over as approximations since Converse
// models don't expose BPE vocabularies compatible with tiktoken either.
package tokencount

import (
	"encoding/json"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/laiskytech/converse-gateway/internal/model"
)

// encoder is a single shared cl100k_base encoder; Converse models use
// proprietary tokenizers the gateway cannot access, so this is a
// deliberately approximate stand-in, consistent with the teacher's own
// fallback-to-"roughly BPE-shaped" strategy for any model it hasn't
// special-cased.
var encoder *tiktoken.Tiktoken

func init() {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		panic(fmt.Sprintf("failed to load cl100k_base token encoder: %s", err.Error()))
	}
	encoder = enc
}

const (
	tokensPerMessage = 3
	// perImageTokens is a flat estimate for a single image block, matching
	// the teacher's calculateClaudeImageTokens URL/file fallback constant.
	perImageTokens = 853
)

// CountRequest estimates the input token count of a canonical request:
// system prompt, every message's content blocks, and declared tool
// schemas.
func CountRequest(req *model.Request) int {
	total := encodeLen(req.System)
	for _, m := range req.Messages {
		total += tokensPerMessage
		for _, b := range m.Content {
			total += countBlock(b)
		}
	}
	for _, t := range req.Tools {
		total += countTool(t)
	}
	return total
}

func countBlock(b model.ContentBlock) int {
	switch b.Type {
	case model.ContentText:
		return encodeLen(b.Text)
	case model.ContentThinking:
		return encodeLen(b.Text)
	case model.ContentImage:
		return perImageTokens
	case model.ContentToolUse:
		input, _ := json.Marshal(b.ToolInput)
		return encodeLen(b.ToolName) + encodeLen(string(input))
	case model.ContentToolResult:
		return encodeLen(b.ToolResultText)
	default:
		return 0
	}
}

func countTool(t model.Tool) int {
	schema, _ := json.Marshal(t.InputSchema)
	return encodeLen(t.Name) + encodeLen(t.Description) + encodeLen(string(schema))
}

func encodeLen(s string) int {
	if s == "" {
		return 0
	}
	return len(encoder.Encode(s, nil, nil))
}
