package modelresolver

import (
	"strings"

	"github.com/laiskytech/converse-gateway/internal/apierr"
	"github.com/laiskytech/converse-gateway/internal/model"
)

// Capabilities narrows the teacher's ProviderCapabilities
// (relay/adaptor/aws/adaptor.go) to the fields a Claude-on-Bedrock
// Converse request can actually vary by model generation: every Claude 3+
// model on Bedrock supports tool use and vision, but extended thinking is
// only available on the 3.7/4-generation models.
type Capabilities struct {
	SupportsTools    bool
	SupportsVision   bool
	SupportsThinking bool
}

// CapabilitiesFor classifies an upstream model id by generation substring,
// grounded on the teacher's GetModelCapabilities switch-by-substring
// shape (relay/adaptor/aws/adaptor.go), narrowed to the one family this
// gateway serves.
func CapabilitiesFor(upstreamModelID string) Capabilities {
	c := Capabilities{SupportsTools: true, SupportsVision: true}
	switch {
	case strings.Contains(upstreamModelID, "claude-3-7"),
		strings.Contains(upstreamModelID, "claude-opus-4"),
		strings.Contains(upstreamModelID, "claude-sonnet-4"):
		c.SupportsThinking = true
	}
	return c
}

// ValidateRequest checks req against upstreamModelID's capabilities,
// mirroring the teacher's ValidateUnsupportedParameters: an unsupported
// parameter is an invalid_request, not silently dropped.
func ValidateRequest(req *model.Request, upstreamModelID string) error {
	caps := CapabilitiesFor(upstreamModelID)

	if len(req.Tools) > 0 && !caps.SupportsTools {
		return apierr.New(apierr.KindInvalidRequest, "model "+upstreamModelID+" does not support tool use", nil)
	}

	if !caps.SupportsVision {
		for _, m := range req.Messages {
			for _, b := range m.Content {
				if b.Type == model.ContentImage {
					return apierr.New(apierr.KindInvalidRequest, "model "+upstreamModelID+" does not support image input", nil)
				}
			}
		}
	}

	if !caps.SupportsThinking {
		if _, ok := req.Metadata["thinking_budget_tokens"]; ok {
			return apierr.New(apierr.KindInvalidRequest, "model "+upstreamModelID+" does not support extended thinking", nil)
		}
	}

	return nil
}
