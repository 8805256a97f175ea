package converse

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/toolname"
)

func eventTypes(events []model.StreamEvent) []model.StreamEventType {
	out := make([]model.StreamEventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

// TestTranscoder_WellFormedOrdering exercises spec.md §8's stream
// well-formedness property: message_start first, message_stop last after
// exactly one message_delta, block start before delta before stop.
func TestTranscoder_WellFormedOrdering(t *testing.T) {
	tr := NewStreamTranscoder("claude-3-5-sonnet-20241022", toolname.New())

	var all []model.StreamEvent
	all = append(all, tr.Handle(&types.ConverseStreamOutputMemberMessageStart{})...)
	all = append(all, tr.Handle(&types.ConverseStreamOutputMemberContentBlockStart{
		Value: types.ContentBlockStartEvent{ContentBlockIndex: aws.Int32(0)},
	})...)
	all = append(all, tr.Handle(&types.ConverseStreamOutputMemberContentBlockDelta{
		Value: types.ContentBlockDeltaEvent{
			ContentBlockIndex: aws.Int32(0),
			Delta:             &types.ContentBlockDeltaMemberText{Value: "hello"},
		},
	})...)
	all = append(all, tr.Handle(&types.ConverseStreamOutputMemberContentBlockStop{
		Value: types.ContentBlockStopEvent{ContentBlockIndex: aws.Int32(0)},
	})...)
	all = append(all, tr.Handle(&types.ConverseStreamOutputMemberMessageStop{
		Value: types.MessageStopEvent{StopReason: types.StopReasonEndTurn},
	})...)
	all = append(all, tr.Handle(&types.ConverseStreamOutputMemberMetadata{
		Value: types.ConverseStreamMetadataEvent{
			Usage: &types.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(6)},
		},
	})...)

	kinds := eventTypes(all)
	require.Equal(t, model.EventMessageStart, kinds[0])
	require.Equal(t, model.EventMessageStop, kinds[len(kinds)-1])
	require.Equal(t, model.EventMessageDelta, kinds[len(kinds)-2])

	startIdx, deltaIdx, stopIdx := -1, -1, -1
	for i, e := range all {
		switch e.Type {
		case model.EventContentBlockStart:
			startIdx = i
		case model.EventContentBlockDelta:
			deltaIdx = i
		case model.EventContentBlockStop:
			if stopIdx == -1 {
				stopIdx = i
			}
		}
	}
	assert.True(t, startIdx < deltaIdx)
	assert.True(t, deltaIdx < stopIdx)
}

// TestTranscoder_MetadataAfterMessageStopCarriesUsage exercises the real
// Bedrock ordering (messageStop, then metadata) and asserts the closing
// message_delta carries the usage from metadata rather than a zeroed
// accumulator, and that messageStop alone closes nothing.
func TestTranscoder_MetadataAfterMessageStopCarriesUsage(t *testing.T) {
	tr := NewStreamTranscoder("claude-3-5-sonnet-20241022", toolname.New())
	_ = tr.Handle(&types.ConverseStreamOutputMemberMessageStart{})

	stopEvents := tr.Handle(&types.ConverseStreamOutputMemberMessageStop{
		Value: types.MessageStopEvent{StopReason: types.StopReasonToolUse},
	})
	assert.Empty(t, stopEvents, "messageStop alone must not close the stream")
	assert.False(t, tr.Done())

	closing := tr.Handle(&types.ConverseStreamOutputMemberMetadata{
		Value: types.ConverseStreamMetadataEvent{
			Usage: &types.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(6)},
		},
	})
	require.Len(t, closing, 2)
	require.Equal(t, model.EventMessageDelta, closing[0].Type)
	require.NotNil(t, closing[0].Usage)
	assert.Equal(t, 12, closing[0].Usage.InputTokens)
	assert.Equal(t, 6, closing[0].Usage.OutputTokens)
	require.NotNil(t, closing[0].StopReason)
	assert.Equal(t, model.StopToolUse, *closing[0].StopReason)
	assert.Equal(t, model.EventMessageStop, closing[1].Type)
	assert.True(t, tr.Done())
}

func TestTranscoder_ToolUseDeltaRestoresAliasedName(t *testing.T) {
	names := toolname.New()
	aliased := names.Alias("a_very_long_tool_name_that_exceeds_the_sixty_four_character_bedrock_limit")

	tr := NewStreamTranscoder("claude-3-5-sonnet-20241022", names)
	_ = tr.Handle(&types.ConverseStreamOutputMemberMessageStart{})
	events := tr.Handle(&types.ConverseStreamOutputMemberContentBlockStart{
		Value: types.ContentBlockStartEvent{
			ContentBlockIndex: aws.Int32(0),
			Start: &types.ContentBlockStartMemberToolUse{
				Value: types.ToolUseBlockStart{
					ToolUseId: aws.String("toolu_1"),
					Name:      aws.String(aliased),
				},
			},
		},
	})

	require.Len(t, events, 1)
	assert.Equal(t, "a_very_long_tool_name_that_exceeds_the_sixty_four_character_bedrock_limit", events[0].ToolName)
}

func TestTranscoder_FlushSynthesizesCloseOnTruncatedStream(t *testing.T) {
	tr := NewStreamTranscoder("claude-3-5-sonnet-20241022", toolname.New())
	_ = tr.Handle(&types.ConverseStreamOutputMemberMessageStart{})
	_ = tr.Handle(&types.ConverseStreamOutputMemberContentBlockStart{
		Value: types.ContentBlockStartEvent{ContentBlockIndex: aws.Int32(0)},
	})

	closing := tr.Flush()
	require.NotEmpty(t, closing)
	assert.Equal(t, model.EventContentBlockStop, closing[0].Type)
	assert.Equal(t, model.EventMessageDelta, closing[len(closing)-2].Type)
	assert.Equal(t, model.EventMessageStop, closing[len(closing)-1].Type)
	assert.True(t, tr.Done())
}

func TestTranscoder_NoEventsAfterError(t *testing.T) {
	tr := NewStreamTranscoder("claude-3-5-sonnet-20241022", toolname.New())
	_ = tr.Handle(&types.ConverseStreamOutputMemberMessageStart{})

	errEvents := tr.HandleError(assertErr{})
	require.Len(t, errEvents, 1)
	assert.Equal(t, model.EventError, errEvents[0].Type)

	assert.Empty(t, tr.Handle(&types.ConverseStreamOutputMemberMessageStop{}))
	assert.Empty(t, tr.HandleError(assertErr{}))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
