package converse

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/toolname"
)

// StreamTranscoder is the value object spec.md §4.3/§4.4 describes: an
// accumulator plus a per-upstream-event handler returning zero or more
// canonical events. It is deliberately decoupled from any network/channel
// mechanics (those live in client.go's stream loop) so it can be driven
// directly in tests by feeding a sequence of upstream events and asserting
// the canonical events it yields.
//
// Invariants enforced here (spec.md §9):
//   - exactly one message_start, emitted before anything else
//   - exactly one message_stop, emitted after exactly one message_delta
//   - per content-block index: start before any delta, delta before stop
//   - block indices are monotonically non-decreasing across the stream
//   - once an error event is emitted, the transcoder emits nothing further
type StreamTranscoder struct {
	clientModel string
	names       *toolname.Map

	startEmitted bool
	stopEmitted  bool
	errored      bool

	openBlocks map[int32]model.ContentBlockType
	lastIndex  int32

	finalUsage model.Usage
	stopReason model.StopReason
}

// NewStreamTranscoder builds a transcoder for one Converse stream.
func NewStreamTranscoder(clientModel string, names *toolname.Map) *StreamTranscoder {
	return &StreamTranscoder{
		clientModel: clientModel,
		names:       names,
		openBlocks:  make(map[int32]model.ContentBlockType),
		lastIndex:   -1,
		stopReason:  model.StopUnknown,
	}
}

// Handle consumes one upstream ConverseStreamOutput union member and
// returns the canonical events it produces, in order. Once the transcoder
// has errored or stopped, Handle is a no-op — callers that keep draining
// the upstream channel after an error will not get duplicate terminal
// events out of this call.
func (t *StreamTranscoder) Handle(event types.ConverseStreamOutput) []model.StreamEvent {
	if t.errored || t.stopEmitted {
		return nil
	}

	switch v := event.(type) {
	case *types.ConverseStreamOutputMemberMessageStart:
		return t.handleMessageStart(v)
	case *types.ConverseStreamOutputMemberContentBlockStart:
		return t.handleContentBlockStart(v)
	case *types.ConverseStreamOutputMemberContentBlockDelta:
		return t.handleContentBlockDelta(v)
	case *types.ConverseStreamOutputMemberContentBlockStop:
		return t.handleContentBlockStop(v)
	case *types.ConverseStreamOutputMemberMessageStop:
		return t.handleMessageStop(v)
	case *types.ConverseStreamOutputMemberMetadata:
		return t.handleMetadata(v)
	default:
		return nil
	}
}

// HandleError folds a terminal transport/upstream error into a single
// canonical error event, after which the transcoder emits nothing more
// (spec.md §4.4's mid-stream-error rule: one error event, then stop).
func (t *StreamTranscoder) HandleError(err error) []model.StreamEvent {
	if t.errored || t.stopEmitted {
		return nil
	}
	t.errored = true
	return []model.StreamEvent{{Type: model.EventError, Err: err}}
}

// Done reports whether the stream has reached a terminal state (either a
// message_stop was emitted, or an error ended the stream early). OpenStream's
// pump uses it to stop reading once the stream has closed; Flush makes its
// own terminal-state check when the upstream channel closes.
func (t *StreamTranscoder) Done() bool {
	return t.stopEmitted || t.errored
}

// Flush is called when the upstream event channel closes without the
// stream having been closed yet — whether messageStop never arrived, or it
// arrived but the metadata event that was supposed to follow it and close
// the stream never did (a truncated connection either way). It synthesizes
// the closing events so every stream the gateway emits still satisfies the
// exactly-one-message_stop invariant.
func (t *StreamTranscoder) Flush() []model.StreamEvent {
	if t.errored || t.stopEmitted || !t.startEmitted {
		return nil
	}
	return t.closeStream()
}

func (t *StreamTranscoder) handleMessageStart(v *types.ConverseStreamOutputMemberMessageStart) []model.StreamEvent {
	if t.startEmitted {
		return nil
	}
	t.startEmitted = true
	return []model.StreamEvent{{
		Type: model.EventMessageStart,
		Message: &model.Response{
			Model: t.clientModel,
		},
	}}
}

func (t *StreamTranscoder) handleContentBlockStart(v *types.ConverseStreamOutputMemberContentBlockStart) []model.StreamEvent {
	idx := aws32(v.Value.ContentBlockIndex)
	if idx < t.lastIndex {
		return nil // out-of-order index from upstream; drop rather than violate monotonicity
	}
	t.lastIndex = idx

	ev := model.StreamEvent{Type: model.EventContentBlockStart, Index: int(idx)}

	switch start := v.Value.Start.(type) {
	case *types.ContentBlockStartMemberToolUse:
		ev.BlockType = model.ContentToolUse
		ev.ToolUseID = aws.ToString(start.Value.ToolUseId)
		ev.ToolName = t.names.Restore(aws.ToString(start.Value.Name))
		t.openBlocks[idx] = model.ContentToolUse
	default:
		ev.BlockType = model.ContentText
		t.openBlocks[idx] = model.ContentText
	}

	return []model.StreamEvent{ev}
}

func (t *StreamTranscoder) handleContentBlockDelta(v *types.ConverseStreamOutputMemberContentBlockDelta) []model.StreamEvent {
	idx := aws32(v.Value.ContentBlockIndex)
	blockType, open := t.openBlocks[idx]
	if !open {
		// No content_block_start observed for this index (upstream
		// skipped it, e.g. a reasoning block with no explicit start
		// event on some model families); synthesize one so every delta
		// has a start before it.
		blockType = model.ContentText
	}

	ev := model.StreamEvent{Type: model.EventContentBlockDelta, Index: int(idx), BlockType: blockType}

	switch d := v.Value.Delta.(type) {
	case *types.ContentBlockDeltaMemberText:
		ev.BlockType = model.ContentText
		ev.TextDelta = d.Value
	case *types.ContentBlockDeltaMemberToolUse:
		ev.BlockType = model.ContentToolUse
		ev.ToolInputDelta = aws.ToString(d.Value.Input)
	case *types.ContentBlockDeltaMemberReasoningContent:
		ev.BlockType = model.ContentThinking
		if txt, ok := d.Value.(*types.ReasoningContentBlockDeltaMemberText); ok {
			ev.ThinkingDelta = txt.Value
		}
	default:
		return nil
	}

	if !open {
		t.openBlocks[idx] = ev.BlockType
		if idx > t.lastIndex {
			t.lastIndex = idx
		}
		start := model.StreamEvent{Type: model.EventContentBlockStart, Index: int(idx), BlockType: ev.BlockType}
		return []model.StreamEvent{start, ev}
	}
	return []model.StreamEvent{ev}
}

func (t *StreamTranscoder) handleContentBlockStop(v *types.ConverseStreamOutputMemberContentBlockStop) []model.StreamEvent {
	idx := aws32(v.Value.ContentBlockIndex)
	blockType, open := t.openBlocks[idx]
	if !open {
		blockType = model.ContentText
	}
	delete(t.openBlocks, idx)
	return []model.StreamEvent{{Type: model.EventContentBlockStop, Index: int(idx), BlockType: blockType}}
}

// handleMessageStop only records the stop reason. Real Bedrock
// ConverseStream sends `metadata` (carrying usage) after `messageStop`, so
// the stream must not close here — closing now would emit message_delta
// with whatever finalUsage happened to hold, which is always zero (spec.md
// §4.3: "record final_stop_reason; do not emit yet").
func (t *StreamTranscoder) handleMessageStop(v *types.ConverseStreamOutputMemberMessageStop) []model.StreamEvent {
	t.stopReason = convertStopReason(v.Value.StopReason)
	return nil
}

// handleMetadata updates accumulated usage and, on first observation,
// closes the stream (spec.md §4.3: "on first observation during the stream
// emit message_delta{...} then message_stop").
func (t *StreamTranscoder) handleMetadata(v *types.ConverseStreamOutputMemberMetadata) []model.StreamEvent {
	if v.Value.Usage != nil {
		t.finalUsage = convertUsage(v.Value.Usage)
	}
	return t.closeStream()
}

// closeStream emits the still-open content_block_stop events (in case the
// upstream omitted one), the single message_delta carrying the final stop
// reason and usage, and the single terminal message_stop — satisfying the
// "exactly one message_delta then exactly one message_stop" invariant
// regardless of how cleanly the upstream behaved.
func (t *StreamTranscoder) closeStream() []model.StreamEvent {
	if t.stopEmitted {
		return nil
	}
	t.stopEmitted = true

	var events []model.StreamEvent
	for idx := range t.openBlocks {
		events = append(events, model.StreamEvent{Type: model.EventContentBlockStop, Index: int(idx), BlockType: t.openBlocks[idx]})
	}
	t.openBlocks = make(map[int32]model.ContentBlockType)

	reason := t.stopReason
	usage := t.finalUsage
	events = append(events,
		model.StreamEvent{Type: model.EventMessageDelta, StopReason: &reason, Usage: &usage},
		model.StreamEvent{Type: model.EventMessageStop},
	)
	return events
}
