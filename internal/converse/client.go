package converse

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cenkalti/backoff/v5"

	"github.com/laiskytech/converse-gateway/internal/config"
	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/toolname"
	"github.com/laiskytech/converse-gateway/internal/upstream"
)

// Client wraps the Bedrock Converse/ConverseStream calls behind the
// canonical request/response/stream types, grounded on
// relay/adaptor/aws/writer/main.go's Handler/StreamHandler — the pack's
// only real caller of bedrockruntime.Converse/ConverseStream.
type Client struct {
	bedrock *bedrockruntime.Client
}

// New builds a Client from the process region/credential configuration.
func New(ctx context.Context) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.AWSRegion),
	}
	if config.AWSAccessKeyID != "" && config.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AWSAccessKeyID, config.AWSSecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	return &Client{bedrock: bedrockruntime.NewFromConfig(cfg)}, nil
}

// Invoke performs one unary Converse call and returns the canonical
// Response, restoring aliased tool names through names.
func (c *Client) Invoke(ctx context.Context, req *model.Request, upstreamModelID string, names *toolname.Map) (*model.Response, error) {
	input, err := BuildUnary(req, upstreamModelID, names)
	if err != nil {
		return nil, err
	}

	out, err := retryCall(ctx, func() (*bedrockruntime.ConverseOutput, error) {
		return c.bedrock.Converse(ctx, input)
	})
	if err != nil {
		return nil, upstream.Classify(err)
	}

	return TranslateUnary(out, req.Model, names), nil
}

// retryCall wraps one Bedrock call with an exponential-backoff policy of
// the same shape as internal/store/dynamo's withRetry but with its own
// intervals (base 100ms, factor 2, max 2s, at most 3 retries), restricted
// to the error classes
// upstream.IsRetryable recognizes as transient (throttling, 5xx, a
// not-yet-ready model) so a client-caused rejection never gets retried.
func retryCall[T any](ctx context.Context, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 2 * time.Second

	return backoff.Retry(ctx, func() (T, error) {
		out, err := op()
		if err == nil {
			return out, nil
		}
		if !upstream.IsRetryable(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(4))
}

// StreamHandle is returned by OpenStream; Events yields each canonical
// StreamEvent in order, closing the channel once the upstream stream ends
// (cleanly or with an error folded into a final EventError).
type StreamHandle struct {
	events chan model.StreamEvent
	closer func()
}

// NewHandle builds a StreamHandle directly from an events channel, with no
// closer. Exposed for httpapi's tests, which fake the upstream call without
// a real Bedrock client.
func NewHandle(events chan model.StreamEvent) *StreamHandle {
	return &StreamHandle{events: events}
}

// Events returns the channel of canonical stream events.
func (h *StreamHandle) Events() <-chan model.StreamEvent {
	return h.events
}

// Close releases the underlying upstream stream. Safe to call multiple
// times and safe to call after the events channel has already drained.
func (h *StreamHandle) Close() {
	if h.closer != nil {
		h.closer()
	}
}

// OpenStream performs one ConverseStream call and drives the
// StreamTranscoder over the upstream event channel, grounded on
// writer/main.go's StreamHandler: `stream := resp.GetStream(); defer
// stream.Close(); for event := range stream.Events() { ... }`, generalized
// from its OpenAI-chunk emission into canonical StreamEvents any dialect
// writer can consume.
func (c *Client) OpenStream(ctx context.Context, req *model.Request, upstreamModelID string, names *toolname.Map) (*StreamHandle, error) {
	input, err := BuildStream(req, upstreamModelID, names)
	if err != nil {
		return nil, err
	}

	// Only the call that opens the stream is retried; once events start
	// arriving a retry would silently duplicate or skip content already
	// delivered to the client.
	out, err := retryCall(ctx, func() (*bedrockruntime.ConverseStreamOutput, error) {
		return c.bedrock.ConverseStream(ctx, input)
	})
	if err != nil {
		return nil, upstream.Classify(err)
	}

	stream := out.GetStream()
	events := make(chan model.StreamEvent, 8)
	transcoder := NewStreamTranscoder(req.Model, names)

	go func() {
		defer close(events)
		defer stream.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-stream.Events():
				if !ok {
					if err := stream.Err(); err != nil {
						for _, out := range transcoder.HandleError(upstream.Classify(err)) {
							events <- out
						}
						return
					}
					for _, out := range transcoder.Flush() {
						events <- out
					}
					return
				}
				for _, out := range transcoder.Handle(ev) {
					select {
					case events <- out:
					case <-ctx.Done():
						return
					}
				}
				// transcoder.Done() only becomes true once the stream has
				// actually closed (the metadata event after messageStop, or
				// an error); it stays false across messageStop alone, so
				// this loop keeps reading until that trailing metadata
				// frame is drained.
				if transcoder.Done() {
					return
				}
			}
		}
	}()

	handle := &StreamHandle{events: events, closer: func() { _ = stream.Close() }}
	return handle, nil
}

