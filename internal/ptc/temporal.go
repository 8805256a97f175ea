package ptc

import (
	"context"

	"github.com/Laisky/errors/v2"
	"go.temporal.io/sdk/client"
)

// TemporalDispatcher runs a dispatched Call as a Temporal workflow
// execution and waits for its result, grounded on goadesign-goa-ai's
// engine/temporal.Engine.StartWorkflow: build client.StartWorkflowOptions
// from the call's id and the configured task queue, call
// client.ExecuteWorkflow, then block on the returned run.
type TemporalDispatcher struct {
	client       client.Client
	taskQueue    string
	workflowName string
}

// NewTemporalDispatcher wraps an already-connected Temporal client. The
// workflow named workflowName must accept a Call and return a Result;
// registering it is the deployment's responsibility, not this package's.
func NewTemporalDispatcher(c client.Client, taskQueue, workflowName string) *TemporalDispatcher {
	return &TemporalDispatcher{client: c, taskQueue: taskQueue, workflowName: workflowName}
}

// Dispatch starts the configured workflow keyed by call.ID (so a retried
// dispatch of the same tool_use id reuses/observes the same execution
// rather than racing a duplicate one) and awaits its result.
func (d *TemporalDispatcher) Dispatch(ctx context.Context, call Call) (Result, error) {
	opts := client.StartWorkflowOptions{
		ID:        "ptc-" + call.ID,
		TaskQueue: d.taskQueue,
	}

	run, err := d.client.ExecuteWorkflow(ctx, opts, d.workflowName, call)
	if err != nil {
		return Result{}, errors.Wrap(err, "start tool dispatch workflow")
	}

	var result Result
	if err := run.Get(ctx, &result); err != nil {
		return Result{}, errors.Wrap(err, "await tool dispatch workflow result")
	}
	return result, nil
}

// Ping checks connectivity to the Temporal frontend, used by
// /health/ptc so a misconfigured or unreachable Temporal deployment shows
// up as a failing readiness probe rather than silently failing the first
// real dispatch.
func (d *TemporalDispatcher) Ping(ctx context.Context) error {
	_, err := d.client.CheckHealth(ctx, &client.CheckHealthRequest{})
	if err != nil {
		return errors.Wrap(err, "check temporal frontend health")
	}
	return nil
}
