package workflow

import (
	"context"

	"github.com/nifi-agent/engine/internal/eventbus"
)

// SyncExecutor runs a flow on the calling goroutine — appropriate when the
// caller is already on a dedicated goroutine per turn (spec §9's "single
// driver goroutine per turn").
type SyncExecutor struct {
	Bus *eventbus.Bus
}

func (e *SyncExecutor) Run(ctx context.Context, f *Flow, shared Shared, workflowID string) (string, ActionLabel, error) {
	emitWorkflow(e.Bus, workflowID, eventbus.EventWorkflowStart, nil)
	node, label, err := Run(ctx, f, shared, e.Bus, workflowID)
	if err != nil {
		emitWorkflow(e.Bus, workflowID, eventbus.EventWorkflowError, map[string]any{"error": err.Error()})
		return node, label, err
	}
	emitWorkflow(e.Bus, workflowID, eventbus.EventWorkflowComplete, map[string]any{"terminal_node": node, "action": string(label)})
	return node, label, nil
}

// AsyncExecutor runs a flow on a worker-pool goroutine so the caller's own
// goroutine is never blocked by the flow's I/O; it can run an all-sync flow
// exactly the way SyncExecutor would, just off the calling goroutine, per
// spec §4.5's "async executor can run a sync flow by off-loading it."
type AsyncExecutor struct {
	Bus *eventbus.Bus
}

// RunResult is delivered on the returned channel once the flow terminates
// or ctx is cancelled.
type RunResult struct {
	Node  string
	Label ActionLabel
	Err   error
}

func (e *AsyncExecutor) Run(ctx context.Context, f *Flow, shared Shared, workflowID string) <-chan RunResult {
	out := make(chan RunResult, 1)
	go func() {
		defer close(out)
		emitWorkflow(e.Bus, workflowID, eventbus.EventWorkflowStart, nil)
		node, label, err := Run(ctx, f, shared, e.Bus, workflowID)
		if err != nil {
			emitWorkflow(e.Bus, workflowID, eventbus.EventWorkflowError, map[string]any{"error": err.Error()})
		} else {
			emitWorkflow(e.Bus, workflowID, eventbus.EventWorkflowComplete, map[string]any{"terminal_node": node, "action": string(label)})
		}
		select {
		case out <- RunResult{Node: node, Label: label, Err: err}:
		case <-ctx.Done():
		}
	}()
	return out
}

func emitWorkflow(bus *eventbus.Bus, workflowID string, t eventbus.EventType, data map[string]any) {
	if bus == nil {
		return
	}
	bus.Emit(eventbus.Event{Type: t, WorkflowID: workflowID, Data: data})
}
