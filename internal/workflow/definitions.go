package workflow

import (
	"context"

	"github.com/nifi-agent/engine/internal/eventbus"
	"github.com/nifi-agent/engine/internal/loop"
)

// iterationTurnKey / iterationResultKey are the Shared keys the two nodes
// below exchange the loop request and result through.
const (
	iterationTurnKey   = "iteration_request"
	iterationResultKey = "iteration_result"
)

// BuildIterationWorkflow wraps one iteration-loop turn as a two-node flow
// (dispatch_turn -> await_completion) named "unguided", without carrying
// over the original Python example
// workflows' NiFi-prompt-specific copy (spec §9 supplement, replacing
// "unguided_mimic" / "async_unguided_mimic").
func BuildIterationWorkflow(dispatcher loop.Dispatcher, executor loop.ToolExecutor, bus *eventbus.Bus) *Flow {
	f := NewFlow("unguided")

	dispatchTurn := FuncNode{
		PrepFunc: func(ctx context.Context, shared Shared) (any, error) {
			req, _ := shared[iterationTurnKey].(loop.Request)
			return req, nil
		},
		ExecFunc: func(ctx context.Context, prepRes any) (any, error) {
			req, _ := prepRes.(loop.Request)
			if bus != nil {
				bus.Emit(eventbus.Event{Type: eventbus.EventLLMStart, WorkflowID: req.WorkflowID, StepID: "dispatch_turn"})
			}
			result := loop.Run(ctx, dispatcher, executor, req)
			if bus != nil {
				t := eventbus.EventLLMComplete
				if result.Err != nil {
					t = eventbus.EventLLMError
				}
				bus.Emit(eventbus.Event{Type: t, WorkflowID: req.WorkflowID, StepID: "dispatch_turn", Data: map[string]any{"termination_reason": string(result.TerminationReason)}})
			}
			return result, nil
		},
		PostFunc: func(ctx context.Context, shared Shared, prepRes, execRes any) (ActionLabel, error) {
			shared[iterationResultKey] = execRes
			return Default, nil
		},
	}

	awaitCompletion := FuncNode{
		ExecFunc: func(ctx context.Context, prepRes any) (any, error) {
			return nil, nil
		},
		PostFunc: func(ctx context.Context, shared Shared, prepRes, execRes any) (ActionLabel, error) {
			if result, ok := shared[iterationResultKey].(loop.Result); ok && bus != nil {
				for range result.NewMessages {
					bus.Emit(eventbus.Event{Type: eventbus.EventMessageAdded})
				}
			}
			return Default, nil // no outgoing edge registered: terminal
		},
	}

	f.AddNode("dispatch_turn", dispatchTurn)
	f.AddNode("await_completion", awaitCompletion)
	f.AddEdge("dispatch_turn", Default, "await_completion")
	return f
}
