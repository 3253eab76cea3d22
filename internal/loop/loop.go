// Package loop implements the iteration loop (component G): the
// turn-taking state machine that alternates model calls and tool dispatch
// until the model declares completion or the iteration budget runs out.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nifi-agent/engine/internal/engerr"
	"github.com/nifi-agent/engine/internal/messages"
	"github.com/nifi-agent/engine/internal/providers"
	"github.com/nifi-agent/engine/internal/pruner"
	"github.com/nifi-agent/engine/internal/schema"
	"github.com/nifi-agent/engine/internal/toolexec"
)

type TerminationReason string

const (
	TaskComplete            TerminationReason = "task_complete"
	MaxIterations           TerminationReason = "max_iterations"
	FatalError              TerminationReason = "fatal_error"
	ConsecutiveToolFailures TerminationReason = "consecutive_tool_failures"
	UserStopped             TerminationReason = "user_stopped"
)

const maxConsecutiveToolFailures = 3

const statusReportPrompt = "Iteration budget reached. Give a brief one or two sentence summary of what was accomplished so far."

// Dispatcher is the subset of providers.Dispatcher the loop needs,
// narrowed to an interface so tests can substitute a mock.
type Dispatcher interface {
	Dispatch(ctx context.Context, provider, model, systemPrompt string, history []messages.Message, tools []schema.ToolDef) (*providers.Response, *engerr.Error)
}

// ToolExecutor is the subset of toolexec.Executor the loop needs.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (toolexec.Result, error)
}

// Request bundles everything one iteration-loop invocation needs, fixed
// for the duration of the turn.
type Request struct {
	Provider        string
	Model           string
	SystemPrompt    string
	InitialMessages []messages.Message
	Tools           []schema.ToolDef
	MaxIterations   int
	TokenBudget     int

	// WorkflowID/StepID, when non-empty, switch action-id minting to the
	// workflow-correlated format; otherwise a bare uuid is used.
	WorkflowID string
	StepID     string

	// StopRequested is polled at the top of each iteration and before each
	// tool dispatch; a true return causes a clean UserStopped termination.
	StopRequested func() bool
}

// Result is the contract's output: the full resulting message list, the
// NewMessages tail the UI should append, and the turn's bookkeeping.
type Result struct {
	Messages         []messages.Message
	NewMessages      []messages.Message
	LoopCount        int
	TokensIn         int
	TokensOut        int
	TerminationReason TerminationReason
	Err              *engerr.Error
}

// Run executes the algorithm in spec §4.1 end to end.
func Run(ctx context.Context, dispatcher Dispatcher, executor ToolExecutor, req Request) Result {
	cleanedInitial := messages.Clean(req.InitialMessages)
	state := append([]messages.Message(nil), cleanedInitial...)

	loopCount := 0
	tokensIn := 0
	tokensOut := 0
	consecutiveFailures := 0

	stopRequested := req.StopRequested
	if stopRequested == nil {
		stopRequested = func() bool { return false }
	}

	finish := func(reason TerminationReason, err *engerr.Error) Result {
		if reason == MaxIterations {
			state = appendStatusReport(ctx, dispatcher, req, state)
		}
		return Result{
			Messages:          state,
			NewMessages:       state[len(cleanedInitial):],
			LoopCount:         loopCount,
			TokensIn:          tokensIn,
			TokensOut:         tokensOut,
			TerminationReason: reason,
			Err:               err,
		}
	}

	for {
		if stopRequested() {
			return finish(UserStopped, nil)
		}
		if loopCount >= req.MaxIterations {
			return finish(MaxIterations, nil)
		}
		loopCount++

		toolsNorm := schema.Normalize(req.Tools, req.Provider)
		pruned := pruner.Prune(state, req.TokenBudget, req.Provider, toolsNorm)

		resp, derr := dispatcher.Dispatch(ctx, req.Provider, req.Model, req.SystemPrompt, pruned, toolsNorm)
		if derr != nil {
			return finish(FatalError, derr)
		}

		tokensIn += resp.TokensIn
		tokensOut += resp.TokensOut

		assistantMsg := messages.NewAssistant(resp.Content, resp.ToolCalls)
		assistantMsg.ActionID = mintActionID(req.WorkflowID, req.StepID, "llm")
		assistantMsg.WorkflowID = req.WorkflowID
		assistantMsg.StepID = req.StepID
		assistantMsg.TokenCountIn = resp.TokensIn
		assistantMsg.TokenCountOut = resp.TokensOut
		state = append(state, assistantMsg)

		if len(resp.ToolCalls) == 0 {
			return finish(TaskComplete, nil)
		}

		failed := 0
		for _, tc := range resp.ToolCalls {
			if stopRequested() {
				return finish(UserStopped, nil)
			}

			args := map[string]any{}
			if tc.Arguments != "" {
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
			}

			result, err := executor.Execute(ctx, tc.Name, args)
			isFailure := err != nil || result.IsError
			if isFailure {
				failed++
			}

			var content string
			if err != nil {
				content = toolErrorEnvelope(err)
			} else {
				content = result.Content
			}

			state = append(state, messages.NewToolResult(tc.ID, content, tc.Name))
		}

		if failed == len(resp.ToolCalls) {
			consecutiveFailures++
			if consecutiveFailures >= maxConsecutiveToolFailures {
				return finish(ConsecutiveToolFailures, nil)
			}
		} else {
			consecutiveFailures = 0
		}
	}
}

// mintActionID formats the workflow-correlated id from spec §4.1 when
// running under the workflow runtime, else a bare uuid.
func mintActionID(workflowID, stepID, kind string) string {
	if workflowID == "" {
		return uuid.NewString()
	}
	return fmt.Sprintf("wf-%s-%s-%s-%s", workflowID, stepID, kind, uuid.NewString())
}

func toolErrorEnvelope(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}

// appendStatusReport issues the best-effort extra model call on
// max_iterations termination. Its failure is silent by design (spec
// §4.1/§9): the loop has already decided to terminate either way.
func appendStatusReport(ctx context.Context, dispatcher Dispatcher, req Request, state []messages.Message) []messages.Message {
	summaryReq := append(append([]messages.Message(nil), state...), messages.NewUser(statusReportPrompt, ""))
	resp, derr := dispatcher.Dispatch(ctx, req.Provider, req.Model, req.SystemPrompt, summaryReq, nil)
	if derr != nil || resp == nil {
		return state
	}
	if strings.TrimSpace(resp.Content) == "" {
		return state
	}
	msg := messages.NewAssistant(resp.Content, nil)
	msg.ActionID = mintActionID(req.WorkflowID, req.StepID, "llm")
	return append(state, msg)
}
