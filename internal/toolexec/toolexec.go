// Package toolexec is the tool executor (component F): invoke a named MCP
// tool with JSON arguments, rate-limited per tool, and return its result
// envelope to the iteration loop.
package toolexec

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nifi-agent/engine/internal/engerr"
	"github.com/nifi-agent/engine/internal/mcpclient"
)

// SafetyHeaders carries the configured safety-gate flags (spec §6.4) that
// are attached to every call_tool request as MCP request metadata.
type SafetyHeaders struct {
	AutoStopEnabled   bool
	AutoDeleteEnabled bool
	AutoPurgeEnabled  bool
}

func (h SafetyHeaders) toMeta() mcpclient.SafetyMeta {
	return mcpclient.SafetyMeta{
		AutoStopEnabled:   h.AutoStopEnabled,
		AutoDeleteEnabled: h.AutoDeleteEnabled,
		AutoPurgeEnabled:  h.AutoPurgeEnabled,
	}
}

// Result is what a single tool invocation produced.
type Result struct {
	Content string
	IsError bool
}

// toolCaller is the subset of *mcpclient.Client the executor needs,
// narrowed to an interface so tests can substitute a mock MCP session.
type toolCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]any, safety mcpclient.SafetyMeta) (string, error)
}

// Executor invokes tools against a connected MCP client, rate-limiting
// each tool name independently so one noisy tool can't starve the others.
//
// The teacher's own pkg/tools/ratelimit.go hand-rolls a sliding-window
// bucket with an explicit "zero external dependencies" comment; this
// module instead reaches for golang.org/x/time/rate (already part of the
// ecosystem the teacher's go.mod pulls in for other call sites), trading
// the teacher's bespoke window for the standard extended-library token
// bucket, since the engine-wide preference here is a real dependency over
// a hand-rolled equivalent wherever one fits.
type Executor struct {
	client toolCaller
	safety SafetyHeaders

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perMin   int
}

// NewExecutor builds an executor over client, allowing up to maxPerMinute
// calls per tool name (0 = unlimited).
func NewExecutor(client *mcpclient.Client, maxPerMinute int, safety SafetyHeaders) *Executor {
	return &Executor{
		client:   client,
		safety:   safety,
		limiters: make(map[string]*rate.Limiter),
		perMin:   maxPerMinute,
	}
}

func (e *Executor) limiterFor(name string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.limiters[name]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(e.perMin)/60.0), e.perMin)
		e.limiters[name] = l
	}
	return l
}

// Execute invokes name with args, blocking until the per-tool rate limiter
// admits the call or ctx is cancelled.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	if e.perMin > 0 {
		if err := e.limiterFor(name).Wait(ctx); err != nil {
			return Result{}, engerr.New(engerr.KindTransport, err)
		}
	}

	content, err := e.client.CallTool(ctx, name, args, e.safety.toMeta())
	if err != nil {
		if ee, ok := engerr.As(err); ok && ee.Kind == engerr.KindToolError {
			// the envelope is still usable content for the model even on
			// a tool-side error; the loop counts this toward the
			// consecutive-failure budget but still feeds it back.
			return Result{Content: content, IsError: true}, nil
		}
		return Result{}, err
	}
	return Result{Content: content}, nil
}
