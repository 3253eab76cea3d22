// Package providers holds the LLM dispatcher (component D) and the
// provider-adapter registry (component C): translating the canonical
// message list to and from each of the four backend wire formats.
package providers

import (
	"context"

	"github.com/nifi-agent/engine/internal/messages"
	"github.com/nifi-agent/engine/internal/schema"
)

// Response is the adapter-independent shape every backend is translated
// into: text content and/or tool calls, plus usage.
type Response struct {
	Content      string
	ToolCalls    []messages.ToolCall
	TokensIn     int
	TokensOut    int
	FinishReason string
}

// Adapter is the capability set spec §9 assigns to every provider: format
// tools, translate to/from wire format, invoke the backend.
type Adapter interface {
	Chat(ctx context.Context, systemPrompt string, history []messages.Message, tools []schema.ToolDef, model string) (*Response, error)
	DefaultModel() string
}
