// Package messages defines the canonical, provider-independent message model
// that every other package in this module exchanges: provider adapters
// translate to and from it, the pruner reduces it, and the iteration loop
// mutates it turn by turn.
package messages

import "fmt"

// Role tags the four message variants. Each variant only populates the
// fields that make sense for it; callers that need variant-specific shape
// should use the New* constructors below rather than building a Message
// literal by hand.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is the canonical shape for a single model-requested tool
// invocation. Arguments is the JSON-encoded string the model produced (or,
// for providers that hand back a native object, the result of encoding it) —
// never a live map, so it round-trips identically across providers.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is the tagged-sum record described by the data model: which
// fields are meaningful is determined by Role, enforced by the New*
// constructors and by Validate.
type Message struct {
	Role Role

	// user / assistant / system
	Content string

	// user
	UserRequestID string

	// assistant
	ToolCalls     []ToolCall
	TokenCountIn  int
	TokenCountOut int
	ActionID      string
	WorkflowID    string
	StepID        string

	// tool
	ToolCallID string
	Name       string
}

func NewSystem(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUser(content, userRequestID string) Message {
	return Message{Role: RoleUser, Content: content, UserRequestID: userRequestID}
}

func NewAssistant(content string, toolCalls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls}
}

func NewToolResult(toolCallID, content, name string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Content: content, Name: name}
}

// HasToolCalls reports whether an assistant message carries one or more
// tool calls awaiting resolution.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Validate checks I1-I4 against a full message sequence and returns the
// first violation found, or nil if the sequence is well-formed.
func Validate(msgs []Message) error {
	sawSystem := false
	var pendingIDs map[string]bool
	var pendingOrder []string

	flushMustBeEmpty := func(context string) error {
		if len(pendingOrder) > 0 {
			return fmt.Errorf("I3 violation: %s while tool_calls %v remain unresolved", context, pendingOrder)
		}
		return nil
	}

	for i, m := range msgs {
		switch m.Role {
		case RoleSystem:
			if sawSystem {
				return fmt.Errorf("I1 violation: more than one system message")
			}
			if i != 0 {
				return fmt.Errorf("I1 violation: system message not at position 0 (index %d)", i)
			}
			sawSystem = true

		case RoleUser:
			if err := flushMustBeEmpty(fmt.Sprintf("I4 violation: user message at index %d", i)); err != nil {
				return err
			}

		case RoleAssistant:
			if m.HasToolCalls() {
				if err := flushMustBeEmpty(fmt.Sprintf("assistant with new tool_calls at index %d", i)); err != nil {
					return err
				}
				pendingIDs = make(map[string]bool, len(m.ToolCalls))
				pendingOrder = nil
				for _, tc := range m.ToolCalls {
					pendingIDs[tc.ID] = true
					pendingOrder = append(pendingOrder, tc.ID)
				}
			} else {
				if err := flushMustBeEmpty(fmt.Sprintf("non-tool-bearing assistant at index %d", i)); err != nil {
					return err
				}
			}

		case RoleTool:
			if pendingIDs == nil || !pendingIDs[m.ToolCallID] {
				return fmt.Errorf("I2 violation: tool message at index %d references unknown tool_call_id %q", i, m.ToolCallID)
			}
			delete(pendingIDs, m.ToolCallID)
			pendingOrder = removeID(pendingOrder, m.ToolCallID)

		default:
			return fmt.Errorf("unknown role %q at index %d", m.Role, i)
		}
	}

	return nil
}

func removeID(order []string, id string) []string {
	out := order[:0]
	for _, v := range order {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Clean enforces I1-I4 on a possibly-malformed message list by dropping
// offending messages rather than erroring: orphan tool messages, assistant
// tool-call turns whose results do not all follow before the next user or
// assistant message, and any assistant text message that arrives while a
// tool-call turn still awaits results. It is idempotent —
// Clean(Clean(m)) == Clean(m) — per P4.
func Clean(msgs []Message) []Message {
	// First pass: which assistant tool_calls (by message index) have every
	// id answered later in the list, before the next user or assistant
	// message.
	resolved := make([]bool, len(msgs))
	for i, m := range msgs {
		if !m.HasToolCalls() {
			continue
		}
		need := make(map[string]bool, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			need[tc.ID] = true
		}
	scan:
		for j := i + 1; j < len(msgs) && len(need) > 0; j++ {
			switch msgs[j].Role {
			case RoleTool:
				delete(need, msgs[j].ToolCallID)
			case RoleUser, RoleAssistant:
				break scan
			}
		}
		resolved[i] = len(need) == 0
	}

	out := make([]Message, 0, len(msgs))
	validIDs := make(map[string]bool)
	sawSystem := false
	blocked := false

	for i, m := range msgs {
		switch m.Role {
		case RoleSystem:
			if sawSystem || i != 0 {
				continue // drop duplicate or non-leading system message (I1)
			}
			sawSystem = true
			out = append(out, m)

		case RoleUser:
			if blocked {
				continue // I4: drop user messages while a turn is unresolved
			}
			out = append(out, m)

		case RoleAssistant:
			if m.HasToolCalls() {
				if !resolved[i] {
					continue // drop: tool_calls not all answered in time
				}
				blocked = true
				validIDs = make(map[string]bool, len(m.ToolCalls))
				for _, tc := range m.ToolCalls {
					validIDs[tc.ID] = true
				}
				out = append(out, m)
			} else {
				if blocked {
					continue // drop: assistant text turn before prior turn resolves
				}
				out = append(out, m)
			}

		case RoleTool:
			if !blocked || !validIDs[m.ToolCallID] {
				continue // orphan or duplicate tool result
			}
			out = append(out, m)
			delete(validIDs, m.ToolCallID)
			if len(validIDs) == 0 {
				blocked = false
			}
		}
	}

	return out
}
