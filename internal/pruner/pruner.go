// Package pruner reduces conversation history to fit a token budget while
// preserving the tool-call/tool-result pairing invariants (I1-I4) and the
// most recent turns, per spec §4.4.
package pruner

import (
	"github.com/nifi-agent/engine/internal/logger"
	"github.com/nifi-agent/engine/internal/messages"
	"github.com/nifi-agent/engine/internal/schema"
	"github.com/nifi-agent/engine/internal/tokencount"
)

// turnGroup is a contiguous run of messages starting at a user message up
// to but not including the next user message.
type turnGroup struct {
	start, end int // [start, end)
}

// Prune drops the oldest complete turn groups until the message list's
// estimated token count is at or below maxTokens, always keeping the most
// recent K turns (K=1 when the starting count is more than 2x budget, else
// K=2) and the leading system message. It revalidates I1-I4 after every
// removal and aborts — returning the last known-good list — if a removal
// would break them.
func Prune(msgs []messages.Message, maxTokens int, provider string, tools []schema.ToolDef) []messages.Message {
	if maxTokens <= 0 {
		return msgs
	}

	current := append([]messages.Message(nil), msgs...)
	tokens := tokencount.Estimate(current, tools, provider)
	if tokens <= maxTokens {
		return current
	}

	k := 2
	if tokens > 2*maxTokens {
		k = 1
	}

	for {
		groups := turnGroups(current)
		removable := len(groups) - k
		if removable <= 0 {
			break // nothing left we're allowed to drop
		}

		g := groups[0]
		candidate := make([]messages.Message, 0, len(current)-(g.end-g.start))
		candidate = append(candidate, current[:g.start]...)
		candidate = append(candidate, current[g.end:]...)

		if err := messages.Validate(candidate); err != nil {
			logger.WarnCF("pruner", "removal would violate history invariants, aborting", map[string]any{"error": err.Error()})
			break
		}

		current = candidate
		tokens = tokencount.Estimate(current, tools, provider)
		if tokens <= maxTokens {
			break
		}
	}

	return current
}

// turnGroups returns one group per user message, running through to just
// before the next user message. Messages before the first user message
// (typically just a system message) belong to no group, so Prune never
// removes them.
func turnGroups(msgs []messages.Message) []turnGroup {
	var groups []turnGroup
	start := -1
	for i, m := range msgs {
		if m.Role == messages.RoleSystem {
			continue
		}
		if m.Role == messages.RoleUser {
			if start >= 0 {
				groups = append(groups, turnGroup{start: start, end: i})
			}
			start = i
		}
	}
	if start >= 0 {
		groups = append(groups, turnGroup{start: start, end: len(msgs)})
	}
	return groups
}
