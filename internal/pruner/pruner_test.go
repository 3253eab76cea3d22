package pruner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nifi-agent/engine/internal/messages"
	"github.com/nifi-agent/engine/internal/tokencount"
)

func longUser(id string) messages.Message {
	return messages.NewUser(strings.Repeat("word ", 200)+id, "")
}

func TestPrune_NoOpWhenUnderBudget(t *testing.T) {
	msgs := []messages.Message{messages.NewSystem("sys"), messages.NewUser("hi", "")}
	out := Prune(msgs, 100000, "openai", nil)
	assert.Equal(t, msgs, out)
}

func TestPrune_NonPositiveBudgetIsNoOp(t *testing.T) {
	msgs := []messages.Message{messages.NewUser("hi", "")}
	assert.Equal(t, msgs, Prune(msgs, 0, "openai", nil))
	assert.Equal(t, msgs, Prune(msgs, -5, "openai", nil))
}

func TestPrune_DropsOldestTurnsFirst(t *testing.T) {
	msgs := []messages.Message{
		messages.NewSystem("sys"),
		longUser("turn1"),
		messages.NewAssistant("reply1", nil),
		longUser("turn2"),
		messages.NewAssistant("reply2", nil),
		longUser("turn3"),
		messages.NewAssistant("reply3", nil),
	}
	full := tokencount.Estimate(msgs, nil, "openai")
	budget := full - 5 // force at least one removal, but stay under 2x

	out := Prune(msgs, budget, "openai", nil)
	require.NoError(t, messages.Validate(out))

	var sawTurn3 bool
	for _, m := range out {
		if strings.Contains(m.Content, "turn3") {
			sawTurn3 = true
		}
	}
	assert.True(t, sawTurn3, "most recent turn must always survive pruning")
	assert.LessOrEqual(t, len(out), len(msgs))
}

func TestPrune_PreservesToolCallPairingWhenRemovingOlderTurns(t *testing.T) {
	msgs := []messages.Message{
		messages.NewSystem("sys"),
		longUser("turn1"),
		messages.NewAssistant("reply1", nil),
		longUser("turn2"),
		messages.NewAssistant("", []messages.ToolCall{
			{ID: "t1", Name: "a", Arguments: "{}"},
			{ID: "t2", Name: "b", Arguments: "{}"},
		}),
		messages.NewToolResult("t1", "{}", "a"),
		messages.NewToolResult("t2", "{}", "b"),
		longUser("turn3"),
		messages.NewAssistant("reply3", nil),
	}
	full := tokencount.Estimate(msgs, nil, "openai")

	out := Prune(msgs, full-5, "openai", nil)
	require.NoError(t, messages.Validate(out))

	var sawT1, sawT2, sawAssistantToolCalls bool
	for _, m := range out {
		if m.Role == messages.RoleTool && m.ToolCallID == "t1" {
			sawT1 = true
		}
		if m.Role == messages.RoleTool && m.ToolCallID == "t2" {
			sawT2 = true
		}
		if m.HasToolCalls() {
			sawAssistantToolCalls = true
		}
	}
	if sawAssistantToolCalls {
		assert.True(t, sawT1)
		assert.True(t, sawT2)
	}
}

func TestPrune_NeverDropsBelowKMostRecentTurns(t *testing.T) {
	msgs := []messages.Message{
		messages.NewSystem("sys"),
		longUser("only-turn"),
		messages.NewAssistant("reply", nil),
	}
	// An absurdly small budget still cannot remove the last K turns.
	out := Prune(msgs, 1, "openai", nil)
	var sawUser bool
	for _, m := range out {
		if m.Role == messages.RoleUser {
			sawUser = true
		}
	}
	assert.True(t, sawUser)
}

func TestPrune_ResultAlwaysSatisfiesWithinBudgetOrEqualsInput(t *testing.T) {
	msgs := []messages.Message{
		messages.NewSystem("sys"),
		longUser("t1"),
		messages.NewAssistant("r1", nil),
		longUser("t2"),
		messages.NewAssistant("r2", nil),
		longUser("t3"),
		messages.NewAssistant("r3", nil),
		longUser("t4"),
		messages.NewAssistant("r4", nil),
	}
	full := tokencount.Estimate(msgs, nil, "anthropic")

	out := Prune(msgs, full/3, "anthropic", nil)
	got := tokencount.Estimate(out, nil, "anthropic")
	within := got <= full/3
	unchanged := len(out) == len(msgs)
	assert.True(t, within || unchanged)
}
