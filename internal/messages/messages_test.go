package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_WellFormedSequence(t *testing.T) {
	msgs := []Message{
		NewSystem("be helpful"),
		NewUser("hello", "req-1"),
		NewAssistant("", []ToolCall{{ID: "t1", Name: "list_processors", Arguments: "{}"}}),
		NewToolResult("t1", `{"ok":true}`, "list_processors"),
		NewAssistant("done", nil),
	}
	assert.NoError(t, Validate(msgs))
}

func TestValidate_SystemNotAtZero(t *testing.T) {
	msgs := []Message{
		NewUser("hi", ""),
		NewSystem("be helpful"),
	}
	err := Validate(msgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "I1")
}

func TestValidate_DuplicateSystem(t *testing.T) {
	msgs := []Message{NewSystem("a"), NewUser("hi", ""), NewSystem("b")}
	err := Validate(msgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "I1")
}

func TestValidate_OrphanToolMessage(t *testing.T) {
	msgs := []Message{NewUser("hi", ""), NewToolResult("t1", "{}", "x")}
	err := Validate(msgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "I2")
}

func TestValidate_UnresolvedToolCallsBeforeNextUser(t *testing.T) {
	msgs := []Message{
		NewUser("hi", ""),
		NewAssistant("", []ToolCall{{ID: "t1", Name: "x", Arguments: "{}"}}),
		NewUser("next", ""),
	}
	err := Validate(msgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "I4")
}

func TestValidate_SiblingCallsInSameBatchOrderIndependent(t *testing.T) {
	msgs := []Message{
		NewUser("hi", ""),
		NewAssistant("", []ToolCall{
			{ID: "t1", Name: "a", Arguments: "{}"},
			{ID: "t2", Name: "b", Arguments: "{}"},
		}),
		NewToolResult("t2", "{}", "b"),
		NewToolResult("t1", "{}", "a"),
	}
	assert.NoError(t, Validate(msgs))
}

func TestClean_DropsOrphanToolMessage(t *testing.T) {
	msgs := []Message{NewUser("hi", ""), NewToolResult("ghost", "{}", "x")}
	out := Clean(msgs)
	assert.NoError(t, Validate(out))
	assert.Len(t, out, 1)
}

func TestClean_DropsUnresolvedAssistantToolCallTurn(t *testing.T) {
	msgs := []Message{
		NewUser("hi", ""),
		NewAssistant("", []ToolCall{{ID: "t1", Name: "x", Arguments: "{}"}}),
		NewUser("next", ""),
	}
	out := Clean(msgs)
	assert.NoError(t, Validate(out))
	for _, m := range out {
		assert.False(t, m.HasToolCalls())
	}
}

func TestClean_KeepsResolvedTurnAndDropsSubsequentUnresolvedOne(t *testing.T) {
	msgs := []Message{
		NewSystem("sys"),
		NewUser("first", ""),
		NewAssistant("", []ToolCall{{ID: "t1", Name: "x", Arguments: "{}"}}),
		NewToolResult("t1", "{}", "x"),
		NewUser("second", ""),
		NewAssistant("", []ToolCall{{ID: "t2", Name: "y", Arguments: "{}"}}),
		// t2 never resolved
	}
	out := Clean(msgs)
	require.NoError(t, Validate(out))

	var sawFirstToolResult, sawUnresolved bool
	for _, m := range out {
		if m.Role == RoleTool && m.ToolCallID == "t1" {
			sawFirstToolResult = true
		}
		if m.HasToolCalls() && m.ToolCalls[0].ID == "t2" {
			sawUnresolved = true
		}
	}
	assert.True(t, sawFirstToolResult)
	assert.False(t, sawUnresolved)
}

func TestClean_IsIdempotent(t *testing.T) {
	msgs := []Message{
		NewSystem("a"),
		NewSystem("b"),
		NewUser("hi", ""),
		NewToolResult("ghost", "{}", "x"),
		NewAssistant("", []ToolCall{{ID: "t1", Name: "x", Arguments: "{}"}}),
		NewUser("interrupt", ""),
	}
	once := Clean(msgs)
	twice := Clean(once)
	assert.Equal(t, once, twice)
}

func TestClean_EmptyInput(t *testing.T) {
	assert.Empty(t, Clean(nil))
}

func TestClean_DropsNonLeadingSystemMessage(t *testing.T) {
	msgs := []Message{
		NewUser("hi", ""),
		NewSystem("be helpful"),
		NewAssistant("hello back", nil),
	}
	cleaned := Clean(msgs)
	require.NoError(t, Validate(cleaned))
	for _, m := range cleaned {
		assert.NotEqual(t, RoleSystem, m.Role)
	}
}

func TestClean_SatisfiesValidateForArbitraryMalformedInput(t *testing.T) {
	inputs := [][]Message{
		{NewUser("hi", ""), NewSystem("late")},
		{NewSystem("a"), NewSystem("b"), NewUser("hi", "")},
		{NewUser("hi", ""), NewSystem("a"), NewSystem("b"), NewUser("again", "")},
	}
	for _, in := range inputs {
		require.NoError(t, Validate(Clean(in)))
	}
}

func TestHasToolCalls(t *testing.T) {
	assert.True(t, NewAssistant("", []ToolCall{{ID: "t1"}}).HasToolCalls())
	assert.False(t, NewAssistant("hi", nil).HasToolCalls())
	assert.False(t, NewUser("hi", "").HasToolCalls())
}
