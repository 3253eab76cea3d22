package openaicompat

import (
	"errors"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nifi-agent/engine/internal/engerr"
	"github.com/nifi-agent/engine/internal/messages"
	"github.com/nifi-agent/engine/internal/schema"
)

func TestBuildMessages_PrependsSystemPromptWhenSet(t *testing.T) {
	out := buildMessages("be helpful", nil)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfSystem)
}

func TestBuildMessages_OmitsSystemWhenEmpty(t *testing.T) {
	out := buildMessages("", []messages.Message{messages.NewUser("hi", "req-1")})
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfUser)
}

func TestBuildMessages_RoutesEachRoleToItsUnionVariant(t *testing.T) {
	history := []messages.Message{
		messages.NewSystem("sys"),
		messages.NewUser("hello", "req-1"),
		{Role: messages.RoleAssistant, Content: "hi there"},
		messages.NewToolResult("call-1", `{"temp":70}`, "get_weather"),
	}
	out := buildMessages("", history)
	require.Len(t, out, 4)
	assert.NotNil(t, out[0].OfSystem)
	assert.NotNil(t, out[1].OfUser)
	assert.NotNil(t, out[2].OfAssistant)
	assert.NotNil(t, out[3].OfTool)
}

func TestBuildAssistantMessage_TextOnly(t *testing.T) {
	m := messages.Message{Role: messages.RoleAssistant, Content: "done"}
	out := buildAssistantMessage(m)
	require.NotNil(t, out.OfAssistant)
	require.NotNil(t, out.OfAssistant.Content.OfString)
	assert.Equal(t, "done", *out.OfAssistant.Content.OfString)
	assert.Empty(t, out.OfAssistant.ToolCalls)
}

func TestBuildAssistantMessage_WithToolCallsDefaultsEmptyArguments(t *testing.T) {
	m := messages.Message{
		Role: messages.RoleAssistant,
		ToolCalls: []messages.ToolCall{
			{ID: "call-1", Name: "list_processors", Arguments: ""},
			{ID: "call-2", Name: "start_processor", Arguments: `{"id":"abc"}`},
		},
	}
	out := buildAssistantMessage(m)
	require.Len(t, out.OfAssistant.ToolCalls, 2)

	first := out.OfAssistant.ToolCalls[0].OfFunction
	require.NotNil(t, first)
	assert.Equal(t, "call-1", first.ID)
	assert.Equal(t, "list_processors", first.Function.Name)
	assert.Equal(t, "{}", first.Function.Arguments)

	second := out.OfAssistant.ToolCalls[1].OfFunction
	require.NotNil(t, second)
	assert.Equal(t, `{"id":"abc"}`, second.Function.Arguments)
}

func TestBuildTools_CarriesNameDescriptionAndParameters(t *testing.T) {
	tools := []schema.ToolDef{
		{
			Name:        "list_processors",
			Description: "List NiFi processors",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
	out := buildTools(tools)
	require.Len(t, out, 1)
	fn := out[0].OfFunction
	require.NotNil(t, fn)
	assert.Equal(t, "list_processors", fn.Function.Name)
}

func TestBuildTools_EmptyListProducesEmptySlice(t *testing.T) {
	out := buildTools(nil)
	assert.Empty(t, out)
}

func TestParseToolCalls_EmptyIsNil(t *testing.T) {
	assert.Nil(t, parseToolCalls(nil))
}

func TestClassifyError_NonAPIErrorBecomesTransport(t *testing.T) {
	got := classifyError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, engerr.KindTransport, got.Kind)
}

func TestClassifyError_WrapsCauseForNonAPIError(t *testing.T) {
	cause := errors.New("boom")
	got := classifyError(cause)
	assert.ErrorIs(t, got, cause)
}

func TestClassifyError_APIErrorStatusCodeMapping(t *testing.T) {
	cases := []struct {
		name string
		code int
		msg  string
		want engerr.Kind
	}{
		{"unauthorized", 401, "invalid api key", engerr.KindAuth},
		{"forbidden", 403, "forbidden", engerr.KindAuth},
		{"quota", 429, "you exceeded your current quota", engerr.KindQuota},
		{"rate-limit", 429, "rate limit reached", engerr.KindRateLimit},
		{"not-found", 404, "model not found", engerr.KindModelNotFound},
		{"server-error", 500, "internal error", engerr.KindTransport},
		{"other", 400, "bad request", engerr.KindBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := &openai.Error{StatusCode: tc.code, Message: tc.msg}
			got := classifyError(apiErr)
			assert.Equal(t, tc.want, got.Kind)
		})
	}
}
