// Package openaicompat adapts the canonical message model to the OpenAI
// Chat Completions wire format via the official SDK. Perplexity reuses the
// same adapter pointed at its OpenAI-compatible endpoint, per spec §4.2.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/nifi-agent/engine/internal/engerr"
	"github.com/nifi-agent/engine/internal/messages"
	"github.com/nifi-agent/engine/internal/providers"
	"github.com/nifi-agent/engine/internal/schema"
)

const defaultModel = "gpt-4o-mini"

// Provider talks to any OpenAI-compatible chat/completions endpoint.
type Provider struct {
	client *openai.Client
}

// New builds an adapter for apiBase using apiKey. Pass
// "https://api.perplexity.ai" to use this as the Perplexity adapter — the
// wire format and this whole translation layer are identical.
func New(apiKey, apiBase string) *Provider {
	reqOpts := []option.RequestOption{option.WithBaseURL(strings.TrimRight(apiBase, "/"))}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(reqOpts...)
	return &Provider{client: &client}
}

func (p *Provider) DefaultModel() string { return defaultModel }

func (p *Provider) Chat(
	ctx context.Context,
	systemPrompt string,
	history []messages.Message,
	tools []schema.ToolDef,
	model string,
) (*providers.Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: buildMessages(systemPrompt, history),
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
		params.ToolChoice.OfAuto = openai.String(string(openai.ChatCompletionToolChoiceOptionAutoAuto))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return &providers.Response{}, nil
	}

	choice := resp.Choices[0]
	return &providers.Response{
		Content:      choice.Message.Content,
		ToolCalls:    parseToolCalls(choice.Message.ToolCalls),
		FinishReason: string(choice.FinishReason),
		TokensIn:     int(resp.Usage.PromptTokens),
		TokensOut:    int(resp.Usage.CompletionTokens),
	}, nil
}

func buildMessages(systemPrompt string, history []messages.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}
	for _, m := range history {
		switch m.Role {
		case messages.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case messages.RoleAssistant:
			out = append(out, buildAssistantMessage(m))
		case messages.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case messages.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func buildAssistantMessage(m messages.Message) openai.ChatCompletionMessageParamUnion {
	assistant := openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" {
		assistant.Content.OfString = openai.String(m.Content)
	}
	for _, tc := range m.ToolCalls {
		args := tc.Arguments
		if args == "" {
			args = "{}"
		}
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: args,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func buildTools(tools []schema.ToolDef) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		fn := shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  shared.FunctionParameters(t.Parameters),
		}
		out = append(out, openai.ChatCompletionFunctionTool(fn))
	}
	return out
}

func parseToolCalls(calls []openai.ChatCompletionMessageToolCallUnion) []messages.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]messages.ToolCall, 0, len(calls))
	for _, call := range calls {
		fn, ok := call.AsAny().(openai.ChatCompletionMessageFunctionToolCall)
		if !ok {
			continue
		}
		out = append(out, messages.ToolCall{
			ID:        fn.ID,
			Name:      fn.Function.Name,
			Arguments: fn.Function.Arguments,
		})
	}
	return out
}

func classifyError(err error) *engerr.Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return engerr.New(engerr.KindAuth, err)
		case apiErr.StatusCode == 429 && strings.Contains(msg, "quota"):
			return engerr.New(engerr.KindQuota, err)
		case apiErr.StatusCode == 429:
			return engerr.New(engerr.KindRateLimit, err)
		case apiErr.StatusCode == 404:
			return engerr.New(engerr.KindModelNotFound, err)
		case apiErr.StatusCode >= 500:
			return engerr.New(engerr.KindTransport, err)
		default:
			return engerr.New(engerr.KindBadRequest, err)
		}
	}
	return engerr.New(engerr.KindTransport, fmt.Errorf("request failed: %w", err))
}
