// Package anthropic adapts the canonical message model to Anthropic's
// Messages API via the official SDK, where the system prompt is a
// top-level parameter and tool results are user-role content blocks.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nifi-agent/engine/internal/engerr"
	"github.com/nifi-agent/engine/internal/messages"
	"github.com/nifi-agent/engine/internal/providers"
	"github.com/nifi-agent/engine/internal/schema"
)

const (
	defaultModel     = "claude-sonnet-4-6"
	defaultMaxTokens = 4096
)

type Provider struct {
	client *anthropic.Client
}

func New(apiKey string) *Provider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
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
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: defaultMaxTokens,
		Messages:  buildMessages(history),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}

	return parseResponse(resp), nil
}

// buildMessages translates canonical history into Anthropic's turn format,
// merging every run of consecutive tool messages into a single user
// message whose content is all of that turn's tool_result blocks —
// Anthropic requires all results for one assistant turn to land together,
// immediately after it.
func buildMessages(history []messages.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))
	i := 0
	for i < len(history) {
		m := history[i]
		switch m.Role {
		case messages.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			i++

		case messages.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
			i++

		case messages.RoleTool:
			var resultBlocks []anthropic.ContentBlockParamUnion
			for i < len(history) && history[i].Role == messages.RoleTool {
				resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(history[i].ToolCallID, history[i].Content, false))
				i++
			}
			out = append(out, anthropic.NewUserMessage(resultBlocks...))

		default:
			i++
		}
	}
	return out
}

func buildTools(tools []schema.ToolDef) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props, _ := t.Parameters["properties"].(map[string]any)
		required, _ := t.Parameters["required"].([]any)
		schemaParam := anthropic.ToolInputSchemaParam{
			Properties: props,
		}
		if len(required) > 0 {
			reqStrings := make([]string, 0, len(required))
			for _, r := range required {
				if s, ok := r.(string); ok {
					reqStrings = append(reqStrings, s)
				}
			}
			schemaParam.Required = reqStrings
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schemaParam,
			},
		})
	}
	return out
}

func parseResponse(resp *anthropic.Message) *providers.Response {
	out := &providers.Response{
		TokensIn:  int(resp.Usage.InputTokens),
		TokensOut: int(resp.Usage.OutputTokens),
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			argBytes, _ := json.Marshal(b.Input)
			out.ToolCalls = append(out.ToolCalls, messages.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: string(argBytes),
			})
		}
	}
	out.Content = text.String()

	switch resp.StopReason {
	case anthropic.StopReasonToolUse:
		out.FinishReason = "tool_calls"
	case anthropic.StopReasonMaxTokens:
		out.FinishReason = "length"
	default:
		out.FinishReason = "stop"
	}
	return out
}

func classifyError(err error) *engerr.Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return engerr.New(engerr.KindAuth, err)
		case 429:
			return engerr.New(engerr.KindRateLimit, err)
		case 404:
			return engerr.New(engerr.KindModelNotFound, err)
		default:
			if apiErr.StatusCode >= 500 {
				return engerr.New(engerr.KindTransport, err)
			}
			return engerr.New(engerr.KindBadRequest, err)
		}
	}
	return engerr.New(engerr.KindTransport, err)
}
