// Package gemini adapts the canonical message model to Gemini's
// generateContent wire format, where tool results are correlated to calls
// by function name rather than by id (Gemini never returns the id it was
// never given one for), per spec §4.2/§9.
package gemini

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/nifi-agent/engine/internal/engerr"
	"github.com/nifi-agent/engine/internal/messages"
	"github.com/nifi-agent/engine/internal/providers"
	"github.com/nifi-agent/engine/internal/schema"
)

const defaultModel = "gemini-2.5-flash"

type Provider struct {
	client *genai.Client
}

func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &Provider{client: client}, nil
}

func (p *Provider) DefaultModel() string { return defaultModel }

func (p *Provider) Chat(
	ctx context.Context,
	systemPrompt string,
	history []messages.Message,
	tools []schema.ToolDef,
	model string,
) (*providers.Response, error) {
	contents := buildContents(history)

	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if len(tools) > 0 {
		config.Tools = buildTools(tools)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, engerr.New(engerr.KindTransport, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return &providers.Response{}, nil
	}

	return parseCandidate(resp.Candidates[0], resp.UsageMetadata, tools)
}

// buildContents renames assistant->model, tool->function and builds the
// function_call_id -> function_name map used to resolve the *following*
// run of tool messages back to their names.
func buildContents(history []messages.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	nameByCallID := map[string]string{}

	for _, m := range history {
		switch m.Role {
		case messages.RoleUser:
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleUser))

		case messages.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				nameByCallID[tc.ID] = tc.Name
				var args map[string]any
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					args = map[string]any{}
				}
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, args))
			}
			out = append(out, genai.NewContentFromParts(parts, genai.RoleModel))

		case messages.RoleTool:
			name := nameByCallID[m.ToolCallID]
			if name == "" {
				name = m.Name
			}
			response := wrapToolResponse(m.Content)
			out = append(out, &genai.Content{
				Role:  "function",
				Parts: []*genai.Part{genai.NewPartFromFunctionResponse(name, response)},
			})

		case messages.RoleSystem:
			// folded into SystemInstruction by the caller.
		}
	}
	return out
}

// wrapToolResponse preserves the teacher's list-vs-dict wrapping
// distinction: a JSON object passes through as-is, a JSON array is wrapped
// as {results: [...]}, anything else as {result: value}.
func wrapToolResponse(content string) map[string]any {
	var asMap map[string]any
	if err := json.Unmarshal([]byte(content), &asMap); err == nil {
		return asMap
	}
	var asList []any
	if err := json.Unmarshal([]byte(content), &asList); err == nil {
		return map[string]any{"results": asList}
	}
	var asScalar any
	if err := json.Unmarshal([]byte(content), &asScalar); err == nil {
		return map[string]any{"result": asScalar}
	}
	return map[string]any{"result": content}
}

func buildTools(tools []schema.ToolDef) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaToGenai(t.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func schemaToGenai(m map[string]any) *genai.Schema {
	if m == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := m["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, v := range props {
			if child, ok := v.(map[string]any); ok {
				s.Properties[name] = schemaToGenai(child)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = schemaToGenai(items)
	}
	if required, ok := m["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	return s
}

func parseCandidate(c *genai.Candidate, usage *genai.GenerateContentResponseUsageMetadata, requestedTools []schema.ToolDef) (*providers.Response, error) {
	out := &providers.Response{}
	if usage != nil {
		out.TokensIn = int(usage.PromptTokenCount)
		out.TokensOut = int(usage.CandidatesTokenCount)
	}

	if c.Content != nil {
		var text strings.Builder
		callIndex := 0
		for _, part := range c.Content.Parts {
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				callIndex++
				out.ToolCalls = append(out.ToolCalls, messages.ToolCall{
					ID:        genaiCallID(callIndex),
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				})
			}
		}
		out.Content = text.String()
	}

	switch c.FinishReason {
	case genai.FinishReasonMalformedFunctionCall:
		suspects := schemaSuspectToolNames(out.ToolCalls, requestedTools)
		return nil, engerr.Newf(engerr.KindMalformedFunctionCall,
			"gemini returned MALFORMED_FUNCTION_CALL (schema-suspect tools: %s)", strings.Join(suspects, ", "))
	case genai.FinishReasonSafety:
		return nil, engerr.Newf(engerr.KindSafetyBlocked, "gemini blocked the response on safety grounds")
	case genai.FinishReasonMaxTokens:
		out.FinishReason = "length"
		return out, nil
	case genai.FinishReasonStop, "":
		out.FinishReason = "stop"
	default:
		out.FinishReason = "stop"
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = "tool_calls"
	}
	return out, nil
}

func genaiCallID(n int) string {
	return "call_gemini_" + strconv.Itoa(n)
}

// schemaSuspectToolNames names the tools most likely responsible for a
// MALFORMED_FUNCTION_CALL finish reason: the partially-parsed function
// calls Gemini did manage to emit before truncating, or, if none parsed at
// all, every tool offered in the request (spec §7/§4.3 Scenario S3 require
// the diagnostic to name schema-suspect tools).
func schemaSuspectToolNames(parsed []messages.ToolCall, requestedTools []schema.ToolDef) []string {
	if len(parsed) > 0 {
		names := make([]string, 0, len(parsed))
		for _, tc := range parsed {
			names = append(names, tc.Name)
		}
		return names
	}
	names := make([]string, 0, len(requestedTools))
	for _, t := range requestedTools {
		names = append(names, t.Name)
	}
	return names
}
