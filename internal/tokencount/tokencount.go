// Package tokencount estimates per-provider input token counts for a
// message list plus tool catalog. Every estimate is an approximation (spec
// allows ±10% tolerance); there is no attempt at exact tokenizer parity.
package tokencount

import (
	"encoding/json"
	"strings"

	"github.com/nifi-agent/engine/internal/messages"
	"github.com/nifi-agent/engine/internal/schema"
)

// EstimateText approximates the token count of a single string for
// provider. OpenAI/Perplexity use a word-count-based approximation that
// tracks cl100k's roughly 0.75-words-per-token average; Anthropic/Gemini
// fall back to the teacher's character/4 approximation.
func EstimateText(text string, provider string) int {
	if text == "" {
		return 0
	}
	switch provider {
	case "openai", "perplexity":
		words := len(strings.Fields(text))
		return int(float64(words)/0.75) + 1
	default: // anthropic, gemini
		return len(text)/4 + 1
	}
}

// EstimateTools approximates the tool catalog's token footprint by
// JSON-encoding a compact {name, description, parameters} representation
// per tool and running the same per-provider text counter over it.
func EstimateTools(tools []schema.ToolDef, provider string) int {
	total := 0
	for _, t := range tools {
		compact := map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.Parameters,
		}
		data, err := json.Marshal(compact)
		if err != nil {
			continue
		}
		total += EstimateText(string(data), provider)
	}
	return total
}

// EstimateMessages approximates the total token footprint of a message
// list: text content per the provider counter, tool-result content by
// len(content)/4, and assistant tool_calls by len(JSON-encode(tool_calls))/4
// — matching spec §4.4's literal per-field rules.
func EstimateMessages(msgs []messages.Message, provider string) int {
	total := 0
	for _, m := range msgs {
		switch m.Role {
		case messages.RoleTool:
			total += len(m.Content)/4 + 1
		case messages.RoleAssistant:
			total += EstimateText(m.Content, provider)
			if len(m.ToolCalls) > 0 {
				if data, err := json.Marshal(m.ToolCalls); err == nil {
					total += len(data)/4 + 1
				}
			}
		default:
			total += EstimateText(m.Content, provider)
		}
	}
	return total
}

// Estimate is the full contract: messages + tool catalog, for provider.
func Estimate(msgs []messages.Message, tools []schema.ToolDef, provider string) int {
	return EstimateMessages(msgs, provider) + EstimateTools(tools, provider)
}
