// Package schema rewrites the MCP tool catalog's JSON-Schema parameter
// definitions into the dialect each LLM provider's function-calling API
// expects. Normalization is idempotent and provider-keyed, grounded on the
// teacher's Gemini schema sanitizer (pkg/providers/gemini_sdk/provider.go).
package schema

import "strings"

// ToolDef is the canonical, OpenAI-function-style shape the MCP tool
// catalog is reshaped into before any provider-specific rewriting.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// objectListNames / scalarListNames drive Gemini's "missing items" inference:
// batch-operation-like array properties default to object items, plain
// collection-of-scalar properties default to string items.
var objectListNames = map[string]bool{
	"operations": true, "objects": true, "processors": true, "ports": true,
}

var scalarListNames = map[string]bool{
	"relationships": true, "auto_terminated_relationships": true, "property_names_to_delete": true,
}

// geminiCorrectedType corrects a property's declared type using its name
// when the declared type is the too-common fallback "string", matching
// spec §4.3's wildcard-style lookup table (bare names, "*_timeout"/"*_port"
// suffixes, "include_*" prefixes, and collection names retyped to ARRAY).
func geminiCorrectedType(name string) (string, bool) {
	switch {
	case name == "timeout" || strings.HasSuffix(name, "_timeout"):
		return "NUMBER", true
	case name == "port" || strings.HasSuffix(name, "_port"):
		return "NUMBER", true
	case name == "count" || strings.HasSuffix(name, "_count"):
		return "NUMBER", true
	case name == "include" || strings.HasPrefix(name, "include_"):
		return "BOOLEAN", true
	case name == "enabled" || strings.HasSuffix(name, "_enabled"):
		return "BOOLEAN", true
	case name == "properties" || name == "config" || name == "headers":
		return "OBJECT", true
	case objectListNames[name] || scalarListNames[name]:
		return "ARRAY", true
	case strings.HasSuffix(name, "_list") || strings.HasSuffix(name, "_ids") || strings.HasSuffix(name, "_names"):
		return "ARRAY", true
	default:
		return "", false
	}
}

// Normalize rewrites tools for provider ("openai", "anthropic", "gemini",
// "perplexity"). The OpenAI/Anthropic/Perplexity path only applies the
// common cleanups; Anthropic's further parameters→input_schema repackaging
// happens in the provider adapter, not here, since that is a wire-envelope
// concern rather than a schema-content one.
func Normalize(tools []ToolDef, provider string) []ToolDef {
	out := make([]ToolDef, 0, len(tools))
	for _, t := range tools {
		params := cloneSchema(t.Parameters)
		stripAdditionalProperties(params)
		fixEmptyPropertyValues(params)
		if t.Name == "update_nifi_processor_config" {
			rewriteUpdateDataProperty(params)
		}

		if provider == "gemini" {
			params = sanitizeForGemini(params, "", false)
		}

		out = append(out, ToolDef{Name: t.Name, Description: t.Description, Parameters: params})
	}
	return out
}

func cloneSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		switch val := v.(type) {
		case map[string]any:
			out[k] = cloneSchema(val)
		case []any:
			cp := make([]any, len(val))
			for i, item := range val {
				if m, ok := item.(map[string]any); ok {
					cp[i] = cloneSchema(m)
				} else {
					cp[i] = item
				}
			}
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

// stripAdditionalProperties removes additionalProperties from schema and
// every nested property/items node, recursively.
func stripAdditionalProperties(schema map[string]any) {
	if schema == nil {
		return
	}
	delete(schema, "additionalProperties")
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, v := range props {
			if m, ok := v.(map[string]any); ok {
				stripAdditionalProperties(m)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		stripAdditionalProperties(items)
	}
}

// fixEmptyPropertyValues replaces any property value that isn't a non-empty
// JSON object with a bare {"type": "string"} placeholder, recursively.
func fixEmptyPropertyValues(schema map[string]any) {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return
	}
	for name, v := range props {
		m, ok := v.(map[string]any)
		if !ok || len(m) == 0 {
			props[name] = map[string]any{"type": "string"}
			continue
		}
		fixEmptyPropertyValues(m)
		if items, ok := m["items"].(map[string]any); ok {
			fixEmptyPropertyValues(items)
		}
	}
}

// rewriteUpdateDataProperty rewrites the known update_data property on
// update_nifi_processor_config to an anyOf of object-or-array-of-strings.
func rewriteUpdateDataProperty(schema map[string]any) {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return
	}
	props["update_data"] = map[string]any{
		"anyOf": []any{
			map[string]any{"type": "object"},
			map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
}

var lowerToUpperType = map[string]string{
	"object": "OBJECT", "array": "ARRAY", "string": "STRING",
	"number": "NUMBER", "integer": "INTEGER", "boolean": "BOOLEAN",
}

// sanitizeForGemini applies Gemini's strict, uppercase-typed schema dialect
// on top of the common cleanups already run by Normalize. propertyName is
// the enclosing property's name ("" at the schema root), used to correct
// mistyped properties and infer missing array item types. isItems marks an
// array's items node, whose type is never corrected by the array's name.
func sanitizeForGemini(node map[string]any, propertyName string, isItems bool) map[string]any {
	if node == nil {
		node = map[string]any{}
	}

	if t, ok := node["type"].(string); ok {
		if upper, known := lowerToUpperType[strings.ToLower(t)]; known {
			node["type"] = upper
		}
	}

	_, hasProps := node["properties"]
	_, hasItems := node["items"]
	if hasProps {
		node["type"] = "OBJECT"
	}
	if hasItems {
		node["type"] = "ARRAY"
	}

	if props, ok := node["properties"].(map[string]any); ok {
		for name, v := range props {
			child, _ := v.(map[string]any)
			props[name] = sanitizeForGemini(child, name, false)
		}
	}

	if node["type"] == "ARRAY" {
		items, ok := node["items"].(map[string]any)
		if !ok || items == nil {
			node["items"] = inferArrayItemSchema(propertyName)
		} else {
			node["items"] = sanitizeForGemini(items, propertyName, true)
		}
	}

	if node["type"] == "STRING" && !isItems {
		if _, hasEnum := node["enum"]; !hasEnum {
			if corrected, ok := geminiCorrectedType(propertyName); ok {
				node["type"] = corrected
				switch corrected {
				case "OBJECT":
					if _, ok := node["properties"]; !ok {
						node["properties"] = map[string]any{}
					}
				case "ARRAY":
					if _, ok := node["items"]; !ok {
						node["items"] = inferArrayItemSchema(propertyName)
					}
				}
			}
		}
	}

	if propertyName == "" {
		if _, ok := node["properties"]; !ok {
			node["type"] = "OBJECT"
			node["properties"] = map[string]any{}
		}
	}

	return node
}

func inferArrayItemSchema(propertyName string) map[string]any {
	switch {
	case objectListNames[propertyName]:
		return map[string]any{"type": "OBJECT"}
	case scalarListNames[propertyName]:
		return map[string]any{"type": "STRING"}
	default:
		return map[string]any{"type": "OBJECT"}
	}
}
