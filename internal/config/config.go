// Package config loads the engine's configuration: a JSON file overlaid by
// environment variables, following the same json+env struct-tag pattern the
// teacher's configuration loader uses.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice accepts a JSON array of strings or of mixed
// string/number values, so a hand-edited models list doesn't need to be
// perfectly quoted.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// ProviderConfig holds the credential and allow-list for one of the four
// LLM backends.
type ProviderConfig struct {
	APIKey  string              `json:"api_key" env:"API_KEY"`
	APIBase string              `json:"api_base" env:"API_BASE"`
	Models  FlexibleStringSlice `json:"models" env:"MODELS" envSeparator:","`
}

// Enabled reports whether this provider has a credential configured.
func (p ProviderConfig) Enabled() bool {
	return p.APIKey != ""
}

// AllowsModel reports whether model is in the provider's configured list.
// An empty list allows any model, matching a not-yet-curated deployment.
func (p ProviderConfig) AllowsModel(model string) bool {
	if len(p.Models) == 0 {
		return true
	}
	for _, m := range p.Models {
		if m == model {
			return true
		}
	}
	return false
}

type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai" envPrefix:"NIFI_AGENT_PROVIDERS_OPENAI_"`
	Anthropic  ProviderConfig `json:"anthropic" envPrefix:"NIFI_AGENT_PROVIDERS_ANTHROPIC_"`
	Gemini     ProviderConfig `json:"gemini" envPrefix:"NIFI_AGENT_PROVIDERS_GEMINI_"`
	Perplexity ProviderConfig `json:"perplexity" envPrefix:"NIFI_AGENT_PROVIDERS_PERPLEXITY_"`
}

type EngineConfig struct {
	MaxIterationsDefault int  `json:"max_iterations_default" env:"NIFI_AGENT_ENGINE_MAX_ITERATIONS_DEFAULT"`
	TokenBudgetDefault   int  `json:"token_budget_default" env:"NIFI_AGENT_ENGINE_TOKEN_BUDGET_DEFAULT"`
	AutoPruneDefault     bool `json:"auto_prune_default" env:"NIFI_AGENT_ENGINE_AUTO_PRUNE_DEFAULT"`
	AutoStopEnabled      bool `json:"auto_stop_enabled" env:"NIFI_AGENT_ENGINE_AUTO_STOP_ENABLED"`
	AutoDeleteEnabled    bool `json:"auto_delete_enabled" env:"NIFI_AGENT_ENGINE_AUTO_DELETE_ENABLED"`
	AutoPurgeEnabled     bool `json:"auto_purge_enabled" env:"NIFI_AGENT_ENGINE_AUTO_PURGE_ENABLED"`
}

type WorkflowsConfig struct {
	Enabled FlexibleStringSlice `json:"enabled" env:"NIFI_AGENT_WORKFLOWS_ENABLED" envSeparator:","`
}

type MCPServerConfig struct {
	Command string              `json:"command"`
	Args    FlexibleStringSlice `json:"args"`
}

type Config struct {
	Providers ProvidersConfig            `json:"providers"`
	Engine    EngineConfig               `json:"engine"`
	Workflows WorkflowsConfig            `json:"workflows"`
	MCP       map[string]MCPServerConfig `json:"mcp_servers"`
}

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxIterationsDefault: 10,
			TokenBudgetDefault:   8000,
			AutoPruneDefault:     true,
			AutoStopEnabled:      true,
			AutoDeleteEnabled:    false,
			AutoPurgeEnabled:     false,
		},
		Workflows: WorkflowsConfig{
			Enabled: FlexibleStringSlice{"unguided"},
		},
	}
}

// Load reads path (a missing file falls back to defaults, matching the
// teacher's tolerant loader) and overlays environment variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// use defaults
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	return cfg, nil
}

// ProviderNamed returns the configuration for one of the four recognized
// provider names, or (zero value, false) for anything else.
func (c *Config) ProviderNamed(name string) (ProviderConfig, bool) {
	switch name {
	case "openai":
		return c.Providers.OpenAI, true
	case "anthropic":
		return c.Providers.Anthropic, true
	case "gemini":
		return c.Providers.Gemini, true
	case "perplexity":
		return c.Providers.Perplexity, true
	default:
		return ProviderConfig{}, false
	}
}

// WorkflowEnabled reports whether name is on the workflow allow-list.
func (c *Config) WorkflowEnabled(name string) bool {
	for _, n := range c.Workflows.Enabled {
		if n == name {
			return true
		}
	}
	return false
}
