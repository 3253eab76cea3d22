package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nifi-agent/engine/internal/config"
	"github.com/nifi-agent/engine/internal/loop"
	"github.com/nifi-agent/engine/internal/mcpclient"
	"github.com/nifi-agent/engine/internal/messages"
	"github.com/nifi-agent/engine/internal/providers"
	"github.com/nifi-agent/engine/internal/providers/anthropic"
	"github.com/nifi-agent/engine/internal/providers/gemini"
	"github.com/nifi-agent/engine/internal/providers/openaicompat"
	"github.com/nifi-agent/engine/internal/schema"
	"github.com/nifi-agent/engine/internal/toolexec"
)

const defaultPerplexityBase = "https://api.perplexity.ai"
const defaultOpenAIBase = "https://api.openai.com/v1"

func newRunCommand(configPath *string) *cobra.Command {
	var provider, model, systemPrompt, mcpServer, userRequestID string
	var maxIterations int
	var tokenBudget int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one user turn through the iteration loop, reading the prompt from stdin or --prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			prompt, _ := cmd.Flags().GetString("prompt")
			if prompt == "" {
				prompt, err = readStdinPrompt(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read prompt: %w", err)
				}
			}
			if prompt == "" {
				return fmt.Errorf("no prompt given: pass --prompt or pipe one on stdin")
			}

			if maxIterations <= 0 {
				maxIterations = cfg.Engine.MaxIterationsDefault
			}
			if tokenBudget <= 0 {
				tokenBudget = cfg.Engine.TokenBudgetDefault
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			dispatcher, err := buildDispatcher(ctx, cfg)
			if err != nil {
				return err
			}

			tools, executor, closeFn, err := buildToolExecutor(ctx, cfg, mcpServer)
			if err != nil {
				return err
			}
			if closeFn != nil {
				defer closeFn()
			}

			req := loop.Request{
				Provider:        provider,
				Model:           model,
				SystemPrompt:    systemPrompt,
				InitialMessages: []messages.Message{messages.NewUser(prompt, userRequestID)},
				Tools:           tools,
				MaxIterations:   maxIterations,
				TokenBudget:     tokenBudget,
			}

			result := loop.Run(ctx, dispatcher, executor, req)

			for _, m := range result.NewMessages {
				printMessage(cmd.OutOrStdout(), m)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n--- termination=%s loop_count=%d tokens_in=%d tokens_out=%d\n",
				result.TerminationReason, result.LoopCount, result.TokensIn, result.TokensOut)
			if result.Err != nil {
				return fmt.Errorf("%s: %s", result.Err.Kind, result.Err.Message)
			}
			return nil
		},
	}

	cmd.Flags().String("prompt", "", "user prompt (if omitted, read from stdin)")
	cmd.Flags().StringVar(&provider, "provider", "openai", "openai, anthropic, gemini, or perplexity")
	cmd.Flags().StringVar(&model, "model", "", "model name (defaults to the provider's default)")
	cmd.Flags().StringVar(&systemPrompt, "system", "You are an assistant that manages Apache NiFi flows.", "system prompt")
	cmd.Flags().StringVar(&mcpServer, "mcp-server", "", "name of the mcp_servers entry in config to connect to (optional)")
	cmd.Flags().StringVar(&userRequestID, "request-id", "", "opaque id attached to the user message")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "overrides engine.max_iterations_default")
	cmd.Flags().IntVar(&tokenBudget, "token-budget", 0, "overrides engine.token_budget_default")

	return cmd
}

func readStdinPrompt(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(os.Stdin)
	if f, ok := r.(*os.File); ok {
		scanner = bufio.NewScanner(f)
	}
	var out []byte
	for scanner.Scan() {
		out = append(out, scanner.Bytes()...)
		out = append(out, '\n')
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return string(out), nil
}

// buildDispatcher registers an adapter for every provider that has a
// credential configured, matching spec §6.2's "one provider disabled does
// not affect others."
func buildDispatcher(ctx context.Context, cfg *config.Config) (*providers.Dispatcher, error) {
	d := providers.NewDispatcher(cfg)

	if cfg.Providers.OpenAI.Enabled() {
		base := cfg.Providers.OpenAI.APIBase
		if base == "" {
			base = defaultOpenAIBase
		}
		d.Register("openai", openaicompat.New(cfg.Providers.OpenAI.APIKey, base))
	}
	if cfg.Providers.Perplexity.Enabled() {
		base := cfg.Providers.Perplexity.APIBase
		if base == "" {
			base = defaultPerplexityBase
		}
		d.Register("perplexity", openaicompat.New(cfg.Providers.Perplexity.APIKey, base))
	}
	if cfg.Providers.Anthropic.Enabled() {
		d.Register("anthropic", anthropic.New(cfg.Providers.Anthropic.APIKey))
	}
	if cfg.Providers.Gemini.Enabled() {
		gp, err := gemini.New(ctx, cfg.Providers.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("build gemini adapter: %w", err)
		}
		d.Register("gemini", gp)
	}

	return d, nil
}

// buildToolExecutor optionally connects to a configured MCP server and
// returns its tool catalog plus a rate-limited executor; with no server
// name given, it returns an empty catalog and a no-op executor so `run`
// still works for tool-free prompts.
func buildToolExecutor(ctx context.Context, cfg *config.Config, serverName string) ([]schema.ToolDef, loop.ToolExecutor, func(), error) {
	if serverName == "" {
		return nil, noopExecutor{}, nil, nil
	}

	serverCfg, ok := cfg.MCP[serverName]
	if !ok {
		return nil, nil, nil, fmt.Errorf("no mcp_servers entry named %q in config", serverName)
	}

	client, err := mcpclient.Connect(ctx, serverName, mcpclient.ServerConfig{
		Command: serverCfg.Command,
		Args:    serverCfg.Args,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}

	safety := toolexec.SafetyHeaders{
		AutoStopEnabled:   cfg.Engine.AutoStopEnabled,
		AutoDeleteEnabled: cfg.Engine.AutoDeleteEnabled,
		AutoPurgeEnabled:  cfg.Engine.AutoPurgeEnabled,
	}
	executor := toolexec.NewExecutor(client, 60, safety)

	return tools, executor, func() { client.Close() }, nil
}

type noopExecutor struct{}

func (noopExecutor) Execute(_ context.Context, name string, _ map[string]any) (toolexec.Result, error) {
	return toolexec.Result{Content: fmt.Sprintf(`{"error":"no mcp server connected; cannot invoke %q"}`, name), IsError: true}, nil
}

func printMessage(w io.Writer, m messages.Message) {
	switch m.Role {
	case messages.RoleAssistant:
		if m.Content != "" {
			fmt.Fprintf(w, "assistant: %s\n", m.Content)
		}
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(w, "assistant: call %s(%s)\n", tc.Name, tc.Arguments)
		}
	case messages.RoleTool:
		fmt.Fprintf(w, "tool[%s]: %s\n", m.Name, m.Content)
	default:
		fmt.Fprintf(w, "%s: %s\n", m.Role, m.Content)
	}
}
