// Command nifi-agent is a thin CLI over the engine, for smoke-testing the
// iteration loop outside the (out-of-scope) Streamlit UI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nifi-agent/engine/internal/logger"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "nifi-agent",
		Short:         "Drive Apache NiFi through an LLM-backed tool-calling agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			switch logLevel {
			case "debug":
				logger.SetLevel(logger.DEBUG)
			case "warn":
				logger.SetLevel(logger.WARN)
			case "error":
				logger.SetLevel(logger.ERROR)
			default:
				logger.SetLevel(logger.INFO)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON config file (optional; env overrides always apply)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")

	cmd.AddCommand(newRunCommand(&configPath), newVersionCommand())
	return cmd
}


func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}
