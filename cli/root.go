// Package cli implements the complyagent command tree. The commands are
// thin: they load configuration, wire the engine and its collaborators,
// and print results. All analysis behavior lives in the library
// packages.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "complyagent",
	Short: "Compliance task analysis assistant",
	Long: `complyagent analyzes compliance tasks with an AI-driven
plan-execute-reflect loop.

Given a task (for example "determine applicable data-retention rules for
a fintech expanding into the EU") and an entity profile, it plans the
analysis steps, executes them against an AI provider and the built-in
capability modules, reflects on every result, retries or revises the
plan when quality is low, and finishes with a recommendation plus a full
execution trace.

Provider credentials come from the environment (OPENAI_API_KEY or
ANTHROPIC_API_KEY); configuration comes from defaults, COMPLY_*
environment variables, and an optional YAML file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: DEBUG, INFO, WARN, or ERROR")
}

// loadConfig builds the effective configuration from defaults,
// environment, the optional config file, and the given overrides.
func loadConfig(extra ...core.Option) (*core.Config, error) {
	var opts []core.Option
	if cfgPath != "" {
		opts = append(opts, core.WithConfigFile(cfgPath))
	}
	if logLevel != "" {
		opts = append(opts, core.WithLogLevel(logLevel))
	}
	opts = append(opts, extra...)
	return core.NewConfig(opts...)
}

func newLogger(cfg *core.Config) *core.ProductionLogger {
	return core.NewProductionLogger(cfg.Telemetry.ServiceName, cfg.Logging)
}
