package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/walvekarn/agentic-compliance-agent-sub001/capabilities"
	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/orchestration"
	"github.com/walvekarn/agentic-compliance-agent-sub001/reasoning"
	"github.com/walvekarn/agentic-compliance-agent-sub001/resilience"
	"github.com/walvekarn/agentic-compliance-agent-sub001/store"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

// callerGrace is how much longer the CLI waits past the engine's own
// overall timeout before pulling the plug itself.
const callerGrace = 30 * time.Second

var (
	runTaskDesc         string
	runCategory         string
	runPriority         string
	runDeadline         string
	runEntityFile       string
	runExecuteConfirmed bool
	runMaxIterations    int
	runOutput           string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze a compliance task",
	Long: `Analyze a compliance task end to end and print the result.

The analysis runs until it completes, exhausts its iteration budget, or
hits a timeout; whatever happens, the printed result carries the final
status, the per-step outputs and reflections, and the recommendation.
Every run is recorded to the configured store for later review with
'complyagent runs'.

Side-effecting capabilities (such as the outbound notifier) are excluded
unless --execute-confirmed is set.`,
	Example: `  complyagent run --task "Assess GDPR readiness for our new analytics pipeline" \
      --category data-privacy --priority high --deadline 2026-10-01 \
      --entity-file entity.yaml`,
	RunE: runAnalysis,
}

func init() {
	runCmd.Flags().StringVar(&runTaskDesc, "task", "", "Task description to analyze (required)")
	runCmd.Flags().StringVar(&runCategory, "category", "", "Task category, e.g. data-privacy or financial-reporting")
	runCmd.Flags().StringVar(&runPriority, "priority", core.PriorityMedium, "Task priority: low, medium, high, or critical")
	runCmd.Flags().StringVar(&runDeadline, "deadline", "", "Task deadline (YYYY-MM-DD or RFC 3339)")
	runCmd.Flags().StringVar(&runEntityFile, "entity-file", "", "YAML file with the entity profile")
	runCmd.Flags().BoolVar(&runExecuteConfirmed, "execute-confirmed", false, "Allow side-effecting capabilities to run")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "Cap on step executions for this run (0 uses the configured default)")
	runCmd.Flags().StringVar(&runOutput, "output", "text", "Output format: text or json")
	_ = runCmd.MarkFlagRequired("task")
	rootCmd.AddCommand(runCmd)
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	var opts []core.Option
	if runExecuteConfirmed {
		opts = append(opts, core.WithExecuteConfirmed(true))
	}
	cfg, err := loadConfig(opts...)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	var tel core.Telemetry
	if cfg.Telemetry.Enabled {
		provider, telErr := telemetry.Init(cfg.Telemetry)
		if telErr != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", telErr)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
		tel = provider
	}

	task, err := buildTask(runTaskDesc, runCategory, runPriority, runDeadline)
	if err != nil {
		return err
	}
	entity, err := loadEntity(runEntityFile)
	if err != nil {
		return err
	}

	registry := capabilities.NewRegistry(logger, tel)
	if err := capabilities.RegisterDefaults(registry, cfg.Capabilities, logger); err != nil {
		return err
	}

	client, err := reasoning.NewClient(&reasoning.ClientConfig{
		ProviderConfig: cfg.Provider,
		Logger:         logger,
		Telemetry:      tel,
	})
	if err != nil {
		return err
	}

	breaker, err := resilience.FromBreakerConfig(cfg.Breaker, "provider", logger)
	if err != nil {
		return err
	}

	engine, err := orchestration.NewEngine(cfg, orchestration.Dependencies{
		AIClient:     client,
		Capabilities: registry,
		Breaker:      breaker,
		Logger:       logger,
		Telemetry:    tel,
	})
	if err != nil {
		return err
	}

	runStore, err := store.New(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer runStore.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Engine.OverallTimeout+callerGrace)
	defer cancel()

	result := engine.Run(ctx, task, entity, runMaxIterations)

	// Record with a fresh context: the run context may already be dead,
	// and a completed analysis is worth storing either way.
	recordCtx, recordCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer recordCancel()
	if err := runStore.Record(recordCtx, &result); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: run %s was not recorded: %v\n", result.RunID, err)
	}

	output, err := formatRunResult(&result, runOutput)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)

	if result.Status != core.RunStatusCompleted {
		return fmt.Errorf("run %s finished with status %s", result.RunID, result.Status)
	}
	return nil
}

// buildTask assembles the task from the run flags.
func buildTask(description, category, priority, deadline string) (core.Task, error) {
	if strings.TrimSpace(description) == "" {
		return core.Task{}, fmt.Errorf("task description cannot be empty")
	}

	priority = strings.ToLower(strings.TrimSpace(priority))
	if priority == "" {
		priority = core.PriorityMedium
	}
	switch priority {
	case core.PriorityLow, core.PriorityMedium, core.PriorityHigh, core.PriorityCritical:
	default:
		return core.Task{}, fmt.Errorf("invalid priority %q (use low, medium, high, or critical)", priority)
	}

	due, err := parseDeadline(deadline)
	if err != nil {
		return core.Task{}, err
	}

	return core.Task{
		ID:          uuid.NewString(),
		Description: strings.TrimSpace(description),
		Category:    strings.TrimSpace(category),
		Priority:    priority,
		Deadline:    due,
	}, nil
}

// parseDeadline accepts a bare date or a full RFC 3339 timestamp.
func parseDeadline(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	return nil, fmt.Errorf("invalid deadline %q (use YYYY-MM-DD or RFC 3339)", value)
}

// entityFile is the YAML shape of --entity-file.
type entityFile struct {
	Name          string   `yaml:"name"`
	Jurisdictions []string `yaml:"jurisdictions"`
	Industry      string   `yaml:"industry"`
	Size          string   `yaml:"size"`
	HistoryRefs   []string `yaml:"history_refs"`
}

// loadEntity reads the entity profile. An empty path yields an empty
// profile, which the engine treats as an unspecified organization.
func loadEntity(path string) (core.EntityContext, error) {
	if path == "" {
		return core.EntityContext{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return core.EntityContext{}, fmt.Errorf("failed to read entity file: %w", err)
	}
	var parsed entityFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return core.EntityContext{}, fmt.Errorf("failed to parse entity file %s: %w", path, err)
	}
	return core.EntityContext{
		Name:          parsed.Name,
		Jurisdictions: parsed.Jurisdictions,
		Industry:      parsed.Industry,
		Size:          parsed.Size,
		HistoryRefs:   parsed.HistoryRefs,
	}, nil
}

// formatRunResult renders the result as text or JSON.
func formatRunResult(result *core.RunResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode result: %w", err)
		}
		return string(data), nil
	case "", "text":
		return formatRunText(result), nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", format)
	}
}

func formatRunText(result *core.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:        %s\n", result.RunID)
	fmt.Fprintf(&b, "Status:     %s\n", result.Status)
	fmt.Fprintf(&b, "Confidence: %.2f\n", result.ConfidenceScore)

	if len(result.StepOutputs) > 0 {
		b.WriteString("\nSteps:\n")
		for i, output := range result.StepOutputs {
			fmt.Fprintf(&b, "  %d. %-9s %s (confidence %.2f)\n",
				i+1, output.Status, output.StepID, output.Confidence)
			for _, stepErr := range output.Errors {
				fmt.Fprintf(&b, "     error: %s\n", stepErr.Message)
			}
		}
	}

	b.WriteString("\nRecommendation:\n")
	b.WriteString(result.FinalRecommendation)
	return strings.TrimRight(b.String(), "\n")
}
