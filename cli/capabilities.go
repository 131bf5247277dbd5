package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/walvekarn/agentic-compliance-agent-sub001/capabilities"
	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List the available capability modules",
	Long: `List the capability modules the engine can invoke during analysis
steps, with their side-effect class and matching tags. Modules marked
"writes" only run when the analysis is started with --execute-confirmed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := &core.NoOpLogger{}
		registry := capabilities.NewRegistry(logger, nil)
		if err := capabilities.RegisterDefaults(registry, cfg.Capabilities, logger); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIDE EFFECT\tTAGS\tDESCRIPTION")
		for _, meta := range registry.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				meta.Name, meta.SideEffect, strings.Join(meta.Tags, ","), meta.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(capabilitiesCmd)
}
