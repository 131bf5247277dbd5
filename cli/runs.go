package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/walvekarn/agentic-compliance-agent-sub001/store"
)

var (
	runsListLimit  int
	runsShowOutput string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		runStore, err := store.New(cfg.Store, newLogger(cfg))
		if err != nil {
			return err
		}
		defer runStore.Close()

		summaries, err := runStore.List(cmd.Context(), runsListLimit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSTATUS\tSTEPS\tCONFIDENCE\tTIMESTAMP")
		for _, summary := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%s\n",
				summary.RunID, summary.Status, summary.Steps, summary.Confidence, summary.Timestamp)
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		runStore, err := store.New(cfg.Store, newLogger(cfg))
		if err != nil {
			return err
		}
		defer runStore.Close()

		result, err := runStore.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		output, err := formatRunResult(result, runsShowOutput)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	},
}

func init() {
	runsListCmd.Flags().IntVar(&runsListLimit, "limit", 0, "Maximum runs to list (0 uses the store default)")
	runsShowCmd.Flags().StringVar(&runsShowOutput, "output", "text", "Output format: text or json")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
