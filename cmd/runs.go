package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/anchorlab/anchorbench/internal/runlog"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded evaluation runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		runs, err := runlog.ListRuns(cfg.Runs.Dir)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func formatRunsList(w io.Writer, runs []runlog.RunInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tMODEL\tPENALTY\tBENCHMARKS\tDIR")
	for _, r := range runs {
		penalty := fmt.Sprintf("%.2f", r.Meta.WrongPenalty)
		if r.Meta.RiskThreshold != nil {
			penalty = fmt.Sprintf("%.2f (t=%.2f)", r.Meta.WrongPenalty, *r.Meta.RiskThreshold)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.Meta.StartedAt.UTC().Format(time.RFC3339),
			r.Meta.Model,
			penalty,
			len(r.Meta.Benchmarks),
			r.Dir,
		)
	}
	tw.Flush()
}

func init() {
	runsCmd.AddCommand(runsListCmd)
	rootCmd.AddCommand(runsCmd)
}
