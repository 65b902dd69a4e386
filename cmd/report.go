package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/anchorlab/anchorbench/internal/model"
	"github.com/anchorlab/anchorbench/internal/runlog"
)

var reportRunDir string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a recorded evaluation run",
	Long: "Recomputes accuracy, average score, and per-domain counts from a run " +
		"directory's answers.json and meta.json. No model or external API is " +
		"contacted; the same inputs always produce the same report.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}

		summary, err := runlog.Summarize(reportRunDir)
		if err != nil {
			return err
		}

		formatSummary(os.Stdout, reportRunDir, summary)
		return nil
	},
}

func formatSummary(w io.Writer, dir string, s model.RunSummary) {
	fmt.Fprintf(w, "Run: %s\n", dir)
	fmt.Fprintf(w, "Model: %s\n\n", s.Model)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tCORRECT\tUNKNOWN\tINCORRECT\tERRORS\tTOTAL")
	for _, domain := range model.KnownDomains() {
		tally, ok := s.ByDomain[domain]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n",
			domain, tally.Correct, tally.Unknown, tally.Incorrect, tally.Errors, tally.Total)
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t%d\t%d\n",
		s.Correct, s.Unknown, s.Incorrect, s.Errors, s.Total)
	tw.Flush()

	fmt.Fprintf(w, "\nAccuracy: %.2f%% (errors excluded)\n", s.Accuracy*100)
	fmt.Fprintf(w, "Avg score: %+.4f\n", s.AvgScore)
	fmt.Fprintf(w, "Scoring: unknown_credit=%.2f wrong_penalty=%.2f", s.Scoring["unknown_credit"], s.Scoring["wrong_penalty"])
	if t, ok := s.Scoring["risk_threshold"]; ok {
		fmt.Fprintf(w, " risk_threshold=%.2f", t)
	}
	fmt.Fprintln(w)

	if s.Unverified > 0 {
		fmt.Fprintf(w, "Unverified anchors: %d of %d questions lacked rarity verification\n", s.Unverified, s.Total)
	}
	if s.Errors > 0 {
		fmt.Fprintf(w, "Errors: %d items failed at the model endpoint and do not count against accuracy\n", s.Errors)
	}
}

func init() {
	reportCmd.Flags().StringVar(&reportRunDir, "run-dir", "", "run directory to summarize (required)")
	_ = reportCmd.MarkFlagRequired("run-dir")
	rootCmd.AddCommand(reportCmd)
}
