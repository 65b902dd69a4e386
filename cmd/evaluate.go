package main

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anchorlab/anchorbench/internal/benchmark"
	"github.com/anchorlab/anchorbench/internal/eval"
	"github.com/anchorlab/anchorbench/internal/resilience"
	"github.com/anchorlab/anchorbench/internal/runlog"
)

var (
	evaluateModel         string
	evaluateBenchmarks    string
	evaluateRiskThreshold float64
	evaluateUnknownCredit float64
	evaluateWrongPenalty  float64
	evaluateConcurrency   int
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a model against benchmark files",
	Long: "Asks the model every question in the given benchmark files, classifies " +
		"each response as correct, unknown, or incorrect, and records the run " +
		"under the runs directory. --risk-threshold t derives the wrong-answer " +
		"penalty t/(1-t); it is mutually exclusive with --wrong-penalty.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("evaluate"); err != nil {
			return err
		}

		scoring, err := resolveScoring(cmd)
		if err != nil {
			return err
		}

		paths := splitPaths(evaluateBenchmarks)
		if len(paths) == 0 {
			return eris.New("no benchmark files given")
		}
		questions, err := benchmark.LoadAll(paths)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return eris.New("benchmark files contain no questions")
		}

		concurrency := cfg.Evaluate.Concurrency
		if cmd.Flags().Changed("concurrency") {
			concurrency = evaluateConcurrency
		}

		retry := resilience.DefaultRetryConfig()
		if cfg.Evaluate.MaxRetries > 0 {
			retry.MaxAttempts = cfg.Evaluate.MaxRetries
		}

		client := eval.NewOpenAIClient(cfg.OpenAI.Key, cfg.OpenAI.BaseURL)
		evaluator := eval.NewEvaluator(client, evaluateModel, scoring,
			eval.WithConcurrency(concurrency),
			eval.WithTimeout(time.Duration(cfg.OpenAI.TimeoutSecs)*time.Second),
			eval.WithMaxTokens(cfg.OpenAI.MaxTokens),
			eval.WithRetry(retry),
		)

		meta := runlog.NewRunMeta(evaluateModel, scoring.UnknownCredit, scoring.WrongPenalty, scoring.RiskThreshold, paths)
		recorder, err := runlog.NewRecorder(cfg.Runs.Dir, meta)
		if err != nil {
			return err
		}
		defer recorder.Close() //nolint:errcheck

		zap.L().Info("starting evaluation",
			zap.String("model", evaluateModel),
			zap.Int("questions", len(questions)),
			zap.Float64("wrong_penalty", scoring.WrongPenalty),
		)

		if err := evaluator.Evaluate(ctx, questions, recorder.Record); err != nil {
			return err
		}

		summary, err := runlog.Summarize(recorder.Dir())
		if err != nil {
			return err
		}
		formatSummary(os.Stdout, recorder.Dir(), summary)
		return nil
	},
}

// resolveScoring merges config defaults with explicitly-set flags. Only
// flags the user actually passed participate in the mutual-exclusion check.
func resolveScoring(cmd *cobra.Command) (eval.Scoring, error) {
	var unknownCredit, wrongPenalty, riskThreshold *float64

	if cmd.Flags().Changed("unknown-credit") {
		unknownCredit = &evaluateUnknownCredit
	} else if cfg.Evaluate.UnknownCredit != 0 {
		unknownCredit = &cfg.Evaluate.UnknownCredit
	}

	if cmd.Flags().Changed("risk-threshold") {
		riskThreshold = &evaluateRiskThreshold
	}

	if cmd.Flags().Changed("wrong-penalty") {
		wrongPenalty = &evaluateWrongPenalty
	} else if riskThreshold == nil && cfg.Evaluate.WrongPenalty != 0 {
		wrongPenalty = &cfg.Evaluate.WrongPenalty
	}

	return eval.NewScoring(unknownCredit, wrongPenalty, riskThreshold)
}

func splitPaths(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateModel, "model", "", "model identifier to evaluate (required)")
	evaluateCmd.Flags().StringVar(&evaluateBenchmarks, "benchmarks", "", "comma-separated benchmark JSON files (required)")
	evaluateCmd.Flags().Float64Var(&evaluateRiskThreshold, "risk-threshold", 0, "confidence target t in [0,1); derives wrong penalty t/(1-t)")
	evaluateCmd.Flags().Float64Var(&evaluateUnknownCredit, "unknown-credit", 0, "score credited for an Unknown answer")
	evaluateCmd.Flags().Float64Var(&evaluateWrongPenalty, "wrong-penalty", 0, "score deducted for an incorrect answer")
	evaluateCmd.Flags().IntVar(&evaluateConcurrency, "concurrency", 0, "concurrent model calls (default from config)")
	_ = evaluateCmd.MarkFlagRequired("model")
	_ = evaluateCmd.MarkFlagRequired("benchmarks")
	rootCmd.AddCommand(evaluateCmd)
}
