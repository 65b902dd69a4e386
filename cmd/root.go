package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anchorlab/anchorbench/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "anchorbench",
	Short: "Reality-anchor benchmark for language models",
	Long: "Generates benchmark questions from obscure web facts unlikely to survive " +
		"training-corpus curation, then evaluates models on them with a penalty " +
		"scheme that rewards saying Unknown over guessing.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
