// Package main is the CLI entry point for vei-corpus: it generates a batch
// of synthetic environments/workflows and runs them through the quality
// acceptance gate (spec.md §4.6).
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/haasonsaas/vei/internal/config"
	"github.com/haasonsaas/vei/internal/corpus"
	"github.com/haasonsaas/vei/internal/quality"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		configPath  string
		seed        int64
		environments int
		scenarios   int
		threshold   float64
		outPath     string
	)

	cmd := &cobra.Command{
		Use:          "vei-corpus",
		Short:        "Generate and quality-filter a batch of synthetic VEI scenarios",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if environments <= 0 {
				environments = cfg.Corpus.EnvironmentCount
			}
			if scenarios <= 0 {
				scenarios = cfg.Corpus.ScenariosPerEnvironment
			}
			if threshold <= 0 {
				threshold = cfg.Corpus.RealismThreshold
			}
			if seed == 0 {
				seed = cfg.Sim.Seed
			}

			bundle := corpus.GenerateCorpus(seed, environments, scenarios)
			report := quality.FilterCorpus(bundle.Workflows, threshold)

			output := struct {
				Bundle corpus.Bundle `json:"bundle"`
				Report quality.Report `json:"quality"`
			}{Bundle: bundle, Report: report}

			data, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return err
			}

			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			return os.WriteFile(outPath, data, 0o644)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a vei-corpus config file (optional)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Root seed (overrides config's sim.seed)")
	cmd.Flags().IntVar(&environments, "environments", 0, "Number of environments to generate (overrides config)")
	cmd.Flags().IntVar(&scenarios, "scenarios-per-environment", 0, "Scenarios per environment (overrides config)")
	cmd.Flags().Float64Var(&threshold, "realism-threshold", 0, "Minimum realism score to accept (overrides config)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the generated bundle + quality report to a file instead of stdout")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadDefault()
	}
	return config.Load(path)
}
