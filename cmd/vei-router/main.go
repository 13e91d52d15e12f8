// Package main is the CLI entry point for vei-router: it compiles and runs
// a single workflow scenario against the in-process enterprise simulator
// and reports the resulting trace, score, and policy findings.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/haasonsaas/vei/internal/config"
	"github.com/haasonsaas/vei/internal/obs"
	"github.com/haasonsaas/vei/internal/router"
	"github.com/haasonsaas/vei/internal/scoring"
	"github.com/haasonsaas/vei/internal/tracelog"
	"github.com/haasonsaas/vei/internal/workflow"
	"github.com/prometheus/client_golang/prometheus"
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
	rootCmd := &cobra.Command{
		Use:     "vei-router",
		Short:   "Run workflow scenarios against the deterministic enterprise simulator",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildRunCmd(), buildValidateCmd(), buildScoreCmd())
	return rootCmd
}

func buildRunCmd() *cobra.Command {
	var (
		configPath   string
		scenarioPath string
		tracePath    string
		scoreMode    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile and run a workflow scenario to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, configPath, scenarioPath, tracePath, scoreMode)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a vei-router config file (optional)")
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to a workflow scenario JSON file (required)")
	cmd.Flags().StringVar(&tracePath, "trace", "", "Path to write the JSONL trace (defaults to <trace.dir>/<run-id>.jsonl)")
	cmd.Flags().StringVar(&scoreMode, "score-mode", "email", "Success mode used when scoring the run: email or full")
	cmd.MarkFlagRequired("scenario")
	return cmd
}

func buildValidateCmd() *cobra.Command {
	var scenarioPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Statically validate a workflow scenario without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateScenario(cmd, scenarioPath)
		},
	}
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to a workflow scenario JSON file (required)")
	cmd.MarkFlagRequired("scenario")
	return cmd
}

func buildScoreCmd() *cobra.Command {
	var (
		tracePath string
		mode      string
	)
	cmd := &cobra.Command{
		Use:   "score <trace.jsonl>",
		Short: "Score an existing trace file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracePath = args[0]
			return scoreTrace(cmd, tracePath, mode)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "email", "Success mode: email or full")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadDefault()
	}
	return config.Load(path)
}

// prometheusRegistryFor returns a fresh registry per run: each CLI
// invocation is a short-lived process, so there is no shared default
// registry to collide with (unlike a long-running vei-router serve).
func prometheusRegistryFor(cfg *config.Config) prometheus.Registerer {
	return prometheus.NewRegistry()
}

func loadScenario(path string) (workflow.Spec, error) {
	var spec workflow.Spec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("read scenario: %w", err)
	}
	if err := json.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("parse scenario: %w", err)
	}
	return spec, nil
}

func availableToolSet(r *router.Router) map[string]bool {
	out := map[string]bool{}
	for _, spec := range r.Registry().All() {
		out[spec.Name] = true
	}
	return out
}

func validateScenario(cmd *cobra.Command, scenarioPath string) error {
	spec, err := loadScenario(scenarioPath)
	if err != nil {
		return err
	}
	compiled, err := workflow.Compile(spec, nil)
	if err != nil {
		return fmt.Errorf("compile scenario: %w", err)
	}
	report := workflow.StaticValidate(compiled, nil)

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if !report.OK {
		return fmt.Errorf("scenario failed static validation with %d issue(s)", len(report.Issues))
	}
	return nil
}

func runScenario(cmd *cobra.Command, configPath, scenarioPath, tracePath, scoreMode string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	spec, err := loadScenario(scenarioPath)
	if err != nil {
		return err
	}

	compiled, err := workflow.Compile(spec, nil)
	if err != nil {
		return fmt.Errorf("compile scenario: %w", err)
	}
	if report := workflow.StaticValidate(compiled, nil); !report.OK {
		data, _ := json.MarshalIndent(report, "", "  ")
		return fmt.Errorf("scenario failed static validation:\n%s", data)
	}

	runID := tracelog.NewRunID()
	if tracePath == "" {
		tracePath = filepath.Join(cfg.Trace.Dir, runID+".jsonl")
	}
	if err := os.MkdirAll(filepath.Dir(tracePath), 0o755); err != nil {
		return fmt.Errorf("create trace dir: %w", err)
	}
	traceWriter, err := tracelog.NewFileWriter(tracePath, runID, cfg.Sim.Seed)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer traceWriter.Close()

	metrics := obs.NewMetrics(prometheusRegistryFor(cfg))

	session, err := workflow.BuildSession(compiled.World, cfg.Sim.Seed,
		router.WithTrace(traceWriter), router.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}
	defer session.Close()

	if report := workflow.StaticValidate(compiled, availableToolSet(session.Router)); !report.OK {
		data, _ := json.MarshalIndent(report, "", "  ")
		return fmt.Errorf("scenario references unavailable tools:\n%s", data)
	}

	result := workflow.Run(compiled, session.Router)

	records, err := readBackTrace(tracePath)
	if err != nil {
		return fmt.Errorf("read back trace for scoring: %w", err)
	}
	scoreResult := scoring.ComputeScore(records, scoring.Mode(scoreMode))

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		RunID string               `json:"run_id"`
		Trace string               `json:"trace_path"`
		Run   workflow.RunResult   `json:"run"`
		Score scoring.Result       `json:"score"`
	}{RunID: runID, Trace: tracePath, Run: result, Score: scoreResult}); err != nil {
		return err
	}

	if !result.OK {
		return fmt.Errorf("workflow run did not complete successfully")
	}
	return nil
}

func scoreTrace(cmd *cobra.Command, tracePath, mode string) error {
	records, err := readBackTrace(tracePath)
	if err != nil {
		return err
	}
	result := scoring.ComputeScore(records, scoring.Mode(mode))

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func readBackTrace(path string) ([]tracelog.CallRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader, err := tracelog.NewReader(f)
	if err != nil {
		return nil, err
	}
	return reader.ReadAll()
}
