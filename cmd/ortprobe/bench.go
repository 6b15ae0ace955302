package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/ortprobe/internal/bench"
	"github.com/example/ortprobe/internal/config"
	"github.com/example/ortprobe/internal/onnx"
)

type benchOptions struct {
	runs      int
	format    string
	maxMeanMS float64
}

func newBenchCmd() *cobra.Command {
	var opts benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time repeated probes of the configured model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return executeBench(cmd.Context(), cfg, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.runs, "runs", 5, "Number of probe runs")
	cmd.Flags().StringVar(&opts.format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&opts.maxMeanMS, "max-mean-ms", 0, "Exit non-zero if mean run latency exceeds this many milliseconds (0 = disabled)")

	return cmd
}

// executeBench opens a fresh environment and session for every run. The
// engine handle is shared.
func executeBench(ctx context.Context, cfg config.Config, out io.Writer, opts benchOptions) error {
	if opts.runs < 1 {
		return fmt.Errorf("--runs must be at least 1")
	}
	if opts.format != "table" && opts.format != "json" {
		return fmt.Errorf("--format must be 'table' or 'json'")
	}

	sessionCfg, err := onnx.NewSessionConfig(cfg.Paths.ModelPath, cfg.Runtime)
	if err != nil {
		return err
	}

	acquire := acquireEngine(cfg.Runtime)
	results, err := bench.Measure(ctx, opts.runs, func(ctx context.Context, _ int) (int, error) {
		report, err := onnx.Probe(ctx, acquire, onnx.ProbeOptions{
			SessionConfig: sessionCfg,
			Seed:          cfg.Probe.Seed,
			PreviewLimit:  cfg.Probe.Preview,
		})
		if err != nil {
			return 0, err
		}
		if report.Err != nil {
			return 0, report.Err
		}
		return report.OutputElements, nil
	})
	if err != nil {
		return err
	}

	stats := bench.ComputeStats(bench.Durations(results))

	switch opts.format {
	case "json":
		bench.FormatJSON(results, stats, out)
	default:
		bench.FormatTable(results, stats, out)
	}

	return bench.CheckMeanThreshold(stats.Mean, opts.maxMeanMS)
}
