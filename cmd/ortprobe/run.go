package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/ortprobe/internal/config"
	"github.com/example/ortprobe/internal/onnx"
)

type runOptions struct {
	crossCheck bool
	tolerance  float64
}

// runCrossCheck is swapped by tests.
var runCrossCheck = onnx.CrossCheck

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured model once on placeholder input and preview its output",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return executeProbe(cmd.Context(), cfg, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.crossCheck, "cross-check", false, "Re-run the placeholder input through onnxruntime-purego and compare outputs")
	cmd.Flags().Float64Var(&opts.tolerance, "tolerance", onnx.DefaultCrossCheckTolerance, "Maximum absolute preview difference accepted by --cross-check")

	return cmd
}

// executeProbe runs one probe. Setup failures come back as *onnx.SetupError.
// Later failures are already printed and end in success unless the probe is
// strict.
func executeProbe(ctx context.Context, cfg config.Config, out io.Writer, opts runOptions) error {
	sessionCfg, err := onnx.NewSessionConfig(cfg.Paths.ModelPath, cfg.Runtime)
	if err != nil {
		return err
	}

	report, err := onnx.Probe(ctx, acquireEngine(cfg.Runtime), onnx.ProbeOptions{
		SessionConfig: sessionCfg,
		Seed:          cfg.Probe.Seed,
		PreviewLimit:  cfg.Probe.Preview,
		Stdout:        out,
		Logger:        slog.Default(),
	})
	if err != nil {
		return err
	}

	slog.Debug("probe finished", "model", report.ModelPath, "released", report.Released, "inferred", report.Inferred)

	if report.Failed() {
		if cfg.Probe.Strict {
			return fmt.Errorf("probe %s: %w", report.ModelPath, report.Err)
		}
		return nil
	}

	if opts.crossCheck {
		if err := crossCheckReport(ctx, cfg, out, report, opts.tolerance); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintln(out, "Model loading and inspection completed successfully!")

	return nil
}

func crossCheckReport(ctx context.Context, cfg config.Config, out io.Writer, report *onnx.Report, tolerance float64) error {
	rc := onnx.RunnerConfig{
		LibraryPath: cfg.Runtime.ORTLibraryPath,
		APIVersion:  cfg.Runtime.APIVersion,
	}
	if rc.LibraryPath == "" {
		info, err := onnx.DetectRuntime(cfg.Runtime)
		if err != nil {
			return fmt.Errorf("cross-check: %w", err)
		}
		rc.LibraryPath = info.LibraryPath
	}

	res, err := runCrossCheck(ctx, report, rc, tolerance)
	if err != nil {
		_, _ = fmt.Fprintf(out, "Cross-check failed: %v\n", err)
		return err
	}

	_, _ = fmt.Fprintf(out, "Cross-check passed: max abs diff %.3g over %d values\n", res.MaxAbsDiff, len(res.Preview))

	return nil
}
