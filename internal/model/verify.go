package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/example/ortprobe/internal/config"
	"github.com/example/ortprobe/internal/onnx"
)

type VerifyOptions struct {
	ModelPath string
	Runtime   config.RuntimeConfig
	Seed      uint64
	Tolerance float64
	FS        afero.Fs
	Stdout    io.Writer
	Stderr    io.Writer
}

// runProbe and runCrossCheck are swapped by tests.
var (
	runProbe = func(ctx context.Context, rt config.RuntimeConfig, opts onnx.ProbeOptions) (*onnx.Report, error) {
		acquire := func() (onnx.Engine, error) {
			eng, _, err := onnx.Bootstrap(rt)
			return eng, err
		}
		return onnx.Probe(ctx, acquire, opts)
	}
	runCrossCheck = onnx.CrossCheck
)

// Verify checks a model three ways: its header decodes, the raw engine
// chain runs it end to end, and the high-level binding agrees with the raw
// chain on the same placeholder input. Each step prints PASS or FAIL.
func Verify(ctx context.Context, opts VerifyOptions) error {
	if opts.ModelPath == "" {
		return errors.New("model path is required")
	}
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	if opts.Runtime.ORTLibraryPath == "" {
		if info, err := onnx.DetectRuntime(opts.Runtime); err == nil {
			opts.Runtime.ORTLibraryPath = info.LibraryPath
		}
	}

	var failures []string
	fail := func(step string, err error) {
		_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", step, err)
		failures = append(failures, step)
	}

	h, err := ReadHeader(opts.FS, opts.ModelPath)
	if err != nil {
		fail("header", err)
	} else {
		_, _ = fmt.Fprintf(opts.Stdout, "PASS header: ir_version %d, opset %d, %d nodes, producer %q\n",
			h.IRVersion, h.DefaultOpset(), h.NodeCount, h.ProducerName)
	}

	var report *onnx.Report
	sessionCfg, err := onnx.NewSessionConfig(opts.ModelPath, opts.Runtime)
	if err == nil {
		report, err = runProbe(ctx, opts.Runtime, onnx.ProbeOptions{
			SessionConfig: sessionCfg,
			Seed:          opts.Seed,
		})
	}
	switch {
	case err != nil:
		fail("probe", err)
	case report.Err != nil:
		fail("probe", report.Err)
	default:
		_, _ = fmt.Fprintf(opts.Stdout, "PASS probe: %s -> %s\n",
			onnx.FormatShape(report.ResolvedShape), onnx.FormatShape(report.OutputShape))
	}

	if report != nil && report.Inferred && report.Err == nil {
		res, err := runCrossCheck(ctx, report, onnx.RunnerConfig{
			LibraryPath: opts.Runtime.ORTLibraryPath,
			APIVersion:  opts.Runtime.APIVersion,
		}, opts.Tolerance)
		if err != nil {
			fail("cross-check", err)
		} else {
			_, _ = fmt.Fprintf(opts.Stdout, "PASS cross-check: max abs diff %.3g over %d values\n", res.MaxAbsDiff, len(res.Preview))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("verify failed for %d step(s): %s", len(failures), strings.Join(failures, ", "))
	}

	return nil
}
