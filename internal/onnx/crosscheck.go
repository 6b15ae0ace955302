package onnx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
)

// DefaultCrossCheckTolerance bounds the absolute difference between preview
// values from the two bindings.
const DefaultCrossCheckTolerance = 1e-4

// CrossCheckResult compares a probe report against the high-level runner.
type CrossCheckResult struct {
	Preview     []float32
	OutputShape []int64
	MaxAbsDiff  float64
}

// float32Runner is the part of *Runner CrossCheck needs.
type float32Runner interface {
	RunFloat32(ctx context.Context, inputName string, data []float32, shape []int64, outputName string) ([]float32, []int64, error)
}

// CrossCheck rebuilds the report's placeholder input, runs it through the
// high-level binding and compares output shape and preview values.
func CrossCheck(ctx context.Context, report *Report, cfg RunnerConfig, tolerance float64) (*CrossCheckResult, error) {
	if report == nil || !report.Inferred {
		return nil, errors.New("cross-check needs a report from a completed inference")
	}

	runner, err := NewRunner(report.ModelPath, cfg)
	if err != nil {
		return nil, err
	}
	defer runner.Close()

	return crossCheck(ctx, runner, report, tolerance)
}

func crossCheck(ctx context.Context, runner float32Runner, report *Report, tolerance float64) (*CrossCheckResult, error) {
	if tolerance <= 0 {
		tolerance = DefaultCrossCheckTolerance
	}

	input := make([]float32, report.ElementCount)
	FillPlaceholder(input, report.Seed)

	values, shape, err := runner.RunFloat32(ctx, report.Input.Name, input, report.ResolvedShape, report.OutputName)
	if err != nil {
		return nil, fmt.Errorf("cross-check run: %w", err)
	}

	result := &CrossCheckResult{OutputShape: shape}
	if !slices.Equal(shape, report.OutputShape) {
		return result, fmt.Errorf("cross-check: output shape %s, probe saw %s", FormatShape(shape), FormatShape(report.OutputShape))
	}

	k := min(len(values), len(report.Preview))
	result.Preview = values[:k]
	for i := range k {
		diff := math.Abs(float64(values[i]) - float64(report.Preview[i]))
		result.MaxAbsDiff = max(result.MaxAbsDiff, diff)
	}

	if result.MaxAbsDiff > tolerance {
		return result, fmt.Errorf("cross-check: preview differs by %.6g (tolerance %.6g)", result.MaxAbsDiff, tolerance)
	}

	return result, nil
}
