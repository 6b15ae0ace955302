//go:build windows

package onnx

import (
	"context"
	"fmt"
)

// RunnerConfig holds ORT library settings for the high-level runner.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// Runner is unavailable in windows builds; the raw Engine chain still works.
type Runner struct {
	modelPath string
}

// NewRunner always returns an error in windows builds.
func NewRunner(modelPath string, _ RunnerConfig) (*Runner, error) {
	return nil, fmt.Errorf("high-level onnx runner is unavailable on windows for %s", modelPath)
}

// RunFloat32 always returns an error in windows builds.
func (r *Runner) RunFloat32(_ context.Context, _ string, _ []float32, _ []int64, _ string) ([]float32, []int64, error) {
	return nil, nil, fmt.Errorf("high-level onnx runner is unavailable on windows for %s", r.modelPath)
}

// Close is a no-op in windows builds.
func (r *Runner) Close() {}

// RuntimeSmoke always returns an error in windows builds.
func RuntimeSmoke(_ RunnerConfig) error {
	return fmt.Errorf("high-level onnx runner is unavailable on windows")
}
