//go:build !windows

package onnx

import (
	"context"
	"fmt"

	ortpg "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// RunnerConfig holds ORT library settings for the high-level runner.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// Runner runs a model through the high-level onnxruntime-purego binding. It
// is independent of the raw Engine chain and serves as a second opinion on
// what the model computes.
type Runner struct {
	modelPath string
	runtime   *ortpg.Runtime
	env       *ortpg.Env
	session   *ortpg.Session
}

// NewRunner opens runtime, environment and session for modelPath.
func NewRunner(modelPath string, cfg RunnerConfig) (*Runner, error) {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = 23
	}

	runtime, err := ortpg.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("ort runtime (lib=%q api=%d): %w", cfg.LibraryPath, cfg.APIVersion, err)
	}

	env, err := runtime.NewEnv("ortprobe-runner", ortpg.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("ort env: %w", err)
	}

	session, err := runtime.NewSession(env, modelPath, nil)
	if err != nil {
		env.Close()
		_ = runtime.Close()

		return nil, fmt.Errorf("ort session for %s: %w", modelPath, err)
	}

	return &Runner{
		modelPath: modelPath,
		runtime:   runtime,
		env:       env,
		session:   session,
	}, nil
}

// RunFloat32 feeds one float32 input and returns the named float32 output
// with its shape.
func (r *Runner) RunFloat32(ctx context.Context, inputName string, data []float32, shape []int64, outputName string) ([]float32, []int64, error) {
	input, err := ortpg.NewTensorValue(r.runtime, data, shape)
	if err != nil {
		return nil, nil, fmt.Errorf("input %q: %w", inputName, err)
	}
	defer input.Close()

	outputs, err := r.session.Run(ctx, map[string]*ortpg.Value{inputName: input})
	if err != nil {
		return nil, nil, fmt.Errorf("run %s: %w", r.modelPath, err)
	}
	defer closeValues(outputs)

	out, ok := outputs[outputName]
	if !ok || out == nil {
		return nil, nil, fmt.Errorf("output %q missing from results", outputName)
	}

	elemType, err := out.GetTensorElementType()
	if err != nil {
		return nil, nil, fmt.Errorf("output %q element type: %w", outputName, err)
	}
	if elemType != ortpg.ONNXTensorElementDataTypeFloat {
		return nil, nil, fmt.Errorf("output %q has element type %d, want float32", outputName, elemType)
	}

	values, outShape, err := ortpg.GetTensorData[float32](out)
	if err != nil {
		return nil, nil, fmt.Errorf("output %q data: %w", outputName, err)
	}

	return append([]float32(nil), values...), append([]int64(nil), outShape...), nil
}

// Close releases all ORT resources. Safe to call multiple times.
func (r *Runner) Close() {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}

	if r.env != nil {
		r.env.Close()
		r.env = nil
	}

	if r.runtime != nil {
		_ = r.runtime.Close()
		r.runtime = nil
	}
}

// RuntimeSmoke creates and closes a runtime and environment without loading
// a model.
func RuntimeSmoke(cfg RunnerConfig) error {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = 23
	}

	runtime, err := ortpg.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		return fmt.Errorf("ort runtime (lib=%q api=%d): %w", cfg.LibraryPath, cfg.APIVersion, err)
	}
	defer func() { _ = runtime.Close() }()

	env, err := runtime.NewEnv("ortprobe-doctor", ortpg.LoggingLevelWarning)
	if err != nil {
		return fmt.Errorf("ort env: %w", err)
	}
	env.Close()

	return nil
}

func closeValues(vals map[string]*ortpg.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
