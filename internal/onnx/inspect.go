package onnx

import (
	"fmt"
	"log/slog"

	"go.uber.org/multierr"
)

// Inspection lists a model's full signature without running it.
type Inspection struct {
	ModelPath string
	Inputs    []TensorSignature
	Outputs   []TensorSignature
	Released  []string
	Err       error
}

// Inspect opens a session and reads the signature of every input and output.
// No tensors are created and no shape policy is applied. As with Probe, the
// returned error is a *SetupError; later failures land in Inspection.Err.
func Inspect(acquire EngineFunc, cfg SessionConfig, logger *slog.Logger) (*Inspection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	result := &Inspection{ModelPath: cfg.ModelPath}

	eng, err := acquire()
	if err != nil {
		return result, &SetupError{Stage: StageEngine, Err: err}
	}

	td := NewTeardown(logger)
	defer func() {
		if releaseErr := td.Unwind(); releaseErr != nil {
			result.Err = multierr.Append(result.Err, releaseErr)
		}
		result.Released = td.Released()
	}()

	session, err := openSession(eng, td, cfg, logger)
	if err != nil {
		return result, err
	}

	alloc, err := eng.GetAllocatorWithDefaultOptions()
	if err != nil {
		result.Err = fmt.Errorf("get allocator: %w", err)
		return result, nil
	}

	for _, slot := range []Slot{SlotInput, SlotOutput} {
		n, err := slotCount(eng, session, slot)
		if err != nil {
			result.Err = fmt.Errorf("get %s count: %w", slot, err)
			return result, nil
		}

		for i := range n {
			// Type info is scoped to one signature.
			sigTD := NewTeardown(logger)
			sig, err := introspect(eng, sigTD, session, alloc, slot, i)
			err = multierr.Append(err, sigTD.Unwind())
			if err != nil {
				result.Err = err
				return result, nil
			}

			if slot == SlotInput {
				result.Inputs = append(result.Inputs, sig)
			} else {
				result.Outputs = append(result.Outputs, sig)
			}
		}
	}

	return result, nil
}
