package onnx

import (
	"fmt"
	"log/slog"

	"go.uber.org/multierr"
)

// Teardown is a stack of release actions. Each acquisition pushes its release
// as soon as it succeeds, so at any moment the stack holds exactly the live
// prefix of the acquisition chain. Unwind runs the actions newest first and
// only once.
type Teardown struct {
	steps    []teardownStep
	released []string
	unwound  bool
	logger   *slog.Logger
}

type teardownStep struct {
	name    string
	release func() error
}

// NewTeardown returns an empty stack that logs releases to logger (or the
// default logger when nil).
func NewTeardown(logger *slog.Logger) *Teardown {
	if logger == nil {
		logger = slog.Default()
	}

	return &Teardown{logger: logger}
}

// Push registers release for the resource called name.
func (t *Teardown) Push(name string, release func()) {
	t.PushErr(name, func() error {
		release()
		return nil
	})
}

// PushErr is Push for release actions that can fail.
func (t *Teardown) PushErr(name string, release func() error) {
	if t.unwound {
		panic(fmt.Sprintf("teardown: push %q after unwind", name))
	}

	t.steps = append(t.steps, teardownStep{name: name, release: release})
	t.logger.Debug("acquired", "resource", name, "live", len(t.steps))
}

// Live returns the names of the resources still held, oldest first.
func (t *Teardown) Live() []string {
	names := make([]string, len(t.steps))
	for i, s := range t.steps {
		names[i] = s.name
	}

	return names
}

// Released returns the names released so far, in release order.
func (t *Teardown) Released() []string {
	return append([]string(nil), t.released...)
}

// Unwind releases every live resource in reverse acquisition order. A failing
// release does not stop the others; all failures are combined. Calls after
// the first are no-ops.
func (t *Teardown) Unwind() error {
	if t.unwound {
		return nil
	}
	t.unwound = true

	var err error
	for i := len(t.steps) - 1; i >= 0; i-- {
		step := t.steps[i]
		if releaseErr := step.release(); releaseErr != nil {
			err = multierr.Append(err, fmt.Errorf("release %s: %w", step.name, releaseErr))
		}

		t.released = append(t.released, step.name)
		t.logger.Debug("released", "resource", step.name)
	}
	t.steps = nil

	return err
}
