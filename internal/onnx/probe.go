package onnx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unsafe"

	units "github.com/docker/go-units"
	"go.uber.org/multierr"

	"github.com/example/ortprobe/internal/ort"
)

// DefaultPreviewLimit is how many output values a report surfaces.
const DefaultPreviewLimit = 10

// DefaultSeed seeds the placeholder input.
const DefaultSeed uint64 = 42

// Stage names a step of the acquisition chain that precedes the open session.
type Stage string

const (
	StageEngine         Stage = "engine init"
	StageEnvironment    Stage = "environment"
	StageSessionOptions Stage = "session options"
	StageSession        Stage = "session"
)

// SetupError is a failure before the session is open. Nothing after the
// failing stage was attempted.
type SetupError struct {
	Stage Stage
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// IsSetupError reports whether err, or anything it wraps, is a *SetupError.
func IsSetupError(err error) bool {
	var setupErr *SetupError
	return errors.As(err, &setupErr)
}

// EngineFunc yields the process engine handle.
type EngineFunc func() (Engine, error)

// SessionConfig is everything needed to open a session.
type SessionConfig struct {
	ModelPath      string
	LogID          string
	EngineLogLevel ort.LoggingLevel
	IntraOpThreads int
	Optimization   ort.GraphOptimizationLevel
}

// ProbeOptions configures one probe run.
type ProbeOptions struct {
	SessionConfig

	Seed         uint64
	PreviewLimit int

	// Stdout receives one progress line per fact.
	Stdout io.Writer
	Logger *slog.Logger
}

func (o ProbeOptions) withDefaults() ProbeOptions {
	if o.PreviewLimit <= 0 {
		o.PreviewLimit = DefaultPreviewLimit
	}
	if o.Stdout == nil {
		o.Stdout = io.Discard
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return o
}

// Report is what a probe learned. Err holds the failure, if any, that ended
// the run after the session was open; such failures are reported, not fatal.
type Report struct {
	ModelPath   string
	InputCount  int
	OutputCount int

	Input      TensorSignature
	OutputName string

	ResolvedShape []int64
	Rewritten     []int
	ElementCount  int
	Seed          uint64

	Inferred       bool
	OutputType     ort.TensorElementType
	OutputShape    []int64
	OutputElements int
	Preview        []float32

	Released []string
	Err      error
}

// Failed reports whether the run stopped short of a full report.
func (r *Report) Failed() bool { return r.Err != nil }

// Probe runs the full chain: engine, environment, session options, session,
// introspection of input 0 and output 0, placeholder input, one forward pass,
// output extraction. Every acquired resource is released in reverse order
// before Probe returns, whatever step failed.
//
// The returned error is non-nil only for a *SetupError. Later failures are
// recorded in Report.Err.
func Probe(ctx context.Context, acquire EngineFunc, opts ProbeOptions) (*Report, error) {
	opts = opts.withDefaults()
	out := opts.Stdout
	report := &Report{ModelPath: opts.ModelPath, Seed: opts.Seed}

	eng, err := acquire()
	if err != nil {
		_, _ = fmt.Fprintf(out, "Failed to init ONNX Runtime engine: %v\n", err)
		return report, &SetupError{Stage: StageEngine, Err: err}
	}

	td := NewTeardown(opts.Logger)
	defer func() {
		if releaseErr := td.Unwind(); releaseErr != nil {
			report.Err = multierr.Append(report.Err, releaseErr)
		}
		report.Released = td.Released()
	}()

	session, err := openSession(eng, td, opts.SessionConfig, opts.Logger)
	if err != nil {
		_, _ = fmt.Fprintf(out, "Failed to %s\n", describeSetupFailure(err))
		return report, err
	}
	_, _ = fmt.Fprintf(out, "Successfully loaded ONNX model from: %s\n", opts.ModelPath)

	if err := runProbe(ctx, eng, td, session, opts, report); err != nil {
		report.Err = err
		_, _ = fmt.Fprintf(out, "Probe stopped: %v\n", err)
	}

	return report, nil
}

// openSession acquires environment, session options and session, pushing
// each release onto td as soon as the resource exists.
func openSession(eng Engine, td *Teardown, cfg SessionConfig, logger *slog.Logger) (ort.Session, error) {
	env, err := eng.CreateEnv(cfg.EngineLogLevel, cfg.LogID)
	if err != nil {
		return 0, &SetupError{Stage: StageEnvironment, Err: err}
	}
	td.Push("environment", func() { eng.ReleaseEnv(env) })

	opts, err := eng.CreateSessionOptions()
	if err != nil {
		return 0, &SetupError{Stage: StageSessionOptions, Err: err}
	}
	td.Push("session options", func() { eng.ReleaseSessionOptions(opts) })

	// Tunables are advisory: a rejected value leaves the engine default.
	if cfg.IntraOpThreads > 0 {
		if err := eng.SetIntraOpNumThreads(opts, cfg.IntraOpThreads); err != nil {
			logger.Warn("intra-op thread count not applied", "threads", cfg.IntraOpThreads, "error", err)
		}
	}
	if err := eng.SetSessionGraphOptimizationLevel(opts, cfg.Optimization); err != nil {
		logger.Warn("graph optimization level not applied", "level", cfg.Optimization.String(), "error", err)
	}

	session, err := eng.CreateSession(env, cfg.ModelPath, opts)
	if err != nil {
		return 0, &SetupError{Stage: StageSession, Err: fmt.Errorf("%s: %w", cfg.ModelPath, err)}
	}
	td.Push("session", func() { eng.ReleaseSession(session) })

	logger.Debug("session open", "model", cfg.ModelPath, "threads", cfg.IntraOpThreads, "optimization", cfg.Optimization.String())

	return session, nil
}

func describeSetupFailure(err error) string {
	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		return err.Error()
	}

	switch setupErr.Stage {
	case StageEnvironment:
		return "create environment: " + setupErr.Err.Error()
	case StageSessionOptions:
		return "create session options: " + setupErr.Err.Error()
	case StageSession:
		return "load model: " + setupErr.Err.Error()
	default:
		return setupErr.Error()
	}
}

func runProbe(ctx context.Context, eng Engine, td *Teardown, session ort.Session, opts ProbeOptions, report *Report) error {
	out := opts.Stdout

	// The default allocator belongs to the engine and is never released.
	alloc, err := eng.GetAllocatorWithDefaultOptions()
	if err != nil {
		return fmt.Errorf("get allocator: %w", err)
	}

	if report.InputCount, err = eng.SessionGetInputCount(session); err != nil {
		return fmt.Errorf("get input count: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Number of model inputs: %d\n", report.InputCount)

	if report.OutputCount, err = eng.SessionGetOutputCount(session); err != nil {
		return fmt.Errorf("get output count: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Number of model outputs: %d\n", report.OutputCount)

	if report.InputCount < 1 || report.OutputCount < 1 {
		return fmt.Errorf("model declares %d inputs and %d outputs, need at least one of each", report.InputCount, report.OutputCount)
	}

	inputName, err := eng.SessionGetInputName(session, 0, alloc)
	if err != nil {
		return fmt.Errorf("get input name: %w", err)
	}
	report.Input.Name = inputName
	_, _ = fmt.Fprintf(out, "Input name: %s\n", inputName)

	outputName, err := eng.SessionGetOutputName(session, 0, alloc)
	if err != nil {
		return fmt.Errorf("get output name: %w", err)
	}
	report.OutputName = outputName
	_, _ = fmt.Fprintf(out, "Output name: %s\n", outputName)

	info, err := slotTypeInfo(eng, td, session, SlotInput, 0)
	if err != nil {
		return fmt.Errorf("get input type info: %w", err)
	}

	elemType, dims, err := readShape(eng, info)
	if err != nil {
		return fmt.Errorf("get input dimensions: %w", err)
	}
	report.Input.ElementType = elemType
	report.Input.Shape = dims
	_, _ = fmt.Fprintf(out, "Input dimensions: %s\n", FormatShape(dims))

	if elemType != ort.TensorElementTypeFloat {
		opts.Logger.Warn("input is not float32; the engine will validate the placeholder", "input", inputName, "type", elemType.String())
	}

	resolved, rewritten, err := ResolveShape(dims)
	if err != nil {
		return fmt.Errorf("resolve input shape: %w", err)
	}
	report.ResolvedShape = resolved
	report.Rewritten = rewritten
	for _, i := range rewritten {
		_, _ = fmt.Fprintf(out, "Set dynamic dimension %d to 1\n", i)
	}

	count, err := ElementCount(resolved)
	if err != nil {
		return fmt.Errorf("input element count: %w", err)
	}
	report.ElementCount = count

	buf, err := NewHostBuffer(count)
	if err != nil {
		return err
	}
	td.Push("host buffer", buf.Release)
	_, _ = fmt.Fprintf(out, "Input tensor size: %d elements (%s)\n", count, units.HumanSize(float64(buf.ByteLen())))

	FillPlaceholder(buf.Data(), opts.Seed)
	_, _ = fmt.Fprintf(out, "Created placeholder input data (seed %d, values in [0, 1))\n", opts.Seed)

	memInfo, err := eng.CreateCPUMemoryInfo(ort.AllocatorTypeArena, ort.MemTypeDefault)
	if err != nil {
		return fmt.Errorf("create memory info: %w", err)
	}
	td.Push("memory info", func() { eng.ReleaseMemoryInfo(memInfo) })

	input, err := eng.CreateTensorWithDataAsOrtValue(memInfo, buf.Pin(), buf.ByteLen(), resolved, ort.TensorElementTypeFloat)
	if err != nil {
		return fmt.Errorf("create input tensor: %w", err)
	}
	td.Push("input tensor", func() { eng.ReleaseValue(input) })

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("before inference: %w", err)
	}

	_, _ = fmt.Fprintln(out, "Running inference...")

	outputs, err := eng.Run(session, []string{inputName}, []ort.Value{input}, []string{outputName})
	if err != nil {
		return fmt.Errorf("run inference: %w", err)
	}
	for i, v := range outputs {
		if v != 0 {
			td.Push(fmt.Sprintf("output tensor %d", i), func() { eng.ReleaseValue(v) })
		}
	}
	if len(outputs) != 1 || outputs[0] == 0 {
		return fmt.Errorf("run inference: expected one output value, got %d", len(outputs))
	}

	report.Inferred = true
	_, _ = fmt.Fprintln(out, "Inference completed successfully!")

	return extractOutput(eng, td, outputs[0], opts, report)
}

// extractOutput reads the output shape back from the value itself, since it
// can differ from anything known before the run, and copies the preview.
func extractOutput(eng Engine, td *Teardown, value ort.Value, opts ProbeOptions, report *Report) error {
	out := opts.Stdout

	data, err := eng.GetTensorMutableData(value)
	if err != nil {
		return fmt.Errorf("get output data: %w", err)
	}

	info, err := eng.GetTensorTypeAndShape(value)
	if err != nil {
		return fmt.Errorf("get output shape: %w", err)
	}
	td.Push("output tensor info", func() { eng.ReleaseTensorTypeAndShapeInfo(info) })

	elemType, dims, err := readShape(eng, info)
	if err != nil {
		return fmt.Errorf("get output dimensions: %w", err)
	}
	report.OutputType = elemType
	report.OutputShape = dims
	_, _ = fmt.Fprintf(out, "Output tensor shape: %s\n", FormatShape(dims))

	n, err := valueElementCount(dims)
	if err != nil {
		return fmt.Errorf("output element count: %w", err)
	}
	report.OutputElements = n

	if elemType != ort.TensorElementTypeFloat {
		return fmt.Errorf("output %q is %s, only float32 values can be previewed", report.OutputName, elemType)
	}

	k := min(opts.PreviewLimit, n)
	if k > 0 && data == nil {
		return fmt.Errorf("output %q has %d elements but no data", report.OutputName, n)
	}

	report.Preview = make([]float32, k)
	if k > 0 {
		copy(report.Preview, unsafe.Slice((*float32)(data), k))
	}

	_, _ = fmt.Fprintf(out, "Output values (first %d): %s\n", k, FormatValues(report.Preview))

	return nil
}

// valueElementCount is ElementCount for shapes reported by a live value,
// which may legitimately contain zero-sized dimensions.
func valueElementCount(shape []int64) (int, error) {
	for i, d := range shape {
		if d == 0 {
			return 0, nil
		}
		if d < 0 {
			return 0, fmt.Errorf("shape[%d]=%d is negative", i, d)
		}
	}

	return ElementCount(shape)
}

// FormatValues renders values with four decimals, space separated.
func FormatValues(values []float32) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.4f", v)
	}

	return strings.Join(parts, " ")
}
