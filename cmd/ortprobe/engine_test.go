package main

import (
	"errors"
	"unsafe"

	"github.com/example/ortprobe/internal/onnx"
	"github.com/example/ortprobe/internal/ort"
)

var errRunFailed = errors.New("run rejected by engine")

// stubEngine is a one-input, one-output engine whose Run always fails. It
// counts handles so tests can check everything acquired was released.
type stubEngine struct {
	next uintptr
	live map[uintptr]bool
}

func newStubEngine() *stubEngine {
	return &stubEngine{live: map[uintptr]bool{}}
}

func (e *stubEngine) acquire() uintptr {
	e.next++
	e.live[e.next] = true
	return e.next
}

func (e *stubEngine) release(h uintptr) { delete(e.live, h) }

func (e *stubEngine) engineFunc() onnx.EngineFunc {
	return func() (onnx.Engine, error) { return e, nil }
}

func (e *stubEngine) CreateEnv(ort.LoggingLevel, string) (ort.Env, error) {
	return ort.Env(e.acquire()), nil
}
func (e *stubEngine) ReleaseEnv(env ort.Env) { e.release(uintptr(env)) }

func (e *stubEngine) CreateSessionOptions() (ort.SessionOptions, error) {
	return ort.SessionOptions(e.acquire()), nil
}
func (e *stubEngine) SetIntraOpNumThreads(ort.SessionOptions, int) error { return nil }
func (e *stubEngine) SetSessionGraphOptimizationLevel(ort.SessionOptions, ort.GraphOptimizationLevel) error {
	return nil
}
func (e *stubEngine) ReleaseSessionOptions(opts ort.SessionOptions) { e.release(uintptr(opts)) }

func (e *stubEngine) CreateSession(ort.Env, string, ort.SessionOptions) (ort.Session, error) {
	return ort.Session(e.acquire()), nil
}
func (e *stubEngine) ReleaseSession(s ort.Session) { e.release(uintptr(s)) }

func (e *stubEngine) GetAllocatorWithDefaultOptions() (ort.Allocator, error) { return 1, nil }

func (e *stubEngine) SessionGetInputCount(ort.Session) (int, error)  { return 1, nil }
func (e *stubEngine) SessionGetOutputCount(ort.Session) (int, error) { return 1, nil }
func (e *stubEngine) SessionGetInputName(ort.Session, int, ort.Allocator) (string, error) {
	return "x", nil
}
func (e *stubEngine) SessionGetOutputName(ort.Session, int, ort.Allocator) (string, error) {
	return "y", nil
}
func (e *stubEngine) SessionGetInputTypeInfo(ort.Session, int) (ort.TypeInfo, error) {
	return ort.TypeInfo(e.acquire()), nil
}
func (e *stubEngine) SessionGetOutputTypeInfo(ort.Session, int) (ort.TypeInfo, error) {
	return ort.TypeInfo(e.acquire()), nil
}
func (e *stubEngine) ReleaseTypeInfo(info ort.TypeInfo) { e.release(uintptr(info)) }

func (e *stubEngine) CastTypeInfoToTensorInfo(info ort.TypeInfo) (ort.TensorInfo, error) {
	return ort.TensorInfo(info), nil
}
func (e *stubEngine) GetTensorElementType(ort.TensorInfo) (ort.TensorElementType, error) {
	return ort.TensorElementTypeFloat, nil
}
func (e *stubEngine) GetDimensionsCount(ort.TensorInfo) (int, error) { return 2, nil }
func (e *stubEngine) GetDimensions(_ ort.TensorInfo, dims []int64) error {
	copy(dims, []int64{-1, 10})
	return nil
}
func (e *stubEngine) GetTensorTypeAndShape(ort.Value) (ort.TensorInfo, error) {
	return ort.TensorInfo(e.acquire()), nil
}
func (e *stubEngine) ReleaseTensorTypeAndShapeInfo(info ort.TensorInfo) { e.release(uintptr(info)) }

func (e *stubEngine) CreateCPUMemoryInfo(ort.AllocatorType, ort.MemType) (ort.MemoryInfo, error) {
	return ort.MemoryInfo(e.acquire()), nil
}
func (e *stubEngine) ReleaseMemoryInfo(info ort.MemoryInfo) { e.release(uintptr(info)) }

func (e *stubEngine) CreateTensorWithDataAsOrtValue(ort.MemoryInfo, unsafe.Pointer, uintptr, []int64, ort.TensorElementType) (ort.Value, error) {
	return ort.Value(e.acquire()), nil
}
func (e *stubEngine) Run(ort.Session, []string, []ort.Value, []string) ([]ort.Value, error) {
	return nil, &ort.Error{Op: "Run", Code: ort.ErrorCodeFail, Message: errRunFailed.Error()}
}
func (e *stubEngine) GetTensorMutableData(ort.Value) (unsafe.Pointer, error) { return nil, nil }
func (e *stubEngine) ReleaseValue(v ort.Value)                              { e.release(uintptr(v)) }

var _ onnx.Engine = (*stubEngine)(nil)
