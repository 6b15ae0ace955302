package onnx

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/example/ortprobe/internal/ort"
)

var errInjected = errors.New("injected failure")

// fakeEngine is an in-memory Engine that records every acquisition and
// release and can fail the nth call of any method.
type fakeEngine struct {
	inputCount  int
	outputCount int
	inputNames  []string
	outputNames []string
	inputDims   [][]int64
	outputDims  [][]int64
	inputType   ort.TensorElementType
	outputType  ort.TensorElementType
	runDims     []int64 // shape of the value Run produces; defaults to outputDims[0]
	runData     []float32

	failMethod string
	failCall   int // 1-based; 0 means first call

	calls     []string
	callCount map[string]int
	next      uintptr
	live      map[uintptr]string
	acquired  []string
	released  []string
	bad       []string // releases of unknown or already released handles
	infoDims  map[uintptr][]int64
	infoType  map[uintptr]ort.TensorElementType
	lastInput []float32
	lastShape []int64

	// indices passed to the per-slot queries, and the names Run was given
	inputNameIdx  []int
	outputNameIdx []int
	inputInfoIdx  []int
	outputInfoIdx []int
	runInputs     []string
	runOutputs    []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		inputCount:  1,
		outputCount: 1,
		inputNames:  []string{"input.1"},
		outputNames: []string{"logits"},
		inputDims:   [][]int64{{-1, 1, 28, 28}},
		outputDims:  [][]int64{{-1, 10}},
		inputType:   ort.TensorElementTypeFloat,
		outputType:  ort.TensorElementTypeFloat,
		runDims:     []int64{1, 10},
		callCount:   map[string]int{},
		live:        map[uintptr]string{},
		infoDims:    map[uintptr][]int64{},
		infoType:    map[uintptr]ort.TensorElementType{},
	}
}

func (f *fakeEngine) failing(on string, call int) *fakeEngine {
	f.failMethod = on
	f.failCall = call
	return f
}

// enter records a call and reports whether it must fail.
func (f *fakeEngine) enter(method string) error {
	f.calls = append(f.calls, method)
	f.callCount[method]++

	want := f.failCall
	if want == 0 {
		want = 1
	}
	if method == f.failMethod && f.callCount[method] == want {
		return &ort.Error{Op: method, Code: ort.ErrorCodeFail, Message: errInjected.Error()}
	}

	return nil
}

func (f *fakeEngine) acquire(kind string) uintptr {
	f.next++
	h := f.next
	f.live[h] = kind
	f.acquired = append(f.acquired, kind)
	return h
}

func (f *fakeEngine) release(method string, h uintptr) {
	f.calls = append(f.calls, method)
	kind, ok := f.live[h]
	if !ok {
		f.bad = append(f.bad, fmt.Sprintf("%s(%d)", method, h))
		return
	}
	delete(f.live, h)
	f.released = append(f.released, kind)
}

func (f *fakeEngine) called(method string) bool {
	return f.callCount[method] > 0
}

func (f *fakeEngine) CreateEnv(_ ort.LoggingLevel, _ string) (ort.Env, error) {
	if err := f.enter("CreateEnv"); err != nil {
		return 0, err
	}
	return ort.Env(f.acquire("env")), nil
}

func (f *fakeEngine) ReleaseEnv(env ort.Env) { f.release("ReleaseEnv", uintptr(env)) }

func (f *fakeEngine) CreateSessionOptions() (ort.SessionOptions, error) {
	if err := f.enter("CreateSessionOptions"); err != nil {
		return 0, err
	}
	return ort.SessionOptions(f.acquire("session options")), nil
}

func (f *fakeEngine) SetIntraOpNumThreads(_ ort.SessionOptions, _ int) error {
	return f.enter("SetIntraOpNumThreads")
}

func (f *fakeEngine) SetSessionGraphOptimizationLevel(_ ort.SessionOptions, _ ort.GraphOptimizationLevel) error {
	return f.enter("SetSessionGraphOptimizationLevel")
}

func (f *fakeEngine) ReleaseSessionOptions(opts ort.SessionOptions) {
	f.release("ReleaseSessionOptions", uintptr(opts))
}

func (f *fakeEngine) CreateSession(_ ort.Env, _ string, _ ort.SessionOptions) (ort.Session, error) {
	if err := f.enter("CreateSession"); err != nil {
		return 0, err
	}
	return ort.Session(f.acquire("session")), nil
}

func (f *fakeEngine) ReleaseSession(session ort.Session) {
	f.release("ReleaseSession", uintptr(session))
}

func (f *fakeEngine) GetAllocatorWithDefaultOptions() (ort.Allocator, error) {
	if err := f.enter("GetAllocatorWithDefaultOptions"); err != nil {
		return 0, err
	}
	// Borrowed: not tracked as a live resource.
	return ort.Allocator(0xA110C), nil
}

func (f *fakeEngine) SessionGetInputCount(_ ort.Session) (int, error) {
	if err := f.enter("SessionGetInputCount"); err != nil {
		return 0, err
	}
	return f.inputCount, nil
}

func (f *fakeEngine) SessionGetOutputCount(_ ort.Session) (int, error) {
	if err := f.enter("SessionGetOutputCount"); err != nil {
		return 0, err
	}
	return f.outputCount, nil
}

func (f *fakeEngine) SessionGetInputName(_ ort.Session, index int, _ ort.Allocator) (string, error) {
	f.inputNameIdx = append(f.inputNameIdx, index)
	if err := f.enter("SessionGetInputName"); err != nil {
		return "", err
	}
	return f.inputNames[index], nil
}

func (f *fakeEngine) SessionGetOutputName(_ ort.Session, index int, _ ort.Allocator) (string, error) {
	f.outputNameIdx = append(f.outputNameIdx, index)
	if err := f.enter("SessionGetOutputName"); err != nil {
		return "", err
	}
	return f.outputNames[index], nil
}

func (f *fakeEngine) SessionGetInputTypeInfo(_ ort.Session, index int) (ort.TypeInfo, error) {
	f.inputInfoIdx = append(f.inputInfoIdx, index)
	if err := f.enter("SessionGetInputTypeInfo"); err != nil {
		return 0, err
	}
	h := f.acquire("type info")
	f.infoDims[h] = f.inputDims[index]
	f.infoType[h] = f.inputType
	return ort.TypeInfo(h), nil
}

func (f *fakeEngine) SessionGetOutputTypeInfo(_ ort.Session, index int) (ort.TypeInfo, error) {
	f.outputInfoIdx = append(f.outputInfoIdx, index)
	if err := f.enter("SessionGetOutputTypeInfo"); err != nil {
		return 0, err
	}
	h := f.acquire("type info")
	f.infoDims[h] = f.outputDims[index]
	f.infoType[h] = f.outputType
	return ort.TypeInfo(h), nil
}

func (f *fakeEngine) ReleaseTypeInfo(info ort.TypeInfo) {
	f.release("ReleaseTypeInfo", uintptr(info))
}

func (f *fakeEngine) CastTypeInfoToTensorInfo(info ort.TypeInfo) (ort.TensorInfo, error) {
	if err := f.enter("CastTypeInfoToTensorInfo"); err != nil {
		return 0, err
	}
	// A view owned by the type info: same handle, nothing to release.
	return ort.TensorInfo(info), nil
}

func (f *fakeEngine) GetTensorElementType(info ort.TensorInfo) (ort.TensorElementType, error) {
	if err := f.enter("GetTensorElementType"); err != nil {
		return 0, err
	}
	return f.infoType[uintptr(info)], nil
}

func (f *fakeEngine) GetDimensionsCount(info ort.TensorInfo) (int, error) {
	if err := f.enter("GetDimensionsCount"); err != nil {
		return 0, err
	}
	return len(f.infoDims[uintptr(info)]), nil
}

func (f *fakeEngine) GetDimensions(info ort.TensorInfo, dims []int64) error {
	if err := f.enter("GetDimensions"); err != nil {
		return err
	}
	copy(dims, f.infoDims[uintptr(info)])
	return nil
}

func (f *fakeEngine) GetTensorTypeAndShape(value ort.Value) (ort.TensorInfo, error) {
	if err := f.enter("GetTensorTypeAndShape"); err != nil {
		return 0, err
	}
	h := f.acquire("output tensor info")
	f.infoDims[h] = f.runDims
	f.infoType[h] = f.outputType
	return ort.TensorInfo(h), nil
}

func (f *fakeEngine) ReleaseTensorTypeAndShapeInfo(info ort.TensorInfo) {
	f.release("ReleaseTensorTypeAndShapeInfo", uintptr(info))
}

func (f *fakeEngine) CreateCPUMemoryInfo(_ ort.AllocatorType, _ ort.MemType) (ort.MemoryInfo, error) {
	if err := f.enter("CreateCpuMemoryInfo"); err != nil {
		return 0, err
	}
	return ort.MemoryInfo(f.acquire("memory info")), nil
}

func (f *fakeEngine) ReleaseMemoryInfo(info ort.MemoryInfo) {
	f.release("ReleaseMemoryInfo", uintptr(info))
}

func (f *fakeEngine) CreateTensorWithDataAsOrtValue(_ ort.MemoryInfo, data unsafe.Pointer, byteLen uintptr, shape []int64, _ ort.TensorElementType) (ort.Value, error) {
	if err := f.enter("CreateTensorWithDataAsOrtValue"); err != nil {
		return 0, err
	}
	n := int(byteLen / unsafe.Sizeof(float32(0)))
	f.lastInput = append([]float32(nil), unsafe.Slice((*float32)(data), n)...)
	f.lastShape = append([]int64(nil), shape...)
	return ort.Value(f.acquire("input tensor")), nil
}

func (f *fakeEngine) Run(_ ort.Session, inputNames []string, inputs []ort.Value, outputNames []string) ([]ort.Value, error) {
	f.runInputs = append([]string(nil), inputNames...)
	f.runOutputs = append([]string(nil), outputNames...)
	if err := f.enter("Run"); err != nil {
		return nil, err
	}
	if len(inputNames) != 1 || len(inputs) != 1 || len(outputNames) != 1 {
		return nil, fmt.Errorf("fake: expected exactly one input and output")
	}
	if f.runData == nil {
		n, _ := valueElementCount(f.runDims)
		f.runData = make([]float32, n)
		for i := range f.runData {
			f.runData[i] = float32(i) / 10
		}
	}
	return []ort.Value{ort.Value(f.acquire("output tensor"))}, nil
}

func (f *fakeEngine) GetTensorMutableData(_ ort.Value) (unsafe.Pointer, error) {
	if err := f.enter("GetTensorMutableData"); err != nil {
		return nil, err
	}
	if len(f.runData) == 0 {
		return nil, nil
	}
	return unsafe.Pointer(unsafe.SliceData(f.runData)), nil
}

func (f *fakeEngine) ReleaseValue(value ort.Value) {
	f.release("ReleaseValue", uintptr(value))
}

func (f *fakeEngine) engineFunc() EngineFunc {
	return func() (Engine, error) { return f, nil }
}

var _ Engine = (*fakeEngine)(nil)
