// Package ort binds the subset of the ONNX Runtime C API that the probe needs.
// Calls go through purego, so no cgo toolchain is required.
package ort

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Opaque engine handles. The zero value is the null handle.
type (
	Env            uintptr
	SessionOptions uintptr
	Session        uintptr
	Allocator      uintptr
	TypeInfo       uintptr
	TensorInfo     uintptr
	MemoryInfo     uintptr
	Value          uintptr
)

// API is a loaded OrtApi dispatch table.
type API struct {
	library    uintptr
	apiVersion uint32
	version    string

	getErrorCode    func(status uintptr) int32
	getErrorMessage func(status uintptr) uintptr
	releaseStatus   func(status uintptr)

	createEnv  func(level int32, logID *byte, out *uintptr) uintptr
	releaseEnv func(env uintptr)

	createSessionOptions             func(out *uintptr) uintptr
	setIntraOpNumThreads             func(opts uintptr, n int32) uintptr
	setSessionGraphOptimizationLevel func(opts uintptr, level int32) uintptr
	releaseSessionOptions            func(opts uintptr)

	createSession  func(env uintptr, path uintptr, opts uintptr, out *uintptr) uintptr
	releaseSession func(session uintptr)

	getAllocatorWithDefaultOptions func(out *uintptr) uintptr
	allocatorFree                  func(alloc uintptr, p uintptr) uintptr

	sessionGetInputCount     func(session uintptr, out *uintptr) uintptr
	sessionGetOutputCount    func(session uintptr, out *uintptr) uintptr
	sessionGetInputName      func(session uintptr, index uintptr, alloc uintptr, out *uintptr) uintptr
	sessionGetOutputName     func(session uintptr, index uintptr, alloc uintptr, out *uintptr) uintptr
	sessionGetInputTypeInfo  func(session uintptr, index uintptr, out *uintptr) uintptr
	sessionGetOutputTypeInfo func(session uintptr, index uintptr, out *uintptr) uintptr
	releaseTypeInfo          func(info uintptr)

	castTypeInfoToTensorInfo      func(info uintptr, out *uintptr) uintptr
	getTensorElementType          func(info uintptr, out *int32) uintptr
	getDimensionsCount            func(info uintptr, out *uintptr) uintptr
	getDimensions                 func(info uintptr, dims *int64, n uintptr) uintptr
	getTensorTypeAndShape         func(value uintptr, out *uintptr) uintptr
	releaseTensorTypeAndShapeInfo func(info uintptr)

	createCPUMemoryInfo func(allocType int32, memType int32, out *uintptr) uintptr
	releaseMemoryInfo   func(info uintptr)

	createTensorWithDataAsOrtValue func(info uintptr, data unsafe.Pointer, dataLen uintptr, shape *int64, shapeLen uintptr, elemType int32, out *uintptr) uintptr
	getTensorMutableData           func(value uintptr, out *unsafe.Pointer) uintptr
	releaseValue                   func(value uintptr)

	run func(session uintptr, runOpts uintptr, inputNames *uintptr, inputs *uintptr, inputLen uintptr, outputNames *uintptr, outputLen uintptr, outputs *uintptr) uintptr
}

// Load opens the runtime library at libraryPath and fetches the dispatch
// table for apiVersion. A zero apiVersion selects DefaultAPIVersion.
func Load(libraryPath string, apiVersion uint32) (*API, error) {
	if apiVersion == 0 {
		apiVersion = DefaultAPIVersion
	}

	lib, err := openLibrary(libraryPath)
	if err != nil {
		return nil, fmt.Errorf("open onnx runtime library %q: %w", libraryPath, err)
	}

	sym, err := lookupSymbol(lib, "OrtGetApiBase")
	if err != nil {
		_ = closeLibrary(lib)
		return nil, fmt.Errorf("resolve OrtGetApiBase in %q: %w", libraryPath, err)
	}

	var getAPIBase func() uintptr
	purego.RegisterFunc(&getAPIBase, sym)

	basePtr := getAPIBase()
	if basePtr == 0 {
		_ = closeLibrary(lib)
		return nil, fmt.Errorf("OrtGetApiBase returned null in %q", libraryPath)
	}

	// #nosec G103 -- OrtApiBase is a static struct owned by the library.
	base := (*apiBase)(unsafe.Pointer(basePtr))

	var (
		getAPI           func(version uint32) uintptr
		getVersionString func() uintptr
	)
	purego.RegisterFunc(&getAPI, base.GetAPI)
	purego.RegisterFunc(&getVersionString, base.GetVersionString)

	version := cStringToGo(getVersionString())

	tablePtr := getAPI(apiVersion)
	if tablePtr == 0 {
		_ = closeLibrary(lib)
		return nil, fmt.Errorf("%w: api %d, runtime %s", ErrUnsupportedAPIVersion, apiVersion, version)
	}

	a := &API{
		library:    lib,
		apiVersion: apiVersion,
		version:    version,
	}
	// #nosec G103 -- OrtApi is a static table owned by the library.
	a.bind((*apiTable)(unsafe.Pointer(tablePtr)))

	return a, nil
}

func (a *API) bind(t *apiTable) {
	purego.RegisterFunc(&a.getErrorCode, t.GetErrorCode)
	purego.RegisterFunc(&a.getErrorMessage, t.GetErrorMessage)
	purego.RegisterFunc(&a.releaseStatus, t.ReleaseStatus)

	purego.RegisterFunc(&a.createEnv, t.CreateEnv)
	purego.RegisterFunc(&a.releaseEnv, t.ReleaseEnv)

	purego.RegisterFunc(&a.createSessionOptions, t.CreateSessionOptions)
	purego.RegisterFunc(&a.setIntraOpNumThreads, t.SetIntraOpNumThreads)
	purego.RegisterFunc(&a.setSessionGraphOptimizationLevel, t.SetSessionGraphOptimizationLevel)
	purego.RegisterFunc(&a.releaseSessionOptions, t.ReleaseSessionOptions)

	purego.RegisterFunc(&a.createSession, t.CreateSession)
	purego.RegisterFunc(&a.releaseSession, t.ReleaseSession)

	purego.RegisterFunc(&a.getAllocatorWithDefaultOptions, t.GetAllocatorWithDefaultOptions)
	purego.RegisterFunc(&a.allocatorFree, t.AllocatorFree)

	purego.RegisterFunc(&a.sessionGetInputCount, t.SessionGetInputCount)
	purego.RegisterFunc(&a.sessionGetOutputCount, t.SessionGetOutputCount)
	purego.RegisterFunc(&a.sessionGetInputName, t.SessionGetInputName)
	purego.RegisterFunc(&a.sessionGetOutputName, t.SessionGetOutputName)
	purego.RegisterFunc(&a.sessionGetInputTypeInfo, t.SessionGetInputTypeInfo)
	purego.RegisterFunc(&a.sessionGetOutputTypeInfo, t.SessionGetOutputTypeInfo)
	purego.RegisterFunc(&a.releaseTypeInfo, t.ReleaseTypeInfo)

	purego.RegisterFunc(&a.castTypeInfoToTensorInfo, t.CastTypeInfoToTensorInfo)
	purego.RegisterFunc(&a.getTensorElementType, t.GetTensorElementType)
	purego.RegisterFunc(&a.getDimensionsCount, t.GetDimensionsCount)
	purego.RegisterFunc(&a.getDimensions, t.GetDimensions)
	purego.RegisterFunc(&a.getTensorTypeAndShape, t.GetTensorTypeAndShape)
	purego.RegisterFunc(&a.releaseTensorTypeAndShapeInfo, t.ReleaseTensorTypeAndShapeInfo)

	purego.RegisterFunc(&a.createCPUMemoryInfo, t.CreateCPUMemoryInfo)
	purego.RegisterFunc(&a.releaseMemoryInfo, t.ReleaseMemoryInfo)

	purego.RegisterFunc(&a.createTensorWithDataAsOrtValue, t.CreateTensorWithDataAsOrtValue)
	purego.RegisterFunc(&a.getTensorMutableData, t.GetTensorMutableData)
	purego.RegisterFunc(&a.releaseValue, t.ReleaseValue)

	purego.RegisterFunc(&a.run, t.Run)
}

// Version returns the runtime's version string, e.g. "1.23.2".
func (a *API) Version() string { return a.version }

// APIVersion returns the dispatch table version that was requested.
func (a *API) APIVersion() uint32 { return a.apiVersion }

// ---------------------------------------------------------------------------
// Environment and session options
// ---------------------------------------------------------------------------

func (a *API) CreateEnv(level LoggingLevel, logID string) (Env, error) {
	id := cString(logID)

	var out uintptr
	if err := a.statusError("CreateEnv", a.createEnv(int32(level), &id[0], &out)); err != nil {
		return 0, err
	}

	return Env(out), nil
}

func (a *API) ReleaseEnv(env Env) {
	if env != 0 {
		a.releaseEnv(uintptr(env))
	}
}

func (a *API) CreateSessionOptions() (SessionOptions, error) {
	var out uintptr
	if err := a.statusError("CreateSessionOptions", a.createSessionOptions(&out)); err != nil {
		return 0, err
	}

	return SessionOptions(out), nil
}

func (a *API) SetIntraOpNumThreads(opts SessionOptions, n int) error {
	return a.statusError("SetIntraOpNumThreads", a.setIntraOpNumThreads(uintptr(opts), int32(n)))
}

func (a *API) SetSessionGraphOptimizationLevel(opts SessionOptions, level GraphOptimizationLevel) error {
	return a.statusError("SetSessionGraphOptimizationLevel", a.setSessionGraphOptimizationLevel(uintptr(opts), int32(level)))
}

func (a *API) ReleaseSessionOptions(opts SessionOptions) {
	if opts != 0 {
		a.releaseSessionOptions(uintptr(opts))
	}
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

// CreateSession loads the model at modelPath. The path is converted to the
// platform's ORTCHAR_T encoding first.
func (a *API) CreateSession(env Env, modelPath string, opts SessionOptions) (Session, error) {
	path, err := encodePath(modelPath)
	if err != nil {
		return 0, fmt.Errorf("CreateSession: %w", err)
	}
	defer path.release()

	var out uintptr
	if err := a.statusError("CreateSession", a.createSession(uintptr(env), path.ptr, uintptr(opts), &out)); err != nil {
		return 0, err
	}

	return Session(out), nil
}

func (a *API) ReleaseSession(session Session) {
	if session != 0 {
		a.releaseSession(uintptr(session))
	}
}

// GetAllocatorWithDefaultOptions returns the engine's shared CPU allocator.
// It is owned by the engine and must never be released.
func (a *API) GetAllocatorWithDefaultOptions() (Allocator, error) {
	var out uintptr
	if err := a.statusError("GetAllocatorWithDefaultOptions", a.getAllocatorWithDefaultOptions(&out)); err != nil {
		return 0, err
	}

	return Allocator(out), nil
}

func (a *API) SessionGetInputCount(session Session) (int, error) {
	var n uintptr
	if err := a.statusError("SessionGetInputCount", a.sessionGetInputCount(uintptr(session), &n)); err != nil {
		return 0, err
	}

	return int(n), nil
}

func (a *API) SessionGetOutputCount(session Session) (int, error) {
	var n uintptr
	if err := a.statusError("SessionGetOutputCount", a.sessionGetOutputCount(uintptr(session), &n)); err != nil {
		return 0, err
	}

	return int(n), nil
}

// SessionGetInputName returns the name of input index. The engine allocates
// the name through alloc; it is copied and handed back to alloc before return.
func (a *API) SessionGetInputName(session Session, index int, alloc Allocator) (string, error) {
	var ptr uintptr
	if err := a.statusError("SessionGetInputName", a.sessionGetInputName(uintptr(session), uintptr(index), uintptr(alloc), &ptr)); err != nil {
		return "", err
	}

	return a.takeAllocatedString("SessionGetInputName", alloc, ptr)
}

// SessionGetOutputName is SessionGetInputName for outputs.
func (a *API) SessionGetOutputName(session Session, index int, alloc Allocator) (string, error) {
	var ptr uintptr
	if err := a.statusError("SessionGetOutputName", a.sessionGetOutputName(uintptr(session), uintptr(index), uintptr(alloc), &ptr)); err != nil {
		return "", err
	}

	return a.takeAllocatedString("SessionGetOutputName", alloc, ptr)
}

func (a *API) takeAllocatedString(op string, alloc Allocator, ptr uintptr) (string, error) {
	s := cStringToGo(ptr)
	if ptr == 0 {
		return s, nil
	}

	if err := a.statusError(op+": AllocatorFree", a.allocatorFree(uintptr(alloc), ptr)); err != nil {
		return s, err
	}

	return s, nil
}

func (a *API) SessionGetInputTypeInfo(session Session, index int) (TypeInfo, error) {
	var out uintptr
	if err := a.statusError("SessionGetInputTypeInfo", a.sessionGetInputTypeInfo(uintptr(session), uintptr(index), &out)); err != nil {
		return 0, err
	}

	return TypeInfo(out), nil
}

func (a *API) SessionGetOutputTypeInfo(session Session, index int) (TypeInfo, error) {
	var out uintptr
	if err := a.statusError("SessionGetOutputTypeInfo", a.sessionGetOutputTypeInfo(uintptr(session), uintptr(index), &out)); err != nil {
		return 0, err
	}

	return TypeInfo(out), nil
}

func (a *API) ReleaseTypeInfo(info TypeInfo) {
	if info != 0 {
		a.releaseTypeInfo(uintptr(info))
	}
}

// ---------------------------------------------------------------------------
// Type and shape queries
// ---------------------------------------------------------------------------

// CastTypeInfoToTensorInfo returns a view into info. The result is owned by
// info and must not be released on its own.
func (a *API) CastTypeInfoToTensorInfo(info TypeInfo) (TensorInfo, error) {
	var out uintptr
	if err := a.statusError("CastTypeInfoToTensorInfo", a.castTypeInfoToTensorInfo(uintptr(info), &out)); err != nil {
		return 0, err
	}

	if out == 0 {
		return 0, &Error{Op: "CastTypeInfoToTensorInfo", Code: ErrorCodeInvalidArgument, Message: "value is not a tensor"}
	}

	return TensorInfo(out), nil
}

func (a *API) GetTensorElementType(info TensorInfo) (TensorElementType, error) {
	var t int32
	if err := a.statusError("GetTensorElementType", a.getTensorElementType(uintptr(info), &t)); err != nil {
		return TensorElementTypeUndefined, err
	}

	return TensorElementType(t), nil
}

func (a *API) GetDimensionsCount(info TensorInfo) (int, error) {
	var n uintptr
	if err := a.statusError("GetDimensionsCount", a.getDimensionsCount(uintptr(info), &n)); err != nil {
		return 0, err
	}

	return int(n), nil
}

// GetDimensions fills dims, whose length must equal GetDimensionsCount.
func (a *API) GetDimensions(info TensorInfo, dims []int64) error {
	var first *int64
	if len(dims) > 0 {
		first = &dims[0]
	}

	return a.statusError("GetDimensions", a.getDimensions(uintptr(info), first, uintptr(len(dims))))
}

func (a *API) GetTensorTypeAndShape(value Value) (TensorInfo, error) {
	var out uintptr
	if err := a.statusError("GetTensorTypeAndShape", a.getTensorTypeAndShape(uintptr(value), &out)); err != nil {
		return 0, err
	}

	return TensorInfo(out), nil
}

func (a *API) ReleaseTensorTypeAndShapeInfo(info TensorInfo) {
	if info != 0 {
		a.releaseTensorTypeAndShapeInfo(uintptr(info))
	}
}

// ---------------------------------------------------------------------------
// Memory and values
// ---------------------------------------------------------------------------

func (a *API) CreateCPUMemoryInfo(allocType AllocatorType, memType MemType) (MemoryInfo, error) {
	var out uintptr
	if err := a.statusError("CreateCpuMemoryInfo", a.createCPUMemoryInfo(int32(allocType), int32(memType), &out)); err != nil {
		return 0, err
	}

	return MemoryInfo(out), nil
}

func (a *API) ReleaseMemoryInfo(info MemoryInfo) {
	if info != 0 {
		a.releaseMemoryInfo(uintptr(info))
	}
}

// CreateTensorWithDataAsOrtValue wraps byteLen bytes at data as a tensor
// without copying. The caller keeps data alive and pinned until the value is
// released.
func (a *API) CreateTensorWithDataAsOrtValue(info MemoryInfo, data unsafe.Pointer, byteLen uintptr, shape []int64, elemType TensorElementType) (Value, error) {
	var first *int64
	if len(shape) > 0 {
		first = &shape[0]
	}

	var out uintptr
	status := a.createTensorWithDataAsOrtValue(uintptr(info), data, byteLen, first, uintptr(len(shape)), int32(elemType), &out)
	if err := a.statusError("CreateTensorWithDataAsOrtValue", status); err != nil {
		return 0, err
	}

	return Value(out), nil
}

// GetTensorMutableData returns the address of the tensor's first element.
func (a *API) GetTensorMutableData(value Value) (unsafe.Pointer, error) {
	var out unsafe.Pointer
	if err := a.statusError("GetTensorMutableData", a.getTensorMutableData(uintptr(value), &out)); err != nil {
		return nil, err
	}

	return out, nil
}

func (a *API) ReleaseValue(value Value) {
	if value != 0 {
		a.releaseValue(uintptr(value))
	}
}

// Run executes one forward pass with default run options. On success it
// returns one value per output name; the caller releases them.
func (a *API) Run(session Session, inputNames []string, inputs []Value, outputNames []string) ([]Value, error) {
	if len(inputNames) != len(inputs) {
		return nil, fmt.Errorf("Run: %d input names for %d inputs", len(inputNames), len(inputs))
	}

	if len(inputs) == 0 || len(outputNames) == 0 {
		return nil, fmt.Errorf("Run: at least one input and one output are required")
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()

	inNames := cStringArray(&pinner, inputNames)
	outNames := cStringArray(&pinner, outputNames)

	inValues := make([]uintptr, len(inputs))
	for i, v := range inputs {
		inValues[i] = uintptr(v)
	}

	outValues := make([]uintptr, len(outputNames))

	status := a.run(
		uintptr(session), 0,
		&inNames[0], &inValues[0], uintptr(len(inValues)),
		&outNames[0], uintptr(len(outNames)), &outValues[0],
	)
	if err := a.statusError("Run", status); err != nil {
		return nil, err
	}

	outs := make([]Value, len(outValues))
	for i, v := range outValues {
		outs[i] = Value(v)
	}

	return outs, nil
}

// cStringArray builds a const char* const* array. Each string buffer is
// pinned so the addresses stored as uintptr stay valid during the call.
func cStringArray(pinner *runtime.Pinner, names []string) []uintptr {
	ptrs := make([]uintptr, len(names))
	for i, name := range names {
		b := cString(name)
		pinner.Pin(&b[0])
		// #nosec G103 -- Pinned buffer handed to the engine for the duration of Run.
		ptrs[i] = uintptr(unsafe.Pointer(&b[0]))
	}

	return ptrs
}
