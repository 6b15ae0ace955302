package ort

// apiBase mirrors OrtApiBase.
type apiBase struct {
	GetAPI           uintptr
	GetVersionString uintptr
}

// apiTable mirrors the leading slots of OrtApi. Only the prefix up to
// ReleaseCustomOpDomain is declared; the table in the library is longer and
// later versions only append to it.
type apiTable struct {
	CreateStatus                             uintptr
	GetErrorCode                             uintptr
	GetErrorMessage                          uintptr
	CreateEnv                                uintptr
	CreateEnvWithCustomLogger                uintptr
	EnableTelemetryEvents                    uintptr
	DisableTelemetryEvents                   uintptr
	CreateSession                            uintptr
	CreateSessionFromArray                   uintptr
	Run                                      uintptr
	CreateSessionOptions                     uintptr
	SetOptimizedModelFilePath                uintptr
	CloneSessionOptions                      uintptr
	SetSessionExecutionMode                  uintptr
	EnableProfiling                          uintptr
	DisableProfiling                         uintptr
	EnableMemPattern                         uintptr
	DisableMemPattern                        uintptr
	EnableCPUMemArena                        uintptr
	DisableCPUMemArena                       uintptr
	SetSessionLogID                          uintptr
	SetSessionLogVerbosityLevel              uintptr
	SetSessionLogSeverityLevel               uintptr
	SetSessionGraphOptimizationLevel         uintptr
	SetIntraOpNumThreads                     uintptr
	SetInterOpNumThreads                     uintptr
	CreateCustomOpDomain                     uintptr
	CustomOpDomainAdd                        uintptr
	AddCustomOpDomain                        uintptr
	RegisterCustomOpsLibrary                 uintptr
	SessionGetInputCount                     uintptr
	SessionGetOutputCount                    uintptr
	SessionGetOverridableInitializerCount    uintptr
	SessionGetInputTypeInfo                  uintptr
	SessionGetOutputTypeInfo                 uintptr
	SessionGetOverridableInitializerTypeInfo uintptr
	SessionGetInputName                      uintptr
	SessionGetOutputName                     uintptr
	SessionGetOverridableInitializerName     uintptr
	CreateRunOptions                         uintptr
	RunOptionsSetRunLogVerbosityLevel        uintptr
	RunOptionsSetRunLogSeverityLevel         uintptr
	RunOptionsSetRunTag                      uintptr
	RunOptionsGetRunLogVerbosityLevel        uintptr
	RunOptionsGetRunLogSeverityLevel         uintptr
	RunOptionsGetRunTag                      uintptr
	RunOptionsSetTerminate                   uintptr
	RunOptionsUnsetTerminate                 uintptr
	CreateTensorAsOrtValue                   uintptr
	CreateTensorWithDataAsOrtValue           uintptr
	IsTensor                                 uintptr
	GetTensorMutableData                     uintptr
	FillStringTensor                         uintptr
	GetStringTensorDataLength                uintptr
	GetStringTensorContent                   uintptr
	CastTypeInfoToTensorInfo                 uintptr
	GetOnnxTypeFromTypeInfo                  uintptr
	CreateTensorTypeAndShapeInfo             uintptr
	SetTensorElementType                     uintptr
	SetDimensions                            uintptr
	GetTensorElementType                     uintptr
	GetDimensionsCount                       uintptr
	GetDimensions                            uintptr
	GetSymbolicDimensions                    uintptr
	GetTensorShapeElementCount               uintptr
	GetTensorTypeAndShape                    uintptr
	GetTypeInfo                              uintptr
	GetValueType                             uintptr
	CreateMemoryInfo                         uintptr
	CreateCPUMemoryInfo                      uintptr
	CompareMemoryInfo                        uintptr
	MemoryInfoGetName                        uintptr
	MemoryInfoGetID                          uintptr
	MemoryInfoGetMemType                     uintptr
	MemoryInfoGetType                        uintptr
	AllocatorAlloc                           uintptr
	AllocatorFree                            uintptr
	AllocatorGetInfo                         uintptr
	GetAllocatorWithDefaultOptions           uintptr
	AddFreeDimensionOverride                 uintptr
	GetValue                                 uintptr
	GetValueCount                            uintptr
	CreateValue                              uintptr
	CreateOpaqueValue                        uintptr
	GetOpaqueValue                           uintptr
	KernelInfoGetAttributeFloat              uintptr
	KernelInfoGetAttributeInt64              uintptr
	KernelInfoGetAttributeString             uintptr
	KernelContextGetInputCount               uintptr
	KernelContextGetOutputCount              uintptr
	KernelContextGetInput                    uintptr
	KernelContextGetOutput                   uintptr
	ReleaseEnv                               uintptr
	ReleaseStatus                            uintptr
	ReleaseMemoryInfo                        uintptr
	ReleaseSession                           uintptr
	ReleaseValue                             uintptr
	ReleaseRunOptions                        uintptr
	ReleaseTypeInfo                          uintptr
	ReleaseTensorTypeAndShapeInfo            uintptr
	ReleaseSessionOptions                    uintptr
	ReleaseCustomOpDomain                    uintptr
}
