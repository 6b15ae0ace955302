package onnx

import (
	"unsafe"

	"github.com/example/ortprobe/internal/ort"
)

// Engine is the slice of the ONNX Runtime C API the probe drives. *ort.API
// implements it; tests substitute a recording fake.
type Engine interface {
	CreateEnv(level ort.LoggingLevel, logID string) (ort.Env, error)
	ReleaseEnv(env ort.Env)

	CreateSessionOptions() (ort.SessionOptions, error)
	SetIntraOpNumThreads(opts ort.SessionOptions, n int) error
	SetSessionGraphOptimizationLevel(opts ort.SessionOptions, level ort.GraphOptimizationLevel) error
	ReleaseSessionOptions(opts ort.SessionOptions)

	CreateSession(env ort.Env, modelPath string, opts ort.SessionOptions) (ort.Session, error)
	ReleaseSession(session ort.Session)

	GetAllocatorWithDefaultOptions() (ort.Allocator, error)

	SessionGetInputCount(session ort.Session) (int, error)
	SessionGetOutputCount(session ort.Session) (int, error)
	SessionGetInputName(session ort.Session, index int, alloc ort.Allocator) (string, error)
	SessionGetOutputName(session ort.Session, index int, alloc ort.Allocator) (string, error)
	SessionGetInputTypeInfo(session ort.Session, index int) (ort.TypeInfo, error)
	SessionGetOutputTypeInfo(session ort.Session, index int) (ort.TypeInfo, error)
	ReleaseTypeInfo(info ort.TypeInfo)

	CastTypeInfoToTensorInfo(info ort.TypeInfo) (ort.TensorInfo, error)
	GetTensorElementType(info ort.TensorInfo) (ort.TensorElementType, error)
	GetDimensionsCount(info ort.TensorInfo) (int, error)
	GetDimensions(info ort.TensorInfo, dims []int64) error
	GetTensorTypeAndShape(value ort.Value) (ort.TensorInfo, error)
	ReleaseTensorTypeAndShapeInfo(info ort.TensorInfo)

	CreateCPUMemoryInfo(allocType ort.AllocatorType, memType ort.MemType) (ort.MemoryInfo, error)
	ReleaseMemoryInfo(info ort.MemoryInfo)

	CreateTensorWithDataAsOrtValue(info ort.MemoryInfo, data unsafe.Pointer, byteLen uintptr, shape []int64, elemType ort.TensorElementType) (ort.Value, error)
	Run(session ort.Session, inputNames []string, inputs []ort.Value, outputNames []string) ([]ort.Value, error)
	GetTensorMutableData(value ort.Value) (unsafe.Pointer, error)
	ReleaseValue(value ort.Value)
}

var _ Engine = (*ort.API)(nil)
