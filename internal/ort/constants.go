package ort

// DefaultAPIVersion is the OrtApi version requested when none is configured.
const DefaultAPIVersion uint32 = 23

// LoggingLevel is OrtLoggingLevel.
type LoggingLevel int32

const (
	LoggingLevelVerbose LoggingLevel = iota
	LoggingLevelInfo
	LoggingLevelWarning
	LoggingLevelError
	LoggingLevelFatal
)

func (l LoggingLevel) String() string {
	switch l {
	case LoggingLevelVerbose:
		return "verbose"
	case LoggingLevelInfo:
		return "info"
	case LoggingLevelWarning:
		return "warning"
	case LoggingLevelError:
		return "error"
	case LoggingLevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ErrorCode is OrtErrorCode.
type ErrorCode int32

const (
	ErrorCodeOK ErrorCode = iota
	ErrorCodeFail
	ErrorCodeInvalidArgument
	ErrorCodeNoSuchFile
	ErrorCodeNoModel
	ErrorCodeEngineError
	ErrorCodeRuntimeException
	ErrorCodeInvalidProtobuf
	ErrorCodeModelLoaded
	ErrorCodeNotImplemented
	ErrorCodeInvalidGraph
	ErrorCodeEPFail
)

// TensorElementType is ONNXTensorElementDataType.
type TensorElementType int32

const (
	TensorElementTypeUndefined TensorElementType = iota
	TensorElementTypeFloat
	TensorElementTypeUint8
	TensorElementTypeInt8
	TensorElementTypeUint16
	TensorElementTypeInt16
	TensorElementTypeInt32
	TensorElementTypeInt64
	TensorElementTypeString
	TensorElementTypeBool
	TensorElementTypeFloat16
	TensorElementTypeDouble
	TensorElementTypeUint32
	TensorElementTypeUint64
	TensorElementTypeComplex64
	TensorElementTypeComplex128
	TensorElementTypeBFloat16
)

var elementTypeNames = map[TensorElementType]string{
	TensorElementTypeUndefined:  "undefined",
	TensorElementTypeFloat:      "float32",
	TensorElementTypeUint8:      "uint8",
	TensorElementTypeInt8:       "int8",
	TensorElementTypeUint16:     "uint16",
	TensorElementTypeInt16:      "int16",
	TensorElementTypeInt32:      "int32",
	TensorElementTypeInt64:      "int64",
	TensorElementTypeString:     "string",
	TensorElementTypeBool:       "bool",
	TensorElementTypeFloat16:    "float16",
	TensorElementTypeDouble:     "float64",
	TensorElementTypeUint32:     "uint32",
	TensorElementTypeUint64:     "uint64",
	TensorElementTypeComplex64:  "complex64",
	TensorElementTypeComplex128: "complex128",
	TensorElementTypeBFloat16:   "bfloat16",
}

func (t TensorElementType) String() string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}

	return "unknown"
}

// AllocatorType is OrtAllocatorType.
type AllocatorType int32

const (
	AllocatorTypeInvalid AllocatorType = -1
	AllocatorTypeDevice  AllocatorType = 0
	AllocatorTypeArena   AllocatorType = 1
)

// MemType is OrtMemType.
type MemType int32

const (
	MemTypeCPUInput  MemType = -2
	MemTypeCPUOutput MemType = -1
	MemTypeCPU       MemType = MemTypeCPUOutput
	MemTypeDefault   MemType = 0
)

// GraphOptimizationLevel is GraphOptimizationLevel. ORT_ENABLE_ALL is 99 in
// the C enum, not 3.
type GraphOptimizationLevel int32

const (
	GraphOptimizationDisableAll GraphOptimizationLevel = 0
	GraphOptimizationBasic      GraphOptimizationLevel = 1
	GraphOptimizationExtended   GraphOptimizationLevel = 2
	GraphOptimizationAll        GraphOptimizationLevel = 99
)

func (l GraphOptimizationLevel) String() string {
	switch l {
	case GraphOptimizationDisableAll:
		return "disable"
	case GraphOptimizationBasic:
		return "basic"
	case GraphOptimizationExtended:
		return "extended"
	case GraphOptimizationAll:
		return "all"
	default:
		return "unknown"
	}
}
