package onnx

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"unsafe"
)

// UnboundDim is the engine's marker for a dimension the model leaves open.
const UnboundDim int64 = -1

// MaxHostBufferElements caps placeholder buffers at 1 GiB of float32.
const MaxHostBufferElements = 1 << 28

// ResolveShape applies the placeholder policy to a declared shape: every
// UnboundDim becomes 1 and every other entry is kept. It returns the resolved
// copy and the indices that were rewritten. Negative entries other than
// UnboundDim are rejected. A static 0 is rejected too rather than passed
// through as an empty tensor, so the resolved shape is always strictly
// positive.
func ResolveShape(shape []int64) ([]int64, []int, error) {
	resolved := make([]int64, len(shape))

	var rewritten []int
	for i, dim := range shape {
		switch {
		case dim == UnboundDim:
			resolved[i] = 1
			rewritten = append(rewritten, i)
		case dim < 1:
			return nil, nil, fmt.Errorf("shape %v: dimension %d is %d, want a positive size or %d", shape, i, dim, UnboundDim)
		default:
			resolved[i] = dim
		}
	}

	return resolved, rewritten, nil
}

// ElementCount returns the product of a resolved shape. A rank-0 shape is a
// scalar holding one element.
func ElementCount(shape []int64) (int, error) {
	count := int64(1)
	for i, dim := range shape {
		if dim < 1 {
			return 0, fmt.Errorf("shape[%d]=%d is not positive", i, dim)
		}
		if count > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}
		count *= dim
	}
	if count > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", shape)
	}

	return int(count), nil
}

// AllocationError reports that a host buffer could not be provided.
type AllocationError struct {
	Elements int
	Reason   string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate host buffer of %d float32 elements: %s", e.Elements, e.Reason)
}

// HostBuffer is driver-owned float32 storage that an input tensor value
// borrows. It stays pinned from Pin until Release so the engine can read it.
type HostBuffer struct {
	data   []float32
	pinner runtime.Pinner
	pinned bool
}

// NewHostBuffer allocates n zeroed float32 elements.
func NewHostBuffer(n int) (*HostBuffer, error) {
	if n < 1 {
		return nil, &AllocationError{Elements: n, Reason: "element count must be positive"}
	}
	if n > MaxHostBufferElements {
		return nil, &AllocationError{Elements: n, Reason: fmt.Sprintf("exceeds limit of %d elements", MaxHostBufferElements)}
	}

	return &HostBuffer{data: make([]float32, n)}, nil
}

// Data returns the backing slice.
func (b *HostBuffer) Data() []float32 { return b.data }

// Len is the element count.
func (b *HostBuffer) Len() int { return len(b.data) }

// ByteLen is the buffer size in bytes.
func (b *HostBuffer) ByteLen() uintptr {
	return uintptr(len(b.data)) * unsafe.Sizeof(float32(0))
}

// Pin fixes the buffer in memory and returns the address of its first element.
func (b *HostBuffer) Pin() unsafe.Pointer {
	first := unsafe.SliceData(b.data)
	if !b.pinned {
		b.pinner.Pin(first)
		b.pinned = true
	}

	return unsafe.Pointer(first)
}

// Release unpins and drops the storage. It is safe to call more than once.
func (b *HostBuffer) Release() {
	if b.pinned {
		b.pinner.Unpin()
		b.pinned = false
	}
	b.data = nil
}

// FillPlaceholder overwrites dst with reproducible values in [0, 1): one
// Float32 draw per element, in element order, from a PCG generator seeded
// with (seed, 0).
func FillPlaceholder(dst []float32, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, 0))
	for i := range dst {
		dst[i] = rng.Float32()
	}
}
