package onnx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/example/ortprobe/internal/ort"
)

// Slot selects the input or output side of a session signature.
type Slot int

const (
	SlotInput Slot = iota
	SlotOutput
)

func (s Slot) String() string {
	if s == SlotOutput {
		return "output"
	}

	return "input"
}

// TensorSignature is the declared contract of one model input or output.
// Shape entries equal to UnboundDim are left open by the model.
type TensorSignature struct {
	Name        string
	ElementType ort.TensorElementType
	Shape       []int64
}

// FormatShape renders a shape as "[a, b, c]".
func FormatShape(shape []int64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.FormatInt(d, 10)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// slotCount returns how many tensors the session declares on one side.
func slotCount(eng Engine, session ort.Session, slot Slot) (int, error) {
	if slot == SlotOutput {
		return eng.SessionGetOutputCount(session)
	}

	return eng.SessionGetInputCount(session)
}

// slotName returns the name of tensor index on one side of the session.
func slotName(eng Engine, session ort.Session, slot Slot, index int, alloc ort.Allocator) (string, error) {
	if slot == SlotOutput {
		return eng.SessionGetOutputName(session, index, alloc)
	}

	return eng.SessionGetInputName(session, index, alloc)
}

// slotTypeInfo acquires the type info of tensor index and registers its
// release on td. The tensor info view it yields is owned by the type info.
func slotTypeInfo(eng Engine, td *Teardown, session ort.Session, slot Slot, index int) (ort.TensorInfo, error) {
	var (
		info ort.TypeInfo
		err  error
	)
	if slot == SlotOutput {
		info, err = eng.SessionGetOutputTypeInfo(session, index)
	} else {
		info, err = eng.SessionGetInputTypeInfo(session, index)
	}
	if err != nil {
		return 0, err
	}
	td.Push(fmt.Sprintf("%s %d type info", slot, index), func() { eng.ReleaseTypeInfo(info) })

	tensorInfo, err := eng.CastTypeInfoToTensorInfo(info)
	if err != nil {
		return 0, err
	}

	return tensorInfo, nil
}

// readShape queries element type and dimensions from a tensor info.
func readShape(eng Engine, info ort.TensorInfo) (ort.TensorElementType, []int64, error) {
	elemType, err := eng.GetTensorElementType(info)
	if err != nil {
		return ort.TensorElementTypeUndefined, nil, err
	}

	n, err := eng.GetDimensionsCount(info)
	if err != nil {
		return elemType, nil, err
	}

	dims := make([]int64, n)
	if err := eng.GetDimensions(info, dims); err != nil {
		return elemType, nil, err
	}

	return elemType, dims, nil
}

// introspect reads the full signature of tensor index on one side.
func introspect(eng Engine, td *Teardown, session ort.Session, alloc ort.Allocator, slot Slot, index int) (TensorSignature, error) {
	name, err := slotName(eng, session, slot, index, alloc)
	if err != nil {
		return TensorSignature{}, fmt.Errorf("%s %d name: %w", slot, index, err)
	}

	sig := TensorSignature{Name: name}

	info, err := slotTypeInfo(eng, td, session, slot, index)
	if err != nil {
		return sig, fmt.Errorf("%s %q type info: %w", slot, name, err)
	}

	elemType, dims, err := readShape(eng, info)
	if err != nil {
		return sig, fmt.Errorf("%s %q shape: %w", slot, name, err)
	}

	sig.ElementType = elemType
	sig.Shape = dims

	return sig, nil
}
