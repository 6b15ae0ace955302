package model

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"google.golang.org/protobuf/encoding/protowire"
)

// MaxHeaderFileSize bounds how much of a model file ReadHeader loads.
const MaxHeaderFileSize = 1 << 30

// Opset is one operator set the model imports.
type Opset struct {
	Domain  string
	Version int64
}

// Header is the part of an ONNX ModelProto that describes the model without
// running it.
type Header struct {
	IRVersion       int64
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	Opsets          []Opset
	GraphName       string
	NodeCount       int
	Initializers    int
	Inputs          []string
	Outputs         []string
}

// DefaultOpset returns the version of the default ("" or "ai.onnx") domain,
// or 0 when the model does not import it.
func (h Header) DefaultOpset() int64 {
	for _, o := range h.Opsets {
		if o.Domain == "" || o.Domain == "ai.onnx" {
			return o.Version
		}
	}

	return 0
}

// ErrNotONNX reports bytes that do not decode as a ModelProto.
var ErrNotONNX = errors.New("not an ONNX model")

// ModelProto, GraphProto and friends, by field number.
const (
	fieldIRVersion       protowire.Number = 1
	fieldProducerName    protowire.Number = 2
	fieldProducerVersion protowire.Number = 3
	fieldDomain          protowire.Number = 4
	fieldModelVersion    protowire.Number = 5
	fieldGraph           protowire.Number = 7
	fieldOpsetImport     protowire.Number = 8

	fieldOpsetDomain  protowire.Number = 1
	fieldOpsetVersion protowire.Number = 2

	fieldGraphNode        protowire.Number = 1
	fieldGraphName        protowire.Number = 2
	fieldGraphInitializer protowire.Number = 5
	fieldGraphInput       protowire.Number = 11
	fieldGraphOutput      protowire.Number = 12

	fieldValueInfoName protowire.Number = 1
)

// ReadHeader decodes the header of the model file at path on fsys.
func ReadHeader(fsys afero.Fs, path string) (Header, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxHeaderFileSize+1))
	if err != nil {
		return Header{}, fmt.Errorf("read model: %w", err)
	}
	if len(data) > MaxHeaderFileSize {
		return Header{}, fmt.Errorf("model %s exceeds %d bytes", path, MaxHeaderFileSize)
	}

	h, err := DecodeHeader(data)
	if err != nil {
		return Header{}, fmt.Errorf("%s: %w", path, err)
	}

	return h, nil
}

// DecodeHeader decodes a serialized ModelProto. Fields it does not describe
// are skipped.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) == 0 {
		return Header{}, fmt.Errorf("%w: empty input", ErrNotONNX)
	}

	var h Header
	sawGraph := false

	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v fieldValue) error {
		switch {
		case num == fieldIRVersion && typ == protowire.VarintType:
			h.IRVersion = int64(v.varint)
		case num == fieldProducerName && typ == protowire.BytesType:
			h.ProducerName = string(v.bytes)
		case num == fieldProducerVersion && typ == protowire.BytesType:
			h.ProducerVersion = string(v.bytes)
		case num == fieldDomain && typ == protowire.BytesType:
			h.Domain = string(v.bytes)
		case num == fieldModelVersion && typ == protowire.VarintType:
			h.ModelVersion = int64(v.varint)
		case num == fieldOpsetImport && typ == protowire.BytesType:
			o, err := decodeOpset(v.bytes)
			if err != nil {
				return fmt.Errorf("opset_import: %w", err)
			}
			h.Opsets = append(h.Opsets, o)
		case num == fieldGraph && typ == protowire.BytesType:
			sawGraph = true
			if err := decodeGraph(v.bytes, &h); err != nil {
				return fmt.Errorf("graph: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrNotONNX, err)
	}

	if h.IRVersion == 0 || !sawGraph {
		return Header{}, fmt.Errorf("%w: missing ir_version or graph", ErrNotONNX)
	}

	return h, nil
}

func decodeOpset(data []byte) (Opset, error) {
	var o Opset
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v fieldValue) error {
		switch {
		case num == fieldOpsetDomain && typ == protowire.BytesType:
			o.Domain = string(v.bytes)
		case num == fieldOpsetVersion && typ == protowire.VarintType:
			o.Version = int64(v.varint)
		}
		return nil
	})

	return o, err
}

func decodeGraph(data []byte, h *Header) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, v fieldValue) error {
		if typ != protowire.BytesType {
			return nil
		}

		switch num {
		case fieldGraphNode:
			h.NodeCount++
		case fieldGraphName:
			h.GraphName = string(v.bytes)
		case fieldGraphInitializer:
			h.Initializers++
		case fieldGraphInput, fieldGraphOutput:
			name, err := valueInfoName(v.bytes)
			if err != nil {
				return err
			}
			if num == fieldGraphInput {
				h.Inputs = append(h.Inputs, name)
			} else {
				h.Outputs = append(h.Outputs, name)
			}
		}

		return nil
	})
}

func valueInfoName(data []byte) (string, error) {
	var name string
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v fieldValue) error {
		if num == fieldValueInfoName && typ == protowire.BytesType {
			name = string(v.bytes)
		}
		return nil
	})

	return name, err
}

type fieldValue struct {
	varint uint64
	bytes  []byte
}

// walkFields calls fn for each top-level field of a message.
func walkFields(data []byte, fn func(protowire.Number, protowire.Type, fieldValue) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		var v fieldValue
		switch typ {
		case protowire.VarintType:
			v.varint, n = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			v.bytes, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		if err := fn(num, typ, v); err != nil {
			return err
		}
	}

	return nil
}
