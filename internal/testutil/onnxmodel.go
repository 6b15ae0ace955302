package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// ONNX element type codes used by fixtures.
const (
	ElemFloat int32 = 1
	ElemInt64 int32 = 7
)

// Dim is one dimension of a fixture tensor: a fixed size or a named
// symbolic one.
type Dim struct {
	Value int64
	Param string
}

// Fixed returns a dimension of size n.
func Fixed(n int64) Dim { return Dim{Value: n} }

// Symbolic returns a dimension the model leaves open under name.
func Symbolic(name string) Dim { return Dim{Param: name} }

// ValueInfo declares one graph input or output.
type ValueInfo struct {
	Name     string
	ElemType int32
	Shape    []Dim
}

// Node is one graph node without attributes.
type Node struct {
	Name    string
	OpType  string
	Inputs  []string
	Outputs []string
}

// Model is the subset of an ONNX ModelProto fixtures need.
type Model struct {
	IRVersion       int64
	Producer        string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	Opset           int64
	GraphName       string
	Nodes           []Node
	Inputs          []ValueInfo
	Outputs         []ValueInfo
}

// FlattenModel maps a [N,1,2,5] float input "x" to a [N,10] float output
// "y". With every element copied through, the output equals the input.
func FlattenModel() Model {
	return Model{
		IRVersion:       8,
		Producer:        "ortprobe-testutil",
		ProducerVersion: "1",
		ModelVersion:    1,
		Opset:           13,
		GraphName:       "flatten",
		Nodes: []Node{
			{Name: "flatten0", OpType: "Flatten", Inputs: []string{"x"}, Outputs: []string{"y"}},
		},
		Inputs: []ValueInfo{
			{Name: "x", ElemType: ElemFloat, Shape: []Dim{Symbolic("N"), Fixed(1), Fixed(2), Fixed(5)}},
		},
		Outputs: []ValueInfo{
			{Name: "y", ElemType: ElemFloat, Shape: []Dim{Symbolic("N"), Fixed(10)}},
		},
	}
}

// Encode serializes m in ONNX protobuf wire format.
func (m Model) Encode() []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(m.IRVersion))
	b = appendStringField(b, 2, m.Producer)
	b = appendStringField(b, 3, m.ProducerVersion)
	b = appendStringField(b, 4, m.Domain)
	b = appendVarintField(b, 5, uint64(m.ModelVersion))
	b = appendMessageField(b, 7, m.encodeGraph())

	var opset []byte
	opset = appendStringField(opset, 1, "")
	opset = appendVarintField(opset, 2, uint64(m.Opset))
	b = appendMessageField(b, 8, opset)

	return b
}

func (m Model) encodeGraph() []byte {
	var g []byte
	for _, n := range m.Nodes {
		var nb []byte
		for _, in := range n.Inputs {
			nb = appendStringField(nb, 1, in)
		}
		for _, out := range n.Outputs {
			nb = appendStringField(nb, 2, out)
		}
		nb = appendStringField(nb, 3, n.Name)
		nb = appendStringField(nb, 4, n.OpType)
		g = appendMessageField(g, 1, nb)
	}

	g = appendStringField(g, 2, m.GraphName)
	for _, vi := range m.Inputs {
		g = appendMessageField(g, 11, vi.encode())
	}
	for _, vi := range m.Outputs {
		g = appendMessageField(g, 12, vi.encode())
	}

	return g
}

func (v ValueInfo) encode() []byte {
	var shape []byte
	for _, d := range v.Shape {
		var db []byte
		if d.Param != "" {
			db = appendStringField(db, 2, d.Param)
		} else {
			db = protowire.AppendTag(db, 1, protowire.VarintType)
			db = protowire.AppendVarint(db, uint64(d.Value))
		}
		shape = appendMessageField(shape, 1, db)
	}

	var tensor []byte
	tensor = appendVarintField(tensor, 1, uint64(v.ElemType))
	tensor = protowire.AppendTag(tensor, 2, protowire.BytesType)
	tensor = protowire.AppendBytes(tensor, shape)

	var typ []byte
	typ = appendMessageField(typ, 1, tensor)

	var b []byte
	b = appendStringField(b, 1, v.Name)
	b = appendMessageField(b, 2, typ)

	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// WriteModel encodes m to dir/name and returns the path.
func WriteModel(tb testing.TB, dir, name string, m Model) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, m.Encode(), 0o644); err != nil {
		tb.Fatalf("write model %q: %v", path, err)
	}

	return path
}

// WriteFlattenModel writes FlattenModel to dir/flatten.onnx.
func WriteFlattenModel(tb testing.TB, dir string) string {
	tb.Helper()
	return WriteModel(tb, dir, "flatten.onnx", FlattenModel())
}
