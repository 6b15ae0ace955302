package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ortprobe/internal/ort"
)

func inspectConfig() SessionConfig {
	return SessionConfig{
		ModelPath:      "model.onnx",
		LogID:          "inspect",
		EngineLogLevel: ort.LoggingLevelWarning,
		IntraOpThreads: 1,
		Optimization:   ort.GraphOptimizationBasic,
	}
}

func TestInspectListsEverySignature(t *testing.T) {
	f := newFakeEngine()
	f.inputCount = 2
	f.inputNames = []string{"pixels", "mask"}
	f.inputDims = [][]int64{{-1, 1, 28, 28}, {-1, 28}}
	f.outputCount = 2
	f.outputNames = []string{"logits", "probs"}
	f.outputDims = [][]int64{{-1, 10}, {-1, 10}}

	res, err := Inspect(f.engineFunc(), inspectConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, res.Err)

	require.Len(t, res.Inputs, 2)
	require.Len(t, res.Outputs, 2)
	assert.Equal(t, TensorSignature{Name: "mask", ElementType: ort.TensorElementTypeFloat, Shape: []int64{-1, 28}}, res.Inputs[1])
	assert.Equal(t, "probs", res.Outputs[1].Name)

	assert.False(t, f.called("Run"))
	assert.False(t, f.called("CreateTensorWithDataAsOrtValue"))
	assert.Equal(t, []string{"session", "session options", "environment"}, res.Released)
	assertBalanced(t, f)
}

func TestInspectReleasesTypeInfoPerSignature(t *testing.T) {
	f := newFakeEngine()

	_, err := Inspect(f.engineFunc(), inspectConfig(), nil)
	require.NoError(t, err)

	// Each type info is released before the next slot is read.
	assert.Equal(t, []string{"type info", "type info", "session", "session options", "env"}, f.released)
}

func TestInspectFailureMidway(t *testing.T) {
	f := newFakeEngine().failing("GetDimensions", 2)

	res, err := Inspect(f.engineFunc(), inspectConfig(), nil)
	require.NoError(t, err)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), `output "logits" shape`)
	assert.Len(t, res.Inputs, 1)
	assert.Empty(t, res.Outputs)
	assertBalanced(t, f)
}

func TestInspectSetupFailure(t *testing.T) {
	f := newFakeEngine().failing("CreateSessionOptions", 1)

	_, err := Inspect(f.engineFunc(), inspectConfig(), nil)
	require.Error(t, err)
	assert.True(t, IsSetupError(err))
	assert.Equal(t, []string{"env"}, f.released)
}
