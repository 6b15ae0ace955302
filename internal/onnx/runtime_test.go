package onnx

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ortprobe/internal/config"
	"github.com/example/ortprobe/internal/ort"
)

func resetRuntimeStateForTest(t *testing.T, load func(string, uint32) (Engine, string, error)) {
	t.Helper()

	prevLoad := loadAPI
	reset := func() {
		bootstrapOnce = sync.Once{}
		bootstrapInfo = RuntimeInfo{}
		bootstrapErr = nil
		bootstrapEngine = nil
	}

	reset()
	loadAPI = load
	t.Cleanup(func() {
		loadAPI = prevLoad
		reset()
	})
}

func writeFakeLib(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("fake"), 0o644))

	return path
}

func TestDetectRuntimePrefersORTPROBEORTLIB(t *testing.T) {
	lib := writeFakeLib(t, "libonnxruntime.so")

	t.Setenv("ORTPROBE_ORT_LIB", lib)
	t.Setenv("ORT_LIBRARY_PATH", filepath.Join(t.TempDir(), "does-not-exist"))

	info, err := DetectRuntime(config.RuntimeConfig{})
	require.NoError(t, err)
	assert.Equal(t, lib, info.LibraryPath)
}

func TestDetectRuntimeConfiguredPathWins(t *testing.T) {
	configured := writeFakeLib(t, "libonnxruntime.so.1.23.2")
	t.Setenv("ORTPROBE_ORT_LIB", writeFakeLib(t, "other.so"))
	t.Setenv("ORT_VERSION", "")

	info, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: configured})
	require.NoError(t, err)
	assert.Equal(t, configured, info.LibraryPath)
	assert.Equal(t, "1.23.2", info.Version, "version inferred from file name")
}

func TestDetectRuntimeMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.so")

	info, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: missing})
	require.Error(t, err)
	assert.Equal(t, missing, info.LibraryPath)
}

func TestBootstrapRunsOnce(t *testing.T) {
	var loads atomic.Int32
	resetRuntimeStateForTest(t, func(path string, apiVersion uint32) (Engine, string, error) {
		loads.Add(1)
		return newFakeEngine(), "1.23.2", nil
	})

	lib1 := writeFakeLib(t, "lib1.so")
	lib2 := writeFakeLib(t, "lib2.so")

	_, info1, err := Bootstrap(config.RuntimeConfig{ORTLibraryPath: lib1})
	require.NoError(t, err)
	_, info2, err := Bootstrap(config.RuntimeConfig{ORTLibraryPath: lib2, APIVersion: 20})
	require.NoError(t, err)

	assert.Equal(t, lib1, info1.LibraryPath)
	assert.Equal(t, lib1, info2.LibraryPath, "once semantics keep the first library")
	assert.Equal(t, ort.DefaultAPIVersion, info2.APIVersion)
	assert.Equal(t, "1.23.2", info1.Version)
	assert.True(t, info1.Initialized)
	assert.EqualValues(t, 1, loads.Load())

	require.NoError(t, Shutdown())
	require.NoError(t, Shutdown())
}

func TestBootstrapConcurrentCallersShareHandle(t *testing.T) {
	var loads atomic.Int32
	engine := newFakeEngine()
	resetRuntimeStateForTest(t, func(string, uint32) (Engine, string, error) {
		loads.Add(1)
		return engine, "", nil
	})

	lib := writeFakeLib(t, "libonnxruntime.so")

	const callers = 16
	got := make([]Engine, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng, _, err := Bootstrap(config.RuntimeConfig{ORTLibraryPath: lib})
			if !assert.NoError(t, err, "caller %d", i) {
				return
			}
			got[i] = eng
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, loads.Load())
	for i, eng := range got {
		assert.Same(t, engine, eng, "caller %d got a different engine handle", i)
	}
}

func TestShutdownRetiresHandleAlongsideBootstrap(t *testing.T) {
	engine := newFakeEngine()
	resetRuntimeStateForTest(t, func(string, uint32) (Engine, string, error) {
		return engine, "1.23.2", nil
	})

	require.NoError(t, Shutdown(), "shutdown before bootstrap")

	lib := writeFakeLib(t, "libonnxruntime.so")

	// Shutdown racing Bootstrap readers must stay clean under -race.
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				assert.NoError(t, Shutdown())
				return
			}
			_, _, err := Bootstrap(config.RuntimeConfig{ORTLibraryPath: lib})
			assert.NoError(t, err, "caller %d", i)
		}()
	}
	wg.Wait()

	require.NoError(t, Shutdown())

	eng, info, err := Bootstrap(config.RuntimeConfig{ORTLibraryPath: lib})
	require.NoError(t, err)
	assert.False(t, info.Initialized, "handle marked retired after Shutdown")
	assert.Same(t, engine, eng)
}

func TestBootstrapRemembersFailure(t *testing.T) {
	var loads atomic.Int32
	resetRuntimeStateForTest(t, func(string, uint32) (Engine, string, error) {
		loads.Add(1)
		return nil, "", ort.ErrUnsupportedAPIVersion
	})

	lib := writeFakeLib(t, "libonnxruntime.so")

	for range 2 {
		_, _, err := Bootstrap(config.RuntimeConfig{ORTLibraryPath: lib, APIVersion: 99})
		require.ErrorIs(t, err, ort.ErrUnsupportedAPIVersion)
	}
	assert.EqualValues(t, 1, loads.Load(), "one load attempt")
}

func TestInferVersionFromPath(t *testing.T) {
	cases := map[string]string{
		"/usr/lib/libonnxruntime.so.1.22.0":  "1.22.0",
		"/opt/libonnxruntime.1.23.2.dylib":   "1.23.2",
		"/usr/lib/libonnxruntime.so":         "",
		`C:\onnxruntime\lib\onnxruntime.dll`: "",
	}

	for path, want := range cases {
		assert.Equal(t, want, inferVersionFromPath(path), path)
	}
}

func TestNewSessionConfig(t *testing.T) {
	cfg, err := NewSessionConfig("m.onnx", config.RuntimeConfig{
		Threads:           4,
		GraphOptimization: "all",
		EngineLogLevel:    "error",
		LogID:             "mnist_model",
	})
	require.NoError(t, err)

	assert.Equal(t, "m.onnx", cfg.ModelPath)
	assert.Equal(t, "mnist_model", cfg.LogID)
	assert.EqualValues(t, 4, cfg.IntraOpThreads)
	assert.Equal(t, ort.GraphOptimizationAll, cfg.Optimization)
	assert.Equal(t, ort.LoggingLevelError, cfg.EngineLogLevel)
}

func TestNewSessionConfig_RejectsUnknownLevels(t *testing.T) {
	_, err := NewSessionConfig("m.onnx", config.RuntimeConfig{GraphOptimization: "max"})
	assert.Error(t, err, "unknown optimization level")

	_, err = NewSessionConfig("m.onnx", config.RuntimeConfig{EngineLogLevel: "loud"})
	assert.Error(t, err, "unknown engine log level")
}
