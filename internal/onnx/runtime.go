package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"

	"github.com/example/ortprobe/internal/config"
	"github.com/example/ortprobe/internal/ort"
)

// RuntimeInfo describes the engine handle held by the process.
type RuntimeInfo struct {
	LibraryPath string
	Version     string
	APIVersion  uint32
	Initialized bool
}

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

var (
	bootstrapOnce sync.Once
	bootstrapInfo RuntimeInfo
	bootstrapErr  error
	// stateMu guards bootstrapInfo against Shutdown running beside Bootstrap.
	stateMu sync.Mutex

	// loadAPI is swapped by tests to avoid touching a real library.
	loadAPI = func(path string, apiVersion uint32) (Engine, string, error) {
		api, err := ort.Load(path, apiVersion)
		if err != nil {
			return nil, "", err
		}

		return api, api.Version(), nil
	}
	bootstrapEngine Engine
)

// Bootstrap detects and loads the ONNX Runtime library once per process and
// returns the shared engine handle. Later calls return the first result,
// whatever configuration they pass.
func Bootstrap(cfg config.RuntimeConfig) (Engine, RuntimeInfo, error) {
	bootstrapOnce.Do(func() {
		info, err := DetectRuntime(cfg)
		if err != nil {
			bootstrapErr = err
			return
		}

		apiVersion := cfg.APIVersion
		if apiVersion == 0 {
			apiVersion = ort.DefaultAPIVersion
		}

		engine, version, err := loadAPI(info.LibraryPath, apiVersion)
		if err != nil {
			bootstrapErr = fmt.Errorf("init onnx runtime engine: %w", err)
			return
		}

		if version != "" {
			info.Version = version
		}

		info.APIVersion = apiVersion
		info.Initialized = true
		stateMu.Lock()
		bootstrapInfo = info
		bootstrapEngine = engine
		stateMu.Unlock()

		slog.Debug("onnx runtime loaded",
			"library", info.LibraryPath,
			"version", info.Version,
			"api_version", apiVersion,
		)
	})

	if bootstrapErr != nil {
		return nil, RuntimeInfo{}, bootstrapErr
	}

	stateMu.Lock()
	defer stateMu.Unlock()

	return bootstrapEngine, bootstrapInfo, nil
}

// Shutdown marks the engine handle as retired. The dispatch table has no
// teardown of its own; the library stays mapped until the process exits.
// Calling it again, or before Bootstrap, does nothing.
func Shutdown() error {
	stateMu.Lock()
	defer stateMu.Unlock()

	bootstrapInfo.Initialized = false

	return nil
}

// DetectRuntime locates the ONNX Runtime shared library. The configured path
// wins, then ORTPROBE_ORT_LIB, then ORT_LIBRARY_PATH, then well-known
// install locations.
func DetectRuntime(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	path := cfg.ORTLibraryPath
	if path == "" {
		path = os.Getenv("ORTPROBE_ORT_LIB")
	}

	if path == "" {
		path = os.Getenv("ORT_LIBRARY_PATH")
	}

	if path == "" {
		for _, c := range libraryCandidates() {
			_, err := os.Stat(c)
			if err == nil {
				path = c
				break
			}
		}
	}

	if path == "" {
		return RuntimeInfo{LibraryPath: "not found", Version: "unknown"}, errors.New("unable to detect ONNX Runtime library path")
	}

	_, err := os.Stat(path)
	if err != nil {
		return RuntimeInfo{LibraryPath: path, Version: "unknown"}, fmt.Errorf("onnx runtime library path check failed: %w", err)
	}

	version := cfg.ORTVersion
	if version == "" {
		version = os.Getenv("ORT_VERSION")
	}

	if version == "" {
		version = inferVersionFromPath(path)
	}

	if version == "" {
		version = "unknown"
	}

	return RuntimeInfo{LibraryPath: path, Version: version}, nil
}

func libraryCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/opt/homebrew/lib/libonnxruntime.dylib",
			"/usr/local/lib/libonnxruntime.dylib",
		}
	case "windows":
		return []string{
			"C:/onnxruntime/lib/onnxruntime.dll",
			"onnxruntime.dll",
		}
	default:
		return []string{
			"/usr/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
			"/usr/lib/aarch64-linux-gnu/libonnxruntime.so",
		}
	}
}

func inferVersionFromPath(path string) string {
	name := filepath.Base(path)
	if m := versionPattern.FindStringSubmatch(name); len(m) == 2 {
		return m[1]
	}

	return ""
}

// NewSessionConfig builds the session settings for modelPath from the
// runtime section of the configuration.
func NewSessionConfig(modelPath string, rt config.RuntimeConfig) (SessionConfig, error) {
	logLevel, err := config.ParseEngineLogLevel(rt.EngineLogLevel)
	if err != nil {
		return SessionConfig{}, err
	}

	optLevel, err := config.ParseGraphOptimization(rt.GraphOptimization)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		ModelPath:      modelPath,
		LogID:          rt.LogID,
		EngineLogLevel: logLevel,
		IntraOpThreads: rt.Threads,
		Optimization:   optLevel,
	}, nil
}
