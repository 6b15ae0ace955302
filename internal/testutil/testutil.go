// Package testutil provides shared skip helpers and fixtures for integration
// tests.
//
// Each Require helper calls Skipf with a clear human-readable reason when the
// named prerequisite is absent, so integration tests remain runnable in
// partial environments without failing noisily.
//
// Typical usage:
//
//	func TestProbeIntegration(t *testing.T) {
//	    lib := testutil.RequireONNXRuntime(t)
//	    model := testutil.WriteFlattenModel(t, t.TempDir())
//	    ...
//	}
package testutil

import (
	"os"
	"testing"
)

// LibraryEnvVars are consulted in order by RequireONNXRuntime.
var LibraryEnvVars = []string{"ORTPROBE_ORT_LIB", "ORT_LIBRARY_PATH"}

var libraryCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/usr/lib/aarch64-linux-gnu/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"/usr/local/lib/libonnxruntime.dylib",
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located and returns its path otherwise. It checks (in order): the
// ORTPROBE_ORT_LIB env var, then ORT_LIBRARY_PATH, then common system
// library paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range LibraryEnvVars {
		if p := os.Getenv(env); p != "" {
			// #nosec G703 -- Integration tests intentionally accept explicit env-provided local library paths.
			_, err := os.Stat(p)
			if err == nil {
				return p
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
			return ""
		}
	}

	for _, p := range libraryCandidates {
		_, err := os.Stat(p)
		if err == nil {
			return p
		}
	}

	tb.Skipf("ONNX Runtime shared library not found; set ORTPROBE_ORT_LIB or ORT_LIBRARY_PATH")
	return ""
}

// RequireModel skips the test if the model file at path does not exist.
// ORTPROBE_TEST_MODEL overrides path when set.
func RequireModel(tb testing.TB, path string) string {
	tb.Helper()

	if p := os.Getenv("ORTPROBE_TEST_MODEL"); p != "" {
		path = p
	}

	info, err := os.Stat(path)
	if err != nil {
		tb.Skipf("model not available at %q: %v", path, err)
		return ""
	}
	if info.IsDir() {
		tb.Skipf("model path %q is a directory", path)
		return ""
	}

	return path
}
