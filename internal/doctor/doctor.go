// Package doctor provides environment preflight checks for ortprobe.
package doctor

import (
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
	units "github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/example/ortprobe/internal/model"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

var (
	passColor = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// DetectLibrary returns the path of the ONNX Runtime shared library.
	DetectLibrary func() (string, error)
	// EngineVersion loads the library and returns its version string.
	EngineVersion VersionFunc
	// APIVersion is the C API version runs will request.
	APIVersion uint32
	// Smoke creates and closes a runtime through the high-level binding.
	// Nil skips the check.
	Smoke func() error
	// ModelFiles are ONNX model paths to verify on FS.
	ModelFiles []string
	FS         afero.Fs
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

func pass(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", passColor.Sprint(PassMark), fmt.Sprintf(format, args...))
}

func failLine(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", failColor.Sprint(FailMark), fmt.Sprintf(format, args...))
}

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}

	// ---- runtime library --------------------------------------------------
	libFound := false
	if cfg.DetectLibrary != nil {
		lib, err := cfg.DetectLibrary()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime library: %v", err))
			failLine(w, "onnx runtime library: not found (%v)", err)
		} else {
			libFound = true
			pass(w, "onnx runtime library: %s", lib)
		}
	}

	// ---- engine load and version -------------------------------------------
	switch {
	case cfg.EngineVersion == nil:
	case cfg.DetectLibrary != nil && !libFound:
		failLine(w, "onnx runtime engine: skipped (no library)")
	default:
		ver, err := cfg.EngineVersion()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime engine: %v", err))
			failLine(w, "onnx runtime engine: %v", err)
			break
		}
		pass(w, "onnx runtime engine: version %s", ver)

		if cfg.APIVersion > 0 {
			if apiErr := checkAPICompat(ver, cfg.APIVersion); apiErr != nil {
				res.fail(fmt.Sprintf("api version: %v", apiErr))
				failLine(w, "api version %d: %v", cfg.APIVersion, apiErr)
			} else {
				pass(w, "api version %d: supported by %s", cfg.APIVersion, ver)
			}
		}
	}

	// ---- high-level binding smoke -------------------------------------------
	if cfg.Smoke != nil {
		if err := cfg.Smoke(); err != nil {
			res.fail(fmt.Sprintf("runtime smoke: %v", err))
			failLine(w, "runtime smoke: %v", err)
		} else {
			pass(w, "runtime smoke: env create/close ok")
		}
	}

	// ---- model files ------------------------------------------------------
	for _, path := range cfg.ModelFiles {
		checkModelFile(cfg.FS, path, w, &res)
	}

	return res
}

func checkModelFile(fs afero.Fs, path string, w io.Writer, res *Result) {
	fi, err := fs.Stat(path)
	if err != nil {
		res.fail(fmt.Sprintf("model file %q: %v", path, err))
		failLine(w, "model file %s: not found", path)
		return
	}
	if fi.IsDir() {
		res.fail(fmt.Sprintf("model file %q: is a directory", path))
		failLine(w, "model file %s: is a directory", path)
		return
	}

	h, err := model.ReadHeader(fs, path)
	if err != nil {
		res.fail(fmt.Sprintf("model file %q: %v", path, err))
		failLine(w, "model file %s: %v", path, err)
		return
	}

	pass(w, "model file: %s (%s, ir_version %d, opset %d)", path, units.HumanSize(float64(fi.Size())), h.IRVersion, h.DefaultOpset())
}

// checkAPICompat returns an error if an ONNX Runtime release cannot serve
// apiVersion. Release 1.N ships C API version N.
func checkAPICompat(version string, apiVersion uint32) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("cannot parse runtime version %q: %w", version, err)
	}

	c, err := semver.NewConstraint(fmt.Sprintf(">= 1.%d.0-0", apiVersion))
	if err != nil {
		return fmt.Errorf("build constraint: %w", err)
	}

	if !c.Check(v) {
		return fmt.Errorf("runtime %s predates api %d (needs >= 1.%d)", v, apiVersion, apiVersion)
	}

	return nil
}
