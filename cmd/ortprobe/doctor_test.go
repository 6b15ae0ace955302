package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/example/ortprobe/internal/config"
	"github.com/example/ortprobe/internal/model"
	"github.com/example/ortprobe/internal/testutil"
)

func doctorTestCmd(out, errOut *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetContext(context.Background())

	return cmd
}

// doctorTestConfig points the runtime at a library that does not exist so
// the engine checks fail the same way on every machine.
func doctorTestConfig(t *testing.T) (config.Config, afero.Fs) {
	t.Helper()

	color.NoColor = true

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/m/flatten.onnx", testutil.FlattenModel().Encode(), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Paths.ModelPath = "/m/flatten.onnx"
	cfg.Runtime.ORTLibraryPath = "/nonexistent/libonnxruntime.so"

	return cfg, fs
}

func TestExecuteDoctor_SkipsVerifyWithoutModel(t *testing.T) {
	cfg, fs := doctorTestConfig(t)
	cfg.Paths.ModelPath = "/m/absent.onnx"

	orig := verifyModel
	t.Cleanup(func() { verifyModel = orig })
	verifyModel = func(context.Context, model.VerifyOptions) error {
		t.Fatal("verify must not run without a model")
		return nil
	}

	var out, errOut bytes.Buffer
	err := executeDoctor(doctorTestCmd(&out, &errOut), cfg, fs, false)
	if err == nil {
		t.Fatal("expected doctor failure for missing library and model")
	}

	if !strings.Contains(out.String(), "model verify: skipped (no model at /m/absent.onnx)") {
		t.Errorf("verify skip not reported:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "runtime smoke: no runtime library to load") {
		t.Errorf("smoke should not run without a library:\n%s", out.String())
	}
	if !strings.Contains(errOut.String(), "FAIL: onnx runtime library") {
		t.Errorf("failures not summarized on stderr:\n%s", errOut.String())
	}
}

func TestExecuteDoctor_VerifyFailureIsReported(t *testing.T) {
	cfg, fs := doctorTestConfig(t)

	orig := verifyModel
	t.Cleanup(func() { verifyModel = orig })

	var got model.VerifyOptions
	verifyModel = func(_ context.Context, opts model.VerifyOptions) error {
		got = opts
		return errors.New("verify failed for 1 step(s): probe")
	}

	var out, errOut bytes.Buffer
	err := executeDoctor(doctorTestCmd(&out, &errOut), cfg, fs, false)
	if err == nil || err.Error() != "doctor checks failed" {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ModelPath != "/m/flatten.onnx" || got.Seed != 42 {
		t.Errorf("verify called with %+v", got)
	}
	if !strings.Contains(out.String(), "✗ model verify: verify failed for 1 step(s): probe") {
		t.Errorf("verify failure not reported:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "✓ model file: /m/flatten.onnx") {
		t.Errorf("model file check should pass:\n%s", out.String())
	}
}

func TestExecuteDoctor_SkipVerifyFlag(t *testing.T) {
	cfg, fs := doctorTestConfig(t)

	var out, errOut bytes.Buffer
	_ = executeDoctor(doctorTestCmd(&out, &errOut), cfg, fs, true)

	if !strings.Contains(out.String(), "model verify: skipped (--skip-verify)") {
		t.Errorf("skip flag not honored:\n%s", out.String())
	}
}
