package main

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/example/ortprobe/internal/config"
	"github.com/example/ortprobe/internal/doctor"
	"github.com/example/ortprobe/internal/model"
	"github.com/example/ortprobe/internal/onnx"
)

// verifyModel is swapped by tests.
var verifyModel = model.Verify

func newDoctorCmd() *cobra.Command {
	var skipVerify bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return executeDoctor(cmd, cfg, afero.NewOsFs(), skipVerify)
		},
	}

	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "Skip the end-to-end model verify step")

	return cmd
}

func executeDoctor(cmd *cobra.Command, cfg config.Config, fs afero.Fs, skipVerify bool) error {
	out := cmd.OutOrStdout()

	var libPath string
	result := doctor.Run(doctorConfig(cfg, fs, &libPath), out)

	switch {
	case skipVerify:
		_, _ = fmt.Fprintf(out, "%s model verify: skipped (--skip-verify)\n", doctor.PassMark)
	case !fileExists(fs, cfg.Paths.ModelPath):
		_, _ = fmt.Fprintf(out, "%s model verify: skipped (no model at %s)\n", doctor.PassMark, cfg.Paths.ModelPath)
	default:
		rt := cfg.Runtime
		if rt.ORTLibraryPath == "" {
			rt.ORTLibraryPath = libPath
		}
		verifyErr := verifyModel(cmd.Context(), model.VerifyOptions{
			ModelPath: cfg.Paths.ModelPath,
			Runtime:   rt,
			Seed:      cfg.Probe.Seed,
			FS:        fs,
			Stdout:    out,
			Stderr:    cmd.ErrOrStderr(),
		})
		if verifyErr != nil {
			result.AddFailure(fmt.Sprintf("model verify: %v", verifyErr))
			_, _ = fmt.Fprintf(out, "%s model verify: %v\n", doctor.FailMark, verifyErr)
		} else {
			_, _ = fmt.Fprintf(out, "%s model verify: ok\n", doctor.PassMark)
		}
	}

	if result.Failed() {
		for _, f := range result.Failures() {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
		}

		return errors.New("doctor checks failed")
	}

	_, _ = fmt.Fprintln(out, "doctor checks passed")

	return nil
}

// doctorConfig wires the checks to the real runtime. The detected library
// path is stored in libPath for the verify step.
func doctorConfig(cfg config.Config, fs afero.Fs, libPath *string) doctor.Config {
	return doctor.Config{
		DetectLibrary: func() (string, error) {
			info, err := onnx.DetectRuntime(cfg.Runtime)
			if err != nil {
				return "", err
			}
			*libPath = info.LibraryPath
			return info.LibraryPath, nil
		},
		EngineVersion: func() (string, error) {
			_, info, err := onnx.Bootstrap(cfg.Runtime)
			if err != nil {
				return "", err
			}
			if want := cfg.Runtime.ORTVersion; want != "" && want != info.Version {
				return "", fmt.Errorf("runtime version %s, configured %s", info.Version, want)
			}
			return info.Version, nil
		},
		APIVersion: cfg.Runtime.APIVersion,
		Smoke: func() error {
			if *libPath == "" {
				return errors.New("no runtime library to load")
			}
			return onnx.RuntimeSmoke(onnx.RunnerConfig{LibraryPath: *libPath, APIVersion: cfg.Runtime.APIVersion})
		},
		ModelFiles: []string{cfg.Paths.ModelPath},
		FS:         fs,
	}
}

func fileExists(fs afero.Fs, path string) bool {
	fi, err := fs.Stat(path)
	return err == nil && !fi.IsDir()
}

