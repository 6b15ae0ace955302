package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/example/ortprobe/internal/model"
	"github.com/example/ortprobe/internal/onnx"
)

func newModelVerifyCmd() *cobra.Command {
	var tolerance float64

	cmd := &cobra.Command{
		Use:   "verify [model]",
		Short: "Check a model's header, probe it and cross-check the output against onnxruntime-purego",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			path := cfg.Paths.ModelPath
			if len(args) == 1 {
				path = args[0]
			}

			err = verifyModel(cmd.Context(), model.VerifyOptions{
				ModelPath: path,
				Runtime:   cfg.Runtime,
				Seed:      cfg.Probe.Seed,
				Tolerance: tolerance,
				FS:        afero.NewOsFs(),
				Stdout:    cmd.OutOrStdout(),
				Stderr:    cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().Float64Var(&tolerance, "tolerance", onnx.DefaultCrossCheckTolerance, "Maximum absolute preview difference between the two bindings")

	return cmd
}
