package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/ortprobe/internal/config"
	"github.com/example/ortprobe/internal/logging"
	"github.com/example/ortprobe/internal/onnx"
)

var (
	cfgFile   string
	activeCfg config.Config

	// acquireEngine is swapped by tests.
	acquireEngine = func(rt config.RuntimeConfig) onnx.EngineFunc {
		return func() (onnx.Engine, error) {
			eng, _, err := onnx.Bootstrap(rt)
			return eng, err
		}
	}
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "ortprobe",
		Short: "Load an ONNX model, run it once on placeholder input and report what happened",
		Long: `ortprobe drives ONNX Runtime through its C API. It feeds a seeded
placeholder tensor to the model's first input and prints a preview of the
first output. Without a subcommand it behaves like "ortprobe run".`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return executeProbe(cmd.Context(), cfg, cmd.OutOrStdout(), runOptions{})
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newModelCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	if _, err := logging.Setup(os.Stderr, levelStr); err != nil {
		slog.Warn("falling back to info logging", "error", err)
	}
}

func requireConfig() (config.Config, error) {
	if activeCfg.Paths.ModelPath == "" {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return activeCfg, nil
}
