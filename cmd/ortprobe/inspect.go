package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/example/ortprobe/internal/config"
	"github.com/example/ortprobe/internal/model"
	"github.com/example/ortprobe/internal/onnx"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List every input and output of the configured model without running it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return executeInspect(cfg, afero.NewOsFs(), cmd.OutOrStdout())
		},
	}
}

func executeInspect(cfg config.Config, fs afero.Fs, out io.Writer) error {
	path := cfg.Paths.ModelPath

	if h, err := model.ReadHeader(fs, path); err != nil {
		slog.Warn("model header unreadable", "model", path, "error", err)
	} else {
		writeHeader(out, h)
	}

	sessionCfg, err := onnx.NewSessionConfig(path, cfg.Runtime)
	if err != nil {
		return err
	}

	insp, err := onnx.Inspect(acquireEngine(cfg.Runtime), sessionCfg, slog.Default())
	if err != nil {
		_, _ = fmt.Fprintf(out, "Failed to inspect %s: %v\n", path, err)
		return err
	}

	_, _ = fmt.Fprintln(out, signatureTable(insp))

	if insp.Err != nil {
		_, _ = fmt.Fprintf(out, "Inspection stopped: %v\n", insp.Err)
		if cfg.Probe.Strict {
			return fmt.Errorf("inspect %s: %w", path, insp.Err)
		}
	}

	return nil
}

func writeHeader(out io.Writer, h model.Header) {
	producer := h.ProducerName
	if h.ProducerVersion != "" {
		producer += " " + h.ProducerVersion
	}

	_, _ = fmt.Fprintf(out, "IR version: %d\n", h.IRVersion)
	_, _ = fmt.Fprintf(out, "Producer: %s\n", producer)
	_, _ = fmt.Fprintf(out, "Opset: %d\n", h.DefaultOpset())
	_, _ = fmt.Fprintf(out, "Graph: %s (%d nodes, %d initializers)\n", h.GraphName, h.NodeCount, h.Initializers)
}

// signatureTable renders inputs then outputs, with the shape the probe would
// use for each of them.
func signatureTable(insp *onnx.Inspection) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Slot", "#", "Name", "Type", "Shape", "Resolved", "Elements"})

	appendRows := func(slot onnx.Slot, sigs []onnx.TensorSignature) {
		for i, sig := range sigs {
			resolved, elements := "-", "-"
			if shape, _, err := onnx.ResolveShape(sig.Shape); err == nil {
				resolved = onnx.FormatShape(shape)
				if n, err := onnx.ElementCount(shape); err == nil {
					elements = strconv.Itoa(n)
				}
			}
			t.AppendRow(table.Row{slot.String(), i, sig.Name, sig.ElementType.String(), onnx.FormatShape(sig.Shape), resolved, elements})
		}
	}

	appendRows(onnx.SlotInput, insp.Inputs)
	appendRows(onnx.SlotOutput, insp.Outputs)

	return strings.TrimRight(t.Render(), "\n")
}
