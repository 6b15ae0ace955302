package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/ortprobe/internal/model"
)

// downloadModel is swapped by tests.
var downloadModel = model.Download

func newModelDownloadCmd() *cobra.Command {
	var outDir string
	var filename string
	var sha string
	var token string
	var list bool

	cmd := &cobra.Command{
		Use:   "download [name|url]",
		Short: "Download a pinned model by name, or any model from an https:// or gs:// URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if list {
				for _, name := range model.PinnedNames() {
					m, _ := model.LookupPinned(name)
					_, _ = fmt.Fprintf(out, "%s\t%s\n", name, m.Source)
				}
				return nil
			}

			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			target := "mnist"
			if len(args) == 1 {
				target = args[0]
			}

			opts := model.DownloadOptions{
				OutDir:   outDir,
				Filename: filename,
				SHA256:   sha,
				Token:    token,
				Stdout:   out,
			}
			if opts.OutDir == "" {
				opts.OutDir = cfg.Paths.ModelsDir
			}
			if opts.Token == "" {
				opts.Token = os.Getenv("ORTPROBE_MODEL_TOKEN")
			}

			if strings.Contains(target, "://") {
				opts.Source = target
			} else {
				pinned, err := model.LookupPinned(target)
				if err != nil {
					return err
				}
				opts.Source = pinned.Source
				if opts.Filename == "" {
					opts.Filename = pinned.Filename
				}
				if opts.SHA256 == "" {
					opts.SHA256 = pinned.SHA256
				}
			}

			res, err := downloadModel(cmd.Context(), opts)
			if err != nil {
				var denied *model.ErrAccessDenied
				if errors.As(err, &denied) && opts.Token == "" {
					return fmt.Errorf("model download failed: %w (set --token or ORTPROBE_MODEL_TOKEN)", err)
				}
				return fmt.Errorf("model download failed: %w", err)
			}

			if res.Skipped {
				_, _ = fmt.Fprintf(out, "model already present: %s\n", res.Path)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory where model files are stored (default: paths.models_dir)")
	cmd.Flags().StringVar(&filename, "filename", "", "File name to store the model under (default: last URL path element)")
	cmd.Flags().StringVar(&sha, "sha256", "", "Expected SHA-256 of the model file")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for gated HTTP sources (falls back to ORTPROBE_MODEL_TOKEN)")
	cmd.Flags().BoolVar(&list, "list", false, "List pinned model names and exit")

	return cmd
}
