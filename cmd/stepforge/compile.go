package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/metalagman/stepforge/internal/logging"
	"github.com/metalagman/stepforge/internal/pipeline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func compileCmd() *cobra.Command {
	var (
		format string
		out    string
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a pipeline definition into components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, repoRoot, err := loadServices()
			if err != nil {
				return err
			}
			if format == "" {
				format = svc.Config.Output.Format
			}
			if err := pipeline.CheckFormat(format); err != nil {
				return err
			}

			def, err := pipeline.Load(resolvePath(repoRoot, args[0]))
			if err != nil {
				return err
			}
			compiled, err := pipeline.Compile(def, svc.Catalog, svc.Registry)
			if err != nil {
				return err
			}
			log.Debug().Str("pipeline", compiled.Pipeline).Int("components", len(compiled.Components)).Msg("pipeline compiled")
			if logging.DebugEnabled() {
				if _, err := fmt.Fprintln(cmd.ErrOrStderr(), componentTable(compiled)); err != nil {
					return err
				}
			}

			if err := writeCompiled(cmd.OutOrStdout(), resolveOut(repoRoot, out), compiled, format); err != nil {
				return err
			}

			if !save && !svc.Config.Store.Save {
				return nil
			}
			store, closeStore, err := openStore(repoRoot, svc.Config)
			if err != nil {
				return err
			}
			defer closeStore()
			id, err := store.SavePipeline(cmd.Context(), compiled, format)
			if err != nil {
				return fmt.Errorf("save pipeline: %w", err)
			}
			log.Info().Str("id", id).Str("pipeline", compiled.Pipeline).Msg("compiled pipeline saved")
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "output format (yaml|json), defaults to output.format")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write output to file instead of stdout")
	cmd.Flags().BoolVar(&save, "save", false, "store the compiled pipeline in the history database")
	return cmd
}

func resolveOut(repoRoot, out string) string {
	if out == "" {
		return ""
	}
	return resolvePath(repoRoot, out)
}

func writeCompiled(stdout io.Writer, path string, compiled *pipeline.Compiled, format string) error {
	if path == "" {
		return compiled.Encode(stdout, format)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := compiled.Encode(f, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	log.Info().Str("path", path).Msg("compiled pipeline written")
	return nil
}

func componentTable(compiled *pipeline.Compiled) string {
	rows := make([][]string, 0, len(compiled.Components))
	for i, c := range compiled.Components {
		upstream := "-"
		if u := c.Upstream(); len(u) > 0 {
			upstream = strings.Join(u, ", ")
		}
		rows = append(rows, []string{fmt.Sprint(i), c.Name, c.Class, upstream})
	}
	return renderTable([]string{"#", "COMPONENT", "CLASS", "UPSTREAM"}, rows)
}
