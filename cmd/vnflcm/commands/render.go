package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/config"
	"github.com/openfroyo/vnflcm/pkg/engine"
	"github.com/openfroyo/vnflcm/pkg/lifecycle"
	"github.com/openfroyo/vnflcm/pkg/render"
)

func newRenderCommand() *cobra.Command {
	var (
		template    string
		version     string
		descriptors []string
		split       bool
		outDir      string
		list        bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a model through a template",
		Long: `Render a model version through a template. The yaml and json templates dump
the canonical model; other names select Starlark scripts (<name>.star) in
the template directory.

With --descriptor the model is built from descriptor files in memory and
nothing is stored. With --split the output is cut at ">> path" marker lines
and each section is written below the output directory.`,
		Example: `  # Dump the latest model
  vnflcm render

  # Render an inventory template and write its sections
  vnflcm render --template inventory --split --out build/

  # Render a descriptor without touching the store
  vnflcm render --descriptor vnf.yaml --template json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			registry := render.NewRegistry(render.NewStarlarkRenderer(cfg.Render.TemplateDir, cfg.Render.Timeout))

			if list {
				for _, name := range registry.Names() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			ctx := cmd.Context()
			var model *engine.Model
			if len(descriptors) > 0 {
				batch, err := lifecycle.LoadBatch(ctx, descriptors...)
				if err != nil {
					return err
				}
				model = engine.NewModel(cfg.Context)
				if err := model.Apply(batch); err != nil {
					return err
				}
			} else {
				v, err := versionArg(version)
				if err != nil {
					return err
				}
				err = withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
					m, err := ws.manager.Model(ctx, ws.cfg.Context, v)
					model = m
					return err
				})
				if err != nil {
					return err
				}
			}

			out, err := registry.Render(ctx, template, model)
			if err != nil {
				return err
			}

			if !split {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if outDir == "" {
				outDir = cfg.Render.OutputDir
			}
			return writeSplit(cmd.OutOrStdout(), cmd.ErrOrStderr(), outDir, string(out))
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", render.FormatYAML, "template name")
	cmd.Flags().StringVar(&version, "version", "latest", "model version: a number, latest or previous")
	cmd.Flags().StringSliceVarP(&descriptors, "descriptor", "d", nil, "render descriptor files instead of a stored version")
	cmd.Flags().BoolVar(&split, "split", false, "split the output at >> markers and write the sections")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory for --split (default from config)")
	cmd.Flags().BoolVar(&list, "list", false, "list the available templates")

	return cmd
}

// writeSplit splits text and writes its blocks below dir, reporting each
// destination on report.
func writeSplit(stdout, report io.Writer, dir, text string) error {
	if dir == "" {
		dir = config.Default().Render.OutputDir
	}
	written, err := render.WriteBlocks(dir, render.Split(text), stdout)
	for _, dest := range written {
		if dest != "STDOUT" {
			fmt.Fprintf(report, "✓ Wrote %s\n", dest)
		}
	}
	return err
}
