package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/render"
)

func newDiffCommand() *cobra.Command {
	var (
		from   string
		to     string
		format string
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show the delta between two model versions",
		Long: `Show the delta between two model versions of the context. Every entity of
both versions is listed with its action: add, remove, change or keep.`,
		Example: `  # Delta of the latest apply
  vnflcm diff

  # Delta from version 2 to 5 as JSON
  vnflcm diff --from 2 --to 5 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromVersion, err := versionArg(from)
			if err != nil {
				return err
			}
			toVersion, err := versionArg(to)
			if err != nil {
				return err
			}
			if jsonOutput {
				format = render.FormatJSON
			}

			return withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				delta, err := ws.manager.Diff(ctx, ws.cfg.Context, fromVersion, toVersion)
				if err != nil {
					return err
				}

				out, err := render.NewRegistry(nil).Render(ctx, format, delta)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "previous", "source version: a number, latest or previous")
	cmd.Flags().StringVar(&to, "to", "latest", "target version: a number, latest or previous")
	cmd.Flags().StringVarP(&format, "format", "f", render.FormatYAML, "output format: yaml or json")

	return cmd
}
