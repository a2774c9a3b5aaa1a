package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/descriptor"
	"github.com/openfroyo/vnflcm/pkg/lifecycle"
)

func newApplyCommand() *cobra.Command {
	var planAfter bool

	cmd := &cobra.Command{
		Use:   "apply [descriptor...]",
		Short: "Apply descriptors to the model",
		Long: `Apply descriptors as one batch to the latest model of the context and store
the result as the next version. A batch that fails on any statement leaves
the stored model untouched.

Descriptors are read from standard input when no path is given.`,
		Example: `  # Apply a descriptor directory
  vnflcm apply descriptors/

  # Apply and plan the changes against the previous version
  vnflcm apply --plan vnf.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{descriptor.StdinPath}
			}

			return withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				log.Info().
					Str("context", ws.cfg.Context).
					Strs("paths", args).
					Msg("Applying descriptors")

				doc, err := descriptor.NewLoader().WithStdin(cmd.InOrStdin()).Load(ctx, args...)
				if err != nil {
					return err
				}
				findings, err := descriptor.Validate(doc)
				if err != nil {
					return err
				}
				if len(findings) > 0 {
					for _, f := range findings {
						fmt.Fprintln(cmd.ErrOrStderr(), f.Error())
					}
					return fmt.Errorf("%w: %d findings", errInvalid, len(findings))
				}
				batch, err := descriptor.ToBatch(doc)
				if err != nil {
					return err
				}

				model, err := ws.manager.Apply(ctx, ws.cfg.Context, batch)
				if err != nil {
					return err
				}

				var planned *lifecycle.PlanResult
				if planAfter {
					if planned, err = ws.manager.Plan(ctx, ws.cfg.Context, lifecycle.Previous, lifecycle.Latest); err != nil {
						return err
					}
				}

				if jsonOutput {
					out := map[string]interface{}{
						"context":    model.Context,
						"version":    model.Version,
						"consistent": model.Consistent,
						"entities":   model.EntityCounts(),
						"rules":      model.RuleCount(),
					}
					if planned != nil {
						out["plan"] = planned
					}
					return printJSON(cmd.OutOrStdout(), out)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "✓ Applied %d statements to %s, now at version %d\n", len(batch), model.Context, model.Version)
				if !model.Consistent {
					fmt.Fprintln(w, "⚠ Model is inconsistent: unresolved dependencies or links")
				}
				if planned != nil {
					printPlan(w, planned)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&planAfter, "plan", false, "plan the changes after applying")

	return cmd
}
