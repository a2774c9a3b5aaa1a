package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/engine"
	"github.com/openfroyo/vnflcm/pkg/lifecycle"
)

func newPlanCommand() *cobra.Command {
	var (
		from    string
		to      string
		dotFile string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate an action plan",
		Long: `Generate an action plan between two model versions of the context.

The plan:
  - Computes the delta between the versions
  - Orders create, update and delete steps by entity type
  - Is checked against the built-in and configured policies
  - Is persisted for execution with 'run'`,
		Example: `  # Plan the changes of the latest apply
  vnflcm plan

  # Plan from the empty model and write the execution graph
  vnflcm plan --from 0 --dot plan.dot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromVersion, err := versionArg(from)
			if err != nil {
				return err
			}
			toVersion, err := versionArg(to)
			if err != nil {
				return err
			}

			return withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				log.Info().
					Str("context", ws.cfg.Context).
					Str("from", from).
					Str("to", to).
					Msg("Generating plan")

				planned, err := ws.manager.Plan(ctx, ws.cfg.Context, fromVersion, toVersion)
				if err != nil {
					return err
				}

				if dotFile != "" {
					builder := engine.NewDAGBuilder()
					if _, err := builder.BuildGraph(planned.Plan.Steps); err != nil {
						return err
					}
					if err := os.WriteFile(dotFile, []byte(builder.ToDOT()), 0o644); err != nil {
						return fmt.Errorf("failed to write %s: %w", dotFile, err)
					}
				}

				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), planned)
				}
				printPlan(cmd.OutOrStdout(), planned)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "previous", "source version: a number, latest or previous")
	cmd.Flags().StringVar(&to, "to", "latest", "target version: a number, latest or previous")
	cmd.Flags().StringVar(&dotFile, "dot", "", "output DOT graph file (optional)")

	return cmd
}

// printPlan writes a human readable plan summary.
func printPlan(w io.Writer, planned *lifecycle.PlanResult) {
	plan := planned.Plan
	fmt.Fprintf(w, "Plan %s for %s: version %d -> %d\n", plan.ID, plan.Context, plan.From, plan.To)

	for _, step := range plan.Steps {
		if step.Operation == engine.OperationNoop {
			continue
		}
		fmt.Fprintf(w, "  %s %-18s %s\n", operationSymbol(step.Operation), step.Type, step.FQN)
	}
	fmt.Fprintf(w, "\n%d to create, %d to update, %d to delete\n",
		plan.Summary.Create, plan.Summary.Update, plan.Summary.Delete)

	if planned.Policy == nil {
		return
	}
	for _, v := range planned.Policy.Violations {
		fmt.Fprintf(w, "✗ [%s] %s: %s\n", v.Severity, v.Policy, v.Message)
	}
	for _, v := range planned.Policy.Warnings {
		fmt.Fprintf(w, "⚠ [%s] %s: %s\n", v.Severity, v.Policy, v.Message)
	}
	for _, e := range planned.Policy.Errors {
		fmt.Fprintf(w, "⚠ policy error: %s\n", e)
	}
	if !planned.Policy.Allowed {
		fmt.Fprintln(w, "Plan is denied by policy and cannot be run")
	}
}

func operationSymbol(op engine.OperationType) string {
	switch op {
	case engine.OperationCreate:
		return "+"
	case engine.OperationUpdate:
		return "~"
	case engine.OperationDelete:
		return "-"
	default:
		return " "
	}
}
