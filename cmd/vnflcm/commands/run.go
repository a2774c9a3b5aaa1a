package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/actuator"
	"github.com/openfroyo/vnflcm/pkg/engine"
)

func newRunCommand() *cobra.Command {
	var (
		dryRun   bool
		hook     string
		parallel int
		failFast bool
	)

	cmd := &cobra.Command{
		Use:   "run [plan-id]",
		Short: "Execute a stored plan",
		Long: `Execute a stored plan with the configured actuator. Without a plan ID the
most recent plan of the context is run.

Steps run level by level; independent steps of a level run in parallel.
Transient failures are retried with exponential backoff and steps whose
prerequisites failed are skipped. Plans denied by an enforcing policy are
refused.`,
		Example: `  # Run the latest plan without touching anything
  vnflcm run --dry-run

  # Run a plan through a hook script
  vnflcm run 6f1c... --hook ./actuate.sh

  # With actuator.kind ssh the hook runs on the configured host
  vnflcm run --hook /opt/vnf/actuate`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				planID, err := resolvePlanID(ctx, ws, args)
				if err != nil {
					return err
				}

				acfg := actuator.Config{
					Kind:       ws.cfg.Actuator.Kind,
					Command:    ws.cfg.Actuator.Command,
					SSH:        ws.cfg.Actuator.SSH,
					StagingDir: ws.cfg.Actuator.StagingDir,
				}
				switch {
				case dryRun:
					acfg.Kind = actuator.KindDryRun
				case hook != "":
					// a remote actuator keeps its host and runs the hook there
					acfg.Command = hook
					if acfg.Kind != actuator.KindSSH {
						acfg.Kind = actuator.KindHook
					}
				}
				act, err := actuator.New(acfg, ws.logger)
				if err != nil {
					return err
				}
				if closer, ok := act.(io.Closer); ok {
					defer closer.Close()
				}

				if cmd.Flags().Changed("parallel") || cmd.Flags().Changed("fail-fast") {
					opts := executorOptions(ws.cfg.Actuator)
					if cmd.Flags().Changed("parallel") {
						if parallel < 1 {
							return fmt.Errorf("--parallel must be at least 1, got %d", parallel)
						}
						opts.MaxParallel = parallel
					}
					if cmd.Flags().Changed("fail-fast") {
						opts.FailFast = failFast
					}
					ws.manager.SetExecutorOptions(opts)
				}

				log.Info().
					Str("plan_id", planID).
					Str("actuator", acfg.Kind).
					Msg("Executing plan")

				result, runErr := ws.manager.Execute(ctx, planID, act)
				if result == nil {
					return runErr
				}

				if jsonOutput {
					if err := printJSON(cmd.OutOrStdout(), result); err != nil {
						return err
					}
				} else {
					printRun(cmd, result)
				}

				if runErr != nil {
					return runErr
				}
				if result.Status != engine.RunStatusSucceeded {
					return fmt.Errorf("run %s finished with status %s", result.RunID, result.Status)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log steps instead of actuating them")
	cmd.Flags().StringVar(&hook, "hook", "", "hook command run for every step (overrides config, runs remotely with the ssh actuator)")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "maximum parallel steps")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop after the first failed level")

	return cmd
}

// resolvePlanID returns the plan named in args or the newest plan of the
// context.
func resolvePlanID(ctx context.Context, ws *workspace, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	plans, err := ws.store.ListPlans(ctx, ws.cfg.Context, 1, 0)
	if err != nil {
		return "", err
	}
	if len(plans) == 0 {
		return "", fmt.Errorf("context %s has no plans, run 'vnflcm plan' first", ws.cfg.Context)
	}
	return plans[0].ID, nil
}

func printRun(cmd *cobra.Command, result *engine.RunResult) {
	w := cmd.OutOrStdout()
	for _, s := range result.Steps {
		line := fmt.Sprintf("  %-10s %s %s", s.Status, s.Step.Operation, s.Step.FQN)
		if s.Attempts > 1 {
			line += fmt.Sprintf(" (%d attempts)", s.Attempts)
		}
		if s.Error != nil {
			line += ": " + s.Error.Message
		}
		fmt.Fprintln(w, line)
	}

	sum := result.Summary
	fmt.Fprintf(w, "\nRun %s %s in %s: %d succeeded, %d failed, %d skipped, %d cancelled\n",
		result.RunID, result.Status, result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond),
		sum.Succeeded, sum.Failed, sum.Skipped, sum.Cancelled)
}
