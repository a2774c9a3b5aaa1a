package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/lifecycle"
	"github.com/openfroyo/vnflcm/pkg/policy"
)

func newWatchCommand() *cobra.Command {
	var (
		planAfter bool
		metrics   bool
	)

	cmd := &cobra.Command{
		Use:   "watch <descriptor...>",
		Short: "Re-apply descriptors when they change",
		Long: `Apply descriptors once, then again every time one of them changes. Policy
files from the config are watched as well and reloaded on change.

Runs until interrupted.`,
		Example: `  # Watch a descriptor directory and plan every change
  vnflcm watch descriptors/ --plan

  # Also expose metrics while watching
  vnflcm watch vnf.yaml --metrics`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				w := cmd.OutOrStdout()

				if len(ws.cfg.Policy.Paths) > 0 {
					loader := policy.NewLoader(ws.logger)
					defer loader.StopWatching()
					err := loader.Watch(ctx, ws.cfg.Policy.Paths, func(policies []policy.Policy) error {
						return ws.policy.Reload(ctx, policies)
					})
					if err != nil {
						return err
					}
				}

				if metrics {
					go func() {
						if err := ws.tel.Metrics.Serve(ctx); err != nil {
							log.Error().Err(err).Msg("Metrics server failed")
						}
					}()
				}

				watcher := lifecycle.NewWatcher(ws.manager, ws.cfg.Context, args, ws.logger).
					OnApply(func(r lifecycle.Report) {
						if r.Err != nil {
							fmt.Fprintf(w, "✗ %s %v\n", r.Time.Format("15:04:05"), r.Err)
							return
						}
						fmt.Fprintf(w, "✓ %s %s at version %d\n", r.Time.Format("15:04:05"), r.Model.Context, r.Model.Version)

						if !planAfter {
							return
						}
						planned, err := ws.manager.Plan(ctx, ws.cfg.Context, lifecycle.Previous, lifecycle.Latest)
						if err != nil {
							fmt.Fprintf(w, "✗ plan failed: %v\n", err)
							return
						}
						printPlan(w, planned)
					})

				err := watcher.Run(ctx)
				if errors.Is(ctx.Err(), context.Canceled) {
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&planAfter, "plan", false, "plan every applied change")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "serve metrics while watching")

	return cmd
}
