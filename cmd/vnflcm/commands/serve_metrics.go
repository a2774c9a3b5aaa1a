package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/lifecycle"
)

func newServeMetricsCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Expose Prometheus metrics",
		Long: `Serve the Prometheus metrics endpoint until interrupted. The model gauges
are primed from the latest stored version of the context.`,
		Example: `  vnflcm serve-metrics --listen :9464`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				if listen == "" {
					listen = ws.cfg.Telemetry.Metrics.ListenAddress
				}
				if !ws.cfg.Telemetry.Metrics.Enabled {
					return fmt.Errorf("metrics are disabled in the config")
				}

				model, err := ws.manager.Model(ctx, ws.cfg.Context, lifecycle.Latest)
				if err != nil {
					return err
				}
				ws.tel.Metrics.SetModelState(lifecycle.ModelState(model))

				log.Info().
					Str("listen", listen).
					Str("context", ws.cfg.Context).
					Int("version", model.Version).
					Msg("Serving metrics")

				return ws.tel.Metrics.ServeOn(ctx, listen)
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config)")

	return cmd
}
