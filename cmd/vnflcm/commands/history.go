package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit  int
		events bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show versions, plans and runs of the context",
		Example: `  # Last 10 versions, plans and runs
  vnflcm history

  # Include the events of every listed run
  vnflcm history --limit 3 --events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				h, err := ws.manager.History(ctx, ws.cfg.Context, limit)
				if err != nil {
					return err
				}

				runEvents := make(map[string][]*stores.Event)
				if events {
					for _, run := range h.Runs {
						runID := run.ID
						evs, err := ws.store.ListEvents(ctx, stores.EventFilter{RunID: &runID}, 1000, 0)
						if err != nil {
							return err
						}
						runEvents[run.ID] = evs
					}
				}

				if jsonOutput {
					out := map[string]interface{}{"history": h}
					if events {
						out["events"] = runEvents
					}
					return printJSON(cmd.OutOrStdout(), out)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Context %s\n\nVersions:\n", h.Context)
				for _, m := range h.Models {
					state := "consistent"
					if !m.Consistent {
						state = "inconsistent"
					}
					fmt.Fprintf(w, "  %4d  %s  %s\n", m.Version, m.CreatedAt.Format(time.RFC3339), state)
				}

				fmt.Fprintf(w, "\nPlans:\n")
				for _, p := range h.Plans {
					fmt.Fprintf(w, "  %s  %d -> %d  %d steps  %s\n",
						p.ID, p.FromVersion, p.ToVersion, p.Steps, p.CreatedAt.Format(time.RFC3339))
				}

				fmt.Fprintf(w, "\nRuns:\n")
				for _, r := range h.Runs {
					fmt.Fprintf(w, "  %s  plan %s  %-9s %s\n", r.ID, r.PlanID, r.Status, r.StartedAt.Format(time.RFC3339))
					for _, e := range runEvents[r.ID] {
						fqn := ""
						if e.FQN != nil {
							fqn = *e.FQN + " "
						}
						fmt.Fprintf(w, "      %-7s %s%s\n", e.Level, fqn, e.Message)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum entries per section")
	cmd.Flags().BoolVar(&events, "events", false, "list the events of each run")

	return cmd
}
