package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediapool.click/internal/tracking"
)

// newHistoryCommand builds the history subcommand for inspecting the trigger
// diagnostics database
func (c *CLI) newHistoryCommand() *cobra.Command {
	var (
		since   string
		dropped bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded trigger events from the diagnostics database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.TrackingDB == "" {
				return fmt.Errorf("tracking is disabled: set tracking_db in the config")
			}

			db, err := tracking.NewDatabase(cfg.TrackingDB)
			if err != nil {
				return err
			}
			defer db.Close()
			recorder := tracking.NewRecorder(db)

			filter := tracking.QueryFilter{DroppedOnly: dropped, Limit: limit}
			if since != "" {
				if err := filter.ParseSince(since, time.Now()); err != nil {
					return err
				}
			}

			events, err := recorder.Events(filter)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no trigger events recorded")
				return nil
			}

			for _, e := range events {
				status := "ok"
				if e.Dropped {
					status = "dropped: " + e.DropReason
				} else if e.Stolen {
					status = "stolen"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  step=%d slot=%d dur=%.2fs style=%s  %s\n",
					e.Timestamp.Format(time.RFC3339), e.Step, e.MediaIndex,
					e.Duration, e.PlayStyle, status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", `only events after this time (e.g. "2 hours ago")`)
	cmd.Flags().BoolVar(&dropped, "dropped", false, "only dropped events")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum events to show")

	return cmd
}
