package app

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/claudia-sync/claudia/internal/daemon"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(eventsCmd)
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Execute all due scheduled events, such as expired grace periods",
	PreRun: func(_ *cobra.Command, _ []string) {
		loadConfig()
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		d, err := daemon.New(ctx, &cfg)
		if err != nil {
			return err
		}

		return d.Engine().ExecuteDueEvents(time.Now())
	},
}
