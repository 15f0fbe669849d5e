package app

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/claudia-sync/claudia/internal/daemon"
)

func init() { //nolint: gochecknoinits
	resyncCmd.Flags().BoolVar(&resyncFix, "fix", false,
		"Apply changes instead of only reporting them")

	rootCmd.AddCommand(resyncCmd)
}

var (
	resyncFix bool

	resyncCmd = &cobra.Command{
		Use:   "resync",
		Short: "Run one full consistency sweep over all entities and mappings",
		PreRun: func(_ *cobra.Command, _ []string) {
			loadConfig()
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			d, err := daemon.New(ctx, &cfg)
			if err != nil {
				return err
			}

			cycleID, err := d.Engine().CheckIntegrity(resyncFix)
			if err != nil {
				return err
			}

			log.Info().Str("cycle", cycleID).Bool("fix", resyncFix).
				Msg("running consistency sweep")

			return d.Engine().RunCycle(cycleID)
		},
	}
)
