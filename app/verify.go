package app

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/claudia-sync/claudia/internal/daemon"
)

func init() { //nolint: gochecknoinits
	verifyCmd.Flags().BoolVar(&verifyFix, "fix", false,
		"Apply changes instead of only reporting them")

	rootCmd.AddCommand(verifyCmd)
}

var (
	verifyFix bool

	verifyCmd = &cobra.Command{
		Use:   "verify <mapping-id>",
		Short: "Verify a single mapping and everything it fans out to",
		Args:  cobra.ExactArgs(1),
		PreRun: func(_ *cobra.Command, _ []string) {
			loadConfig()
		},
		RunE: func(_ *cobra.Command, args []string) error {
			mappingID, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return err
			}

			ctx := context.Background()

			d, err := daemon.New(ctx, &cfg)
			if err != nil {
				return err
			}

			cycleID, err := d.Engine().TriggerMapping(uint(mappingID), verifyFix)
			if err != nil {
				return err
			}

			log.Info().Str("cycle", cycleID).Uint64("mapping", mappingID).
				Bool("fix", verifyFix).Msg("verifying mapping")

			return d.Engine().RunCycle(cycleID)
		},
	}
)
