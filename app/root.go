// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "claudia",
	Short: "Claudia keeps member administration entities and backend accounts in sync",
	Long: `Claudia is an identity reconciliation engine. It maintains a ledger of
mappings between internal entities (persons, committees, do-groups, ad-hoc
groups, shared drives, alias groups and contacts) and their accounts and
groups in the connected backends, and continuously reconciles the two.`,
	Args: cobra.OnlyValidArgs,
}

var (
	configPath string
	cfg        config.Config
	err        error
)

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to the configuration directory (default ./etc/)")
}

// loadConfig reads the configuration and initializes logging. Commands call
// it from their PreRun hook.
func loadConfig() {
	if cfg, err = config.ReadConfig(configPath); err != nil {
		panic(err)
	}

	if err = logger.Init(cfg.Log); err != nil {
		panic(err)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
