package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/packport/internal/config"
	"github.com/blackwell-systems/packport/internal/logging"
)

var (
	configPath string
	dbPath     string
	verbosity  int

	// cfg is resolved in PersistentPreRunE before any command runs.
	cfg *config.Config

	// RootCmd is the root command for packport
	RootCmd = &cobra.Command{
		Use:   "packport",
		Short: "Deploy content packages into Portal 2 style game installations",
		Long: `packport exports a selected style, its items and the resources of every
loaded package into one or more game installations (targets).

Every export backs up the vendor files it replaces, installs the map
compiler, rewrites the editor item list and compiler configuration, and
keeps a per-target resource cache in sync with the packages.

Quick Start:
  1. packport target add portal2 620 "~/.steam/steam/steamapps/common/Portal 2"
  2. packport export --refresh
  3. packport history

Examples:
  # List targets and whether their cache is stale
  packport target list

  # Export a different style to one target
  packport export portal2 --style BEE2_BTS

  # Preview the compiler configuration an export would write
  packport diff portal2

  # Put the original game files back
  packport restore portal2`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetupLogger(verbosity)
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				loaded.HistoryDB = dbPath
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "packport: deploy content packages into game installations")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run 'packport target list' to see configured targets.")
			fmt.Fprintln(out, "Run 'packport --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: "+config.DefaultPath()+")")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "history database path (overrides history_db)")
	RootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug, -vvv trace)")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
