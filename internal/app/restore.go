package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [target...]",
	Short: "Put the original game files back",
	Long: `Undo what exports installed while keeping the target registered:
remove the search path entry and the FGD block, restore the backed up
compiler and editor files, and delete the resource cache.

Run 'packport export' again to reinstall.`,
	RunE: runRestore,
}

func init() {
	RootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	ts := targetStore()
	list, err := resolveTargets(ts, args)
	if err != nil {
		return err
	}
	hist, err := openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()
	orch, err := newOrchestrator(ts, hist)
	if err != nil {
		return err
	}

	failed := 0
	for _, t := range list {
		if err := orch.Uninstall(t); err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %s\n", t.ID, describeError(err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Restored original files of %s\n", t.ID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets could not be fully restored", failed, len(list))
	}
	return nil
}
