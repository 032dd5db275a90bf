package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/packport/internal/output"
	"github.com/blackwell-systems/packport/internal/targets"
)

var (
	targetRemoveKeep bool

	targetCmd = &cobra.Command{
		Use:   "target",
		Short: "Manage game installations packport exports into",
		Long: `Manage targets: game installations packport exports into.

Targets are stored in an INI file (targets_file in the config), one
section per target with its Steam app id, its directory and the package
versions its resource cache was built from.`,
	}

	targetAddCmd = &cobra.Command{
		Use:   "add <name> <app-id> <dir>",
		Short: "Register a game installation",
		Example: `  packport target add portal2 620 "/games/Portal 2"
  packport target add tag 280740 ~/games/aperturetag`,
		Args: cobra.ExactArgs(3),
		RunE: runTargetAdd,
	}

	targetListCmd = &cobra.Command{
		Use:   "list",
		Short: "List targets and the state of their resource cache",
		Args:  cobra.NoArgs,
		RunE:  runTargetList,
	}

	targetRemoveCmd = &cobra.Command{
		Use:   "remove <name>",
		Short: "Restore a target's original files and forget it",
		Long: `Remove a target. Unless --keep-files is given, everything packport
installed is removed first: the search path entry, the FGD block, the
replaced compiler and editor files, and the resource cache.`,
		Args: cobra.ExactArgs(1),
		RunE: runTargetRemove,
	}
)

func init() {
	targetRemoveCmd.Flags().BoolVar(&targetRemoveKeep, "keep-files", false, "forget the target without restoring its files")

	targetCmd.AddCommand(targetAddCmd, targetListCmd, targetRemoveCmd)
	RootCmd.AddCommand(targetCmd)
}

func runTargetAdd(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[2])
	if err != nil {
		return fmt.Errorf("invalid directory %s: %w", args[2], err)
	}
	t := targets.New(args[0], args[1], dir)
	if err := t.Validate(); err != nil {
		return err
	}

	ts := targetStore()
	if existing, err := ts.Get(t.ID); err == nil {
		// Keep the cache record of a re-added target.
		t.ModTimes = existing.ModTimes
	}
	if err := ts.SaveTarget(t); err != nil {
		return fmt.Errorf("failed to save target: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Added target %s (%s)\n", t.ID, t.Root)
	return nil
}

func runTargetList(cmd *cobra.Command, args []string) error {
	ts := targetStore()
	all, err := ts.Load()
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}

	rows := make([]output.TargetRow, 0, len(all))
	if len(all) > 0 {
		// Without packages every cache counts as stale.
		pkgs, err := loadPackages(cmd.ErrOrStderr())
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
		c := newCache(ts)
		for _, t := range all {
			rows = append(rows, output.TargetRow{Target: t, Stale: pkgs == nil || c.IsStale(t, pkgs)})
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderTargetTable(rows))
	return nil
}

func runTargetRemove(cmd *cobra.Command, args []string) error {
	ts := targetStore()
	t, err := ts.Get(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !targetRemoveKeep {
		hist, err := openHistory()
		if err != nil {
			return err
		}
		defer hist.Close()
		orch, err := newOrchestrator(ts, hist)
		if err != nil {
			return err
		}
		if err := orch.Uninstall(t); err != nil {
			return fmt.Errorf("failed to restore %s, target kept: %w", t.ID, err)
		}
		fmt.Fprintf(out, "✓ Restored original files of %s\n", t.ID)
	}

	if err := ts.Remove(t.ID); err != nil {
		return fmt.Errorf("failed to remove target: %w", err)
	}
	fmt.Fprintf(out, "✓ Removed target %s\n", t.ID)
	return nil
}
