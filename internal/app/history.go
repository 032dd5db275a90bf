package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/packport/internal/output"
	"github.com/blackwell-systems/packport/internal/store"
)

var (
	historyTarget  string
	historyLimit   int
	historyPrune   int
	historyBackups string

	historyCmd = &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past exports and their phases",
		Long: `List recorded exports, newest first. With a run id (or a unique prefix
of one) the phases of that export are shown. --backups shows the backup
ledger of a target instead: every backup and restore of its tracked files.`,
		Example: `  packport history
  packport history --target portal2 --limit 5
  packport history 3f2a9c1e
  packport history --prune 20
  packport history --backups portal2`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().StringVar(&historyTarget, "target", "", "only show exports of this target")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of exports to show (0 for all)")
	historyCmd.Flags().IntVar(&historyPrune, "prune", 0, "delete all but the newest N exports of every target")
	historyCmd.Flags().StringVar(&historyBackups, "backups", "", "show the backup ledger of this target")

	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := store.New(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer st.Close()
	out := cmd.OutOrStdout()

	if historyPrune > 0 {
		n, err := st.PruneExports(historyPrune)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Pruned %d exports\n", n)
		return nil
	}

	if historyBackups != "" {
		events, err := st.ListBackupEvents(historyBackups)
		if errors.Is(err, store.ErrNotInitialized) {
			fmt.Fprintln(out, "No backups recorded yet. Run 'packport export' first.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprint(out, output.RenderBackupTable(events))
		return nil
	}

	if len(args) == 1 {
		e, err := findExport(st, args[0])
		if err != nil {
			return err
		}
		phases, err := st.GetExportPhases(e.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run:      %s\n", e.ID)
		fmt.Fprintf(out, "Target:   %s\n", e.Target)
		fmt.Fprintf(out, "Style:    %s\n", e.Style)
		fmt.Fprintf(out, "Started:  %s\n", e.StartedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Outcome:  %s\n", e.Outcome)
		if e.Error != "" {
			fmt.Fprintf(out, "Error:    %s\n", e.Error)
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, output.RenderPhaseTable(phases))
		return nil
	}

	exports, err := st.ListExports(historyTarget, historyLimit)
	if errors.Is(err, store.ErrNotInitialized) {
		fmt.Fprintln(out, "No exports recorded yet. Run 'packport export' first.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprint(out, output.RenderHistoryTable(exports))
	return nil
}

// findExport resolves a full run id or a unique prefix of one.
func findExport(st *store.Store, id string) (*store.Export, error) {
	if e, err := st.GetExport(id); err == nil {
		return e, nil
	} else if errors.Is(err, store.ErrNotInitialized) {
		return nil, err
	}
	all, err := st.ListExports("", 0)
	if err != nil {
		return nil, err
	}
	var match *store.Export
	for _, e := range all {
		if e.ID == id {
			return e, nil
		}
		if strings.HasPrefix(e.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run id %q is ambiguous", id)
			}
			match = e
		}
	}
	if match == nil {
		return nil, fmt.Errorf("export %s not found", id)
	}
	return match, nil
}
