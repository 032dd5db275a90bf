package app

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/packport/internal/targets"
	"github.com/blackwell-systems/packport/internal/watcher"
)

var (
	watchDebounce time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Report targets whose cache goes stale while packages change",
		Long: `Watch the packages directory and, after every burst of changes, print
which packages changed and which targets now need 'packport export --refresh'.

watch never exports by itself. Press Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before changes are reported")

	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ts := targetStore()
	out := cmd.OutOrStdout()

	w, err := watcher.New(cfg.PackagesDir, watchDebounce, func(changed []string) {
		fmt.Fprintf(out, "%s changed: %s\n", time.Now().Format("15:04:05"), strings.Join(changed, ", "))
		stale, err := staleTargets(ts)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			return
		}
		if len(stale) == 0 {
			fmt.Fprintln(out, "  All targets are up to date.")
			return
		}
		for _, t := range stale {
			fmt.Fprintf(out, "  %s is stale; run 'packport export %s --refresh'\n", t.ID, t.ID)
		}
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", cfg.PackagesDir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case <-cmd.Context().Done():
	}

	fmt.Fprintln(out, "\nStopping watcher...")
	return w.Stop()
}

// staleTargets reloads the packages and returns the targets whose cache no
// longer matches them.
func staleTargets(ts *targets.Store) ([]*targets.Target, error) {
	all, err := ts.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}
	pkgs, err := loadPackages(io.Discard)
	if err != nil {
		return nil, err
	}
	c := newCache(ts)
	var stale []*targets.Target
	for _, t := range all {
		if c.IsStale(t, pkgs) {
			stale = append(stale, t)
		}
	}
	return stale, nil
}
