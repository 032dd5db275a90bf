package app

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/packport/internal/errs"
	"github.com/blackwell-systems/packport/internal/output"
)

var (
	cacheRefreshForce bool

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the per-target resource cache",
		Long: `Every target keeps a mirror of the package resources: instances under
sdk_content/maps/instances/bee2 and everything else under the bee2 overlay
folder. The cache is stale when the set of packages or any package's
modification time differs from what the target recorded.`,
	}

	cacheStatusCmd = &cobra.Command{
		Use:   "status [target...]",
		Short: "Show cache size and staleness",
		RunE:  runCacheStatus,
	}

	cacheRefreshCmd = &cobra.Command{
		Use:   "refresh [target...]",
		Short: "Sync the resource cache without a full export",
		RunE:  runCacheRefresh,
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear [target...]",
		Short: "Delete cached resources so the next export copies everything",
		RunE:  runCacheClear,
	}
)

func init() {
	cacheRefreshCmd.Flags().BoolVar(&cacheRefreshForce, "force", false, "rewrite every file, even ones that look current")
	cacheCmd.AddCommand(cacheStatusCmd, cacheRefreshCmd, cacheClearCmd)
	RootCmd.AddCommand(cacheCmd)
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	ts := targetStore()
	list, err := resolveTargets(ts, args)
	if err != nil {
		return err
	}
	pkgs, err := loadPackages(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c := newCache(ts)

	out := cmd.OutOrStdout()
	for i, t := range list {
		files, size, err := c.Usage(t)
		if err != nil {
			return fmt.Errorf("failed to measure cache of %s: %w", t.ID, err)
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprint(out, output.RenderCacheStatus(t, files, size, c.IsStale(t, pkgs)))
	}
	return nil
}

func runCacheRefresh(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ts := targetStore()
	list, err := resolveTargets(ts, args)
	if err != nil {
		return err
	}
	pkgs, err := loadPackages(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c := newCache(ts)
	refresh := c.Refresh
	if cacheRefreshForce {
		refresh = c.ForceRefresh
	}

	out := cmd.OutOrStdout()
	for _, t := range list {
		sink := output.NewStageProgress(ctx, cmd.ErrOrStderr())
		_, res, err := refresh(t, pkgs, nil, sink)
		sink.Finish()
		if err != nil {
			if errs.IsKind(err, errs.KindCancelled) || ctx.Err() != nil {
				return fmt.Errorf("refresh of %s cancelled", t.ID)
			}
			return fmt.Errorf("failed to refresh %s: %s", t.ID, describeError(err))
		}
		fmt.Fprintf(out, "✓ %s: %d copied, %d unchanged, %d deleted\n", t.ID, res.Copied, res.Unchanged, res.Deleted)
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ts := targetStore()
	list, err := resolveTargets(ts, args)
	if err != nil {
		return err
	}
	c := newCache(ts)
	for _, t := range list {
		if err := c.Clear(t); err != nil {
			return fmt.Errorf("failed to clear cache of %s: %w", t.ID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared cache of %s\n", t.ID)
	}
	return nil
}
