package app

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/packport/internal/export"
	"github.com/blackwell-systems/packport/internal/output"
)

var (
	exportStyle     string
	exportVoice     string
	exportStyleVars map[string]string
	exportRefresh   bool
	exportForce     bool

	exportCmd = &cobra.Command{
		Use:   "export [target...]",
		Short: "Export the selected style and packages into targets",
		Long: `Export the selected style, items and voice lines into one or more targets.
With no target named every configured target is exported, one after the
other.

An export runs these phases in order:
  • Backup            secure the vendor compiler and editor files
  • ConfigBuild       seed the configuration from the style
  • ObjectExport      style vars, items, voice lines, style archives
  • GameinfoPatch     add the overlay folder to the search paths
  • FgdPatch          add our entity definitions
  • Commit            write editoritems.txt, editor.bin, vbsp_config.cfg
  • CompilerCopy      install the map compiler
  • ResourceRefresh   sync package resources (with --refresh, when stale)
  • ContentGeneration generated models and materials

Ctrl+C stops the export between steps. Files already written stay as they
are; run the export again to finish it.`,
		Example: `  packport export
  packport export portal2 --style BEE2_BTS --voice BEE2_GLADOS
  packport export --refresh
  packport export portal2 --set UnlockDefault=true --refresh --force`,
		RunE: runExport,
	}
)

func init() {
	exportCmd.Flags().StringVar(&exportStyle, "style", "", "style ID (default: export.style from the config)")
	exportCmd.Flags().StringVar(&exportVoice, "voice", "", "voice line pack ID (default: export.voice from the config)")
	exportCmd.Flags().StringToStringVar(&exportStyleVars, "set", nil, "style var override, e.g. --set UnlockDefault=true")
	exportCmd.Flags().BoolVar(&exportRefresh, "refresh", false, "sync the resource cache when it is stale")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "with --refresh, rewrite every cached file even when the cache looks fresh")

	RootCmd.AddCommand(exportCmd)
}

// selection merges the configured selection with the command line.
func selection() (export.Selection, error) {
	sel := export.Selection{
		Style:     cfg.Export.Style,
		Voice:     cfg.Export.Voice,
		StyleVars: make(map[string]bool, len(cfg.Export.StyleVars)),
	}
	for k, v := range cfg.Export.StyleVars {
		sel.StyleVars[k] = v
	}
	if exportStyle != "" {
		sel.Style = exportStyle
	}
	if exportVoice != "" {
		sel.Voice = exportVoice
	}
	for k, raw := range exportStyleVars {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return sel, fmt.Errorf("invalid value %q for style var %s", raw, k)
		}
		sel.StyleVars[k] = v
	}
	if sel.Style == "" {
		return sel, fmt.Errorf("no style selected; pass --style or set export.style in %s", configLocation())
	}
	return sel, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	sel, err := selection()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
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
	hist, err := openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()
	orch, err := newOrchestrator(ts, hist)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, t := range list {
		fmt.Fprintf(out, "Exporting %s to %s...\n", sel.Style, t.ID)
		sink := output.NewStageProgress(ctx, cmd.ErrOrStderr())
		res := orch.Export(ctx, export.Session{
			Target:    t,
			Packages:  pkgs,
			Selection: sel,
			Sink:      sink,
			Refresh:   exportRefresh,
			Force:     exportForce,
		})
		sink.Finish()

		for _, w := range res.Warnings {
			fmt.Fprintf(out, "⚠ %s\n", describeError(w))
		}
		switch res.Phase {
		case export.PhaseCancelled:
			fmt.Fprintf(out, "✗ Export to %s cancelled; files written so far were kept\n", t.ID)
			return fmt.Errorf("export cancelled")
		case export.PhaseFailed:
			failed++
			fmt.Fprintf(out, "✗ Export to %s failed in %s: %s\n", t.ID, res.FailedPhase, describeError(res.Err))
			if res.RecoveryHint != "" {
				fmt.Fprintf(out, "  Action: verify the game files: %s\n", res.RecoveryHint)
			}
		default:
			fmt.Fprintf(out, "✓ Exported to %s (run %s)\n", t.ID, res.RunID)
			if !res.PackagingOK {
				fmt.Fprintln(out, "  Style packaging was incomplete; some style assets may be missing")
			}
			if res.Refreshed {
				fmt.Fprintf(out, "  Resources: %d copied, %d unchanged, %d deleted\n",
					res.Cache.Copied, res.Cache.Unchanged, res.Cache.Deleted)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d exports failed", failed, len(list))
	}
	return nil
}
