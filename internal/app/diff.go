package app

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/aymanbagabas/go-udiff"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/packport/internal/export"
)

var diffCmd = &cobra.Command{
	Use:   "diff <target>",
	Short: "Preview the compiler configuration an export would write",
	Long: `Build the compiler configuration for the current selection without
touching the target, and print a unified diff against the target's current
bin/bee2/vbsp_config.cfg. Accepts the same selection flags as export.`,
	Example: `  packport diff portal2
  packport diff portal2 --style BEE2_BTS --set UnlockDefault=true`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&exportStyle, "style", "", "style ID (default: export.style from the config)")
	diffCmd.Flags().StringVar(&exportVoice, "voice", "", "voice line pack ID (default: export.voice from the config)")
	diffCmd.Flags().StringToStringVar(&exportStyleVars, "set", nil, "style var override, e.g. --set UnlockDefault=true")

	RootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	sel, err := selection()
	if err != nil {
		return err
	}
	ts := targetStore()
	t, err := ts.Get(args[0])
	if err != nil {
		return err
	}
	pkgs, err := loadPackages(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(ts, nil)
	if err != nil {
		return err
	}

	xctx, err := orch.BuildConfig(export.Session{Target: t, Packages: pkgs, Selection: sel})
	if err != nil {
		return err
	}
	next := xctx.Config.String()

	path := t.Path(export.CompilerConfigFile)
	current, err := afero.ReadFile(appFs, path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	diff := udiff.Unified(export.CompilerConfigFile+" (current)", export.CompilerConfigFile+" (export)", string(current), next)
	if diff == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), diff)
	return nil
}
