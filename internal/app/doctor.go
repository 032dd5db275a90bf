package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/packport/internal/backup"
	"github.com/blackwell-systems/packport/internal/classify"
	"github.com/blackwell-systems/packport/internal/logging"
	"github.com/blackwell-systems/packport/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common setup problems",
	Long: `Runs diagnostic checks on your packport setup.

Checks:
  • Packages load and the selected style exists
  • The compiler folder is present
  • Every target is valid and writable, and its backups are in place
  • The history database is accessible`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Running packport diagnostics...")
	fmt.Fprintln(out)

	criticalIssues := 0
	warningIssues := 0

	if _, err := os.Stat(configLocation()); err == nil {
		fmt.Fprintln(out, "✓ Config file:", configLocation())
	} else {
		fmt.Fprintln(out, "✓ Using built-in defaults (no config file at", configLocation()+")")
	}

	// Packages and selection
	pkgs, err := loadPackages(cmd.ErrOrStderr())
	if err != nil {
		fmt.Fprintln(out, "✗", err)
		fmt.Fprintln(out, "  Action: create the folder or set packages_dir")
		criticalIssues++
	} else {
		fmt.Fprintf(out, "✓ %d packages loaded from %s\n", pkgs.Len(), cfg.PackagesDir)
		if _, ok := pkgs.Style(cfg.Export.Style); ok {
			fmt.Fprintln(out, "✓ Selected style found:", cfg.Export.Style)
		} else {
			fmt.Fprintf(out, "✗ Selected style %q is not in any package\n", cfg.Export.Style)
			fmt.Fprintln(out, "  Action: set export.style or pass --style to export")
			criticalIssues++
		}
	}

	// Compiler: warning only, exports continue without it
	if info, err := os.Stat(cfg.CompilerDir); err != nil || !info.IsDir() {
		fmt.Fprintln(out, "⚠ Compiler folder not found:", cfg.CompilerDir)
		fmt.Fprintln(out, "  Exports will not install the map compiler")
		warningIssues++
	} else {
		fmt.Fprintln(out, "✓ Compiler folder found:", cfg.CompilerDir)
	}

	// Targets
	ts := targetStore()
	all, err := ts.Load()
	if err != nil {
		fmt.Fprintln(out, "✗ Cannot read targets:", err)
		criticalIssues++
	} else if len(all) == 0 {
		fmt.Fprintln(out, "⚠ No targets configured")
		fmt.Fprintln(out, "  Action: Run 'packport target add <name> <app-id> <dir>'")
		warningIssues++
	} else {
		mgr := backup.New(appFs, classify.New(appFs, cfg.SignatureBytes()...), nil)
		c := newCache(ts)
		for _, t := range all {
			if err := t.Validate(); err != nil {
				fmt.Fprintln(out, "✗", describeError(err))
				criticalIssues++
				continue
			}
			fmt.Fprintf(out, "✓ Target %s: %s\n", t.ID, t.Root)
			for _, f := range backup.Manifest {
				state, err := mgr.State(t, f)
				if err != nil {
					fmt.Fprintf(out, "  ⚠ %s: %v\n", f.Name, err)
					warningIssues++
				} else if state == backup.NoBackup && fileExists(f.Current(t)) && len(t.ModTimes) > 0 {
					fmt.Fprintf(out, "  ⚠ %s has no backup\n", f.Name)
					warningIssues++
				}
			}
			if pkgs != nil && c.IsStale(t, pkgs) {
				fmt.Fprintf(out, "  ⚠ Resource cache is stale; run 'packport export %s --refresh'\n", t.ID)
				warningIssues++
			}
		}
	}

	// History database
	if st, err := store.Open(cfg.HistoryDB); err != nil {
		fmt.Fprintln(out, "✗ Cannot open history database:", err)
		criticalIssues++
	} else {
		fmt.Fprintln(out, "✓ History database is accessible:", cfg.HistoryDB)
		st.Close()
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Log file:", logging.LogFilePath())
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Fprintln(out, "✓ All checks passed!")
		return nil
	}
	fmt.Fprintf(out, "Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
	if criticalIssues > 0 {
		return fmt.Errorf("diagnostics failed")
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
