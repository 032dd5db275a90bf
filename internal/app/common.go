package app

import (
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/backup"
	"github.com/blackwell-systems/packport/internal/cache"
	"github.com/blackwell-systems/packport/internal/classify"
	"github.com/blackwell-systems/packport/internal/config"
	"github.com/blackwell-systems/packport/internal/errs"
	"github.com/blackwell-systems/packport/internal/export"
	"github.com/blackwell-systems/packport/internal/gameinfo"
	"github.com/blackwell-systems/packport/internal/output"
	"github.com/blackwell-systems/packport/internal/packages"
	"github.com/blackwell-systems/packport/internal/store"
	"github.com/blackwell-systems/packport/internal/targets"
)

// appFs is the filesystem every command works on.
var appFs = afero.NewOsFs()

func targetStore() *targets.Store {
	return targets.NewStore(appFs, cfg.TargetsFile)
}

// loadPackages loads the packages dir. A spinner is shown while loading
// when w is a terminal.
func loadPackages(w io.Writer) (*packages.Set, error) {
	var spinner *output.Spinner
	if output.IsTerminal(w) {
		spinner = output.NewSpinner("Loading packages")
		spinner.SetWriter(w)
		spinner.Start()
	}
	set, err := packages.NewLoader(appFs).Load(cfg.PackagesDir)
	if spinner != nil {
		if err != nil {
			spinner.Stop()
		} else {
			spinner.StopWithMessage(fmt.Sprintf("✓ Loaded %d packages", set.Len()))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load packages from %s: %w", cfg.PackagesDir, err)
	}
	return set, nil
}

// openHistory opens the history database, creating it when needed.
func openHistory() (*store.Store, error) {
	st, err := store.Open(cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return st, nil
}

func newCache(ts *targets.Store) *cache.Cache {
	return cache.New(appFs, cache.Options{
		PreserveResources: cfg.PreserveResources,
		ProtectedSuffixes: cfg.ProtectedSuffixes,
	}, ts)
}

// newOrchestrator wires an orchestrator from the configuration. hist may be
// nil, in which case nothing is recorded.
func newOrchestrator(ts *targets.Store, hist *store.Store) (*export.Orchestrator, error) {
	var fgd []byte
	if cfg.FGDFile != "" {
		data, err := afero.ReadFile(appFs, cfg.FGDFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read fgd_file: %w", err)
		}
		fgd = data
	}

	deps := export.Deps{
		Cache: newCache(ts),
		Game:  gameinfo.New(appFs, fgd),
		Options: export.Options{
			CompilerDir:          cfg.CompilerDir,
			MusicDir:             cfg.MusicDir,
			PreserveResources:    cfg.PreserveResources,
			ForceAllEditorModels: cfg.ForceAllEditorModels,
			DevMode:              cfg.DevMode,
		},
	}
	classifier := classify.New(appFs, cfg.SignatureBytes()...)
	if hist != nil {
		deps.Backup = backup.New(appFs, classifier, hist)
		deps.Recorder = hist
	} else {
		deps.Backup = backup.New(appFs, classifier, nil)
	}
	return export.New(appFs, deps), nil
}

// resolveTargets returns the named targets, or every target when names is
// empty.
func resolveTargets(ts *targets.Store, names []string) ([]*targets.Target, error) {
	if len(names) == 0 {
		all, err := ts.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load targets: %w", err)
		}
		if len(all) == 0 {
			return nil, errs.New(errs.KindValidation, "no targets configured\n\nAdd one with 'packport target add <name> <app-id> <dir>'")
		}
		return all, nil
	}

	out := make([]*targets.Target, 0, len(names))
	for _, name := range names {
		t, err := ts.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// describeError adds the follow-up a user needs for the error kinds that
// have one.
func describeError(err error) string {
	switch {
	case errs.IsKind(err, errs.KindPermission):
		return err.Error() + "\n  Action: close the game and any running compile, then retry"
	case errs.IsKind(err, errs.KindMissingDependency):
		return err.Error() + "\n  Action: set compiler_dir in " + configLocation()
	}
	return err.Error()
}

func configLocation() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}
