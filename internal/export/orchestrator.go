package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/backup"
	"github.com/blackwell-systems/packport/internal/cache"
	"github.com/blackwell-systems/packport/internal/errs"
	"github.com/blackwell-systems/packport/internal/items"
	"github.com/blackwell-systems/packport/internal/kv"
	"github.com/blackwell-systems/packport/internal/logging"
	"github.com/blackwell-systems/packport/internal/progress"
)

// Phase is a step of the export state machine.
type Phase string

const (
	PhaseBackup            Phase = "Backup"
	PhaseConfigBuild       Phase = "ConfigBuild"
	PhaseObjectExport      Phase = "ObjectExport"
	PhaseGameinfoPatch     Phase = "GameinfoPatch"
	PhaseFgdPatch          Phase = "FgdPatch"
	PhaseCommit            Phase = "Commit"
	PhaseCompilerCopy      Phase = "CompilerCopy"
	PhaseResourceRefresh   Phase = "ResourceRefresh"
	PhaseContentGeneration Phase = "ContentGeneration"
	PhaseDone              Phase = "Done"
	PhaseCancelled         Phase = "Cancelled"
	PhaseFailed            Phase = "Failed"
)

// Phase statuses and run outcomes as written to the recorder.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusWarning = "warning"
	StatusFailed  = "failed"

	OutcomeDone      = "done"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// GameIntegration patches the game's own files.
type GameIntegration interface {
	EditGameinfo(root string, add bool) ([]string, error)
	EditFGD(root string, add bool) (bool, error)
}

// Recorder keeps the export history. *store.Store implements it.
type Recorder interface {
	BeginExport(id, target, style string, startedAt time.Time) error
	RecordPhase(exportID, phase, status, detail string) error
	FinishExport(id, outcome, failedPhase string, packagingOK bool, warnings int, errMsg string) error
}

// Options are the user settings an export honours.
type Options struct {
	// CompilerDir holds the map compiler binaries copied into bin/.
	CompilerDir string
	// MusicDir holds extra music copied into the overlay. Empty disables it.
	MusicDir             string
	PreserveResources    bool
	ForceAllEditorModels bool
	DevMode              bool
}

// Deps wires the orchestrator to its collaborators. Game and Recorder may
// be nil; nil Exporters and Generators use the defaults.
type Deps struct {
	Backup     *backup.Manager
	Cache      *cache.Cache
	Game       GameIntegration
	Recorder   Recorder
	Exporters  []Exporter
	Generators []Generator
	Options    Options
}

// Result describes a finished run.
type Result struct {
	RunID uuid.UUID
	// Success is false when the run failed or was cancelled.
	Success bool
	// PackagingOK is false when an exporter reported a soft failure.
	PackagingOK bool
	// Phase is the terminal phase: Done, Cancelled or Failed.
	Phase       Phase
	FailedPhase Phase
	Err         error
	Warnings    []error
	// RecoveryHint is set when the game installation must be verified.
	RecoveryHint string

	Backups   []backup.Result
	Refreshed bool
	Cache     cache.Result
}

// Outcome returns (success, packagingOK). A cancelled run is (false, false).
func (r *Result) Outcome() (bool, bool) {
	return r.Success, r.PackagingOK
}

// Orchestrator runs exports. It holds no per-run state.
type Orchestrator struct {
	fs   afero.Fs
	deps Deps
	log  zerolog.Logger
}

// New creates an Orchestrator operating on fsys.
func New(fsys afero.Fs, deps Deps) *Orchestrator {
	if deps.Exporters == nil {
		deps.Exporters = DefaultExporters()
	}
	if deps.Generators == nil {
		deps.Generators = DefaultGenerators()
	}
	return &Orchestrator{fs: fsys, deps: deps, log: logging.GetLogger("export")}
}

// fixedExportSteps are the EXP steps besides exporters and generators:
// post-processing, gameinfo, FGD and the three committed files.
const fixedExportSteps = 6

// run is the state of one export.
type run struct {
	o    *Orchestrator
	ctx  context.Context
	s    Session
	sink progress.Sink
	res  *Result
	xctx *Context
	log  zerolog.Logger

	// unbacked holds the manifest paths whose backup failed. Nothing may
	// overwrite them during this run.
	unbacked map[string]bool
}

// Export runs every phase against s.Target. It never panics on collaborator
// errors; everything ends up in the Result. Cancelling ctx, or the sink
// reporting cancellation, stops the run between steps without rolling back
// what was already written.
func (o *Orchestrator) Export(ctx context.Context, s Session) *Result {
	id := uuid.New()
	r := &run{
		o:    o,
		ctx:  ctx,
		s:    s,
		sink: progress.OrNop(s.Sink),
		res:  &Result{RunID: id, PackagingOK: true},
		log:  o.log.With().Str("run", id.String()).Str("target", s.Target.ID).Logger(),

		unbacked: make(map[string]bool),
	}

	if rec := o.deps.Recorder; rec != nil {
		if err := rec.BeginExport(id.String(), s.Target.ID, s.Selection.Style, time.Now()); err != nil {
			r.log.Warn().Err(err).Msg("Failed to record export start")
		}
	}
	r.log.Info().Str("style", s.Selection.Style).Msg("Export started")

	r.execute()
	r.finish()
	return r.res
}

func (r *run) execute() {
	steps := []struct {
		phase Phase
		fn    func() error
	}{
		{PhaseBackup, r.backup},
		{PhaseConfigBuild, r.configBuild},
		{PhaseObjectExport, r.objectExport},
		{PhaseGameinfoPatch, r.gameinfoPatch},
		{PhaseFgdPatch, r.fgdPatch},
		{PhaseCommit, r.commit},
		{PhaseCompilerCopy, r.compilerCopy},
		{PhaseResourceRefresh, r.resourceRefresh},
		{PhaseContentGeneration, r.contentGeneration},
	}

	for _, st := range steps {
		if err := r.ctx.Err(); err != nil {
			r.cancel(st.phase)
			return
		}
		r.log.Debug().Str("phase", string(st.phase)).Msg("Entering phase")
		err := st.fn()
		if err == nil {
			continue
		}
		if isCancelled(err) || r.ctx.Err() != nil {
			r.cancel(st.phase)
			return
		}
		r.fail(st.phase, err)
		return
	}

	r.res.Phase = PhaseDone
	r.res.Success = true
}

func isCancelled(err error) bool {
	return errs.IsKind(err, errs.KindCancelled) || errors.Is(err, context.Canceled)
}

// step reports progress and turns ctx cancellation into ErrCancelled.
func (r *run) step(stage progress.Stage, label string) error {
	if r.ctx.Err() != nil {
		return progress.ErrCancelled
	}
	return r.sink.Step(stage, label)
}

func (r *run) record(phase Phase, status, detail string) {
	rec := r.o.deps.Recorder
	if rec == nil {
		return
	}
	if err := rec.RecordPhase(r.res.RunID.String(), string(phase), status, detail); err != nil {
		r.log.Warn().Err(err).Str("phase", string(phase)).Msg("Failed to record phase")
	}
}

func (r *run) warn(phase Phase, err error) {
	r.res.Warnings = append(r.res.Warnings, err)
	r.log.Warn().Err(err).Str("phase", string(phase)).Msg("Export warning")
	r.record(phase, StatusWarning, err.Error())
}

func (r *run) cancel(phase Phase) {
	r.res.Phase = PhaseCancelled
	r.res.Success = false
	r.res.PackagingOK = false
	r.res.Err = progress.ErrCancelled
	r.log.Info().Str("phase", string(phase)).Msg("Export cancelled")
	r.record(phase, StatusFailed, "cancelled")
}

func (r *run) fail(phase Phase, err error) {
	r.res.Phase = PhaseFailed
	r.res.FailedPhase = phase
	r.res.Success = false
	r.res.Err = err
	r.log.Error().Err(err).Str("phase", string(phase)).Msg("Export failed")
	r.record(phase, StatusFailed, err.Error())
}

func (r *run) finish() {
	res := r.res
	outcome := OutcomeDone
	switch res.Phase {
	case PhaseCancelled:
		outcome = OutcomeCancelled
	case PhaseFailed:
		outcome = OutcomeFailed
	}
	r.log.Info().
		Str("outcome", outcome).
		Bool("packagingOK", res.PackagingOK).
		Int("warnings", len(res.Warnings)).
		Msg("Export finished")

	rec := r.o.deps.Recorder
	if rec == nil {
		return
	}
	msg := ""
	if res.Err != nil {
		msg = res.Err.Error()
	}
	err := rec.FinishExport(res.RunID.String(), outcome, string(res.FailedPhase), res.PackagingOK, len(res.Warnings), msg)
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to record export result")
	}
}

// backup secures every manifest file before anything is overwritten.
func (r *run) backup() error {
	files := backup.Manifest
	r.sink.SetLength(progress.Backup, len(files))
	results, err := r.o.deps.Backup.EnsureAll(r.s.Target, files, func(f backup.TrackedFile) error {
		return r.step(progress.Backup, f.Name)
	})
	r.res.Backups = results
	if err != nil {
		if errs.IsKind(err, errs.KindVendorFilesLost) {
			r.res.RecoveryHint = fmt.Sprintf("steam://validate/%s", r.s.Target.AppID)
		}
		return err
	}
	for _, br := range results {
		if !br.OK() {
			r.unbacked[manifestKey(br.File.Path+br.File.Ext)] = true
			r.warn(PhaseBackup, fmt.Errorf("%s: %w", br.File.Name, br.Err))
		}
	}
	r.record(PhaseBackup, StatusOK, fmt.Sprintf("%d files", len(files)))
	return nil
}

func manifestKey(rel string) string {
	return strings.ToLower(strings.TrimPrefix(strings.ReplaceAll(rel, "\\", "/"), "/"))
}

// guarded reports whether rel is a vendor file without a backup. The caller
// must leave it untouched; a warning is recorded.
func (r *run) guarded(phase Phase, rel string) bool {
	if !r.unbacked[manifestKey(rel)] {
		return false
	}
	r.warn(phase, fmt.Errorf("left %s unchanged: its original could not be backed up", rel))
	return true
}

func (r *run) configBuild() error {
	xctx, err := r.o.newContext(r.res.RunID, r.s, false)
	if err != nil {
		return err
	}
	r.xctx = xctx
	r.sink.SetLength(progress.Export, len(r.o.deps.Exporters)+fixedExportSteps+len(r.o.deps.Generators))
	r.record(PhaseConfigBuild, StatusOK, xctx.Style.ID)
	return nil
}

// newContext seeds a context from the selected style.
func (o *Orchestrator) newContext(id uuid.UUID, s Session, dryRun bool) (*Context, error) {
	if s.Packages == nil {
		return nil, errs.New(errs.KindValidation, "no packages loaded")
	}
	style, ok := s.Packages.Style(s.Selection.Style)
	if !ok {
		return nil, errs.Newf(errs.KindValidation, "unknown style %q", s.Selection.Style)
	}
	cfg := kv.NewRoot()
	cfg.Extend(style.Config)
	return &Context{
		RunID:       id,
		Target:      s.Target,
		Packages:    s.Packages,
		Selection:   s.Selection,
		Style:       style,
		Items:       items.ForStyle(s.Packages.Items(), style.ID),
		Renderables: s.Packages.Renderables(),
		Config:      cfg,
		Resources:   make(map[string][]byte),
		Options:     o.deps.Options,
		DryRun:      dryRun,
		fs:          o.fs,
	}, nil
}

func (r *run) objectExport() error {
	for _, ex := range r.o.deps.Exporters {
		if err := r.step(progress.Export, ex.Name()); err != nil {
			return err
		}
		if err := r.o.runExporter(r.xctx, ex); err != nil {
			if isCancelled(err) {
				return err
			}
			if errs.IsKind(err, errs.KindSoftExport) {
				r.res.PackagingOK = false
			}
			r.warn(PhaseObjectExport, fmt.Errorf("%s: %w", ex.Name(), err))
		}
	}

	if err := r.step(progress.Export, "Post-processing"); err != nil {
		return err
	}
	postProcess(r.xctx)
	r.record(PhaseObjectExport, StatusOK, fmt.Sprintf("%d items", len(r.xctx.Items)))
	return nil
}

func (o *Orchestrator) runExporter(xctx *Context, ex Exporter) error {
	o.log.Debug().Str("exporter", ex.Name()).Msg("Running exporter")
	return ex.Export(xctx)
}

// postProcess applies the style var driven item changes, sets the options
// the compiler needs and merges the configuration.
func postProcess(xctx *Context) {
	if xctx.StyleVar("UnlockDefault") {
		for i, it := range xctx.Items {
			if items.IsUnlockDefault(it.ID) {
				xctx.ReplaceItem(i, it.Unlocked())
			}
		}
	}
	xctx.Config.SetKey(xctx.Target.AppID, "Options", "Game_ID")
	xctx.Config.SetKey(boolValue(xctx.Options.DevMode), "Options", "dev_mode")
	xctx.Config.MergeChildren(kv.CanonicalOrder...)
}

func (r *run) gameinfoPatch() error {
	if err := r.step(progress.Export, "Gameinfo"); err != nil {
		return err
	}
	game := r.o.deps.Game
	if game == nil {
		r.record(PhaseGameinfoPatch, StatusSkipped, "")
		return nil
	}
	changed, err := game.EditGameinfo(r.s.Target.Root, true)
	if err != nil {
		r.warn(PhaseGameinfoPatch, err)
		return nil
	}
	r.record(PhaseGameinfoPatch, StatusOK, fmt.Sprintf("%d files", len(changed)))
	return nil
}

func (r *run) fgdPatch() error {
	if err := r.step(progress.Export, "FGD"); err != nil {
		return err
	}
	game := r.o.deps.Game
	if game == nil || r.o.deps.Options.PreserveResources {
		r.record(PhaseFgdPatch, StatusSkipped, "")
		return nil
	}
	if _, err := game.EditFGD(r.s.Target.Root, true); err != nil {
		r.warn(PhaseFgdPatch, err)
		return nil
	}
	r.record(PhaseFgdPatch, StatusOK, "")
	return nil
}

func (r *run) contentGeneration() error {
	for _, g := range r.o.deps.Generators {
		if err := r.step(progress.Export, g.Name()); err != nil {
			return err
		}
		if err := g.Generate(r.xctx); err != nil {
			if isCancelled(err) {
				return err
			}
			r.warn(PhaseContentGeneration, fmt.Errorf("%s: %w", g.Name(), err))
		}
	}

	n, err := r.o.writeResources(r.xctx)
	if err != nil {
		r.warn(PhaseContentGeneration, err)
		return nil
	}
	r.record(PhaseContentGeneration, StatusOK, fmt.Sprintf("%d files", n))
	return nil
}

// BuildConfig runs the configuration phases without touching the target and
// returns the resulting context. Used to preview what an export would write.
func (o *Orchestrator) BuildConfig(s Session) (*Context, error) {
	xctx, err := o.newContext(uuid.New(), s, true)
	if err != nil {
		return nil, err
	}
	for _, ex := range o.deps.Exporters {
		if err := o.runExporter(xctx, ex); err != nil && !errs.IsKind(err, errs.KindSoftExport) {
			o.log.Warn().Err(err).Str("exporter", ex.Name()).Msg("Exporter failed during preview")
		}
	}
	postProcess(xctx)
	return xctx, nil
}
