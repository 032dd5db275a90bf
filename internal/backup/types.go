// Package backup keeps a copy of every vendor file an export replaces and
// puts the originals back when the overlay is removed.
package backup

import (
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/classify"
	"github.com/blackwell-systems/packport/internal/logging"
	"github.com/blackwell-systems/packport/internal/targets"
)

// TrackedFile is a vendor file an export may overwrite.
type TrackedFile struct {
	Name string
	// Path is relative to the target root, slash separated, without Ext.
	Path string
	Ext  string
	// Scan enables the signature check. Text files cannot carry a
	// signature, so they are backed up once and never checked.
	Scan bool
}

// Current is the live file.
func (f TrackedFile) Current(t *targets.Target) string {
	return t.Path(f.Path + f.Ext)
}

// Backup is where the original is kept.
func (f TrackedFile) Backup(t *targets.Target) string {
	return t.Path(f.Path + "_original" + f.Ext)
}

// Styled is an alternate original that takes precedence on restore.
func (f TrackedFile) Styled(t *targets.Target) string {
	return t.Path(f.Path + "_styles" + f.Ext)
}

// Manifest is the set of files backed up before every export.
var Manifest = []TrackedFile{
	{Name: "Editoritems", Path: "portal2_dlc2/scripts/editoritems", Ext: ".txt"},
	{Name: "Windows VBSP", Path: "bin/vbsp", Ext: ".exe", Scan: true},
	{Name: "Windows VRAD", Path: "bin/vrad", Ext: ".exe", Scan: true},
	{Name: "OSX VBSP", Path: "bin/vbsp_osx", Scan: true},
	{Name: "OSX VRAD", Path: "bin/vrad_osx", Scan: true},
	{Name: "Linux VBSP", Path: "bin/vbsp_linux", Scan: true},
	{Name: "Linux VRAD", Path: "bin/vrad_linux", Scan: true},
}

// State describes a tracked file's backup.
type State int

const (
	NoBackup State = iota
	BackedUp
	Restored
)

func (s State) String() string {
	switch s {
	case BackedUp:
		return "backed up"
	case Restored:
		return "restored"
	}
	return "no backup"
}

// Ledger actions passed to the Recorder.
const (
	ActionBackup        = "backup"
	ActionRestore       = "restore"
	ActionRestoreStyled = "restore-styled"
	ActionLost          = "lost"
)

// StateAfter returns the state a file is in once action was recorded for
// it. ok is false for actions it does not know.
func StateAfter(action string) (state State, ok bool) {
	switch action {
	case ActionBackup:
		return BackedUp, true
	case ActionRestore, ActionRestoreStyled:
		return Restored, true
	case ActionLost:
		return NoBackup, true
	}
	return NoBackup, false
}

// Outcome is what EnsureBacked did for a file.
type Outcome int

const (
	// OutcomeNoSource: the current file does not exist, nothing to back up.
	OutcomeNoSource Outcome = iota
	// OutcomeAlreadyBacked: a valid backup was already in place.
	OutcomeAlreadyBacked
	// OutcomeBackedUp: the current vendor file was copied to the backup.
	OutcomeBackedUp
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyBacked:
		return "already backed up"
	case OutcomeBackedUp:
		return "backed up"
	}
	return "no source"
}

// Recorder receives backup actions for the history ledger.
type Recorder interface {
	RecordBackupEvent(targetID, file, action string) error
}

// Result is the per-file result of EnsureAll.
type Result struct {
	File    TrackedFile
	Outcome Outcome
	Err     error
}

// OK reports whether the file is safe to overwrite.
func (r Result) OK() bool { return r.Err == nil }

// Manager creates and restores backups in target installations.
type Manager struct {
	fs         afero.Fs
	classifier *classify.Classifier
	recorder   Recorder
	log        zerolog.Logger
}

// New creates a Manager. recorder may be nil.
func New(fsys afero.Fs, classifier *classify.Classifier, recorder Recorder) *Manager {
	return &Manager{
		fs:         fsys,
		classifier: classifier,
		recorder:   recorder,
		log:        logging.GetLogger("backup"),
	}
}

func (m *Manager) record(t *targets.Target, f TrackedFile, action string) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordBackupEvent(t.ID, f.Name, action); err != nil {
		m.log.Warn().Err(err).Str("file", f.Name).Msg("Failed to record backup event")
	}
}
