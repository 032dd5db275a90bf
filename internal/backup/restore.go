package backup

import (
	"errors"
	"io/fs"

	"github.com/blackwell-systems/packport/internal/errs"
	"github.com/blackwell-systems/packport/internal/fsutil"
	"github.com/blackwell-systems/packport/internal/targets"
)

// Restore puts the original of f back. A styled variant, when present, is
// copied over the current file; otherwise the backup is moved back and no
// backup remains. With neither present nothing happens and NoBackup is
// returned.
func (m *Manager) Restore(t *targets.Target, f TrackedFile) (State, error) {
	current := f.Current(t)

	styled := f.Styled(t)
	ok, err := fsutil.Exists(m.fs, styled)
	if err != nil {
		return NoBackup, wrapIOErr(err, styled)
	}
	if ok {
		if err := fsutil.CopyFile(m.fs, styled, current); err != nil {
			return NoBackup, wrapIOErr(err, current)
		}
		m.log.Info().Str("file", f.Name).Msg("Restored styled original")
		m.record(t, f, ActionRestoreStyled)
		return Restored, nil
	}

	backup := f.Backup(t)
	ok, err = fsutil.Exists(m.fs, backup)
	if err != nil {
		return NoBackup, wrapIOErr(err, backup)
	}
	if !ok {
		return NoBackup, nil
	}

	if err := fsutil.UnsetReadOnly(m.fs, current); err != nil {
		return NoBackup, wrapIOErr(err, current)
	}
	if err := m.fs.Rename(backup, current); err != nil {
		return NoBackup, wrapIOErr(err, current)
	}
	m.log.Info().Str("file", f.Name).Msg("Restored original")
	m.record(t, f, ActionRestore)
	return Restored, nil
}

// RestoreAll restores every file in files and joins the failures.
func (m *Manager) RestoreAll(t *targets.Target, files []TrackedFile) error {
	var failed []error
	for _, f := range files {
		if _, err := m.Restore(t, f); err != nil {
			m.log.Warn().Err(err).Str("file", f.Name).Msg("Restore failed")
			failed = append(failed, err)
		}
	}
	return errors.Join(failed...)
}

// State reports whether a backup of f currently exists. It never returns
// Restored: once the backup is moved back the files look as if no backup
// was ever taken. Restored comes from Restore's return value, or from the
// ledger through StateAfter.
func (m *Manager) State(t *targets.Target, f TrackedFile) (State, error) {
	ok, err := fsutil.Exists(m.fs, f.Backup(t))
	if err != nil {
		return NoBackup, wrapIOErr(err, f.Backup(t))
	}
	if ok {
		return BackedUp, nil
	}
	return NoBackup, nil
}

func isPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errs.IsKind(err, errs.KindPermission)
}
