package backup

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/blackwell-systems/packport/internal/classify"
	"github.com/blackwell-systems/packport/internal/errs"
	"github.com/blackwell-systems/packport/internal/fsutil"
	"github.com/blackwell-systems/packport/internal/targets"
)

// EnsureBacked makes sure an original copy of f exists before f is
// overwritten. A vendor file is copied only if no backup exists yet. If the
// current file is one of ours the backup must be a vendor file; when it is
// not, both copies are deleted and a VendorFilesLost error is returned so
// the installation gets re-verified.
func (m *Manager) EnsureBacked(t *targets.Target, f TrackedFile) (Outcome, error) {
	current := f.Current(t)
	backup := f.Backup(t)

	cur, err := m.classifyFile(f, current)
	if err != nil {
		return OutcomeNoSource, err
	}
	if cur == classify.Missing {
		m.log.Debug().Str("file", f.Name).Msg("Nothing to back up")
		return OutcomeNoSource, nil
	}

	backupExists, err := fsutil.Exists(m.fs, backup)
	if err != nil {
		return OutcomeNoSource, wrapIOErr(err, backup)
	}

	if cur == classify.Vendor {
		if backupExists {
			return OutcomeAlreadyBacked, nil
		}
		if err := fsutil.CopyFile(m.fs, current, backup); err != nil {
			return OutcomeNoSource, wrapIOErr(err, backup)
		}
		m.log.Info().Str("file", f.Name).Str("backup", backup).Msg("Backed up original")
		m.record(t, f, ActionBackup)
		return OutcomeBackedUp, nil
	}

	// The current file is ours; only a vendor backup makes it safe.
	bk, err := m.classifier.Classify(backup)
	if err != nil {
		return OutcomeNoSource, err
	}
	if bk == classify.Vendor {
		return OutcomeAlreadyBacked, nil
	}

	m.log.Error().Str("file", f.Name).Str("backup", bk.String()).Msg("Original file lost")
	for _, p := range []string{current, backup} {
		if err := m.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.log.Warn().Err(err).Str("path", p).Msg("Failed to remove file")
		}
	}
	m.record(t, f, ActionLost)
	return OutcomeNoSource, errs.Newf(errs.KindVendorFilesLost,
		"original %s is missing: neither %s nor its backup is a vendor file", f.Name, f.Path+f.Ext).
		WithDetail("file", f.Name)
}

// EnsureAll backs up every file in files. It stops at the first
// VendorFilesLost; any other failure is recorded on that file's result and
// the remaining files are still processed.
func (m *Manager) EnsureAll(t *targets.Target, files []TrackedFile, step func(TrackedFile) error) ([]Result, error) {
	results := make([]Result, 0, len(files))
	for _, f := range files {
		outcome, err := m.EnsureBacked(t, f)
		results = append(results, Result{File: f, Outcome: outcome, Err: err})
		if errs.IsKind(err, errs.KindVendorFilesLost) {
			return results, err
		}
		if err != nil {
			m.log.Warn().Err(err).Str("file", f.Name).Msg("Backup failed")
		}
		if step != nil {
			if err := step(f); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

// classifyFile skips the signature scan for text files.
func (m *Manager) classifyFile(f TrackedFile, path string) (classify.Class, error) {
	if f.Scan {
		return m.classifier.Classify(path)
	}
	ok, err := fsutil.Exists(m.fs, path)
	if err != nil {
		return classify.Missing, wrapIOErr(err, path)
	}
	if ok {
		return classify.Vendor, nil
	}
	return classify.Missing, nil
}

func wrapIOErr(err error, path string) error {
	if errs.KindOf(err) != errs.KindUnknown {
		return err
	}
	if isPermission(err) {
		return errs.Wrapf(err, errs.KindPermission, "failed to write %s", path)
	}
	return fmt.Errorf("failed to back up %s: %w", path, err)
}
