package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/errs"
	"github.com/blackwell-systems/packport/internal/fsutil"
	"github.com/blackwell-systems/packport/internal/progress"
)

// compilerCopy installs the map compiler into the target's bin folder.
// Binaries whose backup failed are left in place.
func (r *run) compilerCopy() error {
	dir := r.o.deps.Options.CompilerDir
	files, err := compilerFiles(r.o.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.sink.Skip(progress.Compiler)
			r.warn(PhaseCompilerCopy, errs.Wrapf(err, errs.KindMissingDependency,
				"compiler folder %q is missing, the map compiler was not installed", dir))
			return nil
		}
		r.sink.Skip(progress.Compiler)
		r.warn(PhaseCompilerCopy, fmt.Errorf("failed to list compiler files: %w", err))
		return nil
	}

	r.sink.SetLength(progress.Compiler, len(files))
	for _, rel := range files {
		if err := r.step(progress.Compiler, rel); err != nil {
			return err
		}
		binRel := "bin/" + filepath.ToSlash(rel)
		if r.guarded(PhaseCompilerCopy, binRel) {
			continue
		}
		dest := r.s.Target.Path(binRel)
		if err := r.copyCompilerFile(filepath.Join(dir, rel), dest); err != nil {
			if isPermission(err) {
				return errs.Wrapf(err, errs.KindPermission,
					"%s is in use or read-only; close the game and any running compile, then export again", dest)
			}
			r.warn(PhaseCompilerCopy, err)
		}
	}
	r.record(PhaseCompilerCopy, StatusOK, fmt.Sprintf("%d files", len(files)))
	return nil
}

func (r *run) copyCompilerFile(src, dest string) error {
	if err := r.o.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := fsutil.UnsetReadOnly(r.o.fs, dest); err != nil {
		return err
	}
	return fsutil.CopyBetween(r.o.fs, src, r.o.fs, dest)
}

// compilerFiles lists the files under dir relative to it. Dirs are skipped.
func compilerFiles(fsys afero.Fs, dir string) ([]string, error) {
	if dir == "" {
		return nil, fs.ErrNotExist
	}
	info, err := fsys.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	err = afero.Walk(fsys, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}

func isPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errs.IsKind(err, errs.KindPermission)
}
