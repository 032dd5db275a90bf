// Package fsutil holds the file operations every writer into a target shares:
// atomic replacement, copying between filesystems and read-only handling.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// WriteFileAtomic writes data to name so readers see either the old or the
// new content, never a partial file.
func WriteFileAtomic(fsys afero.Fs, name string, data []byte, perm os.FileMode) error {
	return WriteAtomic(fsys, name, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomic streams content produced by write into a temp file next to
// name, syncs it and renames it over name. If write fails the temp file is
// removed and name is untouched.
func WriteAtomic(fsys afero.Fs, name string, perm os.FileMode, write func(io.Writer) error) error {
	dir := filepath.Dir(name)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fsys, dir, "."+filepath.Base(name)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		fsys.Remove(tmpName) //nolint:errcheck
	}

	if err := write(tmp); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("failed to close temp file for %s: %w", name, err)
	}
	if err := fsys.Chmod(tmpName, perm); err != nil {
		fsys.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("failed to set mode on %s: %w", name, err)
	}
	if err := fsys.Rename(tmpName, name); err != nil {
		fsys.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// CopyFile copies src to dst within one filesystem.
func CopyFile(fsys afero.Fs, src, dst string) error {
	return CopyBetween(fsys, src, fsys, dst)
}

// CopyBetween atomically copies a file from one filesystem to another,
// keeping the source's permission bits and modification time.
func CopyBetween(srcFs afero.Fs, src string, dstFs afero.Fs, dst string) error {
	in, err := srcFs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	perm := info.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	// Copies must stay writable so later exports can replace them.
	perm |= 0o200

	err = WriteAtomic(dstFs, dst, perm, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
	if err != nil {
		return err
	}

	if err := dstFs.Chtimes(dst, time.Now(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set times on %s: %w", dst, err)
	}
	return nil
}

// Exists reports whether name exists. Errors other than "not exist" are
// returned so permission problems are not mistaken for absence.
func Exists(fsys afero.Fs, name string) (bool, error) {
	_, err := fsys.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// UnsetReadOnly adds the owner write bit to name if it exists.
func UnsetReadOnly(fsys afero.Fs, name string) error {
	info, err := fsys.Stat(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0o200 != 0 {
		return nil
	}
	return fsys.Chmod(name, info.Mode().Perm()|0o200)
}
