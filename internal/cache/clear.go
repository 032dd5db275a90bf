package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/targets"
)

// Clear deletes the instance, overlay and auxiliary dirs, tries to remove
// packaged style archives, and empties the target's mod-time record so the
// next export refreshes. Absent dirs are fine.
func (c *Cache) Clear(t *targets.Target) error {
	for _, dir := range []string{InstanceDir, OverlayDir, AuxDir} {
		if err := c.fs.RemoveAll(t.Path(dir)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, wrapWriteErr(err, t.Path(dir)))
		}
	}

	if err := ClearPackaging(c.fs, t); err != nil {
		if !errors.Is(err, fs.ErrPermission) {
			return err
		}
		c.log.Warn().Err(err).Str("target", t.ID).Msg("Could not remove packaged archives")
	}

	t.RecordModTimes(nil)
	if err := c.save(t); err != nil {
		return fmt.Errorf("failed to save target %s: %w", t.ID, err)
	}
	c.log.Info().Str("target", t.ID).Msg("Cache cleared")
	return nil
}

// ClearPackaging removes prebuilt archives from the packaging dir.
func ClearPackaging(fsys afero.Fs, t *targets.Target) error {
	matches, err := afero.Glob(fsys, filepath.Join(t.Path(PackagingDir), PackagingGlob))
	if err != nil {
		return fmt.Errorf("failed to list packaged archives: %w", err)
	}
	for _, m := range matches {
		if err := fsys.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", m, err)
		}
	}
	return nil
}

// Usage reports the number of files and bytes in the mirror.
func (c *Cache) Usage(t *targets.Target) (files int, size int64, err error) {
	for _, dir := range []string{InstanceDir, OverlayDir} {
		err = afero.Walk(c.fs, t.Path(dir), func(_ string, info os.FileInfo, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if !info.IsDir() {
				files++
				size += info.Size()
			}
			return nil
		})
		if err != nil {
			return files, size, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
	}
	return files, size, nil
}
