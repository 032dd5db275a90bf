package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/errs"
	"github.com/blackwell-systems/packport/internal/fsutil"
	"github.com/blackwell-systems/packport/internal/packages"
	"github.com/blackwell-systems/packport/internal/progress"
	"github.com/blackwell-systems/packport/internal/targets"
)

// Result counts what a refresh did.
type Result struct {
	Copied     int
	Unchanged  int
	Duplicates int
	Skipped    int
	Deleted    int
}

// destination maps a resource path to its place in the target. The second
// return is false for files that are not mirrored.
func destination(t *targets.Target, rel string) (string, bool) {
	top, rest, ok := strings.Cut(rel, "/")
	if !ok {
		return "", false
	}
	switch strings.ToLower(top) {
	case "instances":
		return t.Path(InstanceDir + "/" + rest), true
	case "bee2", "music_samp":
		return "", false
	}
	return t.Path(OverlayDir + "/" + rel), true
}

// Refresh mirrors every package resource into t, then deletes files in the
// instance and overlay dirs that were not written and are not protected,
// then records the package mod-times and saves t. Paths in already were
// written by an earlier step (music) and are kept.
//
// A destination that already matches its source in size and mod-time is not
// rewritten, unless its package is newer than the target's record: file
// times inside a rebuilt package cannot be trusted.
//
// Cancellation reported by sink stops the refresh where it is; the record
// is only updated after a complete run.
func (c *Cache) Refresh(t *targets.Target, pkgs *packages.Set, already *CopiedSet, sink progress.Sink) (*CopiedSet, Result, error) {
	return c.refresh(t, pkgs, already, sink, outdated(t, pkgs))
}

// ForceRefresh is Refresh with every file rewritten.
func (c *Cache) ForceRefresh(t *targets.Target, pkgs *packages.Set, already *CopiedSet, sink progress.Sink) (*CopiedSet, Result, error) {
	all := make(map[string]bool, pkgs.Len())
	for _, p := range pkgs.Packages() {
		all[strings.ToLower(p.ID)] = true
	}
	return c.refresh(t, pkgs, already, sink, all)
}

// outdated returns the lowercased IDs of packages newer than t's record.
func outdated(t *targets.Target, pkgs *packages.Set) map[string]bool {
	ids := make(map[string]bool)
	for _, p := range pkgs.Packages() {
		if p.ModTime > t.ModTime(p.ID) {
			ids[strings.ToLower(p.ID)] = true
		}
	}
	return ids
}

func (c *Cache) refresh(t *targets.Target, pkgs *packages.Set, already *CopiedSet, sink progress.Sink, rewrite map[string]bool) (*CopiedSet, Result, error) {
	sink = progress.OrNop(sink)
	copied := already
	if copied == nil {
		copied = NewCopiedSet()
	}
	var res Result

	chain := pkgs.Resources()
	err := chain.With(func() error {
		n, err := chain.Count()
		if err != nil {
			return fmt.Errorf("failed to count resources: %w", err)
		}
		sink.SetLength(progress.Resources, n)

		return chain.Walk(func(f packages.File) error {
			if err := c.mirror(t, f, copied, rewrite[strings.ToLower(f.Package)], &res); err != nil {
				return err
			}
			return sink.Step(progress.Resources, f.Path)
		})
	})
	if err != nil {
		return copied, res, err
	}

	deleted, err := c.sweep(t, copied)
	res.Deleted = deleted
	if err != nil {
		return copied, res, err
	}

	t.RecordModTimes(pkgs.ModTimes())
	if err := c.save(t); err != nil {
		return copied, res, fmt.Errorf("failed to save target %s: %w", t.ID, err)
	}

	c.log.Info().
		Str("target", t.ID).
		Int("copied", res.Copied).
		Int("unchanged", res.Unchanged).
		Int("deleted", res.Deleted).
		Msg("Resources refreshed")
	return copied, res, nil
}

func (c *Cache) mirror(t *targets.Target, f packages.File, copied *CopiedSet, rewrite bool, res *Result) error {
	dest, ok := destination(t, f.Path)
	if !ok {
		if !strings.Contains(f.Path, "/") {
			c.log.Warn().Str("package", f.Package).Str("file", f.Path).Msg("File in resources root, skipping")
		}
		res.Skipped++
		return nil
	}
	if copied.Has(dest) {
		res.Duplicates++
		return nil
	}
	copied.Add(dest)

	if !rewrite && c.unchanged(f.Info, dest) {
		res.Unchanged++
		return nil
	}

	srcFs, srcName := f.Source()
	if err := fsutil.UnsetReadOnly(c.fs, dest); err != nil {
		return wrapWriteErr(err, dest)
	}
	if err := fsutil.CopyBetween(srcFs, srcName, c.fs, dest); err != nil {
		return wrapWriteErr(err, dest)
	}
	res.Copied++
	return nil
}

func (c *Cache) unchanged(src os.FileInfo, dest string) bool {
	info, err := c.fs.Stat(dest)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Size() == src.Size() && info.ModTime().Unix() == src.ModTime().Unix()
}

func (c *Cache) sweep(t *targets.Target, copied *CopiedSet) (int, error) {
	deleted := 0
	for _, dir := range []string{InstanceDir, OverlayDir} {
		err := afero.Walk(c.fs, t.Path(dir), func(p string, info os.FileInfo, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if info.IsDir() || c.protected(p) || copied.Has(p) {
				return nil
			}
			if err := c.fs.Remove(p); err != nil {
				return wrapWriteErr(err, p)
			}
			c.log.Debug().Str("path", p).Msg("Removed orphaned resource")
			deleted++
			return nil
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to sweep %s: %w", dir, err)
		}
	}
	return deleted, nil
}

func wrapWriteErr(err error, path string) error {
	if errors.Is(err, fs.ErrPermission) {
		return errs.Wrapf(err, errs.KindPermission, "cannot write %s", path)
	}
	return err
}
