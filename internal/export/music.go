package export

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/cache"
	"github.com/blackwell-systems/packport/internal/fsutil"
	"github.com/blackwell-systems/packport/internal/progress"
)

// MusicDir receives the configured music, relative to the target root.
const MusicDir = cache.OverlayDir + "/sound/music"

// resourceRefresh synchronizes the resource cache when asked to and when it
// is out of date. Music is copied first so the sweep keeps it.
func (r *run) resourceRefresh() error {
	c := r.o.deps.Cache
	if !r.s.Refresh || (!r.s.Force && !c.IsStale(r.s.Target, r.s.Packages)) {
		r.sink.Skip(progress.Resources)
		r.sink.Skip(progress.Music)
		r.record(PhaseResourceRefresh, StatusSkipped, "")
		return nil
	}

	copied := cache.NewCopiedSet()
	if err := r.copyMusic(copied); err != nil {
		if isCancelled(err) {
			return err
		}
		r.warn(PhaseResourceRefresh, err)
	}

	refresh := c.Refresh
	if r.s.Force {
		refresh = c.ForceRefresh
	}
	_, res, err := refresh(r.s.Target, r.s.Packages, copied, cancelAware{r})
	r.res.Cache = res
	if err != nil {
		if isCancelled(err) {
			return err
		}
		r.warn(PhaseResourceRefresh, err)
		return nil
	}
	r.res.Refreshed = true
	r.record(PhaseResourceRefresh, StatusOK, fmt.Sprintf("%d copied, %d deleted", res.Copied, res.Deleted))
	return nil
}

// copyMusic copies every file of the music dir that the target lacks.
// Existing files are left alone but still marked as copied.
func (r *run) copyMusic(copied *cache.CopiedSet) error {
	src := r.o.deps.Options.MusicDir
	if src == "" {
		r.sink.Skip(progress.Music)
		return nil
	}
	entries, err := afero.ReadDir(r.o.fs, src)
	if errors.Is(err, fs.ErrNotExist) {
		r.log.Debug().Str("dir", src).Msg("No music folder")
		r.sink.Skip(progress.Music)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list music: %w", err)
	}

	r.sink.SetLength(progress.Music, len(entries))
	destDir := r.s.Target.Path(MusicDir)
	if err := r.o.fs.MkdirAll(destDir, 0o755); err != nil {
		return wrapWrite(err, destDir)
	}
	for _, e := range entries {
		if err := r.step(progress.Music, e.Name()); err != nil {
			return err
		}
		if e.IsDir() {
			continue
		}
		dest := filepath.Join(destDir, e.Name())
		exists, err := fsutil.Exists(r.o.fs, dest)
		if err != nil {
			return wrapWrite(err, dest)
		}
		if !exists {
			if err := fsutil.CopyBetween(r.o.fs, filepath.Join(src, e.Name()), r.o.fs, dest); err != nil {
				return wrapWrite(err, dest)
			}
		}
		copied.Add(dest)
	}
	return nil
}

// cancelAware forwards progress to the session sink and also stops when
// the run's context is done.
type cancelAware struct{ r *run }

func (c cancelAware) SetLength(stage progress.Stage, n int) { c.r.sink.SetLength(stage, n) }
func (c cancelAware) Step(stage progress.Stage, label string) error {
	return c.r.step(stage, label)
}
func (c cancelAware) Skip(stage progress.Stage) { c.r.sink.Skip(stage) }
