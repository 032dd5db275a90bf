package export

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"

	"github.com/blackwell-systems/packport/internal/cache"
	"github.com/blackwell-systems/packport/internal/errs"
	"github.com/blackwell-systems/packport/internal/fsutil"
	"github.com/blackwell-systems/packport/internal/items"
	"github.com/blackwell-systems/packport/internal/progress"
)

// Files written by the commit phase, relative to the target root.
const (
	EditoritemsFile    = "portal2_dlc2/scripts/editoritems.txt"
	EditorDatabaseFile = cache.AuxDir + "/editor.bin"
	CompilerConfigFile = cache.AuxDir + "/vbsp_config.cfg"
)

// commit writes the editor item list, the item database and the compiler
// configuration. Each file is replaced atomically, so an interrupted write
// leaves the previous content in place.
func (r *run) commit() error {
	x := r.xctx
	db, err := items.EncodeDatabase(x.Items)
	if err != nil {
		return errs.Wrap(err, errs.KindInternal, "failed to encode item database")
	}

	files := []struct {
		rel   string
		write func(io.Writer) error
	}{
		{EditoritemsFile, func(w io.Writer) error { return items.WriteEditoritems(w, x.Items, x.Renderables) }},
		{EditorDatabaseFile, func(w io.Writer) error { _, err := w.Write(db); return err }},
		{CompilerConfigFile, x.Config.Export},
	}
	for _, f := range files {
		if err := r.step(progress.Export, path.Base(f.rel)); err != nil {
			return err
		}
		if r.guarded(PhaseCommit, f.rel) {
			continue
		}
		dest := r.s.Target.Path(f.rel)
		if err := r.o.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return wrapWrite(err, dest)
		}
		if err := fsutil.WriteAtomic(r.o.fs, dest, 0o644, f.write); err != nil {
			return wrapWrite(err, dest)
		}
	}
	r.record(PhaseCommit, StatusOK, "")
	return nil
}

// writeResources writes queued resource blobs in path order.
func (o *Orchestrator) writeResources(x *Context) (int, error) {
	paths := make([]string, 0, len(x.Resources))
	for p := range x.Resources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		dest := x.Target.Path(p)
		if err := o.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return 0, wrapWrite(err, dest)
		}
		if err := fsutil.UnsetReadOnly(o.fs, dest); err != nil {
			return 0, wrapWrite(err, dest)
		}
		if err := fsutil.WriteFileAtomic(o.fs, dest, x.Resources[p], 0o644); err != nil {
			return 0, wrapWrite(err, dest)
		}
	}
	return len(paths), nil
}

func wrapWrite(err error, path string) error {
	if isPermission(err) {
		return errs.Wrapf(err, errs.KindPermission, "cannot write %s", path)
	}
	return fmt.Errorf("failed to write %s: %w", path, err)
}
