package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/blackwell-systems/packport/internal/logging"
)

// DefaultDebounce is the quiet period before a batch of changes is reported.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a packages directory and reports changed package names.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(changed []string)

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// New creates a Watcher for dir. onChange receives the sorted names of the
// top-level entries (package folders or archives) that changed.
func New(dir string, debounce time.Duration, onChange func(changed []string)) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange cannot be nil")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      filepath.Clean(dir),
		debounce: debounce,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		log:      logging.GetLogger("watcher"),
	}, nil
}

// Start adds watches for dir and every folder below it, then processes
// events in the background until Stop.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.addTree(w.dir); err != nil {
		fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.run()

	w.log.Info().Str("dir", w.dir).Msg("Watching packages")
	return nil
}

// addTree watches root and its subfolders. fsnotify is not recursive.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != w.dir {
				return nil
			}
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// run collects changes and reports them once no event arrived for the
// debounce period. Pending changes are flushed on stop.
func (w *Watcher) run() {
	defer w.wg.Done()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		changed := make([]string, 0, len(pending))
		for name := range pending {
			changed = append(changed, name)
		}
		sort.Strings(changed)
		pending = make(map[string]struct{})
		w.onChange(changed)
	}

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				flush()
				return
			}
			name, ok := w.packageName(ev.Name)
			if !ok {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.log.Warn().Err(err).Str("path", ev.Name).Msg("Failed to watch new folder")
					}
				}
			}
			w.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("Package file changed")
			pending[name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				flush()
				return
			}
			w.log.Warn().Err(err).Msg("File watcher error")

		case <-timer.C:
			flush()

		case <-w.stopCh:
			timer.Stop()
			flush()
			return
		}
	}
}

// packageName returns the top-level entry of dir that path belongs to.
func (w *Watcher) packageName(path string) (string, bool) {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	top := strings.Split(filepath.ToSlash(rel), "/")[0]
	if strings.HasPrefix(top, ".") {
		// hidden files and editor swap files
		return "", false
	}
	return top, true
}

// Stop halts the watcher and reports any pending changes.
func (w *Watcher) Stop() error {
	select {
	case <-w.stopCh:
		return nil
	default:
	}
	close(w.stopCh)
	w.wg.Wait()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
