// Package watcher reports changes to the packages directory.
//
// Package folders and archives are watched with fsnotify. Events are
// debounced so an editor saving many files, or an archive being copied in,
// produces one report listing every package that changed.
//
// The watcher never exports by itself; the callback decides what a change
// means (packport watch prints which targets went stale).
//
// Example usage:
//
//	w, err := watcher.New(cfg.PackagesDir, 500*time.Millisecond, func(changed []string) {
//		fmt.Println("changed:", changed)
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := w.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer w.Stop()
package watcher
