package watcher

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// startWatcher starts a watcher on a fresh dir and returns the dir and the
// channel batches arrive on.
func startWatcher(t *testing.T, setup func(dir string)) (string, <-chan []string) {
	t.Helper()
	dir := t.TempDir()
	if setup != nil {
		setup(dir)
	}

	batches := make(chan []string, 10)
	w, err := New(dir, 50*time.Millisecond, func(changed []string) { batches <- changed })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return dir, batches
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change report")
		return nil
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestNew_NilCallback(t *testing.T) {
	if _, err := New(t.TempDir(), 0, nil); err == nil {
		t.Error("New(nil callback) expected error, got nil")
	}
}

func TestNew_DefaultDebounce(t *testing.T) {
	w, err := New(t.TempDir(), 0, func([]string) {})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if w.debounce != DefaultDebounce {
		t.Errorf("debounce = %v, want %v", w.debounce, DefaultDebounce)
	}
}

func TestStart_MissingDir(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), 0, func([]string) {})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(); err == nil {
		w.Stop()
		t.Error("Start() on a missing dir should fail")
	}
}

func TestWatcher_ReportsNestedChange(t *testing.T) {
	dir, batches := startWatcher(t, func(dir string) {
		mustWrite(t, filepath.Join(dir, "clean_style", "resources", "materials", "a.vmt"), "a")
	})

	mustWrite(t, filepath.Join(dir, "clean_style", "resources", "materials", "a.vmt"), "changed")

	got := waitBatch(t, batches)
	if !reflect.DeepEqual(got, []string{"clean_style"}) {
		t.Errorf("changed = %v, want [clean_style]", got)
	}
}

func TestWatcher_DebouncesIntoOneBatch(t *testing.T) {
	dir, batches := startWatcher(t, nil)

	mustWrite(t, filepath.Join(dir, "b_pack.zip"), "zip")
	mustWrite(t, filepath.Join(dir, "a_pack", "info.toml"), "id = 'a'")
	mustWrite(t, filepath.Join(dir, ".hidden"), "x")

	got := waitBatch(t, batches)
	if !reflect.DeepEqual(got, []string{"a_pack", "b_pack.zip"}) {
		t.Errorf("changed = %v, want [a_pack b_pack.zip]", got)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), 0, func([]string) {})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestPackageName(t *testing.T) {
	w := &Watcher{dir: "/packs"}
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/packs/style/resources/a.vmt", "style", true},
		{"/packs/extra.zip", "extra.zip", true},
		{"/packs", "", false},
		{"/elsewhere/x", "", false},
		{"/packs/.DS_Store", "", false},
	}
	for _, tt := range tests {
		got, ok := w.packageName(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("packageName(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}
