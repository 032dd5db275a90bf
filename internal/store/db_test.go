package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Helper function to create an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := store.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store.db should not be nil")
	}
}

func TestOpen_CreatesDirectoryAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	if _, err := store.ListExports("", 0); err != nil {
		t.Errorf("ListExports() on fresh database failed: %v", err)
	}
}

func TestCreateSchema(t *testing.T) {
	store := newTestStore(t)

	tables := []string{"exports", "export_phases", "backup_events"}
	for _, table := range tables {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	indexes := []string{"idx_exports_target", "idx_exports_started", "idx_phases_export", "idx_backup_target"}
	for _, index := range indexes {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		if err != nil {
			t.Errorf("Index %s not found: %v", index, err)
		}
	}

	// Creating the schema twice is harmless.
	if err := store.CreateSchema(); err != nil {
		t.Errorf("second CreateSchema() failed: %v", err)
	}
}

func TestListExports_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	// Do NOT call CreateSchema.
	_, err = s.ListExports("", 0)
	if err == nil {
		t.Fatal("ListExports() should return an error on uninitialized DB")
	}
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListExports() error = %v; want errors.Is(err, ErrNotInitialized) to be true", err)
	}
	if !strings.Contains(ErrNotInitialized.Error(), "packport export") {
		t.Errorf("ErrNotInitialized message %q should mention 'packport export'", ErrNotInitialized.Error())
	}
}

func TestExportLifecycle(t *testing.T) {
	store := newTestStore(t)

	started := time.Now().UTC().Add(-time.Minute)
	if err := store.BeginExport("run-1", "portal2", "BEE2_CLEAN", started); err != nil {
		t.Fatalf("BeginExport() failed: %v", err)
	}

	running, err := store.GetExport("run-1")
	if err != nil {
		t.Fatalf("GetExport() failed: %v", err)
	}
	if running.Outcome != OutcomeRunning {
		t.Errorf("Outcome = %s, want %s", running.Outcome, OutcomeRunning)
	}
	if !running.FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v, want zero while running", running.FinishedAt)
	}
	if !running.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", running.StartedAt, started)
	}

	for _, phase := range []string{"Backup", "ConfigBuild", "Commit"} {
		if err := store.RecordPhase("run-1", phase, "ok", ""); err != nil {
			t.Fatalf("RecordPhase(%s) failed: %v", phase, err)
		}
	}
	if err := store.RecordPhase("run-1", "CompilerCopy", "skipped", "compiler dir missing"); err != nil {
		t.Fatalf("RecordPhase() failed: %v", err)
	}

	if err := store.FinishExport("run-1", OutcomeDone, "", false, 2, ""); err != nil {
		t.Fatalf("FinishExport() failed: %v", err)
	}

	done, err := store.GetExport("run-1")
	if err != nil {
		t.Fatalf("GetExport() failed: %v", err)
	}
	if done.Outcome != OutcomeDone {
		t.Errorf("Outcome = %s, want %s", done.Outcome, OutcomeDone)
	}
	if done.PackagingOK {
		t.Error("PackagingOK = true, want false")
	}
	if done.Warnings != 2 {
		t.Errorf("Warnings = %d, want 2", done.Warnings)
	}
	if done.FinishedAt.IsZero() {
		t.Error("FinishedAt should be set")
	}

	phases, err := store.GetExportPhases("run-1")
	if err != nil {
		t.Fatalf("GetExportPhases() failed: %v", err)
	}
	if len(phases) != 4 {
		t.Fatalf("len(phases) = %d, want 4", len(phases))
	}
	if phases[0].Phase != "Backup" || phases[3].Phase != "CompilerCopy" {
		t.Errorf("phase order = %s..%s, want Backup..CompilerCopy", phases[0].Phase, phases[3].Phase)
	}
	if phases[3].Detail != "compiler dir missing" {
		t.Errorf("Detail = %q, want %q", phases[3].Detail, "compiler dir missing")
	}
}

func TestFinishExport_Unknown(t *testing.T) {
	store := newTestStore(t)

	err := store.FinishExport("missing", OutcomeFailed, "Commit", false, 0, "boom")
	if err == nil {
		t.Fatal("FinishExport() on unknown export should fail")
	}
}

func TestGetExport_NotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetExport("nope"); err == nil {
		t.Error("GetExport() should fail for unknown id")
	}
}

func TestRecordPhase_RequiresExport(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordPhase("ghost", "Backup", "ok", ""); err == nil {
		t.Error("RecordPhase() should fail on foreign key violation")
	}
}

func TestListExports(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	runs := []struct {
		id, target string
		offset     time.Duration
	}{
		{"a", "portal2", 0},
		{"b", "aperture", time.Minute},
		{"c", "portal2", 2 * time.Minute},
	}
	for _, r := range runs {
		if err := store.BeginExport(r.id, r.target, "", base.Add(r.offset)); err != nil {
			t.Fatalf("BeginExport(%s) failed: %v", r.id, err)
		}
	}

	tests := []struct {
		name   string
		target string
		limit  int
		want   []string
	}{
		{"all targets newest first", "", 0, []string{"c", "b", "a"}},
		{"single target", "portal2", 0, []string{"c", "a"}},
		{"limited", "", 1, []string{"c"}},
		{"unknown target", "nothing", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exports, err := store.ListExports(tt.target, tt.limit)
			if err != nil {
				t.Fatalf("ListExports() failed: %v", err)
			}
			var got []string
			for _, e := range exports {
				got = append(got, e.ID)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ListExports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPruneExports(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"p1", "p2", "p3"} {
		if err := store.BeginExport(id, "portal2", "", base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("BeginExport(%s) failed: %v", id, err)
		}
	}
	if err := store.BeginExport("other", "aperture", "", base); err != nil {
		t.Fatalf("BeginExport() failed: %v", err)
	}
	if err := store.RecordPhase("p1", "Backup", "ok", ""); err != nil {
		t.Fatalf("RecordPhase() failed: %v", err)
	}

	removed, err := store.PruneExports(1)
	if err != nil {
		t.Fatalf("PruneExports() failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("PruneExports() removed %d, want 2", removed)
	}

	exports, err := store.ListExports("", 0)
	if err != nil {
		t.Fatalf("ListExports() failed: %v", err)
	}
	if len(exports) != 2 {
		t.Fatalf("len(exports) = %d, want 2", len(exports))
	}

	phases, err := store.GetExportPhases("p1")
	if err != nil {
		t.Fatalf("GetExportPhases() failed: %v", err)
	}
	if len(phases) != 0 {
		t.Errorf("phases of pruned export = %d, want 0", len(phases))
	}
}

func TestBackupEvents(t *testing.T) {
	store := newTestStore(t)

	events := []struct{ file, action string }{
		{"VBSP", "backup"},
		{"VRAD", "backup"},
		{"VBSP", "restore"},
	}
	for _, ev := range events {
		if err := store.RecordBackupEvent("portal2", ev.file, ev.action); err != nil {
			t.Fatalf("RecordBackupEvent() failed: %v", err)
		}
	}
	if err := store.RecordBackupEvent("aperture", "VBSP", "lost"); err != nil {
		t.Fatalf("RecordBackupEvent() failed: %v", err)
	}

	got, err := store.ListBackupEvents("portal2")
	if err != nil {
		t.Fatalf("ListBackupEvents() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(got))
	}
	if got[2].File != "VBSP" || got[2].Action != "restore" {
		t.Errorf("last event = %s/%s, want VBSP/restore", got[2].File, got[2].Action)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}
