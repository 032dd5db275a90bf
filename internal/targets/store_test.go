package targets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/packport/internal/errs"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(afero.NewOsFs(), filepath.Join(dir, "targets.cfg")), dir
}

func TestLoadMissingFile(t *testing.T) {
	s, _ := newTestStore(t)
	targets, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestSaveAndLoad(t *testing.T) {
	s, dir := newTestStore(t)
	root := filepath.Join(dir, "Portal 2")
	require.NoError(t, os.MkdirAll(root, 0o755))

	tgt := New("Portal 2", "620", root)
	tgt.RecordModTimes(map[string]int64{"Clean_Style": 10, "P2": 5})
	require.NoError(t, s.SaveTarget(tgt))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Portal 2", loaded[0].ID)
	assert.Equal(t, "620", loaded[0].AppID)
	assert.Equal(t, root, loaded[0].Root)
	assert.Equal(t, map[string]int64{"clean_style": 10, "p2": 5}, loaded[0].ModTimes)
	assert.Equal(t, int64(10), loaded[0].ModTime("CLEAN_STYLE"))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "pack_mod_clean_style")
}

func TestSaveReplacesRecord(t *testing.T) {
	s, dir := newTestStore(t)
	tgt := New("game", "620", dir)
	tgt.RecordModTimes(map[string]int64{"a": 1, "b": 2})
	require.NoError(t, s.SaveTarget(tgt))

	tgt.RecordModTimes(map[string]int64{"a": 3})
	require.NoError(t, s.SaveTarget(tgt))

	got, err := s.Get("game")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 3}, got.ModTimes)
}

func TestLoadSkipsMalformed(t *testing.T) {
	s, dir := newTestStore(t)
	content := strings.Join([]string{
		"[good]",
		"app_id = 620",
		"dir = " + dir,
		"",
		"[bad_app_id]",
		"app_id = abc",
		"dir = " + dir,
		"",
		"[no_dir]",
		"app_id = 620",
		"",
		"[gone]",
		"app_id = 620",
		"dir = " + filepath.Join(dir, "does-not-exist"),
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0o644))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "good", loaded[0].ID)
}

func TestRemove(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, s.SaveTarget(New("a", "1", dir)))
	require.NoError(t, s.SaveTarget(New("b", "2", dir)))

	require.NoError(t, s.Remove("a"))
	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "b", loaded[0].ID)

	err = s.Remove("a")
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, New("ok", "620", dir).Validate())
	assert.True(t, errs.IsKind(New("x", "62a", dir).Validate(), errs.KindValidation))
	assert.True(t, errs.IsKind(New("x", "620", filepath.Join(dir, "nope")).Validate(), errs.KindValidation))

	if os.Geteuid() != 0 {
		ro := filepath.Join(dir, "ro")
		require.NoError(t, os.Mkdir(ro, 0o555))
		assert.True(t, errs.IsKind(New("x", "620", ro).Validate(), errs.KindPermission))
	}
}

func TestPath(t *testing.T) {
	tgt := New("g", "620", "/games/portal2")
	assert.Equal(t, filepath.Join("/games/portal2", "bin", "bee2", "editor.bin"), tgt.Path("bin/bee2/editor.bin"))
}
