package packages

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/packport/internal/errs"
)

const cleanManifest = `
id = "CLEAN_STYLE"
name = "Clean Style"

[[styles]]
id = "BEE2_CLEAN"
name = "Clean"
config = "styles/clean.cfg"
vpk = "vpk/clean"

[[items]]
id = "ITEM_EXIT_DOOR"
facing = "none"
models = ["door_exit.mdl"]
config = "items/exit.cfg"

[[items]]
id = "ITEM_CUBE"
styles = ["BEE2_CLEAN"]
deletable = true
copiable = true

[[stylevars]]
id = "UnlockDefault"
name = "Unlock Default Items"

[[quotes]]
id = "BEE2_GLADOS"
config = "voice/glados.cfg"

[[renderables]]
type = "ErrorShape"
model = "error.mdl"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	dirs := map[string]bool{}
	var names []string
	for name := range files {
		names = append(names, name)
		for d := filepath.Dir(name); d != "."; d = filepath.Dir(d) {
			dirs[filepath.ToSlash(d)+"/"] = true
		}
	}
	var dirNames []string
	for d := range dirs {
		dirNames = append(dirNames, d)
	}
	sort.Strings(dirNames)
	sort.Strings(names)
	for _, d := range dirNames {
		_, err := zw.Create(d)
		require.NoError(t, err)
	}
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestLoadDirectoryPackage(t *testing.T) {
	dir := t.TempDir()
	pkgDir := filepath.Join(dir, "clean")
	writeFile(t, filepath.Join(pkgDir, ManifestName), cleanManifest)
	writeFile(t, filepath.Join(pkgDir, "styles", "clean.cfg"), `"Options" { "wall" "white" }`)
	writeFile(t, filepath.Join(pkgDir, "items", "exit.cfg"), `"Conditions" { "Condition" { } }`)
	writeFile(t, filepath.Join(pkgDir, "voice", "glados.cfg"), `"Quotes" { "Base" "x" }`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))

	stamp := time.Unix(1700000000, 0)
	require.NoError(t, os.Chtimes(filepath.Join(pkgDir, "styles", "clean.cfg"), stamp, stamp))

	set, err := NewLoader(afero.NewOsFs()).Load(dir)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	p := set.Packages()[0]
	assert.Equal(t, "CLEAN_STYLE", p.ID)
	assert.Equal(t, "Clean Style", p.Name)
	assert.GreaterOrEqual(t, p.ModTime, stamp.Unix())

	style, ok := set.Style("bee2_clean")
	require.True(t, ok)
	assert.Equal(t, "white", style.Config.Find("Options").Get("wall", ""))
	assert.Equal(t, "vpk/clean", style.VPK)
	assert.Same(t, p, style.Package)

	all := set.Items()
	require.Len(t, all, 2)
	assert.Equal(t, "NONE", all[0].Facing)
	assert.NotNil(t, all[0].Config.Find("Conditions"))
	assert.True(t, all[1].Deletable)

	q, ok := set.Quote("BEE2_GLADOS")
	require.True(t, ok)
	assert.Equal(t, "x", q.Config.Find("Quotes").Get("Base", ""))

	require.Len(t, set.StyleVars(), 1)
	assert.Equal(t, "UnlockDefault", set.StyleVars()[0].ID)
	require.Len(t, set.Renderables(), 1)
}

func TestLoadZipPackage(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "music.zip"), map[string]string{
		ManifestName:                    `id = "MUSIC"`,
		"resources/sound/music/a.wav":   "wav",
		"resources/instances/lobby.vmf": "vmf",
	})

	set, err := NewLoader(afero.NewOsFs()).Load(dir)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	p, ok := set.Get("music")
	require.True(t, ok)
	assert.NotZero(t, p.ModTime)

	chain := set.Resources()
	var paths []string
	err = chain.With(func() error {
		return chain.Walk(func(f File) error {
			paths = append(paths, f.Path)
			return nil
		})
	})
	require.NoError(t, err)
	sort.Strings(paths)
	assert.Equal(t, []string{"instances/lobby.vmf", "sound/music/a.wav"}, paths)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := NewLoader(afero.NewOsFs()).Load(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errs.IsKind(err, errs.KindMissingDependency))
}

func TestLoadInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad", ManifestName), `name = "no id"`)

	_, err := NewLoader(afero.NewOsFs()).Load(dir)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestNewSetRejectsDuplicates(t *testing.T) {
	_, err := NewSet(FromFs("A", 1, afero.NewMemMapFs()), FromFs("a", 2, afero.NewMemMapFs()))
	assert.Error(t, err)
}

func memPackage(t *testing.T, id string, files map[string]string) *Package {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, "/resources/"+name, []byte(content), 0o644))
	}
	return FromFs(id, 1, fsys)
}

func TestChainWalkReportsDuplicatesInOrder(t *testing.T) {
	p1 := memPackage(t, "P1", map[string]string{"materials/a.vmt": "first"})
	p2 := memPackage(t, "P2", map[string]string{"materials/a.vmt": "second", "materials/b.vmt": "b"})
	p3 := FromFs("EMPTY", 1, afero.NewMemMapFs())

	chain := NewChainFS(p1, p2, p3)
	require.NoError(t, chain.Open())
	defer chain.Close()

	var seen []string
	require.NoError(t, chain.Walk(func(f File) error {
		seen = append(seen, f.Package+":"+f.Path)
		return nil
	}))
	assert.Equal(t, []string{"P1:materials/a.vmt", "P2:materials/a.vmt", "P2:materials/b.vmt"}, seen)

	n, err := chain.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestChainWalkRequiresOpen(t *testing.T) {
	chain := NewChainFS(memPackage(t, "P1", map[string]string{"a": "a"}))
	assert.Error(t, chain.Walk(func(File) error { return nil }))
}

func TestChainFileOpen(t *testing.T) {
	chain := NewChainFS(memPackage(t, "P1", map[string]string{"instances/x.vmf": "vmf data"}))
	err := chain.With(func() error {
		return chain.Walk(func(f File) error {
			data, err := afero.ReadAll(mustOpen(t, f))
			require.NoError(t, err)
			assert.Equal(t, "vmf data", string(data))
			return nil
		})
	})
	require.NoError(t, err)
}

func mustOpen(t *testing.T, f File) afero.File {
	t.Helper()
	r, err := f.Open()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}
