package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/packport/internal/classify"
	"github.com/blackwell-systems/packport/internal/errs"
)

func isolateXDG(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	xdg.Reload()
	return dir
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := isolateXDG(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data", "packport", "packages"), cfg.PackagesDir)
	assert.Equal(t, filepath.Join(dir, "config", "packport", "targets.ini"), cfg.TargetsFile)
	assert.Equal(t, filepath.Join(dir, "data", "packport", "history.db"), cfg.HistoryDB)
	assert.Empty(t, cfg.MusicDir)
	assert.False(t, cfg.PreserveResources)
	assert.Equal(t, []string{".vmx", ".mdl_dis", "tag_coop_gun.vmf"}, cfg.ProtectedSuffixes)
	assert.Equal(t, "BEE2_CLEAN", cfg.Export.Style)
	assert.Equal(t, classify.DefaultSignatures, cfg.SignatureBytes())
}

func TestLoadUserFile(t *testing.T) {
	isolateXDG(t)
	path := writeConfig(t, `
packages_dir = "/srv/packages"
preserve_resources = true
protected_suffixes = [".vmx"]
signatures = ["MARK"]

[export]
style = "BEE2_1950s"
voice = "BEE2_CAVE"

[export.stylevars]
UnlockDefault = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/packages", cfg.PackagesDir)
	assert.True(t, cfg.PreserveResources)
	assert.Equal(t, []string{".vmx"}, cfg.ProtectedSuffixes)
	assert.Equal(t, [][]byte{[]byte("MARK")}, cfg.SignatureBytes())
	assert.Equal(t, "BEE2_1950s", cfg.Export.Style)
	assert.Equal(t, "BEE2_CAVE", cfg.Export.Voice)
	assert.True(t, cfg.Export.StyleVars["UnlockDefault"])
}

func TestLoadEnvOverrides(t *testing.T) {
	isolateXDG(t)
	path := writeConfig(t, "dev_mode = false\n")
	t.Setenv("PACKPORT_DEV_MODE", "true")
	t.Setenv("PACKPORT_MUSIC_DIR", "/music")
	t.Setenv("PACKPORT_PROTECTED_SUFFIXES", ".a,.b")
	t.Setenv("PACKPORT_EXPORT_STYLE", "BEE2_OVERGROWN")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.DevMode)
	assert.Equal(t, "/music", cfg.MusicDir)
	assert.Equal(t, []string{".a", ".b"}, cfg.ProtectedSuffixes)
	assert.Equal(t, "BEE2_OVERGROWN", cfg.Export.Style)
}

func TestLoadErrors(t *testing.T) {
	isolateXDG(t)

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		require.Error(t, err)
		assert.True(t, errs.IsKind(err, errs.KindValidation))
	})

	t.Run("malformed toml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "packages_dir = [\n"))
		require.Error(t, err)
		assert.True(t, errs.IsKind(err, errs.KindValidation))
	})

	t.Run("empty protected suffix", func(t *testing.T) {
		_, err := Load(writeConfig(t, `protected_suffixes = [".vmx", " "]`))
		require.Error(t, err)
		assert.True(t, errs.IsKind(err, errs.KindValidation))
	})
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"PACKPORT_DEV_MODE":     "dev_mode",
		"PACKPORT_EXPORT_VOICE": "export.voice",
		"PACKPORT_PACKAGES_DIR": "packages_dir",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandHome("~/packs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "packs"), got)

	got, err = expandHome("/abs/~/x")
	require.NoError(t, err)
	assert.Equal(t, "/abs/~/x", got)
}
