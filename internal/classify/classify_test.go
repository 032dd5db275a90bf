package classify

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/packport/internal/errs"
)

func writeSized(t *testing.T, fsys afero.Fs, path string, size int, tail []byte) {
	t.Helper()
	data := bytes.Repeat([]byte{'x'}, size)
	copy(data[size-len(tail):], tail)
	require.NoError(t, afero.WriteFile(fsys, path, data, 0o644))
}

func TestClassify(t *testing.T) {
	fsys := afero.NewMemMapFs()
	c := New(fsys)

	writeSized(t, fsys, "/vendor.exe", 10000, nil)
	writeSized(t, fsys, "/ours.exe", 10000, []byte("built by BenVlodgi"))
	writeSized(t, fsys, "/frozen.exe", 10000, []byte("MEI\x0c\x0b\x0a\x0b\x0e"))
	writeSized(t, fsys, "/early-sig.exe", 10000, nil)
	writeSized(t, fsys, "/small.exe", 100, []byte("BenVlodgi"))

	// Signature outside the trailing window is ignored.
	data, err := afero.ReadFile(fsys, "/early-sig.exe")
	require.NoError(t, err)
	copy(data[10:], "BenVlodgi")
	require.NoError(t, afero.WriteFile(fsys, "/early-sig.exe", data, 0o644))

	tests := []struct {
		path string
		want Class
	}{
		{"/vendor.exe", Vendor},
		{"/ours.exe", SelfProduced},
		{"/frozen.exe", SelfProduced},
		{"/early-sig.exe", Vendor},
		{"/small.exe", Vendor},
		{"/missing.exe", Missing},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := c.Classify(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyExactWindow(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeSized(t, fsys, "/exact.exe", WindowSize, []byte("BenVlodgi"))

	got, err := New(fsys).Classify("/exact.exe")
	require.NoError(t, err)
	assert.Equal(t, SelfProduced, got)
}

func TestClassifyCustomSignatures(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeSized(t, fsys, "/a.exe", 5000, []byte("PACKPORT"))

	got, err := New(fsys, []byte("PACKPORT")).Classify("/a.exe")
	require.NoError(t, err)
	assert.Equal(t, SelfProduced, got)
}

func TestClassifyPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "vbsp.exe")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{'x'}, 5000), 0o000))

	_, err := New(afero.NewOsFs()).Classify(path)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindPermission))
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "vendor", Vendor.String())
	assert.Equal(t, "self-produced", SelfProduced.String())
	assert.Equal(t, "missing", Missing.String())
}
