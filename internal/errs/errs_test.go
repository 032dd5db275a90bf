package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "target missing", New(KindValidation, "target missing").Error())

	wrapped := Wrap(fs.ErrPermission, KindPermission, "copy vbsp")
	assert.Equal(t, "copy vbsp: permission denied", wrapped.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindInternal, "nothing"))
	assert.Nil(t, Wrapf(nil, KindInternal, "nothing %d", 1))
}

func TestIsMatchesKindThroughChain(t *testing.T) {
	base := Newf(KindVendorFilesLost, "%s lost", "vbsp.exe")
	err := fmt.Errorf("failed to back up: %w", base)

	assert.True(t, IsKind(err, KindVendorFilesLost))
	assert.False(t, IsKind(err, KindPermission))
	assert.True(t, errors.Is(err, New(KindVendorFilesLost, "any message")))
}

func TestWrappedCauseStillReachable(t *testing.T) {
	err := Wrap(fs.ErrPermission, KindPermission, "copy")
	assert.True(t, errors.Is(err, fs.ErrPermission))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindSoftExport, KindOf(fmt.Errorf("x: %w", New(KindSoftExport, "vpk"))))
}

func TestDetails(t *testing.T) {
	err := New(KindVendorFilesLost, "lost").WithDetail("file", "bin/vbsp.exe")

	v, ok := Detail(fmt.Errorf("wrapped: %w", err), "file")
	require.True(t, ok)
	assert.Equal(t, "bin/vbsp.exe", v)

	_, ok = Detail(errors.New("plain"), "file")
	assert.False(t, ok)
}
