// Package classify tells original vendor files apart from files this tool
// wrote, by scanning the tail of the file for known signatures.
package classify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/errs"
)

// Class is the provenance of a file on disk.
type Class int

const (
	Missing Class = iota
	Vendor
	SelfProduced
)

func (c Class) String() string {
	switch c {
	case Missing:
		return "missing"
	case Vendor:
		return "vendor"
	case SelfProduced:
		return "self-produced"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// WindowSize is how many trailing bytes are scanned.
const WindowSize = 4096

// DefaultSignatures are the markers our replacement compilers carry: the
// author tag and the frozen-archive cookie appended by the bundler.
var DefaultSignatures = [][]byte{
	[]byte("BenVlodgi"),
	[]byte("MEI\x0c\x0b\x0a\x0b\x0e"),
}

// Classifier scans files for signatures.
type Classifier struct {
	fs         afero.Fs
	signatures [][]byte
	window     int64
}

// New returns a classifier. With no signatures DefaultSignatures are used.
func New(fsys afero.Fs, signatures ...[]byte) *Classifier {
	if len(signatures) == 0 {
		signatures = DefaultSignatures
	}
	return &Classifier{fs: fsys, signatures: signatures, window: WindowSize}
}

// Classify reports whether path is missing, an original file or one of
// ours. A file shorter than the window cannot hold a signature at its end
// and counts as Vendor. Read failures are returned, never classified.
func (c *Classifier) Classify(path string) (Class, error) {
	f, err := c.fs.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Missing, nil
	}
	if err != nil {
		return Missing, wrapReadErr(err, path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Missing, wrapReadErr(err, path)
	}
	if info.IsDir() {
		return Missing, errs.Newf(errs.KindValidation, "%s is a directory", path)
	}
	if info.Size() < c.window {
		return Vendor, nil
	}

	buf := make([]byte, c.window)
	if _, err := f.Seek(-c.window, io.SeekEnd); err != nil {
		return Missing, wrapReadErr(err, path)
	}
	if _, err := io.ReadFull(f, buf); err != nil {
		return Missing, wrapReadErr(err, path)
	}

	for _, sig := range c.signatures {
		if bytes.Contains(buf, sig) {
			return SelfProduced, nil
		}
	}
	return Vendor, nil
}

func wrapReadErr(err error, path string) error {
	if errors.Is(err, fs.ErrPermission) {
		return errs.Wrapf(err, errs.KindPermission, "failed to read %s", path)
	}
	return errs.Wrapf(err, errs.KindInternal, "failed to read %s", path)
}
