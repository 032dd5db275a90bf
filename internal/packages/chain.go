package packages

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// File is one resource file seen while walking a ChainFS.
type File struct {
	// Path is slash separated and relative to the package's resources.
	Path    string
	Package string
	Info    os.FileInfo

	fs   afero.Fs
	name string
}

// Source returns the filesystem holding the file and its name within it.
func (f File) Source() (afero.Fs, string) { return f.fs, f.name }

// Open opens the file for reading.
func (f File) Open() (afero.File, error) { return f.fs.Open(f.name) }

type member struct {
	id     string
	fs     afero.Fs
	closer io.Closer
}

// ChainFS presents the resources of several packages as one tree. A walk
// visits every package in order and reports duplicates; callers decide that
// the first occurrence of a path wins.
type ChainFS struct {
	pkgs    []*Package
	members []member
	opened  bool
}

// NewChainFS chains the resources of pkgs in order.
func NewChainFS(pkgs ...*Package) *ChainFS {
	return &ChainFS{pkgs: pkgs}
}

// Open acquires every package source. Packages without a resources folder
// are left out. On failure everything opened so far is released.
func (c *ChainFS) Open() error {
	if c.opened {
		return nil
	}
	for _, p := range c.pkgs {
		root, closer, err := p.Open()
		if err != nil {
			c.release()
			return err
		}
		info, err := root.Stat(resourceRoot)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
			closer.Close()
			continue
		}
		if err != nil {
			closer.Close()
			c.release()
			return fmt.Errorf("failed to open resources of %s: %w", p.ID, err)
		}
		c.members = append(c.members, member{
			id:     p.ID,
			fs:     afero.NewBasePathFs(root, resourceRoot),
			closer: closer,
		})
	}
	c.opened = true
	return nil
}

// Close releases every package source.
func (c *ChainFS) Close() error {
	err := c.release()
	c.opened = false
	return err
}

func (c *ChainFS) release() error {
	var failed []error
	for _, m := range c.members {
		if err := m.closer.Close(); err != nil {
			failed = append(failed, err)
		}
	}
	c.members = nil
	return errors.Join(failed...)
}

// With opens the chain for the duration of fn.
func (c *ChainFS) With(fn func() error) (err error) {
	if err := c.Open(); err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn()
}

// Walk calls fn for every regular file of every package, duplicates
// included, in package order. The chain must be open.
func (c *ChainFS) Walk(fn func(File) error) error {
	if !c.opened {
		return errors.New("resource chain is not open")
	}
	for _, m := range c.members {
		err := afero.Walk(m.fs, "/", func(name string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel := strings.TrimPrefix(filepath.ToSlash(name), "/")
			return fn(File{Path: rel, Package: m.id, Info: info, fs: m.fs, name: name})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of files Walk will visit.
func (c *ChainFS) Count() (int, error) {
	n := 0
	err := c.Walk(func(File) error {
		n++
		return nil
	})
	return n, err
}
