// Package packages loads content packages from a directory of package
// folders and zip archives, and exposes their resources as one chained
// filesystem.
package packages

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/afero/zipfs"

	"github.com/blackwell-systems/packport/internal/items"
	"github.com/blackwell-systems/packport/internal/kv"
)

// ManifestName is the file describing a package.
const ManifestName = "info.toml"

// resourceRoot is where a package keeps files mirrored into targets.
const resourceRoot = "/resources"

// Style is a selectable style; its config seeds the compiler configuration.
type Style struct {
	ID     string
	Name   string
	Config *kv.Property
	// VPK is a folder inside the package packed into the target's
	// packaging dir when the style is exported. Empty means none.
	VPK     string
	Package *Package
}

// StyleVar is a boolean style option.
type StyleVar struct {
	ID      string
	Name    string
	Default bool
}

// QuotePack is a selectable voice line set.
type QuotePack struct {
	ID      string
	Name    string
	Config  *kv.Property
	Package *Package
}

// Package is one loaded content package.
type Package struct {
	ID   string
	Name string
	// Path is the package folder or archive.
	Path string
	// ModTime is the newest modification time of the package, in Unix
	// seconds. Staleness of a target's cache is judged against it.
	ModTime int64

	Styles      []*Style
	Items       []items.Item
	StyleVars   []StyleVar
	Quotes      []*QuotePack
	Renderables []items.Renderable

	open func() (afero.Fs, io.Closer, error)
}

// Open returns the package's root filesystem. Close the closer when done.
func (p *Package) Open() (afero.Fs, io.Closer, error) {
	if p.open == nil {
		return nil, nil, fmt.Errorf("package %s has no source", p.ID)
	}
	return p.open()
}

// FromFs builds a package whose files live in fsys. It is used for
// generated and in-memory packages.
func FromFs(id string, modTime int64, fsys afero.Fs) *Package {
	return &Package{
		ID:      id,
		Name:    id,
		Path:    "mem://" + id,
		ModTime: modTime,
		open: func() (afero.Fs, io.Closer, error) {
			return fsys, nopCloser{}, nil
		},
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func dirOpener(osFs afero.Fs, dir string) func() (afero.Fs, io.Closer, error) {
	return func() (afero.Fs, io.Closer, error) {
		return afero.NewBasePathFs(osFs, dir), nopCloser{}, nil
	}
}

func zipOpener(path string) func() (afero.Fs, io.Closer, error) {
	return func() (afero.Fs, io.Closer, error) {
		rc, err := zip.OpenReader(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open archive %s: %w", path, err)
		}
		return zipfs.New(&rc.Reader), rc, nil
	}
}

// Set is the ordered collection of loaded packages.
type Set struct {
	pkgs []*Package
	byID map[string]*Package
}

// NewSet builds a set; package IDs must be unique ignoring case.
func NewSet(pkgs ...*Package) (*Set, error) {
	s := &Set{byID: make(map[string]*Package, len(pkgs))}
	for _, p := range pkgs {
		key := strings.ToLower(p.ID)
		if prev, ok := s.byID[key]; ok {
			return nil, fmt.Errorf("duplicate package id %q in %s and %s", p.ID, prev.Path, p.Path)
		}
		s.byID[key] = p
		s.pkgs = append(s.pkgs, p)
	}
	return s, nil
}

// Packages returns the packages in load order.
func (s *Set) Packages() []*Package { return s.pkgs }

// Len returns the number of packages.
func (s *Set) Len() int { return len(s.pkgs) }

// Get returns a package by ID.
func (s *Set) Get(id string) (*Package, bool) {
	p, ok := s.byID[strings.ToLower(id)]
	return p, ok
}

// ModTimes returns package ID to mod-time for every package.
func (s *Set) ModTimes() map[string]int64 {
	out := make(map[string]int64, len(s.pkgs))
	for _, p := range s.pkgs {
		out[p.ID] = p.ModTime
	}
	return out
}

// Style finds a style by ID across all packages.
func (s *Set) Style(id string) (*Style, bool) {
	for _, p := range s.pkgs {
		for _, st := range p.Styles {
			if strings.EqualFold(st.ID, id) {
				return st, true
			}
		}
	}
	return nil, false
}

// Styles returns every style in load order.
func (s *Set) Styles() []*Style {
	var out []*Style
	for _, p := range s.pkgs {
		out = append(out, p.Styles...)
	}
	return out
}

// Quote finds a quote pack by ID.
func (s *Set) Quote(id string) (*QuotePack, bool) {
	for _, p := range s.pkgs {
		for _, q := range p.Quotes {
			if strings.EqualFold(q.ID, id) {
				return q, true
			}
		}
	}
	return nil, false
}

// StyleVars returns every style var; the first definition of an ID wins.
func (s *Set) StyleVars() []StyleVar {
	seen := make(map[string]bool)
	var out []StyleVar
	for _, p := range s.pkgs {
		for _, v := range p.StyleVars {
			key := strings.ToLower(v.ID)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}

// Items returns every item definition in load order.
func (s *Set) Items() []items.Item {
	var out []items.Item
	for _, p := range s.pkgs {
		out = append(out, p.Items...)
	}
	return out
}

// Renderables returns every renderable in load order.
func (s *Set) Renderables() []items.Renderable {
	var out []items.Renderable
	for _, p := range s.pkgs {
		out = append(out, p.Renderables...)
	}
	return out
}

// Resources returns a chained filesystem over every package's resources.
func (s *Set) Resources() *ChainFS {
	return NewChainFS(s.pkgs...)
}
