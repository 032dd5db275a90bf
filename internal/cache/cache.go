// Package cache mirrors package resources into a target and tracks, per
// target, which package versions the mirror was built from.
package cache

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/logging"
	"github.com/blackwell-systems/packport/internal/packages"
	"github.com/blackwell-systems/packport/internal/targets"
)

// Layout inside a target, slash separated and relative to its root.
const (
	InstanceDir = "sdk_content/maps/instances/bee2"
	OverlayDir  = "bee2"
	AuxDir      = "bin/bee2"

	// PackagingDir receives prebuilt style archives matching PackagingGlob.
	PackagingDir  = "portal2_dlc3"
	PackagingGlob = "pak01_*.vpk"
)

// DefaultProtectedSuffixes are never swept: map editor caches, disabled
// editor models and a map the game ships in our instance folder.
var DefaultProtectedSuffixes = []string{".vmx", ".mdl_dis", "tag_coop_gun.vmf"}

// Saver persists a target after its mod-time record changes.
type Saver interface {
	SaveTarget(t *targets.Target) error
}

// Options control refresh behaviour.
type Options struct {
	// PreserveResources keeps whatever is in the target and reports it as
	// never stale.
	PreserveResources bool
	ProtectedSuffixes []string
}

// Cache synchronizes the resource overlay of targets.
type Cache struct {
	fs    afero.Fs
	opts  Options
	saver Saver
	log   zerolog.Logger
}

// New creates a Cache. saver may be nil, in which case records are only
// updated in memory.
func New(fsys afero.Fs, opts Options, saver Saver) *Cache {
	if opts.ProtectedSuffixes == nil {
		opts.ProtectedSuffixes = DefaultProtectedSuffixes
	}
	return &Cache{fs: fsys, opts: opts, saver: saver, log: logging.GetLogger("cache")}
}

// IsStale reports whether the target's mirror may differ from the loaded
// packages: a different package count, or any package newer than its
// record. Package IDs compare case-insensitively; no record means 0.
func (c *Cache) IsStale(t *targets.Target, pkgs *packages.Set) bool {
	if c.opts.PreserveResources {
		return false
	}
	if pkgs.Len() != len(t.ModTimes) {
		c.log.Debug().Int("packages", pkgs.Len()).Int("recorded", len(t.ModTimes)).Msg("Package count changed")
		return true
	}
	for _, p := range pkgs.Packages() {
		if p.ModTime > t.ModTime(p.ID) {
			c.log.Debug().Str("package", p.ID).Int64("modTime", p.ModTime).Int64("recorded", t.ModTime(p.ID)).Msg("Package changed")
			return true
		}
	}
	return false
}

// CopiedSet is the set of destination paths written or claimed during one
// refresh. Paths compare case-insensitively.
type CopiedSet struct {
	paths map[string]struct{}
}

// NewCopiedSet returns an empty set.
func NewCopiedSet() *CopiedSet {
	return &CopiedSet{paths: make(map[string]struct{})}
}

func foldPath(p string) string {
	return strings.ToLower(filepath.Clean(p))
}

// Add marks p as written.
func (s *CopiedSet) Add(p string) { s.paths[foldPath(p)] = struct{}{} }

// Has reports whether p was marked.
func (s *CopiedSet) Has(p string) bool {
	_, ok := s.paths[foldPath(p)]
	return ok
}

// Len returns the number of marked paths.
func (s *CopiedSet) Len() int { return len(s.paths) }

func (c *Cache) protected(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range c.opts.ProtectedSuffixes {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

func (c *Cache) save(t *targets.Target) error {
	if c.saver == nil {
		return nil
	}
	return c.saver.SaveTarget(t)
}
