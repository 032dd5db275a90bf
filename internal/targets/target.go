// Package targets holds the managed installations an export writes into
// and the INI file that persists them.
package targets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blackwell-systems/packport/internal/errs"
)

// Target is one managed installation.
type Target struct {
	// ID is the user-facing name and the INI section.
	ID string
	// AppID is the numeric external application identifier.
	AppID string
	// Root is the installation directory.
	Root string
	// ModTimes maps casefolded package IDs to the package mod-time seen at
	// the last successful refresh.
	ModTimes map[string]int64
}

// New returns a target with an empty mod-time record.
func New(id, appID, root string) *Target {
	return &Target{ID: id, AppID: appID, Root: root, ModTimes: make(map[string]int64)}
}

// Path joins a slash-separated relative path onto the root.
func (t *Target) Path(rel string) string {
	return filepath.Join(t.Root, filepath.FromSlash(rel))
}

// RecordModTimes replaces the mod-time record.
func (t *Target) RecordModTimes(times map[string]int64) {
	t.ModTimes = make(map[string]int64, len(times))
	for id, mt := range times {
		t.ModTimes[strings.ToLower(id)] = mt
	}
}

// ModTime returns the recorded mod-time of a package, 0 if none.
func (t *Target) ModTime(pkgID string) int64 {
	return t.ModTimes[strings.ToLower(pkgID)]
}

// PackageIDs returns the recorded package IDs, sorted.
func (t *Target) PackageIDs() []string {
	ids := make([]string, 0, len(t.ModTimes))
	for id := range t.ModTimes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the record and that the root exists and is writable.
func (t *Target) Validate() error {
	if t.ID == "" {
		return errs.New(errs.KindValidation, "target has no name")
	}
	if !isNumeric(t.AppID) {
		return errs.Newf(errs.KindValidation, "target %s: app id %q is not numeric", t.ID, t.AppID)
	}
	if t.Root == "" {
		return errs.Newf(errs.KindValidation, "target %s has no directory", t.ID)
	}
	info, err := os.Stat(t.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return errs.Newf(errs.KindValidation, "target %s: directory %s does not exist", t.ID, t.Root)
	}
	if err != nil {
		return errs.Wrapf(err, errs.KindValidation, "target %s", t.ID)
	}
	if !info.IsDir() {
		return errs.Newf(errs.KindValidation, "target %s: %s is not a directory", t.ID, t.Root)
	}

	probe, err := os.CreateTemp(t.Root, ".packport-probe-*")
	if err != nil {
		return errs.Wrapf(err, errs.KindPermission, "target %s: directory %s is not writable", t.ID, t.Root)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
