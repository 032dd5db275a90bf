package targets

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/ini.v1"

	"github.com/blackwell-systems/packport/internal/errs"
	"github.com/blackwell-systems/packport/internal/fsutil"
	"github.com/blackwell-systems/packport/internal/logging"
)

const (
	keyAppID     = "app_id"
	keyDir       = "dir"
	modKeyPrefix = "pack_mod_"
)

// Store persists targets in an INI file, one section per target.
type Store struct {
	fs   afero.Fs
	path string
	log  zerolog.Logger
}

// NewStore returns a store backed by the INI file at path.
func NewStore(fsys afero.Fs, path string) *Store {
	return &Store{fs: fsys, path: path, log: logging.GetLogger("targets")}
}

// Path returns the INI file location.
func (s *Store) Path() string { return s.path }

// Load returns every well-formed target in file order. Sections with a
// non-numeric app id or a missing or nonexistent directory are skipped with
// a warning. A missing file yields no targets.
func (s *Store) Load() ([]*Target, error) {
	cfg, err := s.read()
	if err != nil {
		return nil, err
	}

	var out []*Target
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		t, err := s.fromSection(sec)
		if err != nil {
			s.log.Warn().Err(err).Str("target", sec.Name()).Msg("Skipping malformed target")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Get returns the target with the given ID.
func (s *Store) Get(id string) (*Target, error) {
	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if strings.EqualFold(t.ID, id) {
			return t, nil
		}
	}
	return nil, errs.Newf(errs.KindValidation, "target %q not found", id)
}

// SaveTarget writes t, replacing any section of the same name. Other
// sections, including malformed ones, are kept as they are.
func (s *Store) SaveTarget(t *Target) error {
	cfg, err := s.read()
	if err != nil {
		return err
	}
	cfg.DeleteSection(t.ID)
	sec, err := cfg.NewSection(t.ID)
	if err != nil {
		return fmt.Errorf("failed to create section %s: %w", t.ID, err)
	}
	if _, err := sec.NewKey(keyAppID, t.AppID); err != nil {
		return fmt.Errorf("failed to set app id: %w", err)
	}
	if _, err := sec.NewKey(keyDir, t.Root); err != nil {
		return fmt.Errorf("failed to set dir: %w", err)
	}
	for _, id := range t.PackageIDs() {
		if _, err := sec.NewKey(modKeyPrefix+id, strconv.FormatInt(t.ModTimes[id], 10)); err != nil {
			return fmt.Errorf("failed to set mod time for %s: %w", id, err)
		}
	}
	return s.write(cfg)
}

// Remove deletes the section for id.
func (s *Store) Remove(id string) error {
	cfg, err := s.read()
	if err != nil {
		return err
	}
	if _, err := cfg.GetSection(id); err != nil {
		return errs.Newf(errs.KindValidation, "target %q not found", id)
	}
	cfg.DeleteSection(id)
	return s.write(cfg)
}

func (s *Store) fromSection(sec *ini.Section) (*Target, error) {
	t := New(sec.Name(), strings.TrimSpace(sec.Key(keyAppID).String()), strings.TrimSpace(sec.Key(keyDir).String()))
	if !isNumeric(t.AppID) {
		return nil, errs.Newf(errs.KindValidation, "app id %q is not numeric", t.AppID)
	}
	if t.Root == "" {
		return nil, errs.New(errs.KindValidation, "no dir set")
	}
	if _, err := s.fs.Stat(t.Root); err != nil {
		return nil, errs.Wrapf(err, errs.KindValidation, "dir %s", t.Root)
	}

	for _, key := range sec.Keys() {
		name := key.Name()
		if !strings.HasPrefix(name, modKeyPrefix) {
			continue
		}
		mt, err := key.Int64()
		if err != nil {
			s.log.Warn().Str("target", t.ID).Str("key", name).Msg("Ignoring non-numeric mod time")
			continue
		}
		t.ModTimes[strings.ToLower(strings.TrimPrefix(name, modKeyPrefix))] = mt
	}
	return t, nil
}

func (s *Store) read() (*ini.File, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ini.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file %s: %w", s.path, err)
	}
	cfg, err := ini.Load(data)
	if err != nil {
		return nil, errs.Wrapf(err, errs.KindValidation, "failed to parse targets file %s", s.path)
	}
	return cfg, nil
}

func (s *Store) write(cfg *ini.File) error {
	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode targets: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.fs, s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to save targets: %w", err)
	}
	return nil
}
