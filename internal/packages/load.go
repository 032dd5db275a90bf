package packages

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/errs"
	"github.com/blackwell-systems/packport/internal/items"
	"github.com/blackwell-systems/packport/internal/kv"
	"github.com/blackwell-systems/packport/internal/logging"
)

type manifest struct {
	ID     string `toml:"id"`
	Name   string `toml:"name"`
	Styles []struct {
		ID     string `toml:"id"`
		Name   string `toml:"name"`
		Config string `toml:"config"`
		VPK    string `toml:"vpk"`
	} `toml:"styles"`
	Items []struct {
		ID        string   `toml:"id"`
		Styles    []string `toml:"styles"`
		Deletable bool     `toml:"deletable"`
		Copiable  bool     `toml:"copiable"`
		Facing    string   `toml:"facing"`
		Models    []string `toml:"models"`
		Config    string   `toml:"config"`
		Editor    string   `toml:"editor"`
	} `toml:"items"`
	StyleVars []struct {
		ID      string `toml:"id"`
		Name    string `toml:"name"`
		Default bool   `toml:"default"`
	} `toml:"stylevars"`
	Quotes []struct {
		ID     string `toml:"id"`
		Name   string `toml:"name"`
		Config string `toml:"config"`
	} `toml:"quotes"`
	Renderables []struct {
		Type  string `toml:"type"`
		Model string `toml:"model"`
	} `toml:"renderables"`
}

// Loader reads packages from a packages directory.
type Loader struct {
	fs  afero.Fs
	log zerolog.Logger
}

// NewLoader returns a loader over fsys, normally the OS filesystem.
func NewLoader(fsys afero.Fs) *Loader {
	return &Loader{fs: fsys, log: logging.GetLogger("packages")}
}

// Load reads every package folder (holding info.toml) and .zip archive in
// dir, in name order. Entries that are neither are ignored.
func (l *Loader) Load(dir string) (*Set, error) {
	entries, err := afero.ReadDir(l.fs, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Wrapf(err, errs.KindMissingDependency, "packages directory %s not found", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read packages directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var pkgs []*Package
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		var p *Package
		switch {
		case e.IsDir():
			if ok, _ := afero.Exists(l.fs, filepath.Join(full, ManifestName)); !ok {
				continue
			}
			mt, err := newestModTime(l.fs, full)
			if err != nil {
				return nil, fmt.Errorf("failed to scan package %s: %w", full, err)
			}
			p = &Package{Path: full, ModTime: mt, open: dirOpener(l.fs, full)}
		case strings.EqualFold(filepath.Ext(e.Name()), ".zip"):
			p = &Package{Path: full, ModTime: e.ModTime().Unix(), open: zipOpener(full)}
		default:
			continue
		}

		if err := l.readManifest(p); err != nil {
			return nil, err
		}
		l.log.Debug().Str("package", p.ID).Str("path", p.Path).Int64("modTime", p.ModTime).Msg("Loaded package")
		pkgs = append(pkgs, p)
	}
	return NewSet(pkgs...)
}

func (l *Loader) readManifest(p *Package) error {
	fsys, closer, err := p.Open()
	if err != nil {
		return err
	}
	defer closer.Close()

	data, err := afero.ReadFile(fsys, "/"+ManifestName)
	if err != nil {
		return fmt.Errorf("failed to read %s in %s: %w", ManifestName, p.Path, err)
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return errs.Wrapf(err, errs.KindValidation, "invalid %s in %s", ManifestName, p.Path)
	}
	if m.ID == "" {
		return errs.Newf(errs.KindValidation, "package %s has no id", p.Path)
	}

	p.ID = m.ID
	p.Name = m.Name
	if p.Name == "" {
		p.Name = m.ID
	}

	readCfg := func(rel string) (*kv.Property, error) {
		if rel == "" {
			return nil, nil
		}
		f, err := fsys.Open("/" + path.Clean(filepath.ToSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in %s: %w", rel, p.Path, err)
		}
		defer f.Close()
		prop, err := kv.Parse(f, rel)
		if err != nil {
			return nil, errs.Wrapf(err, errs.KindValidation, "package %s", p.ID)
		}
		return prop, nil
	}

	for _, s := range m.Styles {
		cfg, err := readCfg(s.Config)
		if err != nil {
			return err
		}
		if cfg == nil {
			cfg = kv.NewRoot()
		}
		p.Styles = append(p.Styles, &Style{ID: s.ID, Name: s.Name, Config: cfg, VPK: s.VPK, Package: p})
	}
	for _, it := range m.Items {
		cfg, err := readCfg(it.Config)
		if err != nil {
			return err
		}
		editor, err := readCfg(it.Editor)
		if err != nil {
			return err
		}
		facing := strings.ToUpper(it.Facing)
		if facing == "" {
			facing = items.FacingNone
		}
		p.Items = append(p.Items, items.Item{
			ID:        it.ID,
			Deletable: it.Deletable,
			Copiable:  it.Copiable,
			Facing:    facing,
			Models:    it.Models,
			Styles:    it.Styles,
			Config:    cfg,
			Editor:    editor,
		})
	}
	for _, v := range m.StyleVars {
		p.StyleVars = append(p.StyleVars, StyleVar{ID: v.ID, Name: v.Name, Default: v.Default})
	}
	for _, q := range m.Quotes {
		cfg, err := readCfg(q.Config)
		if err != nil {
			return err
		}
		p.Quotes = append(p.Quotes, &QuotePack{ID: q.ID, Name: q.Name, Config: cfg, Package: p})
	}
	for _, r := range m.Renderables {
		p.Renderables = append(p.Renderables, items.Renderable{Type: r.Type, Model: r.Model})
	}
	return nil
}

// newestModTime returns the latest modification time under dir.
func newestModTime(fsys afero.Fs, dir string) (int64, error) {
	var newest int64
	err := afero.Walk(fsys, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if mt := info.ModTime().Unix(); mt > newest {
			newest = mt
		}
		return nil
	})
	return newest, err
}
