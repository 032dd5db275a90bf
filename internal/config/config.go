// Package config loads packport settings: embedded defaults, then the user's
// config.toml, then PACKPORT_* environment variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/blackwell-systems/packport/internal/classify"
	"github.com/blackwell-systems/packport/internal/errs"
)

// EnvPrefix marks environment overrides, e.g. PACKPORT_DEV_MODE=true.
const EnvPrefix = "PACKPORT_"

const appName = "packport"

//go:embed embedded/defaults.toml
var defaultConfig []byte

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Config is the resolved configuration.
type Config struct {
	PackagesDir string `koanf:"packages_dir"`
	CompilerDir string `koanf:"compiler_dir"`
	// MusicDir is optional; empty disables the music copy.
	MusicDir    string `koanf:"music_dir"`
	TargetsFile string `koanf:"targets_file"`
	HistoryDB   string `koanf:"history_db"`
	// FGDFile replaces the built-in entity definitions when set.
	FGDFile string `koanf:"fgd_file"`

	PreserveResources    bool `koanf:"preserve_resources"`
	ForceAllEditorModels bool `koanf:"force_all_editor_models"`
	DevMode              bool `koanf:"dev_mode"`

	ProtectedSuffixes []string `koanf:"protected_suffixes"`
	Signatures        []string `koanf:"signatures"`

	Export ExportConfig `koanf:"export"`
}

// ExportConfig is the default selection used by `packport export`.
type ExportConfig struct {
	Style     string          `koanf:"style"`
	Voice     string          `koanf:"voice"`
	StyleVars map[string]bool `koanf:"stylevars"`
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.toml")
}

// Load resolves the configuration. An empty path means DefaultPath, which
// may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errs.Wrapf(err, errs.KindValidation, "invalid config file %s", path)
		}
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Wrapf(err, errs.KindValidation, "cannot read config file %s", path)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errs.Wrap(err, errs.KindValidation, "invalid configuration")
	}

	if err := cfg.postProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps PACKPORT_DEV_MODE to dev_mode and PACKPORT_EXPORT_STYLE to
// export.style.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "export_"); ok {
		return "export." + rest
	}
	return key
}

func (c *Config) postProcess() error {
	dataDir := filepath.Join(xdg.DataHome, appName)
	defaults := []struct {
		field *string
		def   string
	}{
		{&c.PackagesDir, filepath.Join(dataDir, "packages")},
		{&c.CompilerDir, filepath.Join(dataDir, "compiler")},
		{&c.TargetsFile, filepath.Join(xdg.ConfigHome, appName, "targets.ini")},
		{&c.HistoryDB, filepath.Join(dataDir, "history.db")},
	}
	for _, d := range defaults {
		if *d.field == "" {
			*d.field = d.def
		}
	}

	for _, p := range []*string{&c.PackagesDir, &c.CompilerDir, &c.MusicDir, &c.TargetsFile, &c.HistoryDB, &c.FGDFile} {
		expanded, err := expandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}

	for _, s := range c.ProtectedSuffixes {
		if strings.TrimSpace(s) == "" {
			return errs.New(errs.KindValidation, "protected_suffixes contains an empty entry")
		}
	}
	if c.Export.StyleVars == nil {
		c.Export.StyleVars = make(map[string]bool)
	}
	return nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// SignatureBytes returns the configured producer markers, or the built-in
// ones when none are configured.
func (c *Config) SignatureBytes() [][]byte {
	if len(c.Signatures) == 0 {
		return classify.DefaultSignatures
	}
	sigs := make([][]byte, 0, len(c.Signatures))
	for _, s := range c.Signatures {
		if s != "" {
			sigs = append(sigs, []byte(s))
		}
	}
	return sigs
}
