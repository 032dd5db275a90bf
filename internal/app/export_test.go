package app

import (
	"testing"

	"github.com/blackwell-systems/packport/internal/config"
)

func TestExportCommandFlags(t *testing.T) {
	flags := []string{"style", "voice", "set", "refresh", "force"}
	for _, name := range flags {
		if exportCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag on export", name)
		}
	}
	for _, name := range []string{"style", "voice", "set"} {
		if diffCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag on diff", name)
		}
	}
}

func TestSelection(t *testing.T) {
	defer resetFlags()

	cfg = &config.Config{Export: config.ExportConfig{
		Style:     "BEE2_CLEAN",
		Voice:     "BEE2_GLADOS",
		StyleVars: map[string]bool{"UnlockDefault": false, "Other": true},
	}}

	t.Run("config only", func(t *testing.T) {
		resetFlags()
		sel, err := selection()
		if err != nil {
			t.Fatalf("selection() error: %v", err)
		}
		if sel.Style != "BEE2_CLEAN" || sel.Voice != "BEE2_GLADOS" {
			t.Errorf("unexpected selection %+v", sel)
		}
		if sel.StyleVars["UnlockDefault"] || !sel.StyleVars["Other"] {
			t.Errorf("unexpected style vars %v", sel.StyleVars)
		}
	})

	t.Run("flags override", func(t *testing.T) {
		resetFlags()
		exportStyle = "BEE2_BTS"
		exportStyleVars = map[string]string{"UnlockDefault": "true"}
		sel, err := selection()
		if err != nil {
			t.Fatalf("selection() error: %v", err)
		}
		if sel.Style != "BEE2_BTS" {
			t.Errorf("expected style override, got %s", sel.Style)
		}
		if !sel.StyleVars["UnlockDefault"] {
			t.Error("expected UnlockDefault to be overridden")
		}
		if cfg.Export.StyleVars["UnlockDefault"] {
			t.Error("config style vars must not be modified")
		}
	})

	t.Run("invalid style var", func(t *testing.T) {
		resetFlags()
		exportStyleVars = map[string]string{"UnlockDefault": "maybe"}
		if _, err := selection(); err == nil {
			t.Error("expected error for non-boolean style var")
		}
	})

	t.Run("no style", func(t *testing.T) {
		resetFlags()
		cfg.Export.Style = ""
		if _, err := selection(); err == nil {
			t.Error("expected error when no style is selected")
		}
	})
}
