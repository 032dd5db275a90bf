package app

import (
	"testing"
)

func TestRootCommand(t *testing.T) {
	if RootCmd.Use != "packport" {
		t.Errorf("expected Use to be 'packport', got '%s'", RootCmd.Use)
	}

	if RootCmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	if RootCmd.Long == "" {
		t.Error("expected Long description to be set")
	}

	if !RootCmd.SilenceUsage || !RootCmd.SilenceErrors {
		t.Error("expected usage and errors to be silenced")
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	commands := RootCmd.Commands()

	expectedCommands := []string{"target", "export", "cache", "restore", "history", "diff", "watch", "doctor"}
	foundCommands := make(map[string]bool)

	for _, cmd := range commands {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("expected command '%s' to be registered", expected)
		}
	}
}

func TestRootCommandHasPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "db", "verbose"} {
		flag := RootCmd.PersistentFlags().Lookup(name)
		if flag == nil {
			t.Errorf("expected --%s flag to be registered", name)
			continue
		}
		if flag.Usage == "" {
			t.Errorf("expected --%s flag to have usage text", name)
		}
	}

	if f := RootCmd.PersistentFlags().ShorthandLookup("v"); f == nil || f.Name != "verbose" {
		t.Error("expected -v to be the shorthand for --verbose")
	}
}

func TestSubcommandTrees(t *testing.T) {
	tests := []struct {
		parent string
		subs   []string
	}{
		{"target", []string{"add", "list", "remove"}},
		{"cache", []string{"status", "refresh", "clear"}},
	}

	for _, tt := range tests {
		t.Run(tt.parent, func(t *testing.T) {
			cmd, _, err := RootCmd.Find([]string{tt.parent})
			if err != nil {
				t.Fatalf("Find(%s) error: %v", tt.parent, err)
			}
			found := make(map[string]bool)
			for _, sub := range cmd.Commands() {
				found[sub.Name()] = true
			}
			for _, sub := range tt.subs {
				if !found[sub] {
					t.Errorf("expected '%s %s' to be registered", tt.parent, sub)
				}
			}
		})
	}
}
