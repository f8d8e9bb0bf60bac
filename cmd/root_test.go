package cmd

import (
	"testing"

	"github.com/mj1618/findclose/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	expected := []string{"scan", "watch", "shake", "screenshot", "serve", "settings"}
	commands := rootCmd.Commands()

	found := make(map[string]bool)
	for _, c := range commands {
		found[c.Name()] = true
	}

	for _, name := range expected {
		if !found[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	if rootCmd.Version == "" {
		t.Error("root command version should be set")
	}
}

func TestSettingsCommand_HasSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range settingsCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"get", "enable", "disable", "toggle"} {
		if !found[name] {
			t.Errorf("expected settings subcommand %q not found", name)
		}
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"info", "console", false},
		{"debug", "json", false},
		{"", "", false},
		{"warn", "text", false},
		{"verbose", "console", true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		_, err := newLogger(config.Logging{Level: tt.level, Format: tt.format})
		if (err != nil) != tt.wantErr {
			t.Errorf("newLogger(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
		}
	}
}
