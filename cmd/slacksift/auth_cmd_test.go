package main

import (
	"testing"

	"github.com/slacksift/slacksift/internal/config"
)

func TestSanitizeAlias(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme-corp"},
		{"ACME", "acme"},
		{"dev_team 2", "dev-team-2"},
		{"Ünicode!", "nicode"},
		{"  spaced  ", "spaced"},
		{"", "workspace"},
		{"!!!", "workspace"},
	}
	for _, tt := range tests {
		if got := sanitizeAlias(tt.in); got != tt.want {
			t.Errorf("sanitizeAlias(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAliasFlagHint(t *testing.T) {
	w := &config.Workspaces{Current: "acme"}
	if got := aliasFlagHint("acme", w); got != "" {
		t.Errorf("hint for current workspace = %q, want empty", got)
	}
	if got := aliasFlagHint("other", w); got != " -w other" {
		t.Errorf("hint for non-current workspace = %q, want \" -w other\"", got)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "acme", "other"); got != "acme" {
		t.Errorf("firstNonEmpty = %q, want \"acme\"", got)
	}
	if got := firstNonEmpty("", "   "); got != "" {
		t.Errorf("firstNonEmpty of blanks = %q, want empty", got)
	}
}
