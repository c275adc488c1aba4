package clipboard

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestCopyEmpty(t *testing.T) {
	if _, err := Copy(""); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"one line", 1},
		{"a\nb\nc\n", 3},
		{"a\nb\nc", 3},
		{"\n\n", 2},
	}
	for _, tt := range tests {
		if got := countLines(tt.in); got != tt.want {
			t.Errorf("countLines(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestOSC52Sequence(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("hello"))

	plain := osc52Sequence(encoded, false)
	if plain != "\x1b]52;c;"+encoded+"\x07" {
		t.Errorf("plain sequence wrong: %q", plain)
	}

	wrapped := osc52Sequence(encoded, true)
	if !strings.HasPrefix(wrapped, "\x1bPtmux;\x1b") || !strings.HasSuffix(wrapped, "\x1b\\") {
		t.Errorf("tmux sequence not wrapped in DCS passthrough: %q", wrapped)
	}
	if !strings.Contains(wrapped, encoded) {
		t.Errorf("tmux sequence lost the payload: %q", wrapped)
	}
}

func TestCopyReportsLines(t *testing.T) {
	result, err := Copy("a\nb\nc\n")
	if err != nil {
		t.Skipf("no clipboard available in this environment: %v", err)
	}
	if result.Lines != 3 {
		t.Errorf("Lines = %d, want 3", result.Lines)
	}
	if result.Method == "" {
		t.Error("Method should name the tool used")
	}
}
