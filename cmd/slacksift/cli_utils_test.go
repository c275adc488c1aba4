package main

import (
	"flag"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/slacksift/slacksift/internal/store"
)

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name     string
		setup    func() *flag.FlagSet
		args     []string
		expected []string
	}{
		{
			name: "flags already before positional args",
			setup: func() *flag.FlagSet {
				fs := flag.NewFlagSet("test", flag.ContinueOnError)
				fs.Bool("json", false, "")
				return fs
			},
			args:     []string{"--json", "deadline"},
			expected: []string{"--json", "deadline"},
		},
		{
			name: "bool flag after positional arg",
			setup: func() *flag.FlagSet {
				fs := flag.NewFlagSet("test", flag.ContinueOnError)
				fs.Bool("json", false, "")
				return fs
			},
			args:     []string{"deadline", "--json"},
			expected: []string{"--json", "deadline"},
		},
		{
			name: "string flag after positional args consumes its value",
			setup: func() *flag.FlagSet {
				fs := flag.NewFlagSet("test", flag.ContinueOnError)
				fs.String("from", "", "")
				return fs
			},
			args:     []string{"standup", "notes", "--from", "ana"},
			expected: []string{"--from", "ana", "standup", "notes"},
		},
		{
			name: "flag with equals syntax",
			setup: func() *flag.FlagSet {
				fs := flag.NewFlagSet("test", flag.ContinueOnError)
				fs.String("after", "", "")
				return fs
			},
			args:     []string{"deadline", "--after=2026-01-01"},
			expected: []string{"--after=2026-01-01", "deadline"},
		},
		{
			name: "double dash terminator",
			setup: func() *flag.FlagSet {
				fs := flag.NewFlagSet("test", flag.ContinueOnError)
				fs.Bool("json", false, "")
				return fs
			},
			args:     []string{"--", "--json", "deadline"},
			expected: []string{"--json", "deadline"},
		},
		{
			name: "empty args",
			setup: func() *flag.FlagSet {
				fs := flag.NewFlagSet("test", flag.ContinueOnError)
				fs.Bool("json", false, "")
				return fs
			},
			args:     []string{},
			expected: nil,
		},
		{
			name: "short bool flag after positional",
			setup: func() *flag.FlagSet {
				fs := flag.NewFlagSet("test", flag.ContinueOnError)
				fs.Bool("q", false, "")
				return fs
			},
			args:     []string{"deadline", "-q"},
			expected: []string{"-q", "deadline"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := tt.setup()
			result := normalizeArgs(fs, tt.args)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("normalizeArgs() = %v, want %v", result, tt.expected)
			}
		})
	}
}

// TestNormalizeArgsIntegration verifies that after normalizeArgs + fs.Parse,
// flags parse regardless of where they sit relative to the query terms.
func TestNormalizeArgsIntegration(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectJSON  bool
		expectFrom  string
		expectQuery string
	}{
		{
			name:        "flags before query",
			args:        []string{"--json", "--from", "ana", "deadline"},
			expectJSON:  true,
			expectFrom:  "ana",
			expectQuery: "deadline",
		},
		{
			name:        "flags after multi-word query",
			args:        []string{"standup", "notes", "--from", "ana", "--json"},
			expectJSON:  true,
			expectFrom:  "ana",
			expectQuery: "standup notes",
		},
		{
			name:        "no flags",
			args:        []string{"standup", "notes"},
			expectQuery: "standup notes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			jsonOutput := fs.Bool("json", false, "")
			from := fs.String("from", "", "")

			if err := fs.Parse(normalizeArgs(fs, tt.args)); err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if *jsonOutput != tt.expectJSON {
				t.Errorf("json = %v, want %v", *jsonOutput, tt.expectJSON)
			}
			if *from != tt.expectFrom {
				t.Errorf("from = %q, want %q", *from, tt.expectFrom)
			}
			if got := strings.Join(fs.Args(), " "); got != tt.expectQuery {
				t.Errorf("query = %q, want %q", got, tt.expectQuery)
			}
		})
	}
}

func TestMergeFlags(t *testing.T) {
	tests := []struct {
		long, short, want string
	}{
		{"ana", "", "ana"},
		{"", "ana", "ana"},
		{"ana", "bob", "ana"},
		{"  ana  ", "", "ana"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := mergeFlags(tt.long, tt.short); got != tt.want {
			t.Errorf("mergeFlags(%q, %q) = %q, want %q", tt.long, tt.short, got, tt.want)
		}
	}
}

func TestParseAfterArg(t *testing.T) {
	t.Run("empty means no bound", func(t *testing.T) {
		got, err := parseAfterArg("")
		if err != nil || got != 0 {
			t.Errorf("parseAfterArg(\"\") = %d, %v; want 0, nil", got, err)
		}
	})

	t.Run("unix seconds pass through", func(t *testing.T) {
		got, err := parseAfterArg("1700000000")
		if err != nil {
			t.Fatalf("parseAfterArg: %v", err)
		}
		if got != 1700000000 {
			t.Errorf("got %d, want 1700000000", got)
		}
	})

	t.Run("date parses in local time", func(t *testing.T) {
		got, err := parseAfterArg("2026-03-15")
		if err != nil {
			t.Fatalf("parseAfterArg: %v", err)
		}
		want, _ := time.ParseInLocation("2006-01-02", "2026-03-15", time.Local)
		if got != want.Unix() {
			t.Errorf("got %d, want %d", got, want.Unix())
		}
	})

	t.Run("garbage rejected", func(t *testing.T) {
		if _, err := parseAfterArg("yesterday"); err == nil {
			t.Error("expected error for non-date input")
		}
	})
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"héllo wörld extra", 8, "héllo..."},
	}
	for _, tt := range tests {
		if got := truncateText(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateText(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestOneLine(t *testing.T) {
	got := oneLine("first line\nsecond\t\tline   third")
	want := "first line second line third"
	if got != want {
		t.Errorf("oneLine() = %q, want %q", got, want)
	}
}

func TestFormatTS(t *testing.T) {
	if got := formatTS(0); got != "-" {
		t.Errorf("formatTS(0) = %q, want \"-\"", got)
	}
	if got := formatTS(-5); got != "-" {
		t.Errorf("formatTS(-5) = %q, want \"-\"", got)
	}
	ts := int64(1755700000)
	want := time.Unix(ts, 0).Local().Format("2006-01-02 15:04")
	if got := formatTS(ts); got != want {
		t.Errorf("formatTS(%d) = %q, want %q", ts, got, want)
	}
}

func TestRenderMessageLine(t *testing.T) {
	m := store.Message{
		ConversationName: "general",
		Sender:           "Ana Ruiz",
		Text:             "release is\ncut",
		Timestamp:        1755700000,
	}
	line := renderMessageLine(m)
	if !strings.HasSuffix(line, "\n") {
		t.Error("line should end with newline")
	}
	if !strings.Contains(line, "general") || !strings.Contains(line, "Ana Ruiz") {
		t.Errorf("line missing fields: %q", line)
	}
	if !strings.Contains(line, "release is cut") {
		t.Errorf("multi-line text should be flattened: %q", line)
	}
}
