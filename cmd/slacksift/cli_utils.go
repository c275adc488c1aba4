package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/slacksift/slacksift/internal/config"
	"github.com/slacksift/slacksift/internal/index"
	"github.com/slacksift/slacksift/internal/ingest"
	"github.com/slacksift/slacksift/internal/slack"
	"github.com/slacksift/slacksift/internal/store"
	"github.com/slacksift/slacksift/internal/workspace"
)

// normalizeArgs reorders args so flags come before positional arguments.
// Go's flag package stops parsing at the first non-flag argument, which means
// "search deadline --json" silently ignores --json. This function moves all
// flags to the front so they get parsed correctly.
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	// Build set of known boolean flags (don't need a value argument)
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" terminates flag processing
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)

			name := strings.TrimLeft(arg, "-")

			// --flag=value carries its value inline
			if strings.Contains(name, "=") {
				continue
			}

			// A non-bool flag consumes the next arg as its value
			if !boolFlags[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return append(flags, positional...)
}

// mergeFlags returns the long-form value unless only the short form was set.
func mergeFlags(long, short string) string {
	if strings.TrimSpace(long) != "" {
		return strings.TrimSpace(long)
	}
	return strings.TrimSpace(short)
}

// parseAfterArg accepts a unix timestamp or a YYYY-MM-DD date in local time.
func parseAfterArg(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unix, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return 0, fmt.Errorf("invalid --after value %q (want unix seconds or YYYY-MM-DD)", s)
	}
	return t.Unix(), nil
}

// CLIOutput handles consistent output formatting across all CLI commands
type CLIOutput struct {
	jsonMode  bool
	quietMode bool
}

// NewCLIOutput creates a new CLI output handler
func NewCLIOutput(jsonMode, quietMode bool) *CLIOutput {
	return &CLIOutput{
		jsonMode:  jsonMode,
		quietMode: quietMode,
	}
}

// Success prints a success message or JSON response
func (c *CLIOutput) Success(message string, data interface{}) {
	if c.quietMode {
		return
	}
	if c.jsonMode {
		c.printJSON(data)
		return
	}
	fmt.Printf("%s %s\n", successSymbol, message)
}

// Error prints an error message or JSON error response
func (c *CLIOutput) Error(message string, code string) {
	if c.jsonMode {
		c.printJSON(map[string]interface{}{
			"success": false,
			"error":   message,
			"code":    code,
		})
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

// Print prints data (human-readable or JSON)
func (c *CLIOutput) Print(humanOutput string, jsonData interface{}) {
	if c.quietMode {
		return
	}
	if c.jsonMode {
		c.printJSON(jsonData)
		return
	}
	fmt.Print(humanOutput)
}

// printJSON marshals and prints JSON data
func (c *CLIOutput) printJSON(data interface{}) {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to format JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))
}

// Symbols for human-readable output
const (
	successSymbol = "✓"
	bulletSymbol  = "•"
)

// Error codes
const (
	ErrCodeNotConfigured    = "NOT_CONFIGURED"
	ErrCodeAuthFailed       = "AUTH_FAILED"
	ErrCodeIndexNotFound    = "INDEX_NOT_FOUND"
	ErrCodeIndexCorrupt     = "INDEX_CORRUPT"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// exitWithError maps the error taxonomy onto exit codes: configuration and
// missing-index problems exit 2 (actionable by the user), auth failures exit
// 3 (token is dead), everything else exits 1.
func exitWithError(out *CLIOutput, err error) {
	var authErr *slack.AuthError
	var corruptErr *index.SnapshotCorruptError
	switch {
	case errors.Is(err, config.ErrNotConfigured):
		out.Error(err.Error(), ErrCodeNotConfigured)
		os.Exit(2)
	case errors.Is(err, workspace.ErrIndexNotFound), errors.Is(err, ingest.ErrNoPriorIndex):
		out.Error(err.Error(), ErrCodeIndexNotFound)
		os.Exit(2)
	case errors.As(err, &authErr):
		out.Error(err.Error(), ErrCodeAuthFailed)
		os.Exit(3)
	case errors.As(err, &corruptErr):
		out.Error(err.Error(), ErrCodeIndexCorrupt)
		os.Exit(1)
	default:
		out.Error(err.Error(), ErrCodeInternal)
		os.Exit(1)
	}
}

// openWorkspace opens the effective workspace or exits with a mapped error.
func openWorkspace(alias string, out *CLIOutput) *workspace.Handle {
	h, err := workspace.Open(alias)
	if err != nil {
		exitWithError(out, err)
	}
	return h
}

// requireIndex exits when the workspace has never been built.
func requireIndex(h *workspace.Handle, out *CLIOutput) {
	if err := h.RequireIndex(); err != nil {
		h.Close()
		exitWithError(out, err)
	}
}

// formatTS renders a unix timestamp for table output.
func formatTS(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04")
}

// oneLine collapses whitespace runs so a message occupies one table row.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateText caps a string at max runes for table output.
func truncateText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// renderMessageLine renders one message as a table row.
func renderMessageLine(m store.Message) string {
	return fmt.Sprintf("%s  %-20s %-16s %s\n",
		formatTS(m.Timestamp),
		truncateText(m.ConversationName, 20),
		truncateText(m.Sender, 16),
		truncateText(oneLine(m.Text), 100))
}
