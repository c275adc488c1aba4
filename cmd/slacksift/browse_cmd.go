package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/slacksift/slacksift/internal/config"
	"github.com/slacksift/slacksift/internal/ui"
	"github.com/slacksift/slacksift/internal/workspace"
)

// handleBrowse starts the interactive TUI.
func handleBrowse(workspaceAlias string, args []string) {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	theme := fs.String("theme", "", "Theme override: dark, light, or system")

	fs.Usage = func() {
		fmt.Println("Usage: slacksift browse [options]")
		fmt.Println()
		fmt.Println("Browse and search your indexed messages interactively.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	out := NewCLIOutput(false, false)
	h := openWorkspace(workspaceAlias, out)
	defer h.Close()

	if err := h.RequireIndex(); err != nil {
		if errors.Is(err, workspace.ErrIndexNotFound) {
			fmt.Fprintln(os.Stderr, "No index yet for this workspace. Run 'slacksift build' first.")
			os.Exit(2)
		}
		exitWithError(out, err)
	}

	themePref := *theme
	if themePref == "" {
		if cfg, err := config.Load(); err == nil {
			themePref = cfg.UI.GetTheme()
		} else {
			themePref = "dark"
		}
	}
	ui.InitTheme(ui.ResolveTheme(themePref))

	p := tea.NewProgram(
		ui.NewBrowse(h.Engine, h.Alias),
		tea.WithAltScreen(),
	)

	if themePref == "system" {
		if tw := ui.NewThemeWatcher(context.Background()); tw != nil {
			defer tw.Close()
			go func() {
				for name := range tw.Changes() {
					ui.InitTheme(name)
					p.Send(ui.ThemeChangedMsg{})
				}
			}()
		}
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
