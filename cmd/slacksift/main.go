package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/slacksift/slacksift/internal/config"
	"github.com/slacksift/slacksift/internal/logging"
)

const Version = "0.4.0"

// init sets up color profile for consistent terminal colors across environments
func init() {
	initColorProfile()
}

// initColorProfile configures lipgloss color profile based on terminal
// capabilities. Prefers TrueColor, falls back to ANSI256.
func initColorProfile() {
	// SLACKSIFT_COLOR: truecolor, 256, 16, none
	if colorEnv := os.Getenv("SLACKSIFT_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	if colorTerm := os.Getenv("COLORTERM"); colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	term := os.Getenv("TERM")
	trueColorTerms := []string{
		"xterm-256color",
		"screen-256color",
		"tmux-256color",
		"xterm-direct",
		"alacritty",
		"kitty",
		"wezterm",
	}
	for _, t := range trueColorTerms {
		if strings.Contains(term, t) {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}

	if os.Getenv("WT_SESSION") != "" ||
		os.Getenv("ITERM_SESSION_ID") != "" ||
		os.Getenv("TERMINAL_EMULATOR") != "" ||
		os.Getenv("KONSOLE_VERSION") != "" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	lipgloss.SetColorProfile(termenv.ANSI256)
}

// setupLogging wires the rotating file logger under ~/.slacksift/logs.
// SLACKSIFT_DEBUG mirrors logs to stderr and forces debug level.
func setupLogging() {
	cfg, err := config.Load()
	if err != nil {
		// A broken config must not make the binary mute; fall back to
		// defaults and let the next command surface the parse error.
		cfg = &config.Config{}
	}

	debugMode := os.Getenv("SLACKSIFT_DEBUG") != ""
	logCfg := logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.GetCompress(),
		Verbose:    debugMode,
	}
	if debugMode {
		logCfg.Level = "debug"
	}
	if baseDir, err := config.GetSlacksiftDir(); err == nil {
		logCfg.LogDir = filepath.Join(baseDir, "logs")
	}
	logging.Init(logCfg)
}

func main() {
	// Extract global -w/--workspace flag before subcommand dispatch
	workspaceAlias, args := extractWorkspaceFlag(os.Args[1:])

	setupLogging()
	defer logging.Shutdown()

	// Handle subcommands
	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("slacksift v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "auth":
			handleAuth(workspaceAlias, args[1:])
			return
		case "build":
			handleBuild(workspaceAlias, args[1:])
			return
		case "update":
			handleUpdate(workspaceAlias, args[1:])
			return
		case "search":
			handleSearch(workspaceAlias, args[1:])
			return
		case "recent":
			handleRecent(workspaceAlias, args[1:])
			return
		case "contacts":
			handleContacts(workspaceAlias, args[1:])
			return
		case "conversations", "convos":
			handleConversations(workspaceAlias, args[1:])
			return
		case "thread":
			handleThread(workspaceAlias, args[1:])
			return
		case "stats":
			handleStats(workspaceAlias, args[1:])
			return
		case "serve":
			handleServe(workspaceAlias, args[1:])
			return
		case "browse":
			handleBrowse(workspaceAlias, args[1:])
			return
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", args[0])
			printHelp()
			os.Exit(1)
		}
	}

	// No arguments: open the interactive browser
	handleBrowse(workspaceAlias, nil)
}

// extractWorkspaceFlag extracts -w or --workspace from args, returning the
// alias and remaining args
func extractWorkspaceFlag(args []string) (string, []string) {
	var alias string
	var remaining []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-w=") {
			alias = strings.TrimPrefix(arg, "-w=")
			continue
		}
		if strings.HasPrefix(arg, "--workspace=") {
			alias = strings.TrimPrefix(arg, "--workspace=")
			continue
		}
		if arg == "-w" || arg == "--workspace" {
			if i+1 < len(args) {
				alias = args[i+1]
				i++
			}
			continue
		}

		remaining = append(remaining, arg)
	}

	return alias, remaining
}

func printHelp() {
	fmt.Printf("slacksift v%s\n", Version)
	fmt.Println("Personal search index for your Slack messages")
	fmt.Println()
	fmt.Println("Usage: slacksift [-w workspace] [command]")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  -w, --workspace <alias>  Use a specific workspace (default: configured current)")
	fmt.Println()
	fmt.Println("Setup:")
	fmt.Println("  auth login [alias]       Register a workspace token")
	fmt.Println("  auth list                List registered workspaces")
	fmt.Println("  auth use <alias>         Make a workspace the default")
	fmt.Println("  auth remove <alias>      Forget a workspace and delete its data")
	fmt.Println()
	fmt.Println("Indexing:")
	fmt.Println("  build                    Fetch everything and build the index from scratch")
	fmt.Println("  update                   Fetch only messages newer than the last sync")
	fmt.Println()
	fmt.Println("Queries:")
	fmt.Println("  search <terms>           Fuzzy-search indexed messages")
	fmt.Println("  recent                   Show the most recent messages")
	fmt.Println("  contacts                 People you talk to, by last activity")
	fmt.Println("  conversations            Channels and DMs, by last activity")
	fmt.Println("  thread <name>            Show one conversation chronologically")
	fmt.Println("  stats                    Index size, span, and last sync time")
	fmt.Println()
	fmt.Println("Interfaces:")
	fmt.Println("  browse                   Interactive terminal browser (default)")
	fmt.Println("  serve                    Local HTTP API with live sync progress")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  slacksift auth login acme")
	fmt.Println("  slacksift build")
	fmt.Println("  slacksift search deadline --from ana")
	fmt.Println("  slacksift search \"standup notes\" --after 2026-01-01 --context 2")
	fmt.Println("  slacksift -w acme thread general --limit 50")
	fmt.Println("  slacksift serve --listen 127.0.0.1:8430 --token secret")
}
