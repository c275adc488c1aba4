package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/slacksift/slacksift/internal/config"
	"github.com/slacksift/slacksift/internal/slack"
)

// handleAuth dispatches auth subcommands
func handleAuth(workspaceAlias string, args []string) {
	if len(args) == 0 {
		printAuthHelp()
		os.Exit(1)
	}

	switch args[0] {
	case "login":
		handleAuthLogin(workspaceAlias, args[1:])
	case "list", "ls":
		handleAuthList(args[1:])
	case "use":
		handleAuthUse(args[1:])
	case "remove", "rm":
		handleAuthRemove(args[1:])
	case "help", "--help", "-h":
		printAuthHelp()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown auth command: %s\n", args[0])
		printAuthHelp()
		os.Exit(1)
	}
}

func printAuthHelp() {
	fmt.Println("Usage: slacksift auth <command> [options]")
	fmt.Println()
	fmt.Println("Manage workspace credentials.")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login [alias]     Register a workspace user token (prompts if not given)")
	fmt.Println("  list              List registered workspaces")
	fmt.Println("  use <alias>       Make a workspace the default")
	fmt.Println("  remove <alias>    Forget credentials and delete the local index")
	fmt.Println()
	fmt.Println("Options for login:")
	fmt.Println("  --token <xoxp-...>   Token on the command line (otherwise prompted)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  slacksift auth login acme")
	fmt.Println("  slacksift auth login            # alias defaults to the workspace name")
	fmt.Println("  slacksift auth use acme")
}

// handleAuthLogin validates a token against the API and stores it.
func handleAuthLogin(workspaceAlias string, args []string) {
	fs := flag.NewFlagSet("auth login", flag.ExitOnError)
	tokenFlag := fs.String("token", "", "Slack user token (xoxp-...); prompted when omitted")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Println("Usage: slacksift auth login [alias] [options]")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	out := NewCLIOutput(*jsonOutput, false)
	alias := firstNonEmpty(fs.Arg(0), workspaceAlias)

	token := strings.TrimSpace(*tokenFlag)
	if token == "" {
		var err error
		token, err = promptToken()
		if err != nil {
			out.Error(fmt.Sprintf("failed to read token: %v", err), ErrCodeInvalidOperation)
			os.Exit(1)
		}
	}
	if token == "" {
		out.Error("empty token", ErrCodeInvalidOperation)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		exitWithError(out, err)
	}

	client := slack.NewClient(slack.ClientConfig{
		Token:      token,
		RatePerSec: cfg.Sync.GetRatePerSec(),
		RateBurst:  cfg.Sync.GetRateBurst(),
		Timeout:    time.Duration(cfg.Sync.GetHTTPTimeoutSecs()) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	identity, err := client.Authenticate(ctx)
	if err != nil {
		exitWithError(out, err)
	}

	if alias == "" {
		alias = sanitizeAlias(identity.WorkspaceName)
	}

	workspaces, err := config.LoadWorkspaces()
	if err != nil {
		exitWithError(out, err)
	}
	workspaces.Set(alias, config.WorkspaceAuth{
		Token:         token,
		WorkspaceID:   identity.WorkspaceID,
		WorkspaceName: identity.WorkspaceName,
		UserID:        identity.UserID,
	})
	if err := config.SaveWorkspaces(workspaces); err != nil {
		exitWithError(out, err)
	}

	out.Success(
		fmt.Sprintf("registered workspace %q (%s) as %s", identity.WorkspaceName, identity.WorkspaceID, alias),
		map[string]interface{}{
			"success":        true,
			"alias":          alias,
			"workspace_id":   identity.WorkspaceID,
			"workspace_name": identity.WorkspaceName,
			"user_id":        identity.UserID,
		})
	if !*jsonOutput {
		fmt.Printf("  Next: slacksift%s build\n", aliasFlagHint(alias, workspaces))
	}
}

// promptToken reads the token without echo when stdin is a terminal, and as
// a plain line otherwise (piped input).
func promptToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Slack user token (xoxp-...): ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// sanitizeAlias lowercases a workspace name into a filesystem-safe alias.
func sanitizeAlias(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "workspace"
	}
	return b.String()
}

// aliasFlagHint suggests the -w flag only when the alias is not the default.
func aliasFlagHint(alias string, w *config.Workspaces) string {
	if w.Current == alias {
		return ""
	}
	return " -w " + alias
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// handleAuthList lists registered workspaces
func handleAuthList(args []string) {
	fs := flag.NewFlagSet("auth list", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	out := NewCLIOutput(*jsonOutput, false)
	workspaces, err := config.LoadWorkspaces()
	if err != nil {
		exitWithError(out, err)
	}

	aliases := workspaces.Aliases()
	if len(aliases) == 0 {
		out.Print("No workspaces registered. Run: slacksift auth login\n",
			map[string]interface{}{"workspaces": []string{}})
		return
	}

	type wsInfo struct {
		Alias         string `json:"alias"`
		WorkspaceName string `json:"workspace_name"`
		UserID        string `json:"user_id"`
		Current       bool   `json:"current"`
	}
	var human strings.Builder
	infos := make([]wsInfo, 0, len(aliases))
	for _, alias := range aliases {
		auth := workspaces.Entries[alias]
		marker := bulletSymbol
		if alias == workspaces.Current {
			marker = "*"
		}
		human.WriteString(fmt.Sprintf("%s %-16s %-24s %s\n",
			marker, alias, auth.WorkspaceName, auth.UserID))
		infos = append(infos, wsInfo{
			Alias:         alias,
			WorkspaceName: auth.WorkspaceName,
			UserID:        auth.UserID,
			Current:       alias == workspaces.Current,
		})
	}
	out.Print(human.String(), map[string]interface{}{"workspaces": infos})
}

// handleAuthUse sets the default workspace
func handleAuthUse(args []string) {
	out := NewCLIOutput(false, false)
	if len(args) == 0 {
		out.Error("usage: slacksift auth use <alias>", ErrCodeInvalidOperation)
		os.Exit(1)
	}
	alias := args[0]

	workspaces, err := config.LoadWorkspaces()
	if err != nil {
		exitWithError(out, err)
	}
	if _, ok := workspaces.Entries[alias]; !ok {
		out.Error(fmt.Sprintf("workspace %q is not registered", alias), ErrCodeNotConfigured)
		os.Exit(2)
	}
	workspaces.Current = alias
	if err := config.SaveWorkspaces(workspaces); err != nil {
		exitWithError(out, err)
	}
	out.Success(fmt.Sprintf("default workspace is now %s", alias), nil)
}

// handleAuthRemove forgets a workspace and deletes its local data
func handleAuthRemove(args []string) {
	out := NewCLIOutput(false, false)
	if len(args) == 0 {
		out.Error("usage: slacksift auth remove <alias>", ErrCodeInvalidOperation)
		os.Exit(1)
	}
	alias := args[0]

	workspaces, err := config.LoadWorkspaces()
	if err != nil {
		exitWithError(out, err)
	}
	if err := workspaces.Remove(alias); err != nil {
		out.Error(err.Error(), ErrCodeNotConfigured)
		os.Exit(2)
	}
	if err := config.SaveWorkspaces(workspaces); err != nil {
		exitWithError(out, err)
	}
	out.Success(fmt.Sprintf("removed workspace %s and its local index", alias), nil)
}
