package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/slacksift/slacksift/internal/search"
)

// handleSearch runs a fuzzy query against the index.
func handleSearch(workspaceAlias string, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	from := fs.String("from", "", "Only messages from senders matching this substring (never your own)")
	fromShort := fs.String("f", "", "Shorthand for --from")
	after := fs.String("after", "", "Only messages after this time (unix seconds or YYYY-MM-DD)")
	limit := fs.Int("limit", 0, "Maximum results (default from config)")
	contextN := fs.Int("context", 0, "Surrounding messages to attach per hit")
	refresh := fs.Bool("refresh", false, "Pull new messages before searching")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	quiet := fs.Bool("quiet", false, "Minimal output")

	fs.Usage = func() {
		fmt.Println("Usage: slacksift search <terms> [options]")
		fmt.Println()
		fmt.Println("Fuzzy-search message text; small typos still match. With --from and")
		fmt.Println("no terms, lists that person's messages newest first.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  slacksift search deadline")
		fmt.Println("  slacksift search \"standup notes\" --context 2")
		fmt.Println("  slacksift search deadline --from ana --after 2026-01-01")
		fmt.Println("  slacksift search --from ana          # everything Ana sent")
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	out := NewCLIOutput(*jsonOutput, *quiet)

	afterTS, err := parseAfterArg(*after)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}

	h := openWorkspace(workspaceAlias, out)
	defer h.Close()
	requireIndex(h, out)

	query := search.Query{
		Text:         strings.Join(fs.Args(), " "),
		From:         mergeFlags(*from, *fromShort),
		After:        afterTS,
		Limit:        *limit,
		Context:      *contextN,
		RefreshFirst: *refresh,
	}
	results, err := h.Engine.Search(context.Background(), query)
	if err != nil {
		exitWithError(out, err)
	}

	if *jsonOutput {
		out.Print("", map[string]interface{}{"results": results})
		return
	}
	if len(results) == 0 {
		out.Print("No matches.\n", nil)
		return
	}

	var sb strings.Builder
	for _, r := range results {
		for _, m := range r.Before {
			sb.WriteString("  │ " + oneLine(fmt.Sprintf("%s %s: %s", formatTS(m.Timestamp), m.Sender, truncateText(m.Text, 90))) + "\n")
		}
		sb.WriteString(renderMessageLine(r.Message))
		for _, m := range r.After {
			sb.WriteString("  │ " + oneLine(fmt.Sprintf("%s %s: %s", formatTS(m.Timestamp), m.Sender, truncateText(m.Text, 90))) + "\n")
		}
		if len(r.Before) > 0 || len(r.After) > 0 {
			sb.WriteString("\n")
		}
	}
	out.Print(sb.String(), nil)
}

// handleRecent lists the newest indexed messages.
func handleRecent(workspaceAlias string, args []string) {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Maximum messages (default from config)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	quiet := fs.Bool("quiet", false, "Minimal output")

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	out := NewCLIOutput(*jsonOutput, *quiet)
	h := openWorkspace(workspaceAlias, out)
	defer h.Close()
	requireIndex(h, out)

	msgs, err := h.Engine.Recent(context.Background(), *limit)
	if err != nil {
		exitWithError(out, err)
	}

	if *jsonOutput {
		out.Print("", map[string]interface{}{"messages": msgs})
		return
	}
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(renderMessageLine(m))
	}
	if sb.Len() == 0 {
		sb.WriteString("No messages indexed.\n")
	}
	out.Print(sb.String(), nil)
}

// handleContacts lists senders by most recent activity.
func handleContacts(workspaceAlias string, args []string) {
	fs := flag.NewFlagSet("contacts", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Maximum contacts (default from config)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	quiet := fs.Bool("quiet", false, "Minimal output")

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	out := NewCLIOutput(*jsonOutput, *quiet)
	h := openWorkspace(workspaceAlias, out)
	defer h.Close()
	requireIndex(h, out)

	contacts, err := h.Engine.Contacts(context.Background(), *limit)
	if err != nil {
		exitWithError(out, err)
	}

	if *jsonOutput {
		out.Print("", map[string]interface{}{"contacts": contacts})
		return
	}
	var sb strings.Builder
	for _, c := range contacts {
		sb.WriteString(fmt.Sprintf("%-20s %5d msgs  last %s  %s\n",
			truncateText(c.Sender, 20),
			c.MessageCount,
			formatTS(c.LastTimestamp),
			truncateText(oneLine(c.LastText), 60)))
	}
	if sb.Len() == 0 {
		sb.WriteString("No contacts yet.\n")
	}
	out.Print(sb.String(), nil)
}

// handleConversations lists channels and DMs by most recent activity.
func handleConversations(workspaceAlias string, args []string) {
	fs := flag.NewFlagSet("conversations", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Maximum conversations (default from config)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	quiet := fs.Bool("quiet", false, "Minimal output")

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	out := NewCLIOutput(*jsonOutput, *quiet)
	h := openWorkspace(workspaceAlias, out)
	defer h.Close()
	requireIndex(h, out)

	convs, err := h.Engine.Conversations(context.Background(), *limit)
	if err != nil {
		exitWithError(out, err)
	}

	if *jsonOutput {
		out.Print("", map[string]interface{}{"conversations": convs})
		return
	}
	var sb strings.Builder
	for _, c := range convs {
		sb.WriteString(fmt.Sprintf("%-24s %5d msgs  last %s  %s\n",
			truncateText(c.ConversationName, 24),
			c.MessageCount,
			formatTS(c.LastTimestamp),
			truncateText(oneLine(c.LastText), 55)))
	}
	if sb.Len() == 0 {
		sb.WriteString("No conversations yet.\n")
	}
	out.Print(sb.String(), nil)
}

// handleThread shows one conversation chronologically.
func handleThread(workspaceAlias string, args []string) {
	fs := flag.NewFlagSet("thread", flag.ExitOnError)
	after := fs.String("after", "", "Only messages after this time (unix seconds or YYYY-MM-DD)")
	limit := fs.Int("limit", 0, "Maximum messages (default from config)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	quiet := fs.Bool("quiet", false, "Minimal output")

	fs.Usage = func() {
		fmt.Println("Usage: slacksift thread <conversation> [options]")
		fmt.Println()
		fmt.Println("Show messages of one conversation oldest first. The name matches")
		fmt.Println("case-insensitively on any part, so 'gen' finds #general.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	out := NewCLIOutput(*jsonOutput, *quiet)
	pattern := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(pattern) == "" {
		out.Error("a conversation name (or part of one) is required", ErrCodeInvalidOperation)
		os.Exit(1)
	}

	afterTS, err := parseAfterArg(*after)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidOperation)
		os.Exit(1)
	}

	h := openWorkspace(workspaceAlias, out)
	defer h.Close()
	requireIndex(h, out)

	msgs, err := h.Engine.Thread(context.Background(), pattern, afterTS, *limit)
	if err != nil {
		exitWithError(out, err)
	}

	if *jsonOutput {
		out.Print("", map[string]interface{}{"messages": msgs})
		return
	}
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(renderMessageLine(m))
	}
	if sb.Len() == 0 {
		sb.WriteString(fmt.Sprintf("No messages match conversation %q.\n", pattern))
	}
	out.Print(sb.String(), nil)
}

// handleStats shows index size, span, and last sync time.
func handleStats(workspaceAlias string, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	out := NewCLIOutput(*jsonOutput, false)
	h := openWorkspace(workspaceAlias, out)
	defer h.Close()

	state, err := h.Stats()
	if err != nil {
		exitWithError(out, err)
	}

	if *jsonOutput {
		out.Print("", state)
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Workspace:      %s (%s)\n", state.WorkspaceName, state.WorkspaceID))
	sb.WriteString(fmt.Sprintf("Messages:       %d\n", state.Stats.TotalMessages))
	sb.WriteString(fmt.Sprintf("Conversations:  %d (%d with cursors)\n", state.Stats.DistinctConversations, len(state.Cursors)))
	sb.WriteString(fmt.Sprintf("Senders:        %d\n", state.Stats.DistinctSenders))
	sb.WriteString(fmt.Sprintf("Span:           %s to %s\n", formatTS(state.Stats.OldestTimestamp), formatTS(state.Stats.NewestTimestamp)))
	sb.WriteString(fmt.Sprintf("Last sync:      %s\n", formatTS(state.Stats.IndexedAt)))
	out.Print(sb.String(), nil)
}
